package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var offlineOnce sync.Once

// useOfflineBPE makes tiktoken read BPE ranks compiled into the binary
// instead of downloading them on first use
func useOfflineBPE() {
	offlineOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
}
