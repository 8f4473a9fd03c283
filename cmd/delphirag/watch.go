package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dshills/delphirag/internal/indexer"
)

var (
	watchDebounce time.Duration
	watchNoEmbed  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a project and keep the index current as files change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", indexer.DefaultDebounce, "quiet period before reindexing")
	watchCmd.Flags().BoolVar(&watchNoEmbed, "no-embed", false, "skip embedding generation")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, components{progress: true, sinks: true, embedder: !watchNoEmbed})
	if err != nil {
		return err
	}
	defer a.Close()

	config := indexConfig()
	config.Embed = !watchNoEmbed

	stats, err := a.indexer.IndexProject(ctx, root, &config)
	if err != nil {
		return err
	}
	printStatistics(stats)

	return a.indexer.Watch(ctx, root, &config, indexer.WatchOptions{
		Debounce: watchDebounce,
		OnRun: func(stats *indexer.Statistics, err error) {
			if err != nil {
				return
			}
			logger.WithFields(logrus.Fields{
				"processed": stats.Processed,
				"removed":   stats.Removed,
				"failed":    stats.Failed,
				"chunks":    stats.Chunks,
			}).Info("Reindexed")
		},
	})
}
