package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/dshills/delphirag/internal/classifier"
)

// DefaultDebounce is the quiet period after the last change before reindexing
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions configures Watch
type WatchOptions struct {
	Debounce time.Duration
	// OnRun is called after each reindex triggered by changes
	OnRun func(*Statistics, error)
}

// Watch reindexes root whenever a matching source file changes, until ctx is
// done. Changes are debounced so a burst of saves triggers one run, and the
// incremental hash check keeps each run limited to changed files.
func (idx *Indexer) Watch(ctx context.Context, root string, config *Config, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addTree(watcher, root); err != nil {
		return err
	}

	exts := config.Extensions
	if len(exts) == 0 {
		exts = classifier.DefaultExtensions
	}
	log := idx.log.WithField("root", root)
	log.Info("watching for changes")

	timer := time.NewTimer(opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := addTree(watcher, event.Name); err != nil {
					log.WithError(err).Warn("failed to watch new directory")
				}
				continue
			}
			if !relevant(event, exts) {
				continue
			}
			log.WithFields(logrus.Fields{"file": event.Name, "op": event.Op.String()}).Debug("change detected")
			timer.Reset(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")

		case <-timer.C:
			stats, err := idx.IndexProject(ctx, root, config)
			if err != nil {
				log.WithError(err).Error("reindex failed")
			}
			if opts.OnRun != nil {
				opts.OnRun(stats, err)
			}
		}
	}
}

// addTree watches dir and every searchable directory below it
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && classifier.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func relevant(event fsnotify.Event, exts []string) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, e := range exts {
		if strings.TrimPrefix(strings.ToLower(e), ".") == strings.TrimPrefix(ext, ".") && ext != "" {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
