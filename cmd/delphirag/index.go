package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/delphirag/internal/indexer"
)

var (
	indexForce   bool
	indexReset   bool
	indexNoEmbed bool
	indexWorkers int
	indexExclude []string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Ingest a Delphi project",
	Long: `Discover every .pas and .dfm file under path (default: current directory),
extract entities and relationships, chunk the sources, store them in the local
index and deliver them to the configured RAG backends.

Unchanged files are skipped. An interrupted run resumes where it stopped
unless --reset is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "reprocess files whose content is unchanged")
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "discard recorded progress before starting")
	indexCmd.Flags().BoolVar(&indexNoEmbed, "no-embed", false, "skip embedding generation")
	indexCmd.Flags().IntVar(&indexWorkers, "workers", 0, "concurrent file workers (default: from config)")
	indexCmd.Flags().StringSliceVar(&indexExclude, "exclude", nil, "glob patterns relative to the root to skip")
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, components{progress: true, sinks: true, embedder: !indexNoEmbed})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.lightrag != nil {
		if err := a.lightrag.Health(ctx); err != nil {
			return fmt.Errorf("LightRAG server not reachable at %s: %w", cfg.LightRAG.URL, err)
		}
	}

	config := indexConfig()
	config.Force = indexForce
	config.Reset = indexReset
	config.Resume = !indexReset
	config.Embed = !indexNoEmbed
	if indexWorkers > 0 {
		config.Workers = indexWorkers
	}
	config.Exclude = append(config.Exclude, indexExclude...)

	logger.WithField("root", root).Info("Indexing project")
	stats, err := a.indexer.IndexProject(ctx, root, &config)
	if err != nil {
		return err
	}

	printStatistics(stats)
	if stats.Failed > 0 {
		return fmt.Errorf("%d files failed", stats.Failed)
	}
	return nil
}

func printStatistics(stats *indexer.Statistics) {
	fmt.Printf("Indexing complete in %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("%s\n", strings.Repeat("─", 40))
	fmt.Printf("  Files found:      %d\n", stats.TotalFiles)
	fmt.Printf("  Processed:        %d\n", stats.Processed)
	fmt.Printf("  Skipped:          %d\n", stats.Skipped)
	fmt.Printf("  Auto-generated:   %d\n", stats.AutoGenerated)
	fmt.Printf("  Parse fallbacks:  %d\n", stats.ParseFallbacks)
	fmt.Printf("  Removed:          %d\n", stats.Removed)
	fmt.Printf("  Failed:           %d\n", stats.Failed)
	fmt.Printf("  Chunks:           %d\n", stats.Chunks)
	fmt.Printf("  Entities:         %d\n", stats.Entities)
	fmt.Printf("  Relationships:    %d\n", stats.Relationships)
	fmt.Printf("  Embedded:         %d\n", stats.Embedded)

	if len(stats.ErrorMessages) > 0 {
		fmt.Printf("\nErrors:\n")
		for _, msg := range stats.ErrorMessages {
			fmt.Printf("  - %s\n", msg)
		}
	}
}

// projectRoot resolves the optional path argument to an absolute directory
func projectRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
