package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/delphirag/internal/rag"
	"github.com/dshills/delphirag/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show ingestion status of a project",
	Long:  `Display index statistics, the latest ingestion run, resume progress and the health of the configured backends.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := newApp(ctx, components{progress: true})
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("delphirag status: %s\n", root)
	fmt.Printf("%s\n", strings.Repeat("═", 50))

	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Database: %s (%s)\n", cfg.Database.Path, storage.DriverName)
	fmt.Printf("  Embeddings: %s\n", cfg.EmbedderConfig().Provider)
	fmt.Printf("  Chunking: %d tokens, %d overlap, %s\n", cfg.Chunking.MaxTokens, cfg.Chunking.OverlapTokens, cfg.Chunking.Strategy)

	project, err := a.store.GetProject(ctx, root)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Printf("\nIndex: not indexed (run 'delphirag index')\n")
	case err != nil:
		return err
	default:
		status, err := a.store.GetStatus(ctx, project.ID)
		if err != nil {
			return err
		}
		printProjectStatus(status)
	}

	if a.progress != nil {
		snap, err := a.progress.Snapshot()
		if err == nil && snap.TotalFiles > 0 {
			fmt.Printf("\nResume progress:\n")
			fmt.Printf("  Completed: %d/%d (%.1f%%)\n", snap.CompletedFiles, snap.TotalFiles, snap.Percent())
			if snap.LastProcessed != "" {
				fmt.Printf("  Last file: %s\n", snap.LastProcessed)
			}
		}
	}

	fmt.Printf("\nBackends:\n")
	if cfg.LightRAG.Enabled {
		client := rag.NewLightRAGClient(rag.LightRAGOptions{BaseURL: cfg.LightRAG.URL, APIKey: cfg.LightRAG.APIKey, Logger: logger})
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Health(hctx)
		cancel()
		fmt.Printf("  LightRAG: %s %s\n", cfg.LightRAG.URL, healthLabel(err))
	} else {
		fmt.Printf("  LightRAG: disabled\n")
	}
	if cfg.Neo4j.Enabled {
		fmt.Printf("  Neo4j: %s\n", cfg.Neo4j.URI)
	} else {
		fmt.Printf("  Neo4j: disabled\n")
	}
	return nil
}

func printProjectStatus(status *storage.ProjectStatus) {
	fmt.Printf("\nIndex:\n")
	fmt.Printf("  Files: %d (%d auto-generated)\n", status.FilesCount, status.AutoGeneratedCount)
	fmt.Printf("  Entities: %d\n", status.EntitiesCount)
	fmt.Printf("  Relationships: %d\n", status.RelationshipsCount)
	fmt.Printf("  Chunks: %d (%d embedded)\n", status.ChunksCount, status.EmbeddingsCount)
	fmt.Printf("  Size: %.2f MB\n", status.IndexSizeMB)
	if !status.LastIndexedAt.IsZero() {
		fmt.Printf("  Last indexed: %s\n", status.LastIndexedAt.Format("2006-01-02 15:04:05"))
	}

	if run := status.LastRun; run != nil {
		fmt.Printf("\nLast run %s:\n", run.ID)
		fmt.Printf("  Status: %s\n", run.Status)
		fmt.Printf("  Files: %d processed, %d skipped, %d failed of %d\n", run.Processed, run.Skipped, run.Failed, run.FilesTotal)
		fmt.Printf("  Chunks: %d\n", run.Chunks)
		if !run.FinishedAt.IsZero() {
			fmt.Printf("  Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		}
		if run.Error != "" {
			fmt.Printf("  Error: %s\n", run.Error)
		}
	}
}

func healthLabel(err error) string {
	if err != nil {
		return "(unreachable: " + err.Error() + ")"
	}
	return "(healthy)"
}
