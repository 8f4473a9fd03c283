package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/delphirag/internal/rag"
	"github.com/dshills/delphirag/internal/searcher"
	"github.com/dshills/delphirag/internal/storage"
)

var (
	searchPath         string
	searchLimit        int
	searchMode         string
	searchChunkTypes   []string
	searchEntityKinds  []string
	searchFileTypes    []string
	searchPattern      string
	searchMinRelevance float64

	queryMode string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed chunks of a project",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask the LightRAG server a question about the ingested code",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	searchCmd.Flags().StringVarP(&searchPath, "path", "p", ".", "project root")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", searcher.DefaultLimit, "maximum results (1-100)")
	searchCmd.Flags().StringVar(&searchMode, "mode", string(searcher.SearchModeHybrid), "hybrid, vector or keyword")
	searchCmd.Flags().StringSliceVar(&searchChunkTypes, "type", nil, "chunk types to include")
	searchCmd.Flags().StringSliceVar(&searchEntityKinds, "kind", nil, "entity kinds to include")
	searchCmd.Flags().StringSliceVar(&searchFileTypes, "file-type", nil, "file types to include (pas, dfm)")
	searchCmd.Flags().StringVar(&searchPattern, "pattern", "", "glob on the relative file path")
	searchCmd.Flags().Float64Var(&searchMinRelevance, "min-relevance", 0, "minimum relevance score (0-1)")

	queryCmd.Flags().StringVar(&queryMode, "mode", "", "retrieval mode: naive, local, global, hybrid or mix (default: from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	root, err := projectRoot([]string{searchPath})
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := newApp(ctx, components{embedder: searcher.SearchMode(searchMode) != searcher.SearchModeKeyword})
	if err != nil {
		return err
	}
	defer a.Close()

	project, err := a.store.GetProject(ctx, root)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s is not indexed, run 'delphirag index' first", root)
	}
	if err != nil {
		return err
	}

	var filters *storage.SearchFilters
	if len(searchChunkTypes)+len(searchEntityKinds)+len(searchFileTypes) > 0 || searchPattern != "" || searchMinRelevance > 0 {
		filters = &storage.SearchFilters{
			ChunkTypes:   searchChunkTypes,
			EntityKinds:  searchEntityKinds,
			FileTypes:    searchFileTypes,
			FilePattern:  searchPattern,
			MinRelevance: searchMinRelevance,
		}
	}

	resp, err := a.searcher.Search(ctx, searcher.SearchRequest{
		Query:     strings.Join(args, " "),
		Limit:     searchLimit,
		Mode:      searcher.SearchMode(searchMode),
		Filters:   filters,
		ProjectID: project.ID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%d results (%s, %s)\n", resp.TotalResults, resp.SearchMode, resp.Duration.Round(time.Microsecond))
	for _, r := range resp.Results {
		fmt.Printf("\n%2d. [%.3f] %s %s  %s\n", r.Rank, r.RelevanceScore, r.ChunkType, r.EntityName, r.Location())
		fmt.Println(indent(preview(r.Content, 6), "    "))
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	if !cfg.LightRAG.Enabled {
		return errors.New("LightRAG is not configured, set LIGHTRAG_API_URL or lightrag.enabled")
	}
	mode := queryMode
	if mode == "" {
		mode = cfg.LightRAG.Mode
	}
	if err := rag.ValidateMode(mode); err != nil {
		return err
	}

	client := rag.NewLightRAGClient(rag.LightRAGOptions{
		BaseURL:           cfg.LightRAG.URL,
		APIKey:            cfg.LightRAG.APIKey,
		RequestsPerSecond: cfg.LightRAG.RequestsPerSecond,
		Logger:            logger,
	})

	answer, err := client.Query(context.Background(), strings.Join(args, " "), mode)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

// preview returns at most n lines of s
func preview(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + "\n..."
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
