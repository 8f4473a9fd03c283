package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dshills/delphirag/internal/config"
	"github.com/dshills/delphirag/internal/storage"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "delphirag",
	Short: "Delphi/Pascal ingestion pipeline for retrieval-augmented generation",
	Long: `delphirag parses Delphi units and forms, extracts classes, routines and
properties, splits the sources into token-bounded chunks and feeds them to a
search index and a LightRAG or Neo4j knowledge graph.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// stdout is reserved for command output and the MCP protocol
		logger = logrus.New()
		logger.SetOutput(os.Stderr)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		if cfg.Log.Format == "json" {
			logger.SetFormatter(&logrus.JSONFormatter{})
		}
		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		if verbose {
			level = logrus.DebugLevel
		}
		logger.SetLevel(level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .delphirag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`delphirag {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
SQLite driver: ` + storage.DriverName + ` (` + storage.BuildMode + `)
`)

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}
