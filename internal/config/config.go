package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dshills/delphirag/internal/chunker"
	"github.com/dshills/delphirag/internal/embedder"
	"github.com/dshills/delphirag/internal/parser"
	"github.com/dshills/delphirag/internal/rag"
)

// Config holds all configuration settings
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Parser    ParserConfig    `mapstructure:"parser" yaml:"parser"`
	Chunking  ChunkingConfig  `mapstructure:"chunking" yaml:"chunking"`
	Indexer   IndexerConfig   `mapstructure:"indexer" yaml:"indexer"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	LightRAG  LightRAGConfig  `mapstructure:"lightrag" yaml:"lightrag"`
	Neo4j     Neo4jConfig     `mapstructure:"neo4j" yaml:"neo4j"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type DatabaseConfig struct {
	Path         string `mapstructure:"path" yaml:"path"`
	ProgressPath string `mapstructure:"progress_path" yaml:"progress_path"`
}

type ParserConfig struct {
	Grammar      string `mapstructure:"grammar" yaml:"grammar"`           // pascal, canonical
	Language     string `mapstructure:"language" yaml:"language"`         // tree-sitter grammar library name
	LibraryDir   string `mapstructure:"library_dir" yaml:"library_dir"`   // extra trusted directory for grammar libraries
	Capability   string `mapstructure:"capability" yaml:"capability"`     // graph, flat, both
	Disambiguate bool   `mapstructure:"disambiguate" yaml:"disambiguate"` // suffix duplicate entity names
}

type ChunkingConfig struct {
	MaxTokens     int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	OverlapTokens int    `mapstructure:"overlap_tokens" yaml:"overlap_tokens"`
	RangeScan     string `mapstructure:"range_scan" yaml:"range_scan"`
	Lookahead     int    `mapstructure:"lookahead" yaml:"lookahead"`
	Strategy      string `mapstructure:"strategy" yaml:"strategy"`
	TokenModel    string `mapstructure:"token_model" yaml:"token_model"` // model whose tokenizer counts tokens
}

type IndexerConfig struct {
	Workers    int      `mapstructure:"workers" yaml:"workers"`
	BatchSize  int      `mapstructure:"batch_size" yaml:"batch_size"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`
}

type EmbeddingConfig struct {
	Provider          string  `mapstructure:"provider" yaml:"provider"` // openai, gemini, jina, local; empty detects
	Model             string  `mapstructure:"model" yaml:"model"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	GoogleAPIKey      string  `mapstructure:"google_api_key" yaml:"google_api_key,omitempty"`
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Dimensions        int     `mapstructure:"dimensions" yaml:"dimensions"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	CacheSize         int     `mapstructure:"cache_size" yaml:"cache_size"`
}

type LightRAGConfig struct {
	Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
	URL               string   `mapstructure:"url" yaml:"url"`
	APIKey            string   `mapstructure:"api_key" yaml:"api_key,omitempty"`
	WorkingDir        string   `mapstructure:"working_dir" yaml:"working_dir"`
	Mode              string   `mapstructure:"mode" yaml:"mode"`
	ChunkSize         int      `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap      int      `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	MaxAsync          int      `mapstructure:"max_async" yaml:"max_async"`
	Language          string   `mapstructure:"language" yaml:"language"`
	EntityTypes       []string `mapstructure:"entity_types" yaml:"entity_types"`
	BatchSize         int      `mapstructure:"batch_size" yaml:"batch_size"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	URI      string `mapstructure:"uri" yaml:"uri"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	Database string `mapstructure:"database" yaml:"database"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// EnvPrefix prefixes environment variables that map onto config keys,
// e.g. DELPHIRAG_CHUNKING_MAX_TOKENS
const EnvPrefix = "DELPHIRAG"

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Database: DatabaseConfig{
			Path:         filepath.Join(homeDir, ".delphirag", "index.db"),
			ProgressPath: filepath.Join(homeDir, ".delphirag", "progress.db"),
		},
		Parser: ParserConfig{
			Grammar:    "pascal",
			Language:   "pascal",
			Capability: "both",
		},
		Chunking: ChunkingConfig{
			MaxTokens:     chunker.DefaultMaxTokens,
			OverlapTokens: chunker.DefaultOverlapTokens,
			RangeScan:     string(chunker.ScanLine),
			Lookahead:     chunker.DefaultLookahead,
			Strategy:      string(chunker.StrategyAuto),
			TokenModel:    embedder.DefaultOpenAIModel,
		},
		Indexer: IndexerConfig{
			Workers:    runtime.NumCPU(),
			BatchSize:  20,
			Extensions: []string{".pas", ".dfm"},
		},
		Embedding: EmbeddingConfig{
			Model:             embedder.DefaultOpenAIModel,
			RequestsPerSecond: embedder.DefaultRequestsPerSecond,
			CacheSize:         embedder.DefaultCacheSize,
		},
		LightRAG: LightRAGConfig{
			URL:          rag.DefaultLightRAGURL,
			WorkingDir:   "./lightrag_storage",
			Mode:         rag.ModeHybrid,
			ChunkSize:    1200,
			ChunkOverlap: 100,
			MaxAsync:     4,
			Language:     "English",
			EntityTypes:  []string{"class", "interface", "function", "procedure", "property", "method"},
			BatchSize:    rag.DefaultBatchSize,
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from path, or from the standard locations when
// path is empty. A missing config file is not an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".delphirag")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".delphirag"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.ProgressPath = expandPath(cfg.Database.ProgressPath)
	cfg.Parser.LibraryDir = expandPath(cfg.Parser.LibraryDir)

	return cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can bind it
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.progress_path", cfg.Database.ProgressPath)

	v.SetDefault("parser.grammar", cfg.Parser.Grammar)
	v.SetDefault("parser.language", cfg.Parser.Language)
	v.SetDefault("parser.library_dir", cfg.Parser.LibraryDir)
	v.SetDefault("parser.capability", cfg.Parser.Capability)
	v.SetDefault("parser.disambiguate", cfg.Parser.Disambiguate)

	v.SetDefault("chunking.max_tokens", cfg.Chunking.MaxTokens)
	v.SetDefault("chunking.overlap_tokens", cfg.Chunking.OverlapTokens)
	v.SetDefault("chunking.range_scan", cfg.Chunking.RangeScan)
	v.SetDefault("chunking.lookahead", cfg.Chunking.Lookahead)
	v.SetDefault("chunking.strategy", cfg.Chunking.Strategy)
	v.SetDefault("chunking.token_model", cfg.Chunking.TokenModel)

	v.SetDefault("indexer.workers", cfg.Indexer.Workers)
	v.SetDefault("indexer.batch_size", cfg.Indexer.BatchSize)
	v.SetDefault("indexer.extensions", cfg.Indexer.Extensions)
	v.SetDefault("indexer.exclude", cfg.Indexer.Exclude)

	v.SetDefault("embedding.provider", cfg.Embedding.Provider)
	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.api_key", cfg.Embedding.APIKey)
	v.SetDefault("embedding.google_api_key", cfg.Embedding.GoogleAPIKey)
	v.SetDefault("embedding.base_url", cfg.Embedding.BaseURL)
	v.SetDefault("embedding.dimensions", cfg.Embedding.Dimensions)
	v.SetDefault("embedding.requests_per_second", cfg.Embedding.RequestsPerSecond)
	v.SetDefault("embedding.cache_size", cfg.Embedding.CacheSize)

	v.SetDefault("lightrag.enabled", cfg.LightRAG.Enabled)
	v.SetDefault("lightrag.url", cfg.LightRAG.URL)
	v.SetDefault("lightrag.api_key", cfg.LightRAG.APIKey)
	v.SetDefault("lightrag.working_dir", cfg.LightRAG.WorkingDir)
	v.SetDefault("lightrag.mode", cfg.LightRAG.Mode)
	v.SetDefault("lightrag.chunk_size", cfg.LightRAG.ChunkSize)
	v.SetDefault("lightrag.chunk_overlap", cfg.LightRAG.ChunkOverlap)
	v.SetDefault("lightrag.max_async", cfg.LightRAG.MaxAsync)
	v.SetDefault("lightrag.language", cfg.LightRAG.Language)
	v.SetDefault("lightrag.entity_types", cfg.LightRAG.EntityTypes)
	v.SetDefault("lightrag.batch_size", cfg.LightRAG.BatchSize)
	v.SetDefault("lightrag.requests_per_second", cfg.LightRAG.RequestsPerSecond)

	v.SetDefault("neo4j.enabled", cfg.Neo4j.Enabled)
	v.SetDefault("neo4j.uri", cfg.Neo4j.URI)
	v.SetDefault("neo4j.username", cfg.Neo4j.Username)
	v.SetDefault("neo4j.password", cfg.Neo4j.Password)
	v.SetDefault("neo4j.database", cfg.Neo4j.Database)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overrides variables that are already set, so earlier files win.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".delphirag", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the conventional variable names used by the
// OpenAI, Google, LightRAG and Neo4j tooling
func applyEnvOverrides(cfg *Config) {
	if path := os.Getenv("DELPHIRAG_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}

	if key := os.Getenv(embedder.EnvOpenAIAPIKey); key != "" {
		cfg.Embedding.APIKey = key
	}
	if key := os.Getenv(embedder.EnvGeminiAPIKey); key != "" {
		cfg.Embedding.GoogleAPIKey = key
	}
	if model := os.Getenv(embedder.EnvModel); model != "" {
		cfg.Embedding.Model = model
	}
	if url := os.Getenv(embedder.EnvOpenAIEmbedURL); url != "" {
		cfg.Embedding.BaseURL = url
	} else if url := os.Getenv(embedder.EnvOpenAIBase); url != "" && cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = url
	}
	if provider := os.Getenv(embedder.EnvProvider); provider != "" {
		cfg.Embedding.Provider = provider
	}

	if url := os.Getenv("LIGHTRAG_API_URL"); url != "" {
		cfg.LightRAG.URL = url
		cfg.LightRAG.Enabled = true
	}
	if key := os.Getenv("LIGHTRAG_API_KEY"); key != "" {
		cfg.LightRAG.APIKey = key
	}
	if dir := os.Getenv("LIGHTRAG_WORKING_DIR"); dir != "" {
		cfg.LightRAG.WorkingDir = dir
	}
	if mode := os.Getenv("LIGHTRAG_MODE"); mode != "" {
		cfg.LightRAG.Mode = mode
	}
	if size := os.Getenv("LIGHTRAG_CHUNK_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.LightRAG.ChunkSize = n
		}
	}
	if overlap := os.Getenv("LIGHTRAG_CHUNK_OVERLAP"); overlap != "" {
		if n, err := strconv.Atoi(overlap); err == nil {
			cfg.LightRAG.ChunkOverlap = n
		}
	}
	if async := os.Getenv("LIGHTRAG_MAX_ASYNC"); async != "" {
		if n, err := strconv.Atoi(async); err == nil {
			cfg.LightRAG.MaxAsync = n
		}
	}
	if lang := os.Getenv("LIGHTRAG_LANGUAGE"); lang != "" {
		cfg.LightRAG.Language = lang
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Neo4j.URI = uri
		cfg.Neo4j.Enabled = true
	}
	if user := os.Getenv("NEO4J_USERNAME"); user != "" {
		cfg.Neo4j.Username = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Neo4j.Password = password
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Redacted returns a copy with every secret blanked
func (c *Config) Redacted() *Config {
	out := *c
	out.Embedding.APIKey = ""
	out.Embedding.GoogleAPIKey = ""
	out.LightRAG.APIKey = ""
	out.Neo4j.Password = ""
	return &out
}

// Save writes the configuration as YAML. Secrets are omitted.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// EmbeddingDimension returns the vector size of model, defaulting to 1536
// for unknown models
func EmbeddingDimension(model string) int {
	if d := embedder.DimensionForModel(model); d > 0 {
		return d
	}
	return 1536
}

// ChunkerConfig converts the chunking section
func (c *Config) ChunkerConfig() chunker.Config {
	return chunker.Config{
		MaxTokens:     c.Chunking.MaxTokens,
		OverlapTokens: c.Chunking.OverlapTokens,
		RangeScan:     chunker.RangeScan(c.Chunking.RangeScan),
		Lookahead:     c.Chunking.Lookahead,
		Strategy:      chunker.Strategy(c.Chunking.Strategy),
	}
}

// ParserConfig converts the parser section
func (c *Config) ParserConfig() (parser.Config, error) {
	grammar, ok := parser.GrammarByName(c.Parser.Grammar)
	if !ok {
		return parser.Config{}, fmt.Errorf("unknown grammar %q", c.Parser.Grammar)
	}
	capability, err := parser.ParseCapability(c.Parser.Capability)
	if err != nil {
		return parser.Config{}, err
	}
	return parser.Config{
		Grammar:      grammar,
		Capability:   capability,
		Disambiguate: c.Parser.Disambiguate,
	}, nil
}

// EmbedderConfig converts the embedding section. An empty provider is
// detected from the configured keys.
func (c *Config) EmbedderConfig() embedder.Config {
	cfg := embedder.Config{
		Provider:          strings.ToLower(c.Embedding.Provider),
		Model:             c.Embedding.Model,
		BaseURL:           c.Embedding.BaseURL,
		Dimensions:        c.Embedding.Dimensions,
		CacheSize:         c.Embedding.CacheSize,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
	}
	if cfg.Provider == "" {
		switch {
		case c.Embedding.APIKey != "":
			cfg.Provider = embedder.ProviderOpenAI
		case c.Embedding.GoogleAPIKey != "":
			cfg.Provider = embedder.ProviderGemini
		default:
			cfg.Provider = embedder.DetectProvider()
		}
	}

	switch cfg.Provider {
	case embedder.ProviderOpenAI:
		cfg.APIKey = c.Embedding.APIKey
	case embedder.ProviderGemini:
		cfg.APIKey = c.Embedding.GoogleAPIKey
		if cfg.Model == embedder.DefaultOpenAIModel {
			cfg.Model = embedder.DefaultGeminiModel
		}
		cfg.BaseURL = ""
	case embedder.ProviderJina:
		cfg.APIKey = os.Getenv(embedder.EnvJinaAPIKey)
		if cfg.Model == embedder.DefaultOpenAIModel {
			cfg.Model = embedder.DefaultJinaModel
		}
		cfg.BaseURL = ""
	case embedder.ProviderLocal:
		cfg.Model = embedder.DefaultLocalModel
		cfg.BaseURL = ""
	}
	return cfg
}
