package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/delphirag/internal/chunker"
	"github.com/dshills/delphirag/internal/embedder"
	"github.com/dshills/delphirag/internal/parser"
)

// clearEnv unsets every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DELPHIRAG_DB_PATH", "DELPHIRAG_CHUNKING_MAX_TOKENS", "DELPHIRAG_LOG_LEVEL",
		embedder.EnvProvider, embedder.EnvModel, embedder.EnvOpenAIAPIKey,
		embedder.EnvOpenAIBase, embedder.EnvOpenAIEmbedURL, embedder.EnvGeminiAPIKey,
		embedder.EnvJinaAPIKey,
		"LIGHTRAG_API_URL", "LIGHTRAG_API_KEY", "LIGHTRAG_WORKING_DIR", "LIGHTRAG_MODE",
		"LIGHTRAG_CHUNK_SIZE", "LIGHTRAG_CHUNK_OVERLAP", "LIGHTRAG_MAX_ASYNC", "LIGHTRAG_LANGUAGE",
		"NEO4J_URI", "NEO4J_USERNAME", "NEO4J_PASSWORD",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	// keep .env files of the developer out of the test
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8000, cfg.Chunking.MaxTokens)
	assert.Equal(t, 100, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 50, cfg.Chunking.Lookahead)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, "http://localhost:8080", cfg.LightRAG.URL)
	assert.Equal(t, "hybrid", cfg.LightRAG.Mode)
	assert.Equal(t, 1200, cfg.LightRAG.ChunkSize)
	assert.Equal(t, 100, cfg.LightRAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.LightRAG.MaxAsync)
	assert.Equal(t, "English", cfg.LightRAG.Language)
	assert.Equal(t, []string{"class", "interface", "function", "procedure", "property", "method"}, cfg.LightRAG.EntityTypes)
	assert.Equal(t, []string{".pas", ".dfm"}, cfg.Indexer.Extensions)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Chunking, cfg.Chunking)
	assert.False(t, cfg.LightRAG.Enabled)
	assert.False(t, cfg.Neo4j.Enabled)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunking:
  max_tokens: 512
  overlap_tokens: 32
  range_scan: balanced
lightrag:
  enabled: true
  url: http://rag.internal:9621
  mode: mix
indexer:
  exclude:
    - "**/Generated/**"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Chunking.MaxTokens)
	assert.Equal(t, 32, cfg.Chunking.OverlapTokens)
	assert.Equal(t, "balanced", cfg.Chunking.RangeScan)
	assert.Equal(t, 50, cfg.Chunking.Lookahead)
	assert.True(t, cfg.LightRAG.Enabled)
	assert.Equal(t, "http://rag.internal:9621", cfg.LightRAG.URL)
	assert.Equal(t, "mix", cfg.LightRAG.Mode)
	assert.Equal(t, []string{"**/Generated/**"}, cfg.Indexer.Exclude)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_BASE", "https://llm.example.com/v1")
	t.Setenv("OPENAI_EMBEDDING_API_BASE", "https://embed.example.com/v1")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-small")
	t.Setenv("LIGHTRAG_API_URL", "http://rag:8080")
	t.Setenv("LIGHTRAG_MODE", "local")
	t.Setenv("LIGHTRAG_CHUNK_SIZE", "800")
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("DELPHIRAG_DB_PATH", "/tmp/delphi.db")
	t.Setenv("DELPHIRAG_CHUNKING_MAX_TOKENS", "2048")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "https://embed.example.com/v1", cfg.Embedding.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.True(t, cfg.LightRAG.Enabled)
	assert.Equal(t, "http://rag:8080", cfg.LightRAG.URL)
	assert.Equal(t, "local", cfg.LightRAG.Mode)
	assert.Equal(t, 800, cfg.LightRAG.ChunkSize)
	assert.True(t, cfg.Neo4j.Enabled)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "secret", cfg.Neo4j.Password)
	assert.Equal(t, "/tmp/delphi.db", cfg.Database.Path)
	assert.Equal(t, 2048, cfg.Chunking.MaxTokens)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("GOOGLE_API_KEY=from-dotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("GOOGLE_API_KEY") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Embedding.GoogleAPIKey)
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Chunking.MaxTokens = 1024
	cfg.Embedding.APIKey = "sk-never-written"
	cfg.Neo4j.Password = "hidden"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-never-written")
	assert.NotContains(t, string(raw), "hidden")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1024, loaded.Chunking.MaxTokens)
	assert.Empty(t, loaded.Embedding.APIKey)
	assert.Equal(t, cfg.LightRAG, loaded.LightRAG)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"overlap not below max", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.MaxTokens }, "overlap_tokens"},
		{"zero max tokens", func(c *Config) { c.Chunking.MaxTokens = 0 }, "max_tokens"},
		{"unknown range scan", func(c *Config) { c.Chunking.RangeScan = "fuzzy" }, "range scan"},
		{"unknown grammar", func(c *Config) { c.Parser.Grammar = "cobol" }, "grammar"},
		{"bad capability", func(c *Config) { c.Parser.Capability = "deep" }, "capability"},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }, "OPENAI_API_KEY"},
		{"gemini without key", func(c *Config) { c.Embedding.Provider = "gemini" }, "GOOGLE_API_KEY"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "cohere"},
		{"bad mode", func(c *Config) { c.LightRAG.Mode = "deep" }, "lightrag.mode"},
		{"bad lightrag url", func(c *Config) { c.LightRAG.Enabled = true; c.LightRAG.URL = "ftp://rag" }, "lightrag.url"},
		{"neo4j without uri", func(c *Config) { c.Neo4j.Enabled = true; c.Neo4j.URI = "" }, "neo4j.uri"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Chunking.MaxTokens = -1
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
	assert.Contains(t, err.Error(), "log.format")
}

func TestEmbeddingDimension(t *testing.T) {
	assert.Equal(t, 1536, EmbeddingDimension("text-embedding-3-small"))
	assert.Equal(t, 3072, EmbeddingDimension("text-embedding-3-large"))
	assert.Equal(t, 1536, EmbeddingDimension("text-embedding-ada-002"))
	assert.Equal(t, 768, EmbeddingDimension("text-embedding-004"))
	assert.Equal(t, 1536, EmbeddingDimension("unknown-model"))
}

func TestComponentConfigs(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Chunking.RangeScan = "explicit"
	cfg.Parser.Grammar = "canonical"
	cfg.Parser.Capability = "graph"

	cc := cfg.ChunkerConfig()
	assert.Equal(t, chunker.ScanExplicit, cc.RangeScan)
	assert.Equal(t, 8000, cc.MaxTokens)

	pc, err := cfg.ParserConfig()
	require.NoError(t, err)
	assert.Equal(t, "canonical", pc.Grammar.Name)
	assert.Equal(t, parser.CapabilityGraph, pc.Capability)

	ec := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderLocal, ec.Provider)
	assert.Equal(t, embedder.DefaultLocalModel, ec.Model)

	cfg.Embedding.GoogleAPIKey = "g-key"
	ec = cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderGemini, ec.Provider)
	assert.Equal(t, "g-key", ec.APIKey)
	assert.Equal(t, embedder.DefaultGeminiModel, ec.Model)

	cfg.Embedding.APIKey = "sk"
	cfg.Embedding.BaseURL = "https://embed.example.com/v1"
	ec = cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderOpenAI, ec.Provider)
	assert.Equal(t, "sk", ec.APIKey)
	assert.Equal(t, "https://embed.example.com/v1", ec.BaseURL)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y.db"), expandPath("~/x/y.db"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
	assert.Equal(t, "", expandPath(""))
}
