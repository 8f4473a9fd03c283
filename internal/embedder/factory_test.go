package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvProvider, EnvModel, EnvOpenAIAPIKey, EnvOpenAIBase, EnvOpenAIEmbedURL, EnvGeminiAPIKey, EnvJinaAPIKey} {
		t.Setenv(k, "")
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "nothing set", want: ProviderLocal},
		{name: "explicit provider wins", env: map[string]string{EnvProvider: "Jina", EnvOpenAIAPIKey: "k"}, want: ProviderJina},
		{name: "openai key", env: map[string]string{EnvOpenAIAPIKey: "k"}, want: ProviderOpenAI},
		{name: "gemini key", env: map[string]string{EnvGeminiAPIKey: "k"}, want: ProviderGemini},
		{name: "jina key", env: map[string]string{EnvJinaAPIKey: "k"}, want: ProviderJina},
		{name: "openai before gemini", env: map[string]string{EnvOpenAIAPIKey: "k", EnvGeminiAPIKey: "k"}, want: ProviderOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	t.Setenv(EnvOpenAIBase, "http://general.example/v1")
	t.Setenv(EnvOpenAIEmbedURL, "http://embed.example/v1")
	t.Setenv(EnvModel, "text-embedding-3-small")

	cfg := ConfigFromEnv()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "http://embed.example/v1", cfg.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.Model)

	t.Setenv(EnvOpenAIEmbedURL, "")
	assert.Equal(t, "http://general.example/v1", ConfigFromEnv().BaseURL)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("local", func(t *testing.T) {
		emb, err := New(ctx, Config{Provider: ProviderLocal})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("openai with key", func(t *testing.T) {
		emb, err := New(ctx, Config{Provider: "OpenAI", APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, emb.Provider())
		assert.Equal(t, DefaultOpenAIModel, emb.Model())
		assert.Equal(t, 3072, emb.Dimension())
	})

	t.Run("openai dimension override", func(t *testing.T) {
		emb, err := New(ctx, Config{Provider: ProviderOpenAI, APIKey: "k", Dimensions: 256})
		require.NoError(t, err)
		assert.Equal(t, 256, emb.Dimension())
	})

	t.Run("missing keys", func(t *testing.T) {
		for _, p := range []string{ProviderOpenAI, ProviderGemini, ProviderJina} {
			_, err := New(ctx, Config{Provider: p})
			assert.ErrorIs(t, err, ErrMissingAPIKey, p)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: "word2vec"})
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}

func TestDimensionForModel(t *testing.T) {
	assert.Equal(t, 1536, DimensionForModel("text-embedding-3-small"))
	assert.Equal(t, 3072, DimensionForModel("text-embedding-3-large"))
	assert.Equal(t, 768, DimensionForModel("text-embedding-004"))
	assert.Equal(t, 0, DimensionForModel("unknown"))
}
