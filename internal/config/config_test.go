package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 50, cfg.RAG.MinChunkLength)
	assert.Equal(t, "study_materials", cfg.RAG.StoreName)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
	assert.Equal(t, 0.7, cfg.Quiz.Temperature)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 120, cfg.LLM.TimeoutSeconds)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
llm:
  provider: openai
  base_url: https://openrouter.ai/api/v1
  model: some-model
  retries: 2
rag:
  chunk_size: 500
  chunk_overlap: 100
  store_name: biology
server:
  port: 9090
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, uint64(2), cfg.LLM.Retries)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, "biology", cfg.RAG.StoreName)
	assert.Equal(t, 9090, cfg.Server.Port)
	// untouched sections keep their defaults
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
	assert.Equal(t, "data/uploads", cfg.RAG.UploadDir)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STUDY_LLM_MODEL", "mistral")
	t.Setenv("STUDY_DATA_DIR", "/tmp/study")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, filepath.Join("/tmp/study", "vector_store"), cfg.RAG.VectorStorePath)
	assert.Equal(t, filepath.Join("/tmp/study", "uploads"), cfg.RAG.UploadDir)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"overlap too large", "rag:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{"short encryption key", "rag:\n  encryption_key: short\n"},
		{"unknown provider", "llm:\n  provider: bedrock\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.RAG.StoreName = "history"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "history", loaded.RAG.StoreName)
}
