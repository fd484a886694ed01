package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("VECTOR_STORE", "")
	t.Setenv("TOP_K", "")
	t.Setenv("DOCUMENTS_DIR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 10, cfg.Answer.MinWords)
	assert.Equal(t, 200, cfg.Answer.MaxWords)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, 5*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, 1, cfg.OpenAI.Retries)
	assert.Equal(t, 1, cfg.Extraction.Retries)
	assert.Empty(t, cfg.Server.DocumentsDir)
}

func TestLoad_RetriesAndDocumentsDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  retries: 0\nserver:\n  documents_dir: /srv/reports\n"), 0o644))
	t.Setenv("DOCUMENTS_DIR", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.OpenAI.Retries, "an explicit zero disables retry")
	assert.Equal(t, "/srv/reports", cfg.Server.DocumentsDir)

	t.Setenv("DOCUMENTS_DIR", "/data")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.Server.DocumentsDir)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finchat.yaml")
	yamlDoc := `
openai:
  chat_model: gpt-4o
  timeout: 30s
retrieval:
  top_k: 6
vector_store:
  type: qdrant
  qdrant:
    collection: reports
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("VECTOR_STORE", "")
	t.Setenv("TOP_K", "3")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("UNSTRUCTURED_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, 3, cfg.Retrieval.TopK, "env wins over file")
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "reports", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "secret", cfg.Extraction.APIKey)
}

func TestLoad_InvalidVectorStore(t *testing.T) {
	t.Setenv("VECTOR_STORE", "faiss")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vector store")
}

func TestValidate_WordRange(t *testing.T) {
	cfg := Default()
	cfg.Answer.MinWords = 300

	err := cfg.Validate()
	require.Error(t, err)
}
