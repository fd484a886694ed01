//go:build integration

package indexer

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/finchat/internal/embedding"
	"github.com/bull/finchat/internal/llm"
	"github.com/bull/finchat/internal/markdown"
	"github.com/bull/finchat/internal/storage"
	"github.com/bull/finchat/internal/summarize"
)

const annualReport = `# Annual Report 2023

Net income rose to $73,795 thousand from $59,972 thousand, driven by higher subscription revenue.

## Income Statement

| Item       | 2022    | 2023    |
|------------|---------|---------|
| Revenue    | 410,000 | 455,000 |
| Net income | 59,972  | 73,795  |
`

func TestPipeline_Index_Integration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}
	ctx := context.Background()

	store, err := storage.NewQdrantStorage(ctx, storage.Config{Host: "localhost", Port: 6334, Collection: "finchat_it"})
	require.NoError(t, err)
	defer store.Close()

	chat, err := llm.NewClient(llm.Config{APIKey: apiKey, Timeout: time.Minute, Retries: 1}, slog.Default())
	require.NoError(t, err)
	embedder := embedding.NewEmbedder(embedding.NewClientFrom(chat.OpenAI()), embedding.Options{})
	require.NoError(t, store.EnsureCollection(ctx, embedder.Dimension()))

	session := uuid.NewString()
	defer store.DeleteSession(context.WithoutCancel(ctx), session)
	vi, cs, err := store.Session(session, embedder.Dimension())
	require.NoError(t, err)

	pipeline := NewPipeline(nil, markdown.NewPartitioner(),
		summarize.New(chat, summarize.Options{}, slog.Default()), embedder, slog.Default())

	retriever, result, err := pipeline.Index(ctx, vi, cs, []Source{{Name: "annual-report.md", Data: []byte(annualReport)}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tables)
	assert.Greater(t, result.Indexed(), 0)

	contents, summaries, err := store.CountSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, uint64(result.Indexed()), contents)
	assert.Equal(t, contents, summaries)

	got, err := retriever.Retrieve(ctx, "What was the revenue in 2023?")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	found := false
	for _, el := range got {
		if el.Kind == "table" {
			found = true
		}
	}
	assert.True(t, found, "expected the income statement table in the context")
}
