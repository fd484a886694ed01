//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/index"
)

const testDimension = 4

// setupTestStorage creates a test storage instance and ensures collection exists.
// Skips test if Qdrant is not running.
func setupTestStorage(t *testing.T) *QdrantStorage {
	ctx := context.Background()
	storage, err := NewQdrantStorage(ctx, Config{Host: "localhost", Port: 6334, Collection: "finchat_test"})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = storage.EnsureCollection(ctx, testDimension)
	require.NoError(t, err, "Failed to ensure collection")

	return storage
}

func TestContentRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	ctx := context.Background()
	session := uuid.NewString()
	defer storage.DeleteSession(ctx, session)

	_, cs, err := storage.Session(session, testDimension)
	require.NoError(t, err)

	id := uuid.NewString()
	table := document.Table("<table><tr><td>Revenue</td><td>100</td></tr></table>")
	require.NoError(t, cs.Set(ctx, id, table))

	got, err := cs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, table, got)

	require.NoError(t, cs.Delete(ctx, id))
	_, err = cs.Get(ctx, id)
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestSearchIsolatedBySession(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	ctx := context.Background()
	sessionA, sessionB := uuid.NewString(), uuid.NewString()
	defer storage.DeleteSession(ctx, sessionA)
	defer storage.DeleteSession(ctx, sessionB)

	viA, csA, err := storage.Session(sessionA, testDimension)
	require.NoError(t, err)
	viB, _, err := storage.Session(sessionB, testDimension)
	require.NoError(t, err)

	idA := uuid.NewString()
	require.NoError(t, csA.Set(ctx, idA, document.Text("net income grew")))
	require.NoError(t, viA.Add(ctx, idA, []float32{1, 0, 0, 0}))
	require.NoError(t, viB.Add(ctx, uuid.NewString(), []float32{1, 0, 0, 0}))

	hits, err := viA.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, idA, hits[0].ID)

	contents, summaries, err := storage.CountSession(ctx, sessionA)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), contents)
	assert.Equal(t, uint64(1), summaries)
}

func TestBuildOnQdrant(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	ctx := context.Background()
	session := uuid.NewString()
	defer storage.DeleteSession(ctx, session)

	vi, cs, err := storage.Session(session, testDimension)
	require.NoError(t, err)

	r, stats, err := index.Build(ctx, vi, cs, axisEmbedder{},
		[]string{"revenue"}, []string{"<table>rev</table>"},
		[]string{"income"}, []string{"income text"},
		index.WithTopK(1))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)

	got, err := r.Retrieve(ctx, "revenue")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, document.Table("<table>rev</table>"), got[0])
}

// axisEmbedder maps known words to unit axes.
type axisEmbedder struct{}

func (axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDimension)
		switch t {
		case "revenue":
			v[0] = 1
		case "income":
			v[1] = 1
		default:
			v[3] = 1
		}
		out[i] = v
	}
	return out, nil
}
