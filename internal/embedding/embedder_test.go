package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers every request with vectors [i, len(text)] in reverse order.
func embeddingServer(t *testing.T, calls *atomic.Int32, failFirst int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if int(n) <= failFirst {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var items []string
		for i := len(req.Input) - 1; i >= 0; i-- {
			items = append(items, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,%d]}`, i, i, len(req.Input[i])))
		}
		fmt.Fprintf(w, `{"object":"list","model":"text-embedding-3-small","data":[%s],"usage":{"prompt_tokens":1,"total_tokens":1}}`,
			strings.Join(items, ","))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_BatchesAndPreservesOrder(t *testing.T) {
	var calls atomic.Int32
	srv := embeddingServer(t, &calls, 0)

	client, err := NewClient("test-key", srv.URL+"/v1", 0)
	require.NoError(t, err)
	e := NewEmbedder(client, Options{BatchSize: 2})

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, []float32{0, 1}, vecs[0])
	assert.Equal(t, []float32{1, 2}, vecs[1])
	assert.Equal(t, []float32{0, 3}, vecs[2], "second batch restarts at index 0")
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := embeddingServer(t, &calls, 1)

	client, err := NewClient("test-key", srv.URL+"/v1", 0)
	require.NoError(t, err)
	e := NewEmbedder(client, Options{})
	e.initialInterval = time.Millisecond

	vecs, err := e.Embed(context.Background(), []string{"revenue"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbed_Empty(t *testing.T) {
	client, err := NewClient("test-key", "", 0)
	require.NoError(t, err)

	vecs, err := NewEmbedder(client, Options{}).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e := NewEmbedder(&Client{}, Options{})
	assert.Equal(t, DefaultModel, e.model)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, DefaultBatchSize, e.batchSize)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("", "", 0)
	require.Error(t, err)
}
