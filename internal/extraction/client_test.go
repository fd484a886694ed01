package extraction

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const partitionResponse = `[
  {"type": "Title", "text": "Annual Report 2023"},
  {"type": "NarrativeText", "text": "Net income rose to $73,795 thousand."},
  {"type": "Table", "text": "Revenue 100 120", "metadata": {"text_as_html": "<table><tr><td>Revenue</td><td>100</td></tr></table>", "page_number": 2}},
  {"type": "Footer", "text": "Page 2"},
  {"type": "UncategorizedText", "text": "Amounts in thousands."},
  {"type": "Table", "text": "Assets 10"},
  {"type": "NarrativeText", "text": "   "}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{URL: srv.URL, APIKey: "k", Retries: retries, Workers: 2}, nil)
	c.initialInterval = time.Millisecond
	return c
}

func TestExtract_ClassifiesElements(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "k", r.Header.Get("unstructured-api-key"))

		file, header, err := r.FormFile("files")
		if assert.NoError(t, err) {
			defer file.Close()
			assert.Equal(t, "document", header.Filename)
			assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
			data, _ := io.ReadAll(file)
			assert.Equal(t, "%PDF-1.7", string(data))
		}
		_, _ = w.Write([]byte(partitionResponse))
	}, 0)

	ext, err := c.Extract(context.Background(), []byte("%PDF-1.7"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"<table><tr><td>Revenue</td><td>100</td></tr></table>",
		"Assets 10",
	}, ext.Tables, "tables fall back to raw text when HTML is missing")
	assert.Equal(t, []string{
		"Net income rose to $73,795 thousand.",
		"Amounts in thousands.",
	}, ext.Texts)
}

func TestExtract_EmptyResponses(t *testing.T) {
	for _, body := range []string{"", "[]", "null", "  \n"} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}, 0)

		ext, err := c.Extract(context.Background(), []byte("pdf"))
		require.NoError(t, err, "body %q", body)
		assert.True(t, ext.Empty(), "body %q", body)
	}
}

func TestExtract_RetriesServerErrorOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"type":"NarrativeText","text":"ok"}]`))
	}, 1)

	ext, err := c.Extract(context.Background(), []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, ext.Texts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExtract_FailsAfterRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}, 1)

	_, err := c.Extract(context.Background(), []byte("pdf"))
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, int32(2), calls.Load())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
}

func TestExtract_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}, 1)

	_, err := c.Extract(context.Background(), []byte("pdf"))
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtract_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detail": "not an array"`))
	}, 1)

	_, err := c.Extract(context.Background(), []byte("pdf"))
	require.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtract_NotConfigured(t *testing.T) {
	_, err := NewClient(Config{}, nil).Extract(context.Background(), []byte("pdf"))
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExtractAll_MergesInInputOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("files")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		name, _ := io.ReadAll(file)
		// later documents answer first
		if string(name) == "a" {
			time.Sleep(20 * time.Millisecond)
		}
		_, _ = w.Write([]byte(`[{"type":"Table","metadata":{"text_as_html":"<table>` + string(name) +
			`</table>"}},{"type":"NarrativeText","text":"text ` + string(name) + `"}]`))
	}, 0)

	ext, err := c.ExtractAll(context.Background(), [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)
	assert.Equal(t, []string{"<table>a</table>", "<table>b</table>", "<table>c</table>"}, ext.Tables)
	assert.Equal(t, []string{"text a", "text b", "text c"}, ext.Texts)
}

func TestExtractAll_PropagatesFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, _, _ := r.FormFile("files")
		name, _ := io.ReadAll(file)
		if strings.Contains(string(name), "bad") {
			http.Error(w, "nope", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}, 0)

	_, err := c.ExtractAll(context.Background(), [][]byte{[]byte("good"), []byte("bad")})
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "document 1")
}

func TestClassify_DropsOtherTypes(t *testing.T) {
	ext := Classify([]RawElement{
		{Type: "ListItem", Text: "bullet"},
		{Type: "Image", Text: "chart"},
		{Type: "Header", Text: "ACME Corp"},
	})
	assert.True(t, ext.Empty())
}
