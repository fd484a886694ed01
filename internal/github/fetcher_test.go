package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v81/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want Ref
	}{
		{"github:acme/reports", Ref{Owner: "acme", Repo: "reports"}},
		{"github:acme/reports/2023/annual.pdf", Ref{Owner: "acme", Repo: "reports", Path: "2023/annual.pdf"}},
		{"github:acme/reports/q3@release", Ref{Owner: "acme", Repo: "reports", Path: "q3", Branch: "release"}},
	}
	for _, tt := range tests {
		got, err := ParseRef(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.String())
	}

	for _, bad := range []string{"acme/reports", "github:acme", "github:/reports"} {
		_, err := ParseRef(bad)
		assert.ErrorIs(t, err, ErrInvalidRef, bad)
	}
}

func TestIsReport(t *testing.T) {
	assert.True(t, IsReport("a/annual.PDF"))
	assert.True(t, IsReport("notes.md"))
	assert.False(t, IsReport("logo.png"))
}

func fileJSON(path, content string) string {
	return fmt.Sprintf(`{"type":"file","name":%q,"path":%q,"sha":"sha-%s","encoding":"base64","content":%q,"html_url":"https://github.com/acme/reports/blob/main/%s"}`,
		path, path, path, base64.StdEncoding.EncodeToString([]byte(content)), path)
}

func newTestFetcher(t *testing.T, mux *http.ServeMux) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base
	return NewFetcher(&Client{Client: gh})
}

func TestFetcher_FetchDirectory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/reports/contents/2023", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"type":"file","name":"annual.pdf","path":"2023/annual.pdf"},
			{"type":"file","name":"logo.png","path":"2023/logo.png"},
			{"type":"dir","name":"notes","path":"2023/notes"}
		]`)
	})
	mux.HandleFunc("/repos/acme/reports/contents/2023/annual.pdf", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fileJSON("2023/annual.pdf", "%PDF-1.7"))
	})
	mux.HandleFunc("/repos/acme/reports/contents/2023/notes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type":"file","name":"q4.md","path":"2023/notes/q4.md"}]`)
	})
	mux.HandleFunc("/repos/acme/reports/contents/2023/notes/q4.md", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fileJSON("2023/notes/q4.md", "# Q4\n\nRevenue grew."))
	})

	reports, err := newTestFetcher(t, mux).Fetch(context.Background(), Ref{Owner: "acme", Repo: "reports", Path: "2023"})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "2023/annual.pdf", reports[0].Path)
	assert.Equal(t, []byte("%PDF-1.7"), reports[0].Data)
	assert.Equal(t, "sha-2023/annual.pdf", reports[0].SHA)
	assert.Equal(t, "2023/notes/q4.md", reports[1].Path)
	assert.Equal(t, "# Q4\n\nRevenue grew.", string(reports[1].Data))
}

func TestFetcher_FetchFileWithBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/reports/contents/annual.pdf", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v2", r.URL.Query().Get("ref"))
		fmt.Fprint(w, fileJSON("annual.pdf", "pdf bytes"))
	})

	reports, err := newTestFetcher(t, mux).Fetch(context.Background(), Ref{Owner: "acme", Repo: "reports", Path: "annual.pdf", Branch: "v2"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "pdf bytes", string(reports[0].Data))
}

func TestFetcher_EmptyDirectory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/reports/contents/images", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"type":"file","name":"logo.png","path":"images/logo.png"}]`)
	})

	_, err := newTestFetcher(t, mux).Fetch(context.Background(), Ref{Owner: "acme", Repo: "reports", Path: "images"})
	assert.ErrorContains(t, err, "no reports found")
}

func TestFetcher_LatestCommit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/reports/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2023", r.URL.Query().Get("path"))
		fmt.Fprint(w, `[{"sha":"abc123"}]`)
	})

	sha, err := newTestFetcher(t, mux).LatestCommit(context.Background(), Ref{Owner: "acme", Repo: "reports", Path: "2023"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}
