package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"
)

// RefPrefix marks a document reference that points into a GitHub repository.
const RefPrefix = "github:"

// ErrInvalidRef is returned for a malformed repository reference.
var ErrInvalidRef = errors.New("invalid github reference")

// Ref locates a file or directory in a repository:
// github:owner/repo/path/to/report.pdf[@branch].
type Ref struct {
	Owner  string
	Repo   string
	Path   string
	Branch string
}

// IsRef reports whether s is a GitHub reference.
func IsRef(s string) bool {
	return strings.HasPrefix(s, RefPrefix)
}

// ParseRef parses a github: reference.
func ParseRef(s string) (Ref, error) {
	if !IsRef(s) {
		return Ref{}, fmt.Errorf("%w: %q lacks the %q prefix", ErrInvalidRef, s, RefPrefix)
	}
	rest := strings.TrimPrefix(s, RefPrefix)

	var ref Ref
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest, ref.Branch = rest[:at], rest[at+1:]
	}
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("%w: %q needs owner/repo", ErrInvalidRef, s)
	}
	ref.Owner, ref.Repo = parts[0], parts[1]
	if len(parts) == 3 {
		ref.Path = parts[2]
	}
	return ref, nil
}

func (r Ref) String() string {
	s := RefPrefix + path.Join(r.Owner, r.Repo, r.Path)
	if r.Branch != "" {
		s += "@" + r.Branch
	}
	return s
}

func (r Ref) options() *github.RepositoryContentGetOptions {
	if r.Branch == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: r.Branch}
}

// Report is one document fetched from a repository.
type Report struct {
	Path string // Path within the repository
	Data []byte
	SHA  string // File's Git blob SHA
	URL  string // Browser URL
}

// IsReport reports whether name is a file the indexer can read.
func IsReport(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf", ".md", ".markdown":
		return true
	}
	return false
}

// Fetcher downloads reports from GitHub repositories
type Fetcher struct {
	client *Client
}

// NewFetcher creates a new report fetcher
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch returns the report at ref, or every report below it when ref names a
// directory.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) ([]*Report, error) {
	fileContent, dirContents, _, err := f.client.Repositories.GetContents(
		ctx, ref.Owner, ref.Repo, ref.Path, ref.options(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", ref, err)
	}

	if fileContent != nil {
		report, err := f.fetchFile(ctx, ref, fileContent)
		if err != nil {
			return nil, err
		}
		return []*Report{report}, nil
	}

	var reports []*Report
	for _, item := range dirContents {
		if item.Type == nil || item.Path == nil {
			continue
		}
		child := ref
		child.Path = *item.Path

		switch *item.Type {
		case "file":
			if !IsReport(*item.Path) {
				continue
			}
			sub, err := f.Fetch(ctx, child)
			if err != nil {
				return nil, err
			}
			reports = append(reports, sub...)
		case "dir":
			sub, err := f.Fetch(ctx, child)
			if err != nil {
				return nil, err
			}
			reports = append(reports, sub...)
		}
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("no reports found under %s", ref)
	}
	return reports, nil
}

// fetchFile decodes inline content, downloading files too large to be inlined.
func (f *Fetcher) fetchFile(ctx context.Context, ref Ref, fc *github.RepositoryContent) (*Report, error) {
	var data []byte
	if fc.GetEncoding() == "base64" && fc.Content != nil {
		content, err := fc.GetContent()
		if err != nil {
			return nil, fmt.Errorf("failed to decode content of %s: %w", ref, err)
		}
		data = []byte(content)
	} else {
		rc, _, err := f.client.Repositories.DownloadContents(ctx, ref.Owner, ref.Repo, ref.Path, ref.options())
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", ref, err)
		}
		defer rc.Close()
		if data, err = io.ReadAll(rc); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ref, err)
		}
	}

	return &Report{
		Path: fc.GetPath(),
		Data: data,
		SHA:  fc.GetSHA(),
		URL:  fc.GetHTMLURL(),
	}, nil
}

// LatestCommit returns the SHA of the most recent commit touching ref's path.
func (f *Fetcher) LatestCommit(ctx context.Context, ref Ref) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		ref.Owner,
		ref.Repo,
		&github.CommitsListOptions{
			SHA:  ref.Branch,
			Path: ref.Path,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 || commits[0].SHA == nil {
		return "", fmt.Errorf("no commits found for %s", ref)
	}
	return *commits[0].SHA, nil
}
