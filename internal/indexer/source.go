package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bull/finchat/internal/github"
)

var (
	// ErrGitHubDisabled is returned for a github: reference when no fetcher is configured.
	ErrGitHubDisabled = errors.New("github sources are not configured")

	// ErrLocalDisabled is returned for a local path when the loader has no Dir.
	ErrLocalDisabled = errors.New("local paths are not enabled")

	// ErrPathOutsideDir is returned for a local path that leaves the loader's Dir.
	ErrPathOutsideDir = errors.New("path is outside the documents directory")
)

// Loader resolves document references for remote callers: paths inside Dir,
// or github: references to a report or a directory of reports.
type Loader struct {
	GitHub *github.Fetcher
	// Dir confines local paths. Empty rejects every local path.
	Dir string
}

// Load returns the sources named by ref.
func (l *Loader) Load(ctx context.Context, ref string) ([]Source, error) {
	if !github.IsRef(ref) {
		src, err := l.loadLocal(ref)
		if err != nil {
			return nil, err
		}
		return []Source{src}, nil
	}

	if l.GitHub == nil {
		return nil, ErrGitHubDisabled
	}
	r, err := github.ParseRef(ref)
	if err != nil {
		return nil, err
	}
	reports, err := l.GitHub.Fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	sources := make([]Source, len(reports))
	for i, rep := range reports {
		sources[i] = Source{Name: rep.Path, Data: rep.Data}
	}
	return sources, nil
}

// loadLocal reads ref relative to Dir. Absolute paths are accepted when they
// point inside Dir; symlinks cannot escape it.
func (l *Loader) loadLocal(ref string) (Source, error) {
	if l.Dir == "" {
		return Source{}, ErrLocalDisabled
	}

	name := ref
	if filepath.IsAbs(ref) {
		dir, err := filepath.Abs(l.Dir)
		if err != nil {
			return Source{}, fmt.Errorf("resolve documents directory: %w", err)
		}
		if name, err = filepath.Rel(dir, ref); err != nil {
			return Source{}, fmt.Errorf("%w: %s", ErrPathOutsideDir, ref)
		}
	}
	if !filepath.IsLocal(name) {
		return Source{}, fmt.Errorf("%w: %s", ErrPathOutsideDir, ref)
	}

	root, err := os.OpenRoot(l.Dir)
	if err != nil {
		return Source{}, fmt.Errorf("open documents directory: %w", err)
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		return Source{}, fmt.Errorf("read %s: %w", ref, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Source{}, fmt.Errorf("read %s: %w", ref, err)
	}
	return Source{Name: filepath.Base(name), Data: data}, nil
}

// LoadFile reads a local file without restriction. Only trusted callers, such
// as the command line, use it.
func LoadFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Source{Name: filepath.Base(path), Data: data}, nil
}
