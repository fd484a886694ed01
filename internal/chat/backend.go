package chat

import (
	"context"

	"github.com/bull/finchat/internal/index"
	"github.com/bull/finchat/internal/storage"
)

// Backend provides the vector index and content store of a session.
type Backend interface {
	Open(ctx context.Context, session string) (index.VectorIndex, index.ContentStore, error)
	Drop(ctx context.Context, session string) error
}

// MemoryBackend keeps every session in process memory.
type MemoryBackend struct{}

func (MemoryBackend) Open(context.Context, string) (index.VectorIndex, index.ContentStore, error) {
	return index.NewMemoryIndex(), index.NewMemoryStore(), nil
}

// Drop is a no-op; the session's stores are released with the session.
func (MemoryBackend) Drop(context.Context, string) error { return nil }

// QdrantBackend keeps each session in its own namespace of one collection.
type QdrantBackend struct {
	Storage   *storage.QdrantStorage
	Dimension int
}

func (b QdrantBackend) Open(_ context.Context, session string) (index.VectorIndex, index.ContentStore, error) {
	vi, cs, err := b.Storage.Session(session, b.Dimension)
	if err != nil {
		return nil, nil, err
	}
	return vi, cs, nil
}

func (b QdrantBackend) Drop(ctx context.Context, session string) error {
	return b.Storage.DeleteSession(ctx, session)
}
