package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/bull/finchat/internal/document"
)

// MemoryIndex is a brute-force cosine similarity index.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors [][]float32
}

// NewMemoryIndex creates an empty index. The dimension is fixed by the first Add.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Add stores a normalized copy of vec under id, replacing any previous vector.
func (m *MemoryIndex) Add(_ context.Context, id string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim == 0 {
		m.dim = len(vec)
	}
	if len(vec) != m.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), m.dim)
	}

	norm := normalize(vec)
	for i, existing := range m.ids {
		if existing == id {
			m.vectors[i] = norm
			return nil
		}
	}
	m.ids = append(m.ids, id)
	m.vectors = append(m.vectors, norm)
	return nil
}

// Search returns up to k ids ranked by descending cosine similarity.
// Equal scores keep insertion order.
func (m *MemoryIndex) Search(_ context.Context, vec []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	if len(vec) != m.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), m.dim)
	}

	q := normalize(vec)
	hits := make([]Hit, len(m.ids))
	for i, v := range m.vectors {
		hits[i] = Hit{ID: m.ids[i], Score: dot(q, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes id. Unknown ids are ignored.
func (m *MemoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.ids {
		if existing == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			m.vectors = append(m.vectors[:i], m.vectors[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len returns the number of stored vectors.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := float32(math.Sqrt(sum))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// MemoryStore is a map-backed ContentStore.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]document.Element
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]document.Element)}
}

func (s *MemoryStore) Set(_ context.Context, id string, el document.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = el
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (document.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.items[id]
	if !ok {
		return document.Element{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return el, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Len returns the number of stored elements.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
