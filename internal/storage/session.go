package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/finchat/internal/document"
	"github.com/bull/finchat/internal/index"
)

// summaryNamespace derives summary point ids from content ids.
var summaryNamespace = uuid.MustParse("6f1c7a52-3f0e-4a8e-9a43-5b0c2e8d1f17")

type namespace struct {
	storage *QdrantStorage
	session string
}

// summaryPointID returns the id of the summary point for a content id.
func summaryPointID(id string) string {
	return uuid.NewSHA1(summaryNamespace, []byte(id)).String()
}

// VectorIndex stores summary vectors of one session.
type VectorIndex struct {
	namespace
	dimension int
}

var _ index.VectorIndex = (*VectorIndex)(nil)

// Add stores vec as the summary vector of content id.
func (v *VectorIndex) Add(ctx context.Context, id string, vec []float32) error {
	if v.dimension > 0 && len(vec) != v.dimension {
		return fmt.Errorf("%w: got %d dimensions, expected %d", ErrDimensionMismatch, len(vec), v.dimension)
	}
	point := &qdrant.PointStruct{
		Id: qdrant.NewIDUUID(summaryPointID(id)),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			vectorName: qdrant.NewVector(vec...),
		}),
		Payload: qdrant.NewValueMap(map[string]any{
			fieldType:      pointTypeSummary,
			fieldSession:   v.session,
			fieldContentID: id,
		}),
	}
	return v.storage.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
}

// Search returns the content ids of the k nearest summaries in this session.
func (v *VectorIndex) Search(ctx context.Context, vec []float32, k int) ([]index.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if v.dimension > 0 && len(vec) != v.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", ErrDimensionMismatch, len(vec), v.dimension)
	}

	using := vectorName
	results, err := v.storage.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: v.storage.collection,
		Query:          qdrant.NewQuery(vec...),
		Using:          &using,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(fieldType, pointTypeSummary),
				qdrant.NewMatch(fieldSession, v.session),
			},
		},
		Limit:       qdrant.PtrOf(uint64(k)),
		WithPayload: qdrant.NewWithPayloadInclude(fieldContentID),
		WithVectors: qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search summaries: %w", err)
	}

	hits := make([]index.Hit, 0, len(results))
	for _, r := range results {
		id := r.Payload[fieldContentID].GetStringValue()
		if id == "" {
			continue
		}
		hits = append(hits, index.Hit{ID: id, Score: r.Score})
	}
	return hits, nil
}

// Delete removes the summary vector of content id.
func (v *VectorIndex) Delete(ctx context.Context, id string) error {
	if err := v.storage.deletePoint(ctx, summaryPointID(id)); err != nil {
		return fmt.Errorf("failed to delete summary %s: %w", id, err)
	}
	return nil
}

// ContentStore stores full element content of one session.
type ContentStore struct {
	namespace
}

var _ index.ContentStore = (*ContentStore)(nil)

// Set stores el as a vectorless content point.
func (c *ContentStore) Set(ctx context.Context, id string, el document.Element) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(id),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			fieldType:    pointTypeContent,
			fieldSession: c.session,
			fieldKind:    string(el.Kind),
			fieldContent: el.Content,
		}),
	}
	return c.storage.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
}

// Get returns the element stored under id, or index.ErrNotFound.
func (c *ContentStore) Get(ctx context.Context, id string) (document.Element, error) {
	result, err := c.storage.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.storage.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return document.Element{}, fmt.Errorf("failed to get content: %w", err)
	}
	if len(result) == 0 {
		return document.Element{}, fmt.Errorf("%w: %s", index.ErrNotFound, id)
	}

	payload := result[0].Payload
	if payload[fieldType].GetStringValue() != pointTypeContent || payload[fieldSession].GetStringValue() != c.session {
		return document.Element{}, fmt.Errorf("%w: %s", index.ErrNotFound, id)
	}
	return document.Element{
		Kind:    document.Kind(payload[fieldKind].GetStringValue()),
		Content: payload[fieldContent].GetStringValue(),
	}, nil
}

// Delete removes the content point id.
func (c *ContentStore) Delete(ctx context.Context, id string) error {
	if err := c.storage.deletePoint(ctx, id); err != nil {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}
