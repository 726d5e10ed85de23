// Package storage mirrors the knowledge base into Qdrant so the examples can
// be queried by other services.
package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/code-explainer/internal/knowledge"
)

// pointNamespace scopes the UUIDv5 point ids derived from entry ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/bull/code-explainer/examples"))

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStorage connects to Qdrant over gRPC and fails if the server is
// not healthy within the retry window.
func NewQdrantStorage(host string, port int) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client: client,
		host:   host,
		port:   port,
	}

	if err := storage.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

func newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error { return s.Health(ctx) }, newBackoff(ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection for dim-sized vectors with cosine
// distance if it does not exist yet.
func (s *QdrantStorage) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.createCollection(ctx, dim)
}

func (s *QdrantStorage) collectionExists(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	return slices.Contains(collections, CollectionName), nil
}

func (s *QdrantStorage) createCollection(ctx context.Context, dim int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			VectorName: {
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for _, field := range []string{"language", "entry_id"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// ReplaceCorpus drops the collection and uploads every entry with its vector.
// The embedding width of the first vector sizes the new collection.
func (s *QdrantStorage) ReplaceCorpus(ctx context.Context, entries []knowledge.CorpusEntry, vectors [][]float32) error {
	if len(entries) != len(vectors) {
		return fmt.Errorf("%d entries but %d vectors", len(entries), len(vectors))
	}

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, CollectionName); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}
	if len(entries) == 0 {
		return nil
	}

	dim := len(vectors[0])
	if err := s.createCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		if len(vectors[i]) != dim {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vectors[i]), dim)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(e, i)),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{VectorName: qdrant.NewVector(vectors[i]...)}),
			Payload: qdrant.NewValueMap(entryPayload(e, i)),
		}
	}

	for i := 0; i < len(points); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(points))
		if err := s.upsertWithRetry(ctx, points[i:end]); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, newBackoff(ctx))
}

// Search returns the limit examples nearest to vector. A non-empty language
// restricts the search to that language.
func (s *QdrantStorage) Search(ctx context.Context, vector []float32, limit int, language string) ([]ScoredExample, error) {
	var filter *qdrant.Filter
	if language != "" {
		filter = &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("language", language)}}
	}

	vectorName := VectorName
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Using:          &vectorName,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search examples: %w", err)
	}

	out := make([]ScoredExample, 0, len(results))
	for _, r := range results {
		out = append(out, ScoredExample{
			Entry: entryFromPayload(r.Payload),
			Score: float64(r.Score),
		})
	}
	return out, nil
}

// Count returns the number of mirrored examples.
func (s *QdrantStorage) Count(ctx context.Context) (uint64, error) {
	exists, err := s.collectionExists(ctx)
	if err != nil || !exists {
		return 0, err
	}
	info, err := s.client.GetCollection(ctx, CollectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	return info.GetPointsCount(), nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// pointID derives a UUID from the entry id and its position in the corpus.
// Entry ids may repeat, so the id alone would collapse two entries into one point.
func pointID(e knowledge.CorpusEntry, position int) string {
	key := fmt.Sprintf("%s#%d", e.ID, position)
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

func entryPayload(e knowledge.CorpusEntry, position int) map[string]any {
	tags := make([]any, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = t
	}
	return map[string]any{
		"entry_id":      e.ID,
		"position":      int64(position),
		"language":      e.Language,
		"title":         e.Title,
		"code_fragment": e.CodeFragment,
		"explanation":   e.Explanation,
		"tags":          tags,
	}
}

func entryFromPayload(payload map[string]*qdrant.Value) knowledge.CorpusEntry {
	tags := []string{}
	for _, v := range payload["tags"].GetListValue().GetValues() {
		tags = append(tags, v.GetStringValue())
	}
	return knowledge.CorpusEntry{
		ID:           payload["entry_id"].GetStringValue(),
		Language:     payload["language"].GetStringValue(),
		Title:        payload["title"].GetStringValue(),
		CodeFragment: payload["code_fragment"].GetStringValue(),
		Explanation:  payload["explanation"].GetStringValue(),
		Tags:         tags,
	}
}
