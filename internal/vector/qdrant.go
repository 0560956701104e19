package vector

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"echograph/internal/matching"
)

// QdrantPoints is the subset of *qdrant.Client the index needs.
type QdrantPoints interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

type QdrantIndex struct {
	client     QdrantPoints
	collection string
	dim        int
}

// NewQdrantClient dials the gRPC endpoint of a Qdrant server.
func NewQdrantClient(host string, port int, apiKey string) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port, APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant %s:%d: %w", host, port, err)
	}
	return client, nil
}

func NewQdrantIndex(client QdrantPoints, collection string, dim int) *QdrantIndex {
	return &QdrantIndex{client: client, collection: collection, dim: dim}
}

// EnsureCollection creates the cosine collection when it is missing.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection %s: %w", q.collection, err)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if q.dim > 0 && len(p.Vector) != q.dim {
			return fmt.Errorf("point %d has %d dimensions, collection expects %d", p.ID, len(p.Vector), q.dim)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), q.collection, err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vec []float32, limit int, filter map[string]string) ([]matching.Neighbor, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if f := qdrantFilter(filter); f != nil {
		req.Filter = f
	}
	hits, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query qdrant %s: %w", q.collection, err)
	}
	out := make([]matching.Neighbor, 0, len(hits))
	for _, h := range hits {
		out = append(out, matching.Neighbor{
			ID:      pointID(h.GetId()),
			Score:   float64(h.GetScore()),
			Payload: payloadMap(h.GetPayload()),
		})
	}
	return out, nil
}

func qdrantFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	must := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		must = append(must, qdrant.NewMatch(k, filter[k]))
	}
	return &qdrant.Filter{Must: must}
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadMap(in map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}
