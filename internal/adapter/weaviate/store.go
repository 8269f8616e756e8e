package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/anla-124/pdf-searcher/internal/simfilter"
	"github.com/anla-124/pdf-searcher/internal/similarity"
	"github.com/anla-124/pdf-searcher/internal/worker"
)

const className = "DocumentChunk"

// listPointsLimit bounds how many chunk points a single document may hold.
const listPointsLimit = 10000

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) StoreChunk(ctx context.Context, chunk worker.Chunk) error {
	_, err := s.client.Data().Creator().
		WithClassName(className).
		WithProperties(map[string]interface{}{
			"documentId": chunk.DocumentID,
			"chunkIndex": chunk.ChunkIndex,
		}).
		WithVector(chunk.Vector).
		Do(ctx)
	return err
}

// SearchByVector runs a nearVector query over chunk points under the given
// structured filter and returns ranked hits with cosine scores.
func (s *Store) SearchByVector(ctx context.Context, vector []float32, limit int, filter simfilter.Filter) ([]similarity.Point, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "documentId"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...)
	if where := ToWhere(filter); where != nil {
		query = query.WithWhere(where)
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var points []similarity.Point
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if hits, ok := data[className].([]interface{}); ok {
			for _, h := range hits {
				props, ok := h.(map[string]interface{})
				if !ok {
					continue
				}
				point := similarity.Point{}
				if docID, ok := props["documentId"].(string); ok {
					point.DocumentID = docID
				}
				if idx, ok := props["chunkIndex"].(float64); ok {
					point.ChunkIndex = int(idx)
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if id, ok := additional["id"].(string); ok {
						point.ID = id
					}
					if certainty, ok := additional["certainty"].(float64); ok {
						// Weaviate certainty is (1+cosine)/2.
						point.Score = 2*certainty - 1
					}
				}
				points = append(points, point)
			}
		}
	}
	return points, nil
}

// ListPointIDs returns the ids of every chunk point owned by a document, for
// cleanup when the caller has no pre-fetched hint.
func (s *Store) ListPointIDs(ctx context.Context, documentID string) ([]string, error) {
	where := filters.Where().
		WithPath([]string{"documentId"}).
		WithOperator(filters.Equal).
		WithValueString(documentID)

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithWhere(where).
		WithLimit(listPointsLimit).
		WithFields(graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var ids []string
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if hits, ok := data[className].([]interface{}); ok {
			for _, h := range hits {
				if props, ok := h.(map[string]interface{}); ok {
					if additional, ok := props["_additional"].(map[string]interface{}); ok {
						if id, ok := additional["id"].(string); ok {
							ids = append(ids, id)
						}
					}
				}
			}
		}
	}
	return ids, nil
}

// DeletePoints removes chunk points by id.
func (s *Store) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"id"}).
			WithOperator(filters.ContainsAny).
			WithValueText(ids...)).
		Do(ctx)
	return err
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if agg, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := agg[className].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}
