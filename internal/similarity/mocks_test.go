package similarity_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/anla-124/pdf-searcher/internal/simfilter"
	"github.com/anla-124/pdf-searcher/internal/similarity"
)

type MockDocumentStore struct{ mock.Mock }

func (m *MockDocumentStore) GetEmbeddingInfo(ctx context.Context, id string) (*similarity.DocumentInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*similarity.DocumentInfo), args.Error(1)
}

func (m *MockDocumentStore) GetChunks(ctx context.Context, documentID string) ([]similarity.ChunkData, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]similarity.ChunkData), args.Error(1)
}

func (m *MockDocumentStore) GetDocumentInfos(ctx context.Context, ids []string) ([]similarity.DocumentInfo, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]similarity.DocumentInfo), args.Error(1)
}

type MockVectorIndex struct{ mock.Mock }

func (m *MockVectorIndex) SearchByVector(ctx context.Context, vector []float32, limit int, filter simfilter.Filter) ([]similarity.Point, error) {
	args := m.Called(ctx, vector, limit, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]similarity.Point), args.Error(1)
}

// scriptedIndex routes stage-0 and stage-1 queries to separate functions
// based on the filter shape, for orchestrator tests where both stages hit
// the same index.
type scriptedIndex struct {
	stage0 func(vector []float32, limit int, filter simfilter.Filter) ([]similarity.Point, error)
	stage1 func(vector []float32, limit int, filter simfilter.Filter) ([]similarity.Point, error)
}

func (s *scriptedIndex) SearchByVector(ctx context.Context, vector []float32, limit int, filter simfilter.Filter) ([]similarity.Point, error) {
	if isStage1Filter(filter) {
		return s.stage1(vector, limit, filter)
	}
	return s.stage0(vector, limit, filter)
}

func isStage1Filter(f simfilter.Filter) bool {
	if f.Kind == simfilter.KindIn && f.Field == simfilter.FieldDocumentID {
		return true
	}
	for _, op := range f.Operands {
		if isStage1Filter(op) {
			return true
		}
	}
	return false
}
