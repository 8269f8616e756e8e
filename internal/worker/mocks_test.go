package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/anla-124/pdf-searcher/internal/worker"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) StoreChunk(ctx context.Context, chunk worker.Chunk) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}

type MockChunkRepo struct{ mock.Mock }

func (m *MockChunkRepo) SaveChunk(ctx context.Context, documentID string, index int, content string, embedding []float32) error {
	args := m.Called(ctx, documentID, index, content, embedding)
	return args.Error(0)
}

func (m *MockChunkRepo) RefreshEmbedding(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockCleanup struct{ mock.Mock }

func (m *MockCleanup) Enqueue(documentID string, vectorIDs []string) {
	m.Called(documentID, vectorIDs)
}
