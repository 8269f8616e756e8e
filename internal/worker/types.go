package worker

import (
	"context"
)

// Chunk is one embedded chunk point bound for the vector index.
type Chunk struct {
	DocumentID string
	ChunkIndex int
	Vector     []float32
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	StoreChunk(ctx context.Context, chunk Chunk) error
}

// ChunkRepository persists chunk rows and refreshes the owning document's
// centroid and effective chunk count once ingestion completes.
type ChunkRepository interface {
	SaveChunk(ctx context.Context, documentID string, index int, content string, embedding []float32) error
	RefreshEmbedding(ctx context.Context, documentID string) error
}

// CleanupEnqueuer hands deleted documents to the vector cleanup worker.
type CleanupEnqueuer interface {
	Enqueue(documentID string, vectorIDs []string)
}
