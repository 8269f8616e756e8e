package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/anla-124/pdf-searcher/internal/middleware"
)

const embedTimeout = 60 * time.Second

// EmbedderConsumer turns ingested chunk payloads into stored chunk rows and
// vector points, then refreshes the document centroid after the last chunk.
type EmbedderConsumer struct {
	embedder Embedder
	store    VectorStore
	chunks   ChunkRepository
}

func NewEmbedderConsumer(e Embedder, s VectorStore, c ChunkRepository) *EmbedderConsumer {
	return &EmbedderConsumer{
		embedder: e,
		store:    s,
		chunks:   c,
	}
}

func (h *EmbedderConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload ChunkEmbedPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry.
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vector, err := h.embedder.Embed(embedCtx, payload.Content)
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err, "document_id", payload.DocumentID, "chunk_index", payload.ChunkIndex)
		return err // Retry
	}

	if err := h.chunks.SaveChunk(embedCtx, payload.DocumentID, payload.ChunkIndex, payload.Content, vector); err != nil {
		slog.ErrorContext(ctx, "save chunk failed", "error", err, "document_id", payload.DocumentID, "chunk_index", payload.ChunkIndex)
		return err // Retry
	}

	chunk := Chunk{
		DocumentID: payload.DocumentID,
		ChunkIndex: payload.ChunkIndex,
		Vector:     vector,
	}
	if err := h.store.StoreChunk(embedCtx, chunk); err != nil {
		slog.ErrorContext(ctx, "store chunk point failed", "error", err, "document_id", payload.DocumentID, "chunk_index", payload.ChunkIndex)
		return err // Retry
	}

	if payload.ChunkIndex == payload.TotalChunks-1 {
		if err := h.chunks.RefreshEmbedding(embedCtx, payload.DocumentID); err != nil {
			slog.ErrorContext(ctx, "refresh centroid failed", "error", err, "document_id", payload.DocumentID)
			return err // Retry
		}
		slog.InfoContext(ctx, "document embedding complete", "document_id", payload.DocumentID, "chunks", payload.TotalChunks)
	}

	return nil
}
