package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/anla-124/pdf-searcher/internal/cleanup"
	"github.com/anla-124/pdf-searcher/internal/middleware"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
}

type VectorStore interface {
	CountChunks(ctx context.Context) (int, error)
}

type CleanupWorker interface {
	Metrics() cleanup.Snapshot
}

type Handler struct {
	documentRepo DocumentRepo
	vectorStore  VectorStore
	cleanup      CleanupWorker
}

func NewHandler(d DocumentRepo, v VectorStore, c CleanupWorker) *Handler {
	return &Handler{documentRepo: d, vectorStore: v, cleanup: c}
}

type StatsResponse struct {
	Documents   int              `json:"documents"`
	ChunkPoints int              `json:"chunk_points"`
	Cleanup     cleanup.Snapshot `json:"cleanup"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	dCount, err := h.documentRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	cCount, err := h.vectorStore.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunk points", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunk points", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:   dCount,
		ChunkPoints: cCount,
		Cleanup:     h.cleanup.Metrics(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
