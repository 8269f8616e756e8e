package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anla-124/pdf-searcher/internal/middleware"
	"github.com/anla-124/pdf-searcher/internal/simfilter"
	"github.com/anla-124/pdf-searcher/internal/similarity"
)

// Searcher runs one orchestrated similarity search.
type Searcher interface {
	Execute(ctx context.Context, sourceDocID string, opts similarity.Options) (*similarity.SearchResponse, error)
}

type Handler struct {
	searcher Searcher
	// defaults come from config; request fields override per search.
	defaults similarity.Options
}

func NewHandler(searcher Searcher, defaults similarity.Options) *Handler {
	return &Handler{searcher: searcher, defaults: defaults}
}

type searchRequest struct {
	DocumentID       string    `json:"document_id"`
	Stage0TopK       int       `json:"stage0_top_k"`
	Stage1TopK       int       `json:"stage1_top_k"`
	Stage2Workers    int       `json:"stage2_workers"`
	MinScore         float64   `json:"min_score"`
	CosineThreshold  float64   `json:"cosine_threshold"`
	JaccardThreshold *float64  `json:"jaccard_threshold"`
	DocumentIDs      []string  `json:"document_ids"`
	QueryVector      []float32 `json:"query_vector"`
	TimeoutSeconds   int       `json:"timeout_seconds"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.DocumentID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "document_id is required", http.StatusBadRequest)
		return
	}

	opts := h.defaults
	opts.Filter = simfilter.All()
	opts.QueryVector = req.QueryVector
	if req.Stage0TopK > 0 {
		opts.Stage0TopK = req.Stage0TopK
	}
	if req.Stage1TopK > 0 {
		opts.Stage1TopK = req.Stage1TopK
	}
	if req.Stage2Workers > 0 {
		opts.Stage2Workers = req.Stage2Workers
	}
	if req.MinScore > 0 {
		opts.MinScore = req.MinScore
	}
	if req.CosineThreshold > 0 {
		opts.CosineThreshold = req.CosineThreshold
	}
	if req.JaccardThreshold != nil {
		opts.JaccardThreshold = *req.JaccardThreshold
		opts.JaccardDisabled = *req.JaccardThreshold == 0
	}
	if len(req.DocumentIDs) > 0 {
		opts.Filter = simfilter.In(simfilter.FieldDocumentID, req.DocumentIDs...)
	}
	if req.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	resp, err := h.searcher.Execute(r.Context(), req.DocumentID, opts)
	if err != nil {
		switch {
		case errors.Is(err, similarity.ErrDocumentNotFound):
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
		case errors.Is(err, similarity.ErrNotEmbedded):
			h.writeError(r.Context(), w, "NOT_EMBEDDED", "Document has no embedding data", http.StatusUnprocessableEntity)
		default:
			slog.ErrorContext(r.Context(), "similarity search failed", "error", err, "document_id", req.DocumentID)
			h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
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
