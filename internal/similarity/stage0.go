package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/anla-124/pdf-searcher/internal/simfilter"
)

// Stage0Options configures centroid candidate retrieval.
type Stage0Options struct {
	TopK int
	// Filter carries caller metadata constraints. The source document is
	// always excluded on top of it.
	Filter simfilter.Filter
	// QueryVector, when set, takes precedence over the persisted centroid.
	QueryVector []float32
}

// CandidateRetriever is stage 0 of the funnel: a single broad ANN query
// against the source document's centroid, deduplicated to document level.
type CandidateRetriever struct {
	store DocumentStore
	index VectorIndex
}

func NewCandidateRetriever(store DocumentStore, index VectorIndex) *CandidateRetriever {
	return &CandidateRetriever{store: store, index: index}
}

func (r *CandidateRetriever) Retrieve(ctx context.Context, sourceDocID string, opts Stage0Options) ([]Candidate, error) {
	queryVector := opts.QueryVector
	if queryVector == nil {
		info, err := r.store.GetEmbeddingInfo(ctx, sourceDocID)
		if err != nil {
			return nil, fmt.Errorf("load embedding info for %s: %w", sourceDocID, err)
		}
		if len(info.Centroid) == 0 || info.EmbeddedChunkCount == 0 {
			return nil, fmt.Errorf("document %s: %w", sourceDocID, ErrNotEmbedded)
		}
		queryVector = info.Centroid
	}

	filter := simfilter.ExcludeDocument(opts.Filter, sourceDocID)

	// The index holds one point per chunk, so a document can surface many
	// times in a single query. Overfetch 2x to compensate for the
	// deduplication loss.
	points, err := r.index.SearchByVector(ctx, queryVector, 2*opts.TopK, filter)
	if err != nil {
		return nil, fmt.Errorf("stage0 vector search: %w", err)
	}

	candidates := dedupeByDocument(points, sourceDocID)
	if len(candidates) == 0 && opts.Filter.Kind != simfilter.KindAll {
		r.diagnoseEmptyScopedResult(ctx, sourceDocID, queryVector, opts.TopK)
	}

	if len(candidates) > opts.TopK {
		candidates = candidates[:opts.TopK]
	}
	return candidates, nil
}

// dedupeByDocument collapses chunk-level points to one candidate per
// document, keeping the maximum score seen, then orders by score descending
// with document id as the total tie-break.
func dedupeByDocument(points []Point, sourceDocID string) []Candidate {
	best := make(map[string]float64)
	for _, p := range points {
		if p.DocumentID == "" || p.DocumentID == sourceDocID {
			continue
		}
		if s, ok := best[p.DocumentID]; !ok || p.Score > s {
			best[p.DocumentID] = p.Score
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for id, score := range best {
		candidates = append(candidates, Candidate{DocumentID: id, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].DocumentID < candidates[j].DocumentID
	})
	return candidates
}

// diagnoseEmptyScopedResult reruns the query without the caller's scoping
// filter to tell "legitimately no matches" apart from "the filter itself is
// wrong". Results are only logged, and a failure here never fails the
// primary call.
func (r *CandidateRetriever) diagnoseEmptyScopedResult(ctx context.Context, sourceDocID string, queryVector []float32, topK int) {
	unscoped := simfilter.ExcludeDocument(simfilter.All(), sourceDocID)
	points, err := r.index.SearchByVector(ctx, queryVector, 2*topK, unscoped)
	if err != nil {
		slog.WarnContext(ctx, "stage0 diagnostic query failed", "source_id", sourceDocID, "error", err)
		return
	}
	unfiltered := dedupeByDocument(points, sourceDocID)
	slog.InfoContext(ctx, "stage0 returned no candidates under caller filter",
		"source_id", sourceDocID,
		"unfiltered_candidates", len(unfiltered))
}
