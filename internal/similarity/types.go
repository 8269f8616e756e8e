package similarity

import (
	"context"
	"errors"
	"time"

	"github.com/anla-124/pdf-searcher/internal/simfilter"
)

// ErrNotEmbedded marks a document whose centroid vector or effective chunk
// count never materialized. Searching from or against such a document is a
// data error (upstream processing did not finish), not an empty result.
var ErrNotEmbedded = errors.New("document has no embedding data")

// ErrDocumentNotFound marks a lookup of a document id that does not exist or
// has been soft-deleted. Stores return it instead of leaking their driver's
// no-rows error to the HTTP layer.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentInfo is the slice of document state the pipeline needs: identity
// plus the persisted centroid and effective chunk count.
type DocumentInfo struct {
	ID                 string
	Title              string
	CreatedAt          time.Time
	Centroid           []float32
	EmbeddedChunkCount int
}

// ChunkData is one embedded chunk row, ordered by Index within its document.
type ChunkData struct {
	ID        string
	Index     int
	Content   string
	CharCount int
	Embedding []float32
}

// Point is a single hit from the vector index: one chunk point with its
// owning document and the index-reported similarity score.
type Point struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Score      float64
}

// Candidate is a (document id, score) pair produced by stage 0 or stage 1.
// Scores rank candidates within one stage's output only.
type Candidate struct {
	DocumentID string
	Score      float64
}

// ChunkMatch pairs one source chunk with its accepted best target chunk.
type ChunkMatch struct {
	SourceIndex int     `json:"source_index"`
	TargetIndex int     `json:"target_index"`
	Cosine      float64 `json:"cosine"`
	Jaccard     float64 `json:"jaccard"`
}

// Scores holds the per-pair coverage fractions and diagnostics. SourceScore
// and TargetScore are asymmetric: a short target fully contained in a long
// source yields a low SourceScore but a high TargetScore.
type Scores struct {
	SourceScore        float64 `json:"source_score"`
	TargetScore        float64 `json:"target_score"`
	MatchedSourceChars int     `json:"matched_source_chars"`
	MatchedTargetChars int     `json:"matched_target_chars"`
	AvgJaccard         float64 `json:"avg_jaccard"`
	MinJaccard         float64 `json:"min_jaccard"`
	MaxJaccard         float64 `json:"max_jaccard"`
}

// Result is one scored target document in the final ranked output.
type Result struct {
	DocumentID    string       `json:"document_id"`
	Title         string       `json:"title"`
	CreatedAt     time.Time    `json:"created_at"`
	Scores        Scores       `json:"scores"`
	MatchedChunks []ChunkMatch `json:"matched_chunks"`
}

// Timing records per-stage wall-clock durations for observability.
type Timing struct {
	Stage0 time.Duration `json:"stage0_ns"`
	Stage1 time.Duration `json:"stage1_ns"`
	Stage2 time.Duration `json:"stage2_ns"`
	Total  time.Duration `json:"total_ns"`
}

// DocumentStore is the relational side of the pipeline: centroids, chunk
// rows and result metadata, keyed by document id.
type DocumentStore interface {
	GetEmbeddingInfo(ctx context.Context, id string) (*DocumentInfo, error)
	GetChunks(ctx context.Context, documentID string) ([]ChunkData, error)
	GetDocumentInfos(ctx context.Context, ids []string) ([]DocumentInfo, error)
}

// VectorIndex is the ANN side: ranked nearest-neighbor search over chunk
// points under a structured filter.
type VectorIndex interface {
	SearchByVector(ctx context.Context, vector []float32, limit int, filter simfilter.Filter) ([]Point, error)
}
