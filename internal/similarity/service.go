package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anla-124/pdf-searcher/internal/metrics"
	"github.com/anla-124/pdf-searcher/internal/simfilter"
)

// Options configures one orchestrated similarity search. Zero fields fall
// back to the package defaults below.
type Options struct {
	Stage0TopK       int
	Stage1TopK       int
	Stage2Workers    int
	MinScore         float64
	CosineThreshold  float64
	JaccardThreshold float64
	// JaccardDisabled distinguishes an explicit threshold of 0 (cosine-only
	// mode) from an unset field.
	JaccardDisabled bool
	Filter          simfilter.Filter
	QueryVector     []float32
	Timeout         time.Duration
}

const (
	DefaultStage0TopK       = 600
	DefaultStage1TopK       = 250
	DefaultStage2Workers    = 2
	DefaultCosineThreshold  = 0.90
	DefaultJaccardThreshold = 0.60
)

// SearchResponse is the final ranked output plus per-stage timings.
type SearchResponse struct {
	Results []Result `json:"results"`
	Timing  Timing   `json:"timing"`
}

// Service sequences the three-stage funnel. Stage 0 and stage 1 run on the
// request path; stage 2 fans out across a bounded worker pool. Any stage
// failure aborts the whole search: callers get trustworthy numbers or an
// error, never a partial result.
type Service struct {
	store     DocumentStore
	retriever *CandidateRetriever
	prefilter *Prefilter
	engine    *ScoreEngine
	metrics   *metrics.Metrics
}

func NewService(store DocumentStore, index VectorIndex, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		retriever: NewCandidateRetriever(store, index),
		prefilter: NewPrefilter(index),
		engine:    NewScoreEngine(store),
		metrics:   m,
	}
}

func (s *Service) Execute(ctx context.Context, sourceDocID string, opts Options) (*SearchResponse, error) {
	opts = withDefaults(opts)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	totalStart := time.Now()
	resp := &SearchResponse{Results: []Result{}}

	res, err := s.execute(ctx, sourceDocID, opts, resp)
	resp.Timing.Total = time.Since(totalStart)
	s.observeSearch(err)
	if err != nil {
		return nil, err
	}
	resp.Results = res
	return resp, nil
}

func (s *Service) execute(ctx context.Context, sourceDocID string, opts Options, resp *SearchResponse) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("similarity search aborted: %w", err)
	}

	// Stage 0: centroid candidate retrieval.
	start := time.Now()
	candidates, err := s.retriever.Retrieve(ctx, sourceDocID, Stage0Options{
		TopK:        opts.Stage0TopK,
		Filter:      opts.Filter,
		QueryVector: opts.QueryVector,
	})
	resp.Timing.Stage0 = time.Since(start)
	s.observeStage("stage0", resp.Timing.Stage0)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "stage0 complete", "source_id", sourceDocID, "candidates", len(candidates), "duration", resp.Timing.Stage0)
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	sourceChunks, err := s.store.GetChunks(ctx, sourceDocID)
	if err != nil {
		return nil, fmt.Errorf("load source chunks: %w", err)
	}
	if len(sourceChunks) == 0 {
		return nil, fmt.Errorf("document %s: %w", sourceDocID, ErrNotEmbedded)
	}

	// Stage 1: chunk-level prefilter.
	start = time.Now()
	narrowed, err := s.prefilter.Narrow(ctx, sourceChunks, candidates, opts.Stage1TopK)
	resp.Timing.Stage1 = time.Since(start)
	s.observeStage("stage1", resp.Timing.Stage1)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "stage1 complete", "source_id", sourceDocID, "candidates", len(narrowed), "duration", resp.Timing.Stage1)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("similarity search aborted: %w", err)
	}

	// Stage 2: bidirectional scoring over a bounded worker pool.
	start = time.Now()
	scored := make([]*DocumentScores, len(narrowed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Stage2Workers)
	for i, cand := range narrowed {
		g.Go(func() error {
			ds, err := s.engine.Score(gctx, sourceChunks, cand.DocumentID, Stage2Options{
				CosineThreshold:  opts.CosineThreshold,
				JaccardThreshold: opts.JaccardThreshold,
			})
			if err != nil {
				return err
			}
			scored[i] = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stage2 scoring: %w", err)
	}
	resp.Timing.Stage2 = time.Since(start)
	s.observeStage("stage2", resp.Timing.Stage2)

	return s.assembleResults(ctx, narrowed, scored, opts.MinScore)
}

// assembleResults filters by minScore, attaches document metadata and
// applies the total result ordering. A candidate the metadata lookup no
// longer returns was deleted after its vectors were retrieved; it is dropped
// rather than emitted with empty metadata.
func (s *Service) assembleResults(ctx context.Context, candidates []Candidate, scored []*DocumentScores, minScore float64) ([]Result, error) {
	scoredResults := make([]Result, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for i, cand := range candidates {
		ds := scored[i]
		if ds == nil || len(ds.Matches) == 0 {
			continue
		}
		if maxScore(ds.Scores) < minScore {
			continue
		}
		scoredResults = append(scoredResults, Result{
			DocumentID:    cand.DocumentID,
			Scores:        ds.Scores,
			MatchedChunks: ds.Matches,
		})
		ids = append(ids, cand.DocumentID)
	}

	results := make([]Result, 0, len(scoredResults))
	if len(ids) > 0 {
		infos, err := s.store.GetDocumentInfos(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load result metadata: %w", err)
		}
		byID := make(map[string]DocumentInfo, len(infos))
		for _, info := range infos {
			byID[info.ID] = info
		}
		for _, r := range scoredResults {
			info, ok := byID[r.DocumentID]
			if !ok {
				slog.InfoContext(ctx, "dropping deleted candidate from results", "document_id", r.DocumentID)
				continue
			}
			r.Title = info.Title
			r.CreatedAt = info.CreatedAt
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return lessResult(results[i], results[j])
	})
	return results, nil
}

// lessResult is the total result comparator: target coverage, then source
// coverage, then matched target characters, then creation time, title and
// finally document id. Two runs over identical data always order
// identically.
func lessResult(a, b Result) bool {
	if a.Scores.TargetScore != b.Scores.TargetScore {
		return a.Scores.TargetScore > b.Scores.TargetScore
	}
	if a.Scores.SourceScore != b.Scores.SourceScore {
		return a.Scores.SourceScore > b.Scores.SourceScore
	}
	if a.Scores.MatchedTargetChars != b.Scores.MatchedTargetChars {
		return a.Scores.MatchedTargetChars > b.Scores.MatchedTargetChars
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.DocumentID < b.DocumentID
}

func maxScore(s Scores) float64 {
	if s.SourceScore > s.TargetScore {
		return s.SourceScore
	}
	return s.TargetScore
}

func withDefaults(opts Options) Options {
	if opts.Stage0TopK <= 0 {
		opts.Stage0TopK = DefaultStage0TopK
	}
	if opts.Stage1TopK <= 0 {
		opts.Stage1TopK = DefaultStage1TopK
	}
	if opts.Stage2Workers <= 0 {
		opts.Stage2Workers = DefaultStage2Workers
	}
	if opts.CosineThreshold <= 0 {
		opts.CosineThreshold = DefaultCosineThreshold
	}
	if opts.JaccardThreshold <= 0 && !opts.JaccardDisabled {
		opts.JaccardThreshold = DefaultJaccardThreshold
	}
	return opts
}

func (s *Service) observeStage(stage string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (s *Service) observeSearch(err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.SearchesTotal.WithLabelValues(outcome).Inc()
}
