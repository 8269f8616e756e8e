package similarity

import (
	"context"
	"fmt"
)

// Stage2Options holds the two acceptance thresholds. Cosine gates which
// target chunk can be a source chunk's candidate match at all; Jaccard then
// gates acceptance of that candidate. The conjunction is what rejects
// paraphrases while tolerating abbreviation and phrasing drift.
type Stage2Options struct {
	CosineThreshold float64
	// JaccardThreshold of 0 disables lexical filtering (cosine-only mode).
	JaccardThreshold float64
}

// DocumentScores is the full stage-2 output for one target document.
type DocumentScores struct {
	Matches []ChunkMatch
	Scores  Scores
}

// ScoreEngine is stage 2: the all-pairs bidirectional scorer.
type ScoreEngine struct {
	store DocumentStore
}

func NewScoreEngine(store DocumentStore) *ScoreEngine {
	return &ScoreEngine{store: store}
}

// Score computes chunk-level best matches between the source chunks and the
// target document, then aggregates accepted matches into character coverage
// fractions for both sides.
//
// Matching is greedy per source chunk: the single highest-cosine target
// chunk above the threshold wins, with the lower target index breaking exact
// ties so identical inputs always produce identical assignments. A target
// chunk may be matched by several source chunks; its characters count once
// on the target side.
func (e *ScoreEngine) Score(ctx context.Context, sourceChunks []ChunkData, targetDocID string, opts Stage2Options) (*DocumentScores, error) {
	targetChunks, err := e.store.GetChunks(ctx, targetDocID)
	if err != nil {
		return nil, fmt.Errorf("load target chunks for %s: %w", targetDocID, err)
	}

	totalSourceChars := 0
	for _, c := range sourceChunks {
		totalSourceChars += c.CharCount
	}
	totalTargetChars := 0
	for _, c := range targetChunks {
		totalTargetChars += c.CharCount
	}

	out := &DocumentScores{}
	matchedTargets := make(map[int]int) // target index -> char count, deduplicated

	var jaccardSum float64
	for _, src := range sourceChunks {
		bestIdx := -1
		bestCosine := 0.0
		for ti, tgt := range targetChunks {
			cos := CosineSimilarity(src.Embedding, tgt.Embedding)
			if cos < opts.CosineThreshold {
				continue
			}
			if bestIdx == -1 || cos > bestCosine {
				bestIdx = ti
				bestCosine = cos
			}
		}
		if bestIdx == -1 {
			continue
		}

		tgt := targetChunks[bestIdx]
		jac := JaccardSimilarity(src.Content, tgt.Content)
		if opts.JaccardThreshold > 0 && jac < opts.JaccardThreshold {
			continue
		}

		out.Matches = append(out.Matches, ChunkMatch{
			SourceIndex: src.Index,
			TargetIndex: tgt.Index,
			Cosine:      bestCosine,
			Jaccard:     jac,
		})
		out.Scores.MatchedSourceChars += src.CharCount
		matchedTargets[tgt.Index] = tgt.CharCount

		jaccardSum += jac
		if len(out.Matches) == 1 || jac < out.Scores.MinJaccard {
			out.Scores.MinJaccard = jac
		}
		if jac > out.Scores.MaxJaccard {
			out.Scores.MaxJaccard = jac
		}
	}

	for _, chars := range matchedTargets {
		out.Scores.MatchedTargetChars += chars
	}
	if len(out.Matches) > 0 {
		out.Scores.AvgJaccard = jaccardSum / float64(len(out.Matches))
	}
	if totalSourceChars > 0 {
		out.Scores.SourceScore = float64(out.Scores.MatchedSourceChars) / float64(totalSourceChars)
	}
	if totalTargetChars > 0 {
		out.Scores.TargetScore = float64(out.Scores.MatchedTargetChars) / float64(totalTargetChars)
	}

	return out, nil
}
