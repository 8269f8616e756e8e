package similarity

import (
	"context"
	"fmt"
	"sort"

	"github.com/anla-124/pdf-searcher/internal/simfilter"
)

const (
	// prefilterFloor is the cosine score a chunk hit must clear to count
	// toward a candidate's aggregate. Deliberately looser than stage 2's
	// cosine threshold so the prefilter sheds cost, not recall.
	prefilterFloor = 0.75

	// prefilterHitsPerChunk bounds the per-source-chunk ANN query.
	prefilterHitsPerChunk = 8
)

// Prefilter is stage 1: per-chunk nearest-neighbor probes restricted to the
// stage-0 survivors, narrowing them before the all-pairs stage 2 work.
type Prefilter struct {
	index VectorIndex
}

func NewPrefilter(index VectorIndex) *Prefilter {
	return &Prefilter{index: index}
}

type chunkAggregate struct {
	hits    int
	sumBest float64
}

// Narrow ranks candidates by how many source chunks find a strong
// counterpart in them (then by summed best scores, then by id) and keeps at
// most topK. The output is always a subset of the input and the ranking is
// deterministic for identical inputs.
func (p *Prefilter) Narrow(ctx context.Context, sourceChunks []ChunkData, candidates []Candidate, topK int) ([]Candidate, error) {
	if len(candidates) == 0 || topK <= 0 {
		return nil, nil
	}

	candidateIDs := make([]string, len(candidates))
	for i, c := range candidates {
		candidateIDs[i] = c.DocumentID
	}
	filter := simfilter.In(simfilter.FieldDocumentID, candidateIDs...)

	agg := make(map[string]*chunkAggregate)
	for _, chunk := range sourceChunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		points, err := p.index.SearchByVector(ctx, chunk.Embedding, prefilterHitsPerChunk, filter)
		if err != nil {
			return nil, fmt.Errorf("stage1 chunk probe (index %d): %w", chunk.Index, err)
		}

		bestPerDoc := make(map[string]float64)
		for _, pt := range points {
			if s, ok := bestPerDoc[pt.DocumentID]; !ok || pt.Score > s {
				bestPerDoc[pt.DocumentID] = pt.Score
			}
		}
		for docID, score := range bestPerDoc {
			if score < prefilterFloor {
				continue
			}
			a := agg[docID]
			if a == nil {
				a = &chunkAggregate{}
				agg[docID] = a
			}
			a.hits++
			a.sumBest += score
		}
	}

	narrowed := make([]Candidate, 0, len(agg))
	for _, c := range candidates {
		if a, ok := agg[c.DocumentID]; ok {
			narrowed = append(narrowed, Candidate{DocumentID: c.DocumentID, Score: a.sumBest})
		}
	}
	sort.Slice(narrowed, func(i, j int) bool {
		ai, aj := agg[narrowed[i].DocumentID], agg[narrowed[j].DocumentID]
		if ai.hits != aj.hits {
			return ai.hits > aj.hits
		}
		if ai.sumBest != aj.sumBest {
			return ai.sumBest > aj.sumBest
		}
		return narrowed[i].DocumentID < narrowed[j].DocumentID
	})

	if len(narrowed) > topK {
		narrowed = narrowed[:topK]
	}
	return narrowed, nil
}
