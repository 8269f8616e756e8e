package similarity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/anla-124/pdf-searcher/internal/simfilter"
	"github.com/anla-124/pdf-searcher/internal/similarity"
)

func chunk(idx int, embedding []float32) similarity.ChunkData {
	return similarity.ChunkData{Index: idx, Embedding: embedding, Content: "x", CharCount: 1}
}

func TestPrefilter_OutputIsSubsetAndBounded(t *testing.T) {
	index := new(MockVectorIndex)
	chunks := []similarity.ChunkData{
		chunk(0, []float32{1, 0}),
		chunk(1, []float32{0, 1}),
	}
	candidates := []similarity.Candidate{
		{DocumentID: "doc-a", Score: 0.9},
		{DocumentID: "doc-b", Score: 0.8},
		{DocumentID: "doc-c", Score: 0.7},
	}

	// Chunk 0: strong hits in doc-a and doc-b. Chunk 1: strong hit in
	// doc-a only; doc-c never clears the floor.
	index.On("SearchByVector", mock.Anything, []float32{1, 0}, 8, mock.Anything).
		Return([]similarity.Point{
			{DocumentID: "doc-a", Score: 0.97},
			{DocumentID: "doc-b", Score: 0.92},
			{DocumentID: "doc-c", Score: 0.40},
		}, nil)
	index.On("SearchByVector", mock.Anything, []float32{0, 1}, 8, mock.Anything).
		Return([]similarity.Point{
			{DocumentID: "doc-a", Score: 0.88},
		}, nil)

	p := similarity.NewPrefilter(index)
	got, err := p.Narrow(context.Background(), chunks, candidates, 2)

	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "doc-a", got[0].DocumentID) // 2 hits beats 1
	assert.Equal(t, "doc-b", got[1].DocumentID)
}

func TestPrefilter_RestrictsToCandidateSet(t *testing.T) {
	index := new(MockVectorIndex)
	var seenFilter simfilter.Filter
	index.On("SearchByVector", mock.Anything, mock.Anything, 8, mock.Anything).
		Run(func(args mock.Arguments) {
			seenFilter = args.Get(3).(simfilter.Filter)
		}).
		Return([]similarity.Point{}, nil)

	p := similarity.NewPrefilter(index)
	_, err := p.Narrow(context.Background(),
		[]similarity.ChunkData{chunk(0, []float32{1})},
		[]similarity.Candidate{{DocumentID: "doc-a"}, {DocumentID: "doc-b"}},
		10,
	)

	assert.NoError(t, err)
	assert.Equal(t, simfilter.KindIn, seenFilter.Kind)
	assert.Equal(t, simfilter.FieldDocumentID, seenFilter.Field)
	assert.Equal(t, []string{"doc-a", "doc-b"}, seenFilter.Values)
}

func TestPrefilter_MaxHitPerDocumentPerChunk(t *testing.T) {
	index := new(MockVectorIndex)
	// Three chunk points from the same document for a single probe must
	// count as one hit, not three.
	index.On("SearchByVector", mock.Anything, mock.Anything, 8, mock.Anything).
		Return([]similarity.Point{
			{DocumentID: "doc-a", Score: 0.96},
			{DocumentID: "doc-a", Score: 0.90},
			{DocumentID: "doc-a", Score: 0.81},
			{DocumentID: "doc-b", Score: 0.93},
		}, nil)

	p := similarity.NewPrefilter(index)
	got, err := p.Narrow(context.Background(),
		[]similarity.ChunkData{chunk(0, []float32{1})},
		[]similarity.Candidate{{DocumentID: "doc-a"}, {DocumentID: "doc-b"}},
		10,
	)

	assert.NoError(t, err)
	// Both docs got exactly one hit; sumBest breaks the tie.
	assert.Equal(t, "doc-a", got[0].DocumentID)
	assert.InDelta(t, 0.96, got[0].Score, 1e-9)
	assert.Equal(t, "doc-b", got[1].DocumentID)
}

func TestPrefilter_EmptyInputs(t *testing.T) {
	p := similarity.NewPrefilter(new(MockVectorIndex))

	got, err := p.Narrow(context.Background(), nil, nil, 10)
	assert.NoError(t, err)
	assert.Empty(t, got)

	got, err = p.Narrow(context.Background(), nil, []similarity.Candidate{{DocumentID: "doc-a"}}, 0)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestPrefilter_ProbeErrorPropagates(t *testing.T) {
	index := new(MockVectorIndex)
	index.On("SearchByVector", mock.Anything, mock.Anything, 8, mock.Anything).
		Return(nil, errors.New("probe failed"))

	p := similarity.NewPrefilter(index)
	_, err := p.Narrow(context.Background(),
		[]similarity.ChunkData{chunk(0, []float32{1})},
		[]similarity.Candidate{{DocumentID: "doc-a"}},
		10,
	)
	assert.ErrorContains(t, err, "probe failed")
}
