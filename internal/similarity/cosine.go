package similarity

import "math"

// CosineSimilarity computes the cosine of the angle between two embedding
// vectors. By convention it returns 0 when either vector has zero
// magnitude or when the dimensions disagree; the pipeline depends on every
// pair of vectors producing a comparable score, so the degenerate cases
// must not be NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
