package scoring

import (
	"fmt"
	"math"

	"github.com/siherrmann/grader/helper"
)

// normEpsilon is the norm below which a vector is treated as zero
const normEpsilon = 1e-12

// CosineSimilarity returns dot(a,b) / (|a| * |b|) computed in float64.
// If either vector has a near zero norm the similarity is 0.
// Vectors of different dimensions fail with a scoring error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, helper.NewScoringError("cosine similarity", fmt.Errorf("dimension mismatch: %d != %d", len(a), len(b)))
	}

	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}

	norm := math.Sqrt(na) * math.Sqrt(nb)
	if norm < normEpsilon || math.IsNaN(norm) {
		return 0, nil
	}

	similarity := dot / norm
	if math.IsNaN(similarity) {
		return 0, nil
	}
	return similarity, nil
}

// SimilarityMatrix computes entry [i][j] as the cosine similarity between
// student embedding i and reference embedding j.
func SimilarityMatrix(students [][]float32, references [][]float32) ([][]float64, error) {
	matrix := make([][]float64, len(students))
	for i, s := range students {
		row := make([]float64, len(references))
		for j, r := range references {
			similarity, err := CosineSimilarity(s, r)
			if err != nil {
				return nil, helper.NewError(fmt.Sprintf("score answer %d against reference %d", i, j), err)
			}
			row[j] = similarity
		}
		matrix[i] = row
	}
	return matrix, nil
}
