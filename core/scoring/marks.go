package scoring

import (
	"fmt"
	"math"

	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
)

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// AssignMarks awards each student answer its best similarity times maxMarks.
// Marks are rounded to two decimals and clamped to [0, maxMarks]. A row
// without references gets mark 0 and BestReference -1.
func AssignMarks(matrix [][]float64, maxMarks float64) ([]model.Mark, error) {
	if maxMarks < 0 || math.IsNaN(maxMarks) || math.IsInf(maxMarks, 0) {
		return nil, helper.NewScoringError("assign marks", fmt.Errorf("invalid max marks %v", maxMarks))
	}

	marks := make([]model.Mark, len(matrix))
	for i, row := range matrix {
		best := -1
		bestSimilarity := 0.0
		for j, similarity := range row {
			if math.IsNaN(similarity) {
				continue
			}
			if best == -1 || similarity > bestSimilarity {
				best = j
				bestSimilarity = similarity
			}
		}

		mark := Round2(bestSimilarity * maxMarks)
		mark = math.Max(0, math.Min(maxMarks, mark))

		marks[i] = model.Mark{
			AnswerIndex:   i,
			Mark:          mark,
			BestReference: best,
			Similarity:    bestSimilarity,
		}
	}

	return marks, nil
}

// Total sums the marks, rounded to two decimals
func Total(marks []model.Mark) float64 {
	var sum float64
	for _, m := range marks {
		sum += m.Mark
	}
	return Round2(sum)
}
