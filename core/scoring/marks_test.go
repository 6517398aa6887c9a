package scoring

import (
	"math"
	"testing"

	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignMarks(t *testing.T) {
	t.Run("Best match wins", func(t *testing.T) {
		marks, err := AssignMarks([][]float64{{0.2, 0.9}, {0.4, 0.1}}, 5)

		require.NoError(t, err)
		assert.Equal(t, []model.Mark{
			{AnswerIndex: 0, Mark: 4.5, BestReference: 1, Similarity: 0.9},
			{AnswerIndex: 1, Mark: 2.0, BestReference: 0, Similarity: 0.4},
		}, marks)
		assert.Equal(t, 6.5, Total(marks))
	})

	t.Run("Rounds to two decimals", func(t *testing.T) {
		marks, err := AssignMarks([][]float64{{0.123456}, {0.98765}}, 5)

		require.NoError(t, err)
		assert.Equal(t, 0.62, marks[0].Mark)
		assert.Equal(t, 4.94, marks[1].Mark)
		assert.Equal(t, 5.56, Total(marks))
	})

	t.Run("Clamps to bounds", func(t *testing.T) {
		marks, err := AssignMarks([][]float64{{1.0000001}, {-0.3, -0.8}}, 5)

		require.NoError(t, err)
		assert.Equal(t, 5.0, marks[0].Mark, "Expected similarity above one to be clamped")
		assert.Equal(t, 0.0, marks[1].Mark, "Expected negative similarity to be clamped")
		assert.Equal(t, 0, marks[1].BestReference)
	})

	t.Run("Marks always within bounds with two decimals", func(t *testing.T) {
		var row []float64
		for i := -10; i <= 12; i++ {
			row = append(row, float64(i)/10.0+0.00137)
		}
		for _, maxMarks := range []float64{0, 1, 2.5, 5, 10} {
			for _, similarity := range row {
				marks, err := AssignMarks([][]float64{{similarity}}, maxMarks)
				require.NoError(t, err)

				mark := marks[0].Mark
				assert.GreaterOrEqual(t, mark, 0.0)
				assert.LessOrEqual(t, mark, maxMarks)
				assert.InDelta(t, mark, math.Round(mark*100)/100, 1e-9, "Expected mark %v to have two decimals", mark)
			}
		}
	})

	t.Run("Row without references", func(t *testing.T) {
		marks, err := AssignMarks([][]float64{{}}, 5)

		require.NoError(t, err)
		assert.Equal(t, model.Mark{AnswerIndex: 0, Mark: 0, BestReference: -1}, marks[0])
	})

	t.Run("NaN similarities are ignored", func(t *testing.T) {
		marks, err := AssignMarks([][]float64{{math.NaN(), 0.5}}, 4)

		require.NoError(t, err)
		assert.Equal(t, 2.0, marks[0].Mark)
		assert.Equal(t, 1, marks[0].BestReference)
	})

	t.Run("Empty matrix gives no marks", func(t *testing.T) {
		marks, err := AssignMarks(nil, 5)

		require.NoError(t, err)
		assert.Empty(t, marks)
		assert.Equal(t, 0.0, Total(marks))
	})

	t.Run("Negative max marks is a scoring error", func(t *testing.T) {
		_, err := AssignMarks([][]float64{{0.5}}, -1)

		assert.ErrorIs(t, err, helper.ErrScoring)
	})
}
