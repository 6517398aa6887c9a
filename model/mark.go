package model

// Mark is the mark awarded to one segmented student answer
type Mark struct {
	AnswerIndex   int     `json:"answer_index"`
	Mark          float64 `json:"mark"`
	BestReference int     `json:"best_reference"` // -1 if there was nothing to compare against
	Similarity    float64 `json:"similarity"`
}

// GradingResult is the outcome of grading one batch of answer sheets
type GradingResult struct {
	Answers  []string   `json:"answers"`
	Keywords [][]string `json:"keywords,omitempty"`
	Marks    []Mark     `json:"marks"`
	Total    float64    `json:"total"`
	MaxMarks float64    `json:"max_marks"`
	Skipped  []string   `json:"skipped,omitempty"` // Images skipped with FailurePolicySkip
}

// MarkValues returns the plain marks in answer order
func (r *GradingResult) MarkValues() []float64 {
	values := make([]float64, len(r.Marks))
	for i, m := range r.Marks {
		values[i] = m.Mark
	}
	return values
}
