package model

import (
	"time"

	"github.com/google/uuid"
)

// GradingRun is an archived grading of one batch of answer sheets
type GradingRun struct {
	ID            int64     `json:"id"`
	RID           uuid.UUID `json:"rid"`
	Student       string    `json:"student,omitempty"`
	ReferencePath string    `json:"reference_path,omitempty"`
	MaxMarks      float64   `json:"max_marks"`
	Total         float64   `json:"total"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ArchivedAnswer is one graded answer of a run, stored with its embedding
type ArchivedAnswer struct {
	ID            int64     `json:"id"`
	RunID         int64     `json:"run_id"`
	RunRID        uuid.UUID `json:"run_rid"`
	AnswerIndex   int       `json:"answer_index"`
	Content       string    `json:"content"`
	Keywords      []string  `json:"keywords"`
	Embedding     []float32 `json:"embedding,omitempty"`
	Mark          float64   `json:"mark"`
	BestReference int       `json:"best_reference"`
	Similarity    float64   `json:"similarity"`
	CreatedAt     time.Time `json:"created_at"`
	// Set by similarity search
	Distance float64 `json:"distance,omitempty"`
}

// NewGradingRun creates a run record from a grading result.
// Embeddings must be index aligned with result.Answers or nil.
func NewGradingRun(student string, referencePath string, result *GradingResult, embeddings [][]float32) (*GradingRun, []*ArchivedAnswer) {
	run := &GradingRun{
		Student:       student,
		ReferencePath: referencePath,
		MaxMarks:      result.MaxMarks,
		Total:         result.Total,
		Metadata:      Metadata{"answers": len(result.Answers), "skipped": len(result.Skipped)},
	}

	answers := make([]*ArchivedAnswer, 0, len(result.Answers))
	for i, content := range result.Answers {
		a := &ArchivedAnswer{
			AnswerIndex:   i,
			Content:       content,
			Keywords:      []string{},
			BestReference: -1,
		}
		if i < len(result.Keywords) && result.Keywords[i] != nil {
			a.Keywords = result.Keywords[i]
		}
		if i < len(embeddings) {
			a.Embedding = embeddings[i]
		}
		if i < len(result.Marks) {
			a.Mark = result.Marks[i].Mark
			a.BestReference = result.Marks[i].BestReference
			a.Similarity = result.Marks[i].Similarity
		}
		answers = append(answers, a)
	}

	return run, answers
}
