package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
	"github.com/siherrmann/grader/sql"
)

// AnswersDBHandlerFunctions defines the interface for graded answer database operations.
type AnswersDBHandlerFunctions interface {
	InsertAnswer(answer *model.ArchivedAnswer) error
	SelectAnswersByRun(runRID uuid.UUID) ([]*model.ArchivedAnswer, error)
	SelectAnswersBySimilarity(embedding []float32, limit int) ([]*model.ArchivedAnswer, error)
}

// AnswersDBHandler handles graded answer related database operations
type AnswersDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewAnswersDBHandler creates a new graded answers database handler.
// The runs table must exist, the answers reference it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewAnswersDBHandler(db *helper.Database, embeddingDim int, force bool) (*AnswersDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	answersDbHandler := &AnswersDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := sql.LoadAnswersSql(answersDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load answers sql", err)
	}

	err = answersDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized AnswersDBHandler", "embedding_dim", embeddingDim)

	return answersDbHandler, nil
}

// CreateTable creates the 'graded_answers' table with a vector column of the handler's dimension.
func (h *AnswersDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_answers($1);`, h.embeddingDim)
	if err != nil {
		return helper.NewError("init answers", err)
	}

	h.db.Logger.Info("Checked/created table graded_answers")

	return nil
}

func scanAnswer(row rowScanner, withDistance bool) (*model.ArchivedAnswer, error) {
	answer := &model.ArchivedAnswer{}
	var embedding pgvector.Vector
	dest := []interface{}{
		&answer.ID,
		&answer.RunID,
		&answer.RunRID,
		&answer.AnswerIndex,
		&answer.Content,
		pq.Array(&answer.Keywords),
		&embedding,
		&answer.Mark,
		&answer.BestReference,
		&answer.Similarity,
		&answer.CreatedAt,
	}
	if withDistance {
		dest = append(dest, &answer.Distance)
	}

	err := row.Scan(dest...)
	if err != nil {
		return nil, err
	}
	answer.Embedding = embedding.Slice()

	return answer, nil
}

// InsertAnswer inserts a graded answer of an existing run
func (h *AnswersDBHandler) InsertAnswer(answer *model.ArchivedAnswer) error {
	if len(answer.Embedding) != h.embeddingDim {
		return helper.NewError("embedding dimension validation", fmt.Errorf("expected %d dimensions, got %d", h.embeddingDim, len(answer.Embedding)))
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_answer($1, $2, $3, $4, $5, $6, $7, $8)`,
		answer.RunID,
		answer.AnswerIndex,
		answer.Content,
		pq.Array(answer.Keywords),
		pgvector.NewVector(answer.Embedding),
		answer.Mark,
		answer.BestReference,
		answer.Similarity,
	)

	inserted, err := scanAnswer(row, false)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*answer = *inserted

	return nil
}

// SelectAnswersByRun retrieves the answers of a run in answer order
func (h *AnswersDBHandler) SelectAnswersByRun(runRID uuid.UUID) ([]*model.ArchivedAnswer, error) {
	return h.selectAnswers(false, `SELECT * FROM select_answers_by_run($1)`, runRID)
}

// SelectAnswersBySimilarity retrieves the archived answers closest to embedding by cosine distance
func (h *AnswersDBHandler) SelectAnswersBySimilarity(embedding []float32, limit int) ([]*model.ArchivedAnswer, error) {
	if len(embedding) != h.embeddingDim {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("expected %d dimensions, got %d", h.embeddingDim, len(embedding)))
	}
	return h.selectAnswers(true, `SELECT * FROM select_answers_by_similarity($1, $2)`, pgvector.NewVector(embedding), limit)
}

func (h *AnswersDBHandler) selectAnswers(withDistance bool, query string, args ...interface{}) ([]*model.ArchivedAnswer, error) {
	rows, err := h.db.Instance.Query(query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var answers []*model.ArchivedAnswer
	for rows.Next() {
		answer, err := scanAnswer(rows, withDistance)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		answers = append(answers, answer)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return answers, nil
}
