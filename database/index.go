package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/grader/helper"
)

// VectorIndexOptions configures the vector index of the archived answers.
// Zero values use the pgvector defaults.
type VectorIndexOptions struct {
	M              int // HNSW, default 16
	EfConstruction int // HNSW, default 64
	Lists          int // IVFFlat, default 100
}

// ChangeIndexType rebuilds the embedding index of graded_answers as "hnsw" or "ivfflat".
// IVFFlat builds its lists from the rows present, so it should be created after archiving some runs.
func (h *AnswersDBHandler) ChangeIndexType(ctx context.Context, indexType string, opts VectorIndexOptions) error {
	var createIndexSQL string

	switch indexType {
	case "hnsw":
		m := 16
		if opts.M > 0 {
			m = opts.M
		}
		efConstruction := 64
		if opts.EfConstruction > 0 {
			efConstruction = opts.EfConstruction
		}
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_graded_answers_embedding ON graded_answers USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		)
	case "ivfflat":
		lists := 100
		if opts.Lists > 0 {
			lists = opts.Lists
		}
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_graded_answers_embedding ON graded_answers USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		)
	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_graded_answers_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	h.db.Logger.Info("Changed vector index of graded answers", "type", indexType, "m", opts.M, "ef_construction", opts.EfConstruction, "lists", opts.Lists)

	return nil
}
