package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/grader/helper"
	"github.com/siherrmann/grader/model"
	"github.com/siherrmann/grader/sql"
)

// RunsDBHandlerFunctions defines the interface for grading run database operations.
type RunsDBHandlerFunctions interface {
	InsertRun(run *model.GradingRun) error
	SelectRun(rid uuid.UUID) (*model.GradingRun, error)
	SelectAllRuns(lastCreatedAt *time.Time, limit int) ([]*model.GradingRun, error)
	SelectRunsByStudent(student string, limit int) ([]*model.GradingRun, error)
	DeleteRun(rid uuid.UUID) error
}

// RunsDBHandler handles grading run related database operations
type RunsDBHandler struct {
	db *helper.Database
}

// NewRunsDBHandler creates a new grading runs database handler.
// It loads the run related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRunsDBHandler(db *helper.Database, force bool) (*RunsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	runsDbHandler := &RunsDBHandler{
		db: db,
	}

	err := sql.LoadRunsSql(runsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load runs sql", err)
	}

	err = runsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RunsDBHandler")

	return runsDbHandler, nil
}

// CreateTable creates the 'grading_runs' table and its indexes if they don't exist.
func (h *RunsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_runs();`)
	if err != nil {
		return helper.NewError("init runs", err)
	}

	h.db.Logger.Info("Checked/created table grading_runs")

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.GradingRun, error) {
	run := &model.GradingRun{}
	err := row.Scan(
		&run.ID,
		&run.RID,
		&run.Student,
		&run.ReferencePath,
		&run.MaxMarks,
		&run.Total,
		&run.Metadata,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// InsertRun inserts a new grading run and fills in its generated fields
func (h *RunsDBHandler) InsertRun(run *model.GradingRun) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_run($1, $2, $3, $4, $5)`,
		run.Student,
		run.ReferencePath,
		run.MaxMarks,
		run.Total,
		run.Metadata,
	)

	inserted, err := scanRun(row)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*run = *inserted

	return nil
}

// SelectRun retrieves a grading run by RID
func (h *RunsDBHandler) SelectRun(rid uuid.UUID) (*model.GradingRun, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_run($1)`,
		rid,
	)

	run, err := scanRun(row)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return run, nil
}

// SelectAllRuns retrieves grading runs newest first, paginated by creation time
func (h *RunsDBHandler) SelectAllRuns(lastCreatedAt *time.Time, limit int) ([]*model.GradingRun, error) {
	return h.selectRuns(`SELECT * FROM select_all_runs($1, $2)`, lastCreatedAt, limit)
}

// SelectRunsByStudent retrieves the grading runs of one student newest first
func (h *RunsDBHandler) SelectRunsByStudent(student string, limit int) ([]*model.GradingRun, error) {
	return h.selectRuns(`SELECT * FROM select_runs_by_student($1, $2)`, student, limit)
}

func (h *RunsDBHandler) selectRuns(query string, args ...interface{}) ([]*model.GradingRun, error) {
	rows, err := h.db.Instance.Query(query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var runs []*model.GradingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return runs, nil
}

// DeleteRun deletes a grading run and its answers by RID
func (h *RunsDBHandler) DeleteRun(rid uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_run($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
