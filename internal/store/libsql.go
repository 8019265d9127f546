// Package store persists the boundary surfaces on libSQL: the durable
// human task queue and the run archive. Engine state itself stays in
// memory; the archive holds run snapshots.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/awa-io/awa/internal/tasks"
	"github.com/awa-io/awa/pkg/schema"
)

// LibSQLStore is the embedded database. It implements tasks.Queue so a
// deployment can swap the in-memory backlog for a durable one without the
// engine noticing. Writes serialize on a single connection.
type LibSQLStore struct {
	db *sql.DB
}

var _ tasks.Queue = (*LibSQLStore)(nil)

// Open opens (creating if needed) a libSQL database at path, e.g.
// "file:/var/lib/awa/awa.db", and applies connection pragmas. Call
// Migrate before first use.
func Open(path string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", path)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "open libsql").WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Some pragmas return a result row; QueryRow accepts both shapes.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		var result string
		_ = db.QueryRow(pragma).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate applies any pending schema migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Human task queue ---

// Add implements tasks.Queue.
func (s *LibSQLStore) Add(ctx context.Context, task schema.HumanTask) (schema.HumanTask, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = schema.TaskStatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	data, err := nullableJSON(task.Data)
	if err != nil {
		return schema.HumanTask{}, schema.NewError(schema.ErrCodeStore, "marshal task data").WithCause(err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO human_tasks (id, activity_id, workflow_id, token_id, status, assignee_id, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ActivityID, task.WorkflowID, nullStr(task.TokenID),
		task.Status, nullStr(task.AssigneeID), data, task.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return schema.HumanTask{}, schema.NewErrorf(schema.ErrCodeConflict, "task %s already exists", task.ID)
		}
		return schema.HumanTask{}, schema.NewError(schema.ErrCodeStore, "insert task").WithCause(err)
	}
	return task, nil
}

// Get implements tasks.Queue.
func (s *LibSQLStore) Get(ctx context.Context, taskID string) (schema.HumanTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, activity_id, workflow_id, token_id, status, assignee_id, data, result, created_at, completed_at
		 FROM human_tasks WHERE id = ?`, taskID)

	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return schema.HumanTask{}, schema.NewErrorf(schema.ErrCodeNotFound, "task %s not found", taskID)
	}
	if err != nil {
		return schema.HumanTask{}, schema.NewError(schema.ErrCodeStore, "read task").WithCause(err)
	}
	return task, nil
}

// List implements tasks.Queue. Tasks come back in insertion order; an
// empty status returns all.
func (s *LibSQLStore) List(ctx context.Context, status string) ([]schema.HumanTask, error) {
	query := `SELECT id, activity_id, workflow_id, token_id, status, assignee_id, data, result, created_at, completed_at
		 FROM human_tasks`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list tasks").WithCause(err)
	}
	defer rows.Close()

	out := make([]schema.HumanTask, 0)
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "scan task").WithCause(err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Complete implements tasks.Queue. Only pending tasks complete; anything
// else is a conflict.
func (s *LibSQLStore) Complete(ctx context.Context, taskID string, result map[string]any) (schema.HumanTask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.HumanTask{}, schema.NewError(schema.ErrCodeStore, "begin complete").WithCause(err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, activity_id, workflow_id, token_id, status, assignee_id, data, result, created_at, completed_at
		 FROM human_tasks WHERE id = ?`, taskID)
	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return schema.HumanTask{}, schema.NewErrorf(schema.ErrCodeNotFound, "task %s not found", taskID)
	}
	if err != nil {
		return schema.HumanTask{}, schema.NewError(schema.ErrCodeStore, "read task").WithCause(err)
	}
	if task.Status != schema.TaskStatusPending {
		return schema.HumanTask{}, schema.NewErrorf(schema.ErrCodeConflict, "task %s is %s, not pending", taskID, task.Status)
	}

	resultJSON, err := nullableJSON(result)
	if err != nil {
		return schema.HumanTask{}, schema.NewError(schema.ErrCodeStore, "marshal task result").WithCause(err)
	}
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE human_tasks SET status = ?, result = ?, completed_at = ? WHERE id = ?`,
		schema.TaskStatusCompleted, resultJSON, now, taskID,
	); err != nil {
		return schema.HumanTask{}, schema.NewError(schema.ErrCodeStore, "complete task").WithCause(err)
	}
	if err := tx.Commit(); err != nil {
		return schema.HumanTask{}, schema.NewError(schema.ErrCodeStore, "commit complete").WithCause(err)
	}

	task.Status = schema.TaskStatusCompleted
	task.Result = result
	task.CompletedAt = &now
	return task, nil
}

// --- Run archive ---

// SaveRun upserts an archive row keyed by run id. Saving the same run
// again replaces its snapshot; runs that suspend and resume are archived
// once per settle.
func (s *LibSQLStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "marshal run result").WithCause(err)
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, workflow_id, workflow_name, status, result, error, started_at, finished_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   status=excluded.status, result=excluded.result, error=excluded.error,
		   finished_at=excluded.finished_at, updated_at=excluded.updated_at`,
		rec.RunID, rec.WorkflowID, nullStr(rec.WorkflowName), string(rec.Status),
		string(resultJSON), nullStr(rec.Error), rec.StartedAt, nullTime(rec.FinishedAt),
		timeOrNow(rec.CreatedAt), now,
	)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "save run").WithCause(err)
	}
	return nil
}

// GetRun returns one archived run.
func (s *LibSQLStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, workflow_id, workflow_name, status, result, error, started_at, finished_at, created_at, updated_at
		 FROM runs WHERE run_id = ?`, runID)

	rec, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "run %s not found", runID)
	}
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "read run").WithCause(err)
	}
	return rec, nil
}

// ListRuns returns archived runs, newest first.
func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	var where []string
	var args []any
	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT run_id, workflow_id, workflow_name, status, result, error, started_at, finished_at, created_at, updated_at FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list runs").WithCause(err)
	}
	defer rows.Close()

	out := make([]*RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows.Scan)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "scan run").WithCause(err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Scanning and null helpers ---

func scanTask(scan func(dest ...any) error) (schema.HumanTask, error) {
	var task schema.HumanTask
	var tokenID, assigneeID, data, result sql.NullString
	var completedAt sql.NullTime

	if err := scan(&task.ID, &task.ActivityID, &task.WorkflowID, &tokenID, &task.Status,
		&assigneeID, &data, &result, &task.CreatedAt, &completedAt); err != nil {
		return schema.HumanTask{}, err
	}

	task.TokenID = tokenID.String
	task.AssigneeID = assigneeID.String
	if data.Valid && data.String != "" {
		_ = json.Unmarshal([]byte(data.String), &task.Data)
	}
	if result.Valid && result.String != "" {
		_ = json.Unmarshal([]byte(result.String), &task.Result)
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	return task, nil
}

func scanRun(scan func(dest ...any) error) (*RunRecord, error) {
	rec := &RunRecord{}
	var workflowName, errMsg sql.NullString
	var status, resultJSON string
	var finishedAt sql.NullTime

	if err := scan(&rec.RunID, &rec.WorkflowID, &workflowName, &status, &resultJSON,
		&errMsg, &rec.StartedAt, &finishedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	rec.WorkflowName = workflowName.String
	rec.Status = schema.EngineStatus(status)
	rec.Error = errMsg.String
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return nil, err
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
