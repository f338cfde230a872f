package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/guildai/guildflow/pkg/schema"
)

// LibSQLArchive implements Archive on libSQL (embedded SQLite fork).
type LibSQLArchive struct {
	db *sql.DB
}

// NewLibSQLArchive opens a libSQL database at the given path. The path
// should be a file URI, e.g. "file:/path/to/guildflow.db".
func NewLibSQLArchive(dbPath string) (*LibSQLArchive, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLArchive{db: db}, nil
}

// Close closes the database.
func (a *LibSQLArchive) Close() error { return a.db.Close() }

// Migrate brings the archive schema up to date.
func (a *LibSQLArchive) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, a.db)
}

func (a *LibSQLArchive) SaveExecution(ctx context.Context, exec *schema.Execution) error {
	if exec == nil || exec.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "execution is nil or has no id")
	}

	logJSON, err := json.Marshal(exec.Log)
	if err != nil {
		return fmt.Errorf("marshal execution log: %w", err)
	}
	inputsJSON, err := marshalMapOrDefault(exec.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	outputsJSON, err := marshalMapOrDefault(exec.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO executions (id, workflow_id, status, started_at, completed_at, current_node_id, log, inputs, outputs, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, completed_at=excluded.completed_at,
		   current_node_id=excluded.current_node_id, log=excluded.log,
		   outputs=excluded.outputs, error=excluded.error`,
		exec.ID, exec.WorkflowID, string(exec.Status), exec.StartedAt.UTC(),
		nullTime(exec.CompletedAt), nullStr(exec.CurrentNodeID),
		string(logJSON), string(inputsJSON), string(outputsJSON), nullStr(exec.Error),
	)
	return err
}

func (a *LibSQLArchive) GetExecution(ctx context.Context, id string) (*schema.Execution, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, started_at, completed_at, current_node_id, log, inputs, outputs, error
		 FROM executions WHERE id = ?`, id)

	exec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution %s not found in archive", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "load execution %s: %s", id, err.Error()).WithCause(err)
	}
	return exec, nil
}

func (a *LibSQLArchive) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*schema.Execution, error) {
	query := `SELECT id, workflow_id, status, started_at, completed_at, current_node_id, log, inputs, outputs, error
	          FROM executions`
	var conds []string
	var args []any
	if filter.WorkflowID != "" {
		conds = append(conds, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list executions: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var out []*schema.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan execution: %s", err.Error()).WithCause(err)
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

func (a *LibSQLArchive) AppendRunEvent(ctx context.Context, event *RunEvent) error {
	if event == nil || event.ExecutionID == "" {
		return schema.NewError(schema.ErrCodeValidation, "run event is nil or has no execution id")
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO run_events (execution_id, workflow_id, node_id, type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ExecutionID, event.WorkflowID, nullStr(event.NodeID),
		event.Type, nullRaw(event.Payload), createdAt,
	)
	return err
}

func (a *LibSQLArchive) GetRunEvents(ctx context.Context, executionID string) ([]*RunEvent, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, execution_id, workflow_id, node_id, type, payload, created_at
		 FROM run_events WHERE execution_id = ? ORDER BY id ASC`, executionID)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list run events: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var out []*RunEvent
	for rows.Next() {
		ev := &RunEvent{}
		var nodeID, payload sql.NullString
		if err := rows.Scan(&ev.ID, &ev.ExecutionID, &ev.WorkflowID, &nodeID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan run event: %s", err.Error()).WithCause(err)
		}
		if nodeID.Valid {
			ev.NodeID = nodeID.String
		}
		if payload.Valid {
			ev.Payload = json.RawMessage(payload.String)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (a *LibSQLArchive) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	terminal := []any{
		string(schema.ExecutionStatusCompleted),
		string(schema.ExecutionStatusFailed),
		string(schema.ExecutionStatusCancelled),
	}
	args := append([]any{}, terminal...)
	args = append(args, cutoff.UTC())

	// Events first so the purge never leaves orphans.
	if _, err := a.db.ExecContext(ctx,
		`DELETE FROM run_events WHERE execution_id IN (
		   SELECT id FROM executions WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?
		 )`, args...); err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeStore, "purge run events: %s", err.Error()).WithCause(err)
	}

	res, err := a.db.ExecContext(ctx,
		`DELETE FROM executions WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		args...)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeStore, "purge executions: %s", err.Error()).WithCause(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*schema.Execution, error) {
	exec := &schema.Execution{}
	var (
		status                       string
		completedAt                  sql.NullTime
		currentNodeID, execErr       sql.NullString
		logJSON, inputsJSON, outJSON string
	)
	if err := row.Scan(&exec.ID, &exec.WorkflowID, &status, &exec.StartedAt,
		&completedAt, &currentNodeID, &logJSON, &inputsJSON, &outJSON, &execErr); err != nil {
		return nil, err
	}
	exec.Status = schema.ExecutionStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		exec.CompletedAt = &t
	}
	if currentNodeID.Valid {
		exec.CurrentNodeID = currentNodeID.String
	}
	if execErr.Valid {
		exec.Error = execErr.String
	}
	if err := json.Unmarshal([]byte(logJSON), &exec.Log); err != nil {
		return nil, fmt.Errorf("unmarshal log: %w", err)
	}
	if err := json.Unmarshal([]byte(inputsJSON), &exec.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(outJSON), &exec.Outputs); err != nil {
		return nil, fmt.Errorf("unmarshal outputs: %w", err)
	}
	return exec, nil
}

func marshalMapOrDefault(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
