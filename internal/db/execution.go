package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soochol/hookboard/internal/hookboard"
)

const executionColumns = `id, workflow_id, workflow_name, status, params, start_time, end_time,
	duration_ms, result, error, error_kind`

// CreateExecution stores a new execution record.
func (d *DB) CreateExecution(ctx context.Context, e *hookboard.Execution) error {
	paramsJSON, err := nullableJSON(e.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	resultJSON, err := nullableJSON(e.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`INSERT INTO workflow_executions (`+executionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.WorkflowID, e.WorkflowName, string(e.Status), paramsJSON, e.StartTime, e.EndTime,
		e.DurationMs, resultJSON, e.Error, e.ErrorKind,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (d *DB) GetExecution(ctx context.Context, id string) (*hookboard.Execution, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions WHERE id = $1`, id)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution not found: %s: %w", id, ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

// UpdateExecution writes the terminal fields of an execution.
func (d *DB) UpdateExecution(ctx context.Context, e *hookboard.Execution) error {
	resultJSON, err := nullableJSON(e.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = d.Pool.ExecContext(ctx,
		`UPDATE workflow_executions SET status = $1, end_time = $2, duration_ms = $3, result = $4, error = $5, error_kind = $6
		 WHERE id = $7`,
		string(e.Status), e.EndTime, e.DurationMs, resultJSON, e.Error, e.ErrorKind, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	return nil
}

// ListExecutionsByWorkflow returns a workflow's executions, most recent
// first. limit <= 0 returns all.
func (d *DB) ListExecutionsByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*hookboard.Execution, int, error) {
	var total int
	if err := d.Pool.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflow_executions WHERE workflow_id = $1`, workflowID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions WHERE workflow_id = $1
		 ORDER BY start_time DESC, seq DESC LIMIT $2 OFFSET $3`,
		workflowID, sqlLimit(limit), offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows, total)
}

// ListAllExecutions returns executions across workflows, most recent first,
// optionally filtered by status.
func (d *DB) ListAllExecutions(ctx context.Context, limit, offset int, status string) ([]*hookboard.Execution, int, error) {
	var total int
	if err := d.Pool.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workflow_executions WHERE ($1 = '' OR status = $1)`, status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM workflow_executions WHERE ($1 = '' OR status = $1)
		 ORDER BY start_time DESC, seq DESC LIMIT $2 OFFSET $3`,
		status, sqlLimit(limit), offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows, total)
}

// DeleteExecutionsByWorkflow removes every execution of a workflow.
func (d *DB) DeleteExecutionsByWorkflow(ctx context.Context, workflowID string) error {
	if _, err := d.Pool.ExecContext(ctx,
		`DELETE FROM workflow_executions WHERE workflow_id = $1`, workflowID); err != nil {
		return fmt.Errorf("delete executions: %w", err)
	}
	return nil
}

func scanExecutions(rows *sql.Rows, total int) ([]*hookboard.Execution, int, error) {
	var result []*hookboard.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan execution: %w", err)
		}
		result = append(result, e)
	}
	return result, total, rows.Err()
}

func scanExecution(s rowScanner) (*hookboard.Execution, error) {
	e := &hookboard.Execution{}
	var status string
	var paramsJSON, resultJSON []byte
	var endTime sql.NullTime
	var duration sql.NullInt64
	var errMsg sql.NullString
	if err := s.Scan(&e.ID, &e.WorkflowID, &e.WorkflowName, &status, &paramsJSON, &e.StartTime, &endTime,
		&duration, &resultJSON, &errMsg, &e.ErrorKind,
	); err != nil {
		return nil, err
	}
	e.Status = hookboard.ExecutionStatus(status)
	if endTime.Valid {
		t := endTime.Time
		e.EndTime = &t
	}
	if duration.Valid {
		d := duration.Int64
		e.DurationMs = &d
	}
	if errMsg.Valid {
		msg := errMsg.String
		e.Error = &msg
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &e.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &e.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return e, nil
}

// nullableJSON encodes v, mapping nil to SQL NULL. lib/pq rejects a nil
// []byte for JSONB.
func nullableJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// sqlLimit maps "no limit" to NULL, which PostgreSQL treats as LIMIT ALL.
func sqlLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
