package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soochol/hookboard/internal/hookboard"
)

const workflowColumns = `id, name, description, target_url, headers, requires_input, input_schema,
	execution_count, success_rate, avg_execution_time_ms, last_run_at, created_at, updated_at`

// CreateWorkflow stores a new workflow. Header values are stored as given;
// encryption happens above this layer.
func (d *DB) CreateWorkflow(ctx context.Context, wf *hookboard.Workflow) error {
	headersJSON, schemaJSON, err := marshalWorkflowJSON(wf)
	if err != nil {
		return err
	}
	_, err = d.Pool.ExecContext(ctx,
		`INSERT INTO workflows (`+workflowColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		wf.ID, wf.Name, wf.Description, wf.TargetURL, headersJSON, wf.RequiresInput, schemaJSON,
		wf.ExecutionCount, wf.SuccessRate, wf.AvgExecutionTimeMs, wf.LastRunAt, wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("workflow %s already exists: %w", wf.ID, err)
		}
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (d *DB) GetWorkflow(ctx context.Context, id string) (*hookboard.Workflow, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow not found: %s: %w", id, ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflows returns all workflows in creation order.
func (d *DB) ListWorkflows(ctx context.Context) ([]*hookboard.Workflow, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var result []*hookboard.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		result = append(result, wf)
	}
	return result, rows.Err()
}

// UpdateWorkflow replaces configuration and statistics of a workflow.
func (d *DB) UpdateWorkflow(ctx context.Context, wf *hookboard.Workflow) error {
	headersJSON, schemaJSON, err := marshalWorkflowJSON(wf)
	if err != nil {
		return err
	}
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE workflows SET name = $1, description = $2, target_url = $3, headers = $4,
		        requires_input = $5, input_schema = $6, execution_count = $7, success_rate = $8,
		        avg_execution_time_ms = $9, last_run_at = $10, updated_at = $11
		 WHERE id = $12`,
		wf.Name, wf.Description, wf.TargetURL, headersJSON, wf.RequiresInput, schemaJSON,
		wf.ExecutionCount, wf.SuccessRate, wf.AvgExecutionTimeMs, wf.LastRunAt, wf.UpdatedAt, wf.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow not found: %s: %w", wf.ID, ErrNoRows)
	}
	return nil
}

// DeleteWorkflow removes a workflow. Its executions go with it through
// ON DELETE CASCADE.
func (d *DB) DeleteWorkflow(ctx context.Context, id string) error {
	if _, err := d.Pool.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(s rowScanner) (*hookboard.Workflow, error) {
	wf := &hookboard.Workflow{}
	var headersJSON, schemaJSON []byte
	var lastRun sql.NullTime
	if err := s.Scan(&wf.ID, &wf.Name, &wf.Description, &wf.TargetURL, &headersJSON, &wf.RequiresInput, &schemaJSON,
		&wf.ExecutionCount, &wf.SuccessRate, &wf.AvgExecutionTimeMs, &lastRun, &wf.CreatedAt, &wf.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastRun.Valid {
		t := lastRun.Time
		wf.LastRunAt = &t
	}
	if err := json.Unmarshal(headersJSON, &wf.Headers); err != nil {
		return nil, fmt.Errorf("unmarshal headers: %w", err)
	}
	if err := json.Unmarshal(schemaJSON, &wf.InputSchema); err != nil {
		return nil, fmt.Errorf("unmarshal input schema: %w", err)
	}
	if len(wf.Headers) == 0 {
		wf.Headers = nil
	}
	return wf, nil
}

func marshalWorkflowJSON(wf *hookboard.Workflow) (headers, schema []byte, err error) {
	h := wf.Headers
	if h == nil {
		h = map[string]string{}
	}
	if headers, err = json.Marshal(h); err != nil {
		return nil, nil, fmt.Errorf("marshal headers: %w", err)
	}
	s := wf.InputSchema
	if s == nil {
		s = []hookboard.InputField{}
	}
	if schema, err = json.Marshal(s); err != nil {
		return nil, nil, fmt.Errorf("marshal input schema: %w", err)
	}
	return headers, schema, nil
}
