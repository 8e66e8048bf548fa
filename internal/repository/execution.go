package repository

import (
	"context"

	"github.com/soochol/hookboard/internal/hookboard"
)

// ExecutionRepository stores execution records. Lists are most recent
// first. Distinct IDs may be created and updated concurrently.
type ExecutionRepository interface {
	Create(ctx context.Context, exec *hookboard.Execution) error
	Get(ctx context.Context, id string) (*hookboard.Execution, error)
	Update(ctx context.Context, exec *hookboard.Execution) error
	ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*hookboard.Execution, int, error)
	// ListAll returns all executions. status filters by execution status when non-empty ("" = all).
	ListAll(ctx context.Context, limit, offset int, status string) ([]*hookboard.Execution, int, error)
	DeleteByWorkflow(ctx context.Context, workflowID string) error
}
