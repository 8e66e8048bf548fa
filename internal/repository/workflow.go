package repository

import (
	"context"

	"github.com/soochol/hookboard/internal/hookboard"
)

// WorkflowRepository abstracts workflow persistence so callers don't
// need to know whether storage is in-memory, PostgreSQL, or a mix.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *hookboard.Workflow) error
	Get(ctx context.Context, id string) (*hookboard.Workflow, error)
	List(ctx context.Context) ([]*hookboard.Workflow, error)
	Update(ctx context.Context, wf *hookboard.Workflow) error
	Delete(ctx context.Context, id string) error
}
