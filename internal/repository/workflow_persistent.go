package repository

import (
	"context"
	"log/slog"

	"github.com/soochol/hookboard/internal/hookboard"
)

// WorkflowDB defines the DB-layer methods needed by the persistent workflow
// repo. *db.DB satisfies this interface.
type WorkflowDB interface {
	CreateWorkflow(ctx context.Context, wf *hookboard.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*hookboard.Workflow, error)
	ListWorkflows(ctx context.Context) ([]*hookboard.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *hookboard.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
}

// PersistentWorkflowRepository wraps a MemoryWorkflowRepository with a
// PostgreSQL backend. Create and Delete must reach the database, since
// execution rows reference the workflow row. Update failures are logged and
// the in-memory copy stays authoritative.
type PersistentWorkflowRepository struct {
	mem *MemoryWorkflowRepository
	db  WorkflowDB
}

func NewPersistentWorkflowRepository(mem *MemoryWorkflowRepository, db WorkflowDB) *PersistentWorkflowRepository {
	return &PersistentWorkflowRepository{mem: mem, db: db}
}

func (r *PersistentWorkflowRepository) Create(ctx context.Context, wf *hookboard.Workflow) error {
	if err := r.db.CreateWorkflow(ctx, wf); err != nil {
		return err
	}
	return r.mem.Create(ctx, wf)
}

func (r *PersistentWorkflowRepository) Get(ctx context.Context, id string) (*hookboard.Workflow, error) {
	wf, err := r.mem.Get(ctx, id)
	if err == nil {
		return wf, nil
	}

	dbWf, dbErr := r.db.GetWorkflow(ctx, id)
	if dbErr != nil {
		return nil, err // memory ErrNotFound
	}
	r.mem.put(ctx, dbWf)
	return dbWf, nil
}

func (r *PersistentWorkflowRepository) List(ctx context.Context) ([]*hookboard.Workflow, error) {
	list, err := r.db.ListWorkflows(ctx)
	if err == nil {
		return list, nil
	}
	slog.Warn("db list workflows failed, falling back to in-memory", "err", err)
	return r.mem.List(ctx)
}

func (r *PersistentWorkflowRepository) Update(ctx context.Context, wf *hookboard.Workflow) error {
	if err := r.mem.Update(ctx, wf); err != nil {
		// Not cached yet: load through Get so the update lands somewhere.
		if _, getErr := r.Get(ctx, wf.ID); getErr != nil {
			return err
		}
		if err := r.mem.Update(ctx, wf); err != nil {
			return err
		}
	}
	if err := r.db.UpdateWorkflow(ctx, wf); err != nil {
		slog.Warn("db update workflow failed, in-memory only", "workflow_id", wf.ID, "err", err)
	}
	return nil
}

func (r *PersistentWorkflowRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.DeleteWorkflow(ctx, id); err != nil {
		return err
	}
	_ = r.mem.Delete(ctx, id)
	return nil
}
