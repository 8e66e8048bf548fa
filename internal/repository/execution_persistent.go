package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soochol/hookboard/internal/hookboard"
)

// ExecutionDB defines the DB-layer methods needed by the persistent
// execution repo. *db.DB satisfies this interface.
type ExecutionDB interface {
	CreateExecution(ctx context.Context, exec *hookboard.Execution) error
	GetExecution(ctx context.Context, id string) (*hookboard.Execution, error)
	UpdateExecution(ctx context.Context, exec *hookboard.Execution) error
	ListExecutionsByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*hookboard.Execution, int, error)
	ListAllExecutions(ctx context.Context, limit, offset int, status string) ([]*hookboard.Execution, int, error)
	DeleteExecutionsByWorkflow(ctx context.Context, workflowID string) error
}

// PersistentExecutionRepository wraps a MemoryExecutionRepository with a
// PostgreSQL backend. Create fails when the database write fails, so a
// running record is durable before any remote call begins. Update failures
// are logged and the in-memory record stays authoritative.
type PersistentExecutionRepository struct {
	mem *MemoryExecutionRepository
	db  ExecutionDB
}

func NewPersistentExecutionRepository(mem *MemoryExecutionRepository, db ExecutionDB) *PersistentExecutionRepository {
	return &PersistentExecutionRepository{mem: mem, db: db}
}

func (r *PersistentExecutionRepository) Create(ctx context.Context, exec *hookboard.Execution) error {
	if err := r.db.CreateExecution(ctx, exec); err != nil {
		return fmt.Errorf("persist execution: %w", err)
	}
	return r.mem.Create(ctx, exec)
}

func (r *PersistentExecutionRepository) Get(ctx context.Context, id string) (*hookboard.Execution, error) {
	exec, err := r.mem.Get(ctx, id)
	if err == nil {
		return exec, nil
	}

	dbExec, dbErr := r.db.GetExecution(ctx, id)
	if dbErr != nil {
		return nil, err // memory ErrNotFound
	}
	return dbExec, nil
}

func (r *PersistentExecutionRepository) Update(ctx context.Context, exec *hookboard.Execution) error {
	memErr := r.mem.Update(ctx, exec)
	if err := r.db.UpdateExecution(ctx, exec); err != nil {
		slog.Warn("db update execution failed, in-memory only", "execution_id", exec.ID, "err", err)
		return memErr
	}
	// Evicted from memory but durable in the database.
	return nil
}

func (r *PersistentExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*hookboard.Execution, int, error) {
	list, total, err := r.db.ListExecutionsByWorkflow(ctx, workflowID, limit, offset)
	if err == nil {
		return list, total, nil
	}
	slog.Warn("db list executions failed, falling back to in-memory", "err", err)
	return r.mem.ListByWorkflow(ctx, workflowID, limit, offset)
}

func (r *PersistentExecutionRepository) ListAll(ctx context.Context, limit, offset int, status string) ([]*hookboard.Execution, int, error) {
	list, total, err := r.db.ListAllExecutions(ctx, limit, offset, status)
	if err == nil {
		return list, total, nil
	}
	slog.Warn("db list all executions failed, falling back to in-memory", "err", err)
	return r.mem.ListAll(ctx, limit, offset, status)
}

func (r *PersistentExecutionRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	_ = r.mem.DeleteByWorkflow(ctx, workflowID)
	if err := r.db.DeleteExecutionsByWorkflow(ctx, workflowID); err != nil {
		return fmt.Errorf("delete executions: %w", err)
	}
	return nil
}
