package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/soochol/hookboard/internal/hookboard"
	memstore "github.com/soochol/hookboard/internal/repository/memory"
)

// DefaultMaxExecutions bounds the in-memory execution history.
const DefaultMaxExecutions = 1000

// MemoryExecutionRepository stores executions in memory with FIFO eviction
// of completed executions. Running executions are never evicted, so their
// completion always finds the record.
type MemoryExecutionRepository struct {
	store *memstore.Store[*hookboard.Execution]
}

// NewMemoryExecutionRepository keeps at most limit executions; limit <= 0 uses
// DefaultMaxExecutions.
func NewMemoryExecutionRepository(limit int) *MemoryExecutionRepository {
	if limit <= 0 {
		limit = DefaultMaxExecutions
	}
	return &MemoryExecutionRepository{
		store: memstore.NewBoundedFunc(
			func(e *hookboard.Execution) string { return e.ID },
			limit,
			func(e *hookboard.Execution) bool { return e.Status.Terminal() },
		),
	}
}

func (r *MemoryExecutionRepository) Create(ctx context.Context, exec *hookboard.Execution) error {
	if err := r.store.Insert(ctx, exec.Clone()); errors.Is(err, memstore.ErrExists) {
		return fmt.Errorf("%w: execution %s", ErrAlreadyExists, exec.ID)
	} else if err != nil {
		return err
	}
	return nil
}

func (r *MemoryExecutionRepository) Get(ctx context.Context, id string) (*hookboard.Execution, error) {
	exec, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: execution %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return exec.Clone(), nil
}

func (r *MemoryExecutionRepository) Update(ctx context.Context, exec *hookboard.Execution) error {
	if err := r.store.Replace(ctx, exec.Clone()); errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("%w: execution %s", ErrNotFound, exec.ID)
	} else if err != nil {
		return err
	}
	return nil
}

func (r *MemoryExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, limit, offset int) ([]*hookboard.Execution, int, error) {
	return r.list(ctx, limit, offset, func(e *hookboard.Execution) bool {
		return e.WorkflowID == workflowID
	})
}

func (r *MemoryExecutionRepository) ListAll(ctx context.Context, limit, offset int, status string) ([]*hookboard.Execution, int, error) {
	return r.list(ctx, limit, offset, func(e *hookboard.Execution) bool {
		return status == "" || string(e.Status) == status
	})
}

func (r *MemoryExecutionRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	r.store.DeleteWhere(ctx, func(e *hookboard.Execution) bool { return e.WorkflowID == workflowID })
	return nil
}

func (r *MemoryExecutionRepository) list(ctx context.Context, limit, offset int, pred func(*hookboard.Execution) bool) ([]*hookboard.Execution, int, error) {
	filtered, err := r.store.Filter(ctx, pred)
	if err != nil {
		return nil, 0, err
	}
	// Newest insertion first, then a stable sort on start time.
	slices.Reverse(filtered)
	slices.SortStableFunc(filtered, func(a, b *hookboard.Execution) int {
		return b.StartTime.Compare(a.StartTime)
	})

	items, total := page(filtered, limit, offset)
	out := make([]*hookboard.Execution, len(items))
	for i, e := range items {
		out[i] = e.Clone()
	}
	return out, total, nil
}
