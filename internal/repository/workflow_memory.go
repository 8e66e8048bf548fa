package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/soochol/hookboard/internal/hookboard"
	memstore "github.com/soochol/hookboard/internal/repository/memory"
)

// MemoryWorkflowRepository is a thread-safe in-memory WorkflowRepository.
// Values are copied on the way in and out.
type MemoryWorkflowRepository struct {
	store *memstore.Store[*hookboard.Workflow]
}

// NewMemoryWorkflowRepository creates an empty in-memory repository.
func NewMemoryWorkflowRepository() *MemoryWorkflowRepository {
	return &MemoryWorkflowRepository{
		store: memstore.New(func(w *hookboard.Workflow) string { return w.ID }),
	}
}

func (r *MemoryWorkflowRepository) Create(ctx context.Context, wf *hookboard.Workflow) error {
	if err := r.store.Insert(ctx, wf.Clone()); err != nil {
		if errors.Is(err, memstore.ErrExists) {
			return fmt.Errorf("%w: workflow %s", ErrAlreadyExists, wf.ID)
		}
		return err
	}
	return nil
}

func (r *MemoryWorkflowRepository) Get(ctx context.Context, id string) (*hookboard.Workflow, error) {
	wf, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: workflow %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return wf.Clone(), nil
}

func (r *MemoryWorkflowRepository) List(ctx context.Context) ([]*hookboard.Workflow, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*hookboard.Workflow, len(all))
	for i, wf := range all {
		out[i] = wf.Clone()
	}
	return out, nil
}

func (r *MemoryWorkflowRepository) Update(ctx context.Context, wf *hookboard.Workflow) error {
	if err := r.store.Replace(ctx, wf.Clone()); errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("%w: workflow %s", ErrNotFound, wf.ID)
	} else if err != nil {
		return err
	}
	return nil
}

func (r *MemoryWorkflowRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("%w: workflow %s", ErrNotFound, id)
	}
	return nil
}

// put caches a workflow loaded from the database.
func (r *MemoryWorkflowRepository) put(ctx context.Context, wf *hookboard.Workflow) {
	_ = r.store.Set(ctx, wf.Clone())
}
