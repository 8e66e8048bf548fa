package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/soochol/hookboard/internal/crypto"
	"github.com/soochol/hookboard/internal/hookboard"
	"github.com/soochol/hookboard/internal/repository"
)

// ErrInvalidWorkflow is wrapped by validation failures of workflow input.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// WorkflowService handles workflow configuration. Header values are sealed
// before they reach the repository and opened only by Resolve.
type WorkflowService struct {
	repo     repository.WorkflowRepository
	execs    repository.ExecutionRepository
	enc      *crypto.Encryptor
	locks    *KeyedMutex
	onDelete []func(id string)
	now      func() time.Time
}

// NewWorkflowService creates a WorkflowService. A nil encryptor stores
// header values as given.
func NewWorkflowService(repo repository.WorkflowRepository, execs repository.ExecutionRepository, enc *crypto.Encryptor) *WorkflowService {
	if enc == nil {
		enc, _ = crypto.NewEncryptor(nil)
	}
	return &WorkflowService{
		repo:  repo,
		execs: execs,
		enc:   enc,
		locks: NewKeyedMutex(),
		now:   time.Now,
	}
}

// OnDelete registers a callback run after a workflow is deleted.
func (s *WorkflowService) OnDelete(fn func(id string)) {
	s.onDelete = append(s.onDelete, fn)
}

// Create validates and stores a new workflow with zeroed statistics.
func (s *WorkflowService) Create(ctx context.Context, wf *hookboard.Workflow) (*hookboard.Workflow, error) {
	if err := validateWorkflow(wf); err != nil {
		return nil, err
	}
	wf = wf.Clone()
	if wf.ID == "" {
		wf.ID = hookboard.GenerateID("wf")
	}
	now := s.now()
	wf.CreatedAt, wf.UpdatedAt = now, now
	wf.ExecutionCount = 0
	wf.SuccessRate = hookboard.DefaultSuccessRate
	wf.AvgExecutionTimeMs = 0
	wf.LastRunAt = nil

	sealed, err := s.enc.SealMap(wf.Headers)
	if err != nil {
		return nil, fmt.Errorf("seal headers: %w", err)
	}
	wf.Headers = sealed

	if err := s.repo.Create(ctx, wf); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	slog.Info("workflow created", "workflow_id", wf.ID, "name", wf.Name)
	return wf, nil
}

// Get returns a stored workflow. Header values stay sealed.
func (s *WorkflowService) Get(ctx context.Context, id string) (*hookboard.Workflow, error) {
	return s.repo.Get(ctx, id)
}

// List returns all workflows. Header values stay sealed.
func (s *WorkflowService) List(ctx context.Context) ([]*hookboard.Workflow, error) {
	return s.repo.List(ctx)
}

// Resolve returns a workflow with header values opened, for the trigger path.
func (s *WorkflowService) Resolve(ctx context.Context, id string) (*hookboard.Workflow, error) {
	wf, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	headers, err := s.enc.OpenMap(wf.Headers)
	if err != nil {
		return nil, fmt.Errorf("open headers of %s: %w", id, err)
	}
	wf.Headers = headers
	return wf, nil
}

// Update replaces the configuration fields of a workflow. Statistics are
// carried over from the stored record. A nil Headers map keeps the stored
// headers; a non-nil one replaces them.
func (s *WorkflowService) Update(ctx context.Context, wf *hookboard.Workflow) (*hookboard.Workflow, error) {
	if err := validateWorkflow(wf); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(wf.ID)
	defer unlock()

	stored, err := s.repo.Get(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	stored.Name = wf.Name
	stored.Description = wf.Description
	stored.TargetURL = wf.TargetURL
	stored.RequiresInput = wf.RequiresInput
	stored.InputSchema = append([]hookboard.InputField(nil), wf.InputSchema...)
	if wf.Headers != nil {
		sealed, err := s.enc.SealMap(wf.Headers)
		if err != nil {
			return nil, fmt.Errorf("seal headers: %w", err)
		}
		stored.Headers = sealed
	}
	stored.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, stored); err != nil {
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	return stored, nil
}

// RecordExecution folds a completed execution into the workflow's
// statistics. The read-modify-write runs under the workflow's lock so
// concurrent completions never lose an update.
func (s *WorkflowService) RecordExecution(ctx context.Context, exec *hookboard.Execution) (*hookboard.Workflow, error) {
	unlock := s.locks.Lock(exec.WorkflowID)
	defer unlock()

	wf, err := s.repo.Get(ctx, exec.WorkflowID)
	if err != nil {
		return nil, err
	}
	updated := ApplyExecution(wf, exec)
	updated.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("update workflow stats: %w", err)
	}
	return updated, nil
}

// OpenExecution stores a running execution for its workflow. It holds the
// workflow's lock and re-checks that the workflow still exists, so an
// execution can never be created after Delete has cascaded.
func (s *WorkflowService) OpenExecution(ctx context.Context, exec *hookboard.Execution) error {
	unlock := s.locks.Lock(exec.WorkflowID)
	defer unlock()

	if _, err := s.repo.Get(ctx, exec.WorkflowID); err != nil {
		return err
	}
	return s.execs.Create(ctx, exec)
}

// Delete removes a workflow and all of its executions.
func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.execs.DeleteByWorkflow(ctx, id); err != nil {
		return fmt.Errorf("delete executions of %s: %w", id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	for _, fn := range s.onDelete {
		fn(id)
	}
	slog.Info("workflow deleted", "workflow_id", id)
	return nil
}

func validateWorkflow(wf *hookboard.Workflow) error {
	if strings.TrimSpace(wf.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}
	if err := ValidateTargetURL(wf.TargetURL); err != nil {
		return err
	}
	for k := range wf.Headers {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: header names must not be empty", ErrInvalidWorkflow)
		}
	}
	return nil
}

// ValidateTargetURL accepts an empty URL (not configured) or an absolute
// http/https URL with a host.
func ValidateTargetURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: target_url: %v", ErrInvalidWorkflow, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: target_url must use http or https", ErrInvalidWorkflow)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: target_url must include a host", ErrInvalidWorkflow)
	}
	return nil
}
