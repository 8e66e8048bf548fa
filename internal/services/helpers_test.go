package services

import (
	"context"
	"sync"
	"testing"

	"github.com/soochol/hookboard/internal/crypto"
	"github.com/soochol/hookboard/internal/hookboard"
	"github.com/soochol/hookboard/internal/repository"
	"github.com/soochol/hookboard/internal/webhook"
)

// fakeInvoker returns canned outcomes and records what it was called with.
type fakeInvoker struct {
	mu        sync.Mutex
	calls     int
	headers   []map[string]string
	outcome   webhook.Outcome
	reachable bool
	testErr   error
	gate      chan struct{} // when set, Trigger blocks until closed
}

func (f *fakeInvoker) Trigger(_ context.Context, wf *hookboard.Workflow, _ map[string]any) webhook.Outcome {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.headers = append(f.headers, wf.Headers)
	return f.outcome
}

func (f *fakeInvoker) TestConnection(_ context.Context, wf *hookboard.Workflow) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.headers = append(f.headers, wf.Headers)
	return f.reachable, f.testErr
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	workflows *WorkflowService
	execs     *repository.MemoryExecutionRepository
	repo      *repository.MemoryWorkflowRepository
	enc       *crypto.Encryptor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := crypto.ParseKey("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	if err != nil {
		t.Fatal(err)
	}
	enc, err := crypto.NewEncryptor(key)
	if err != nil {
		t.Fatal(err)
	}
	repo := repository.NewMemoryWorkflowRepository()
	execs := repository.NewMemoryExecutionRepository(0)
	return &fixture{
		workflows: NewWorkflowService(repo, execs, enc),
		execs:     execs,
		repo:      repo,
		enc:       enc,
	}
}

func (f *fixture) create(t *testing.T, name, url string) *hookboard.Workflow {
	t.Helper()
	wf, err := f.workflows.Create(context.Background(), &hookboard.Workflow{Name: name, TargetURL: url})
	if err != nil {
		t.Fatalf("create workflow: %v", err)
	}
	return wf
}
