package services

import (
	"context"
	"sync"
	"sync/atomic"
)

// ConcurrencyLimits bounds in-flight trigger calls.
type ConcurrencyLimits struct {
	GlobalMax   int
	PerWorkflow int
}

// semaphore is a counting semaphore over a buffered channel.
type semaphore chan struct{}

func (s semaphore) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release frees one slot; it is a no-op on an empty semaphore.
func (s semaphore) release() {
	select {
	case <-s:
	default:
	}
}

// ConcurrencyLimiter caps remote trigger calls both service-wide and per
// workflow. A trigger waiting here already has its running execution.
type ConcurrencyLimiter struct {
	limits ConcurrencyLimits
	total  semaphore

	mu    sync.Mutex
	lanes map[string]semaphore // per workflow, created on first use

	inFlight atomic.Int64
	queued   atomic.Int64
}

// NewConcurrencyLimiter creates a limiter. Zero limits default to 10 calls
// overall and 3 per workflow.
func NewConcurrencyLimiter(limits ConcurrencyLimits) *ConcurrencyLimiter {
	if limits.GlobalMax <= 0 {
		limits.GlobalMax = 10
	}
	if limits.PerWorkflow <= 0 {
		limits.PerWorkflow = 3
	}
	return &ConcurrencyLimiter{
		limits: limits,
		total:  make(semaphore, limits.GlobalMax),
		lanes:  make(map[string]semaphore),
	}
}

// Acquire takes a service-wide slot, then a slot in the workflow's lane.
// On cancellation nothing stays held.
func (c *ConcurrencyLimiter) Acquire(ctx context.Context, workflowID string) error {
	c.queued.Add(1)
	defer c.queued.Add(-1)

	if err := c.total.acquire(ctx); err != nil {
		return err
	}
	if err := c.lane(workflowID).acquire(ctx); err != nil {
		c.total.release()
		return err
	}
	c.inFlight.Add(1)
	return nil
}

// Release gives back the slots taken by a successful Acquire.
func (c *ConcurrencyLimiter) Release(workflowID string) {
	c.inFlight.Add(-1)
	c.mu.Lock()
	lane, ok := c.lanes[workflowID]
	c.mu.Unlock()
	if ok {
		lane.release()
	}
	c.total.release()
}

// Forget drops the lane of a deleted workflow once nothing holds it.
func (c *ConcurrencyLimiter) Forget(workflowID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lane, ok := c.lanes[workflowID]; ok && len(lane) == 0 {
		delete(c.lanes, workflowID)
	}
}

// ConcurrencyStats is served at /api/stats.
type ConcurrencyStats struct {
	Active      int `json:"active"`
	Waiting     int `json:"waiting"`
	GlobalMax   int `json:"global_max"`
	PerWorkflow int `json:"per_workflow"`
}

func (c *ConcurrencyLimiter) Stats() ConcurrencyStats {
	return ConcurrencyStats{
		Active:      int(c.inFlight.Load()),
		Waiting:     int(c.queued.Load()),
		GlobalMax:   c.limits.GlobalMax,
		PerWorkflow: c.limits.PerWorkflow,
	}
}

func (c *ConcurrencyLimiter) lane(workflowID string) semaphore {
	c.mu.Lock()
	defer c.mu.Unlock()
	lane, ok := c.lanes[workflowID]
	if !ok {
		lane = make(semaphore, c.limits.PerWorkflow)
		c.lanes[workflowID] = lane
	}
	return lane
}
