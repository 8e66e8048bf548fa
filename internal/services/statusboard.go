package services

import (
	"sync"
	"time"

	"github.com/soochol/hookboard/internal/hookboard"
)

// StatusBoard holds the cosmetic display status of each workflow and fans
// out change notifications. Absent workflows are idle. The last transition
// wins; a delayed reset only applies if nothing newer happened since.
type StatusBoard struct {
	mu      sync.Mutex
	entries map[string]boardEntry
	gen     uint64
	subs    []chan struct{} // closed-and-replaced on each change
	timers  map[*time.Timer]struct{}
	closed  bool
}

type boardEntry struct {
	status hookboard.DisplayStatus
	gen    uint64
}

// NewStatusBoard creates an empty board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{
		entries: make(map[string]boardEntry),
		timers:  make(map[*time.Timer]struct{}),
	}
}

// Set records a transition and returns its generation.
func (b *StatusBoard) Set(workflowID string, status hookboard.DisplayStatus) uint64 {
	b.mu.Lock()
	b.gen++
	gen := b.gen
	if status == hookboard.DisplayIdle {
		delete(b.entries, workflowID)
	} else {
		b.entries[workflowID] = boardEntry{status: status, gen: gen}
	}
	subs := b.takeSubsLocked()
	b.mu.Unlock()

	notify(subs)
	return gen
}

// Reset sets the workflow back to idle if gen is still its latest
// transition. It reports whether the reset applied.
func (b *StatusBoard) Reset(workflowID string, gen uint64) bool {
	b.mu.Lock()
	e, ok := b.entries[workflowID]
	if !ok || e.gen != gen {
		b.mu.Unlock()
		return false
	}
	delete(b.entries, workflowID)
	b.gen++
	subs := b.takeSubsLocked()
	b.mu.Unlock()

	notify(subs)
	return true
}

// ResetAfter schedules Reset(workflowID, gen) after delay.
func (b *StatusBoard) ResetAfter(workflowID string, gen uint64, delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		b.mu.Lock()
		delete(b.timers, t)
		b.mu.Unlock()
		b.Reset(workflowID, gen)
	})
	b.timers[t] = struct{}{}
}

// Get returns the display status of a workflow.
func (b *StatusBoard) Get(workflowID string) hookboard.DisplayStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[workflowID]; ok {
		return e.status
	}
	return hookboard.DisplayIdle
}

// Forget drops a deleted workflow from the board.
func (b *StatusBoard) Forget(workflowID string) {
	b.mu.Lock()
	_, ok := b.entries[workflowID]
	delete(b.entries, workflowID)
	var subs []chan struct{}
	if ok {
		b.gen++
		subs = b.takeSubsLocked()
	}
	b.mu.Unlock()
	notify(subs)
}

// Subscribe returns the non-idle statuses, a version number, and a channel
// closed on the next change.
func (b *StatusBoard) Subscribe() (snapshot map[string]hookboard.DisplayStatus, version uint64, changed <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot = make(map[string]hookboard.DisplayStatus, len(b.entries))
	for id, e := range b.entries {
		snapshot[id] = e.status
	}
	ch := make(chan struct{})
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	return snapshot, b.gen, ch
}

// Close stops pending resets and releases subscribers.
func (b *StatusBoard) Close() {
	b.mu.Lock()
	b.closed = true
	for t := range b.timers {
		t.Stop()
	}
	b.timers = map[*time.Timer]struct{}{}
	subs := b.takeSubsLocked()
	b.mu.Unlock()
	notify(subs)
}

func (b *StatusBoard) takeSubsLocked() []chan struct{} {
	subs := b.subs
	b.subs = nil
	return subs
}

func notify(subs []chan struct{}) {
	for _, ch := range subs {
		close(ch)
	}
}

// Closed reports whether Close has been called.
func (b *StatusBoard) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
