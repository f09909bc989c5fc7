package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrAttemptNotFound   = errors.New("checkout attempt not found")
	ErrAttemptInProgress = errors.New("checkout attempt already running")
)

type trackedAttempt struct {
	snapshot CheckoutAttempt
	changed  chan struct{} // closed and replaced on every update
}

// AttemptTracker keeps the latest snapshot of every checkout attempt so the
// HTTP layer can poll, wait on, and resolve attempts running in the background.
type AttemptTracker struct {
	mu       sync.Mutex
	attempts map[string]*trackedAttempt
	now      func() time.Time
}

func NewAttemptTracker() *AttemptTracker {
	return &AttemptTracker{
		attempts: make(map[string]*trackedAttempt),
		now:      time.Now,
	}
}

// Begin registers an attempt before its goroutine starts
func (t *AttemptTracker) Begin(id string, userID uint, session string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.attempts[id]; ok && !existing.snapshot.Finished {
		return ErrAttemptInProgress
	}
	now := t.now().UTC()
	t.attempts[id] = &trackedAttempt{
		snapshot: CheckoutAttempt{
			ID:        id,
			UserID:    userID,
			Session:   session,
			State:     StateCollectingDetails,
			StartedAt: now,
			UpdatedAt: now,
		},
		changed: make(chan struct{}),
	}
	return nil
}

// OnStateChange implements CheckoutObserver
func (t *AttemptTracker) OnStateChange(attempt CheckoutAttempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.attempts[attempt.ID]
	if !ok {
		tracked = &trackedAttempt{changed: make(chan struct{})}
		t.attempts[attempt.ID] = tracked
	}
	tracked.snapshot = attempt
	close(tracked.changed)
	tracked.changed = make(chan struct{})
}

// Get returns the latest snapshot
func (t *AttemptTracker) Get(id string) (CheckoutAttempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.attempts[id]
	if !ok {
		return CheckoutAttempt{}, ErrAttemptNotFound
	}
	return tracked.snapshot, nil
}

// WaitFor blocks until ready reports true for the attempt's snapshot or ctx
// ends. On ctx end the latest snapshot is returned with ctx's error.
func (t *AttemptTracker) WaitFor(ctx context.Context, id string, ready func(CheckoutAttempt) bool) (CheckoutAttempt, error) {
	for {
		t.mu.Lock()
		tracked, ok := t.attempts[id]
		if !ok {
			t.mu.Unlock()
			return CheckoutAttempt{}, ErrAttemptNotFound
		}
		snapshot, changed := tracked.snapshot, tracked.changed
		t.mu.Unlock()

		if ready(snapshot) {
			return snapshot, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snapshot, ctx.Err()
		}
	}
}

// AwaitingInput is ready once the attempt needs the shopper or has ended
func AwaitingInput(a CheckoutAttempt) bool {
	return a.Finished || a.State == StateAwaitingPayment
}

// Done is ready once the attempt has ended
func Done(a CheckoutAttempt) bool {
	return a.Finished
}

// Prune drops finished attempts last updated before the cutoff
func (t *AttemptTracker) Prune(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().UTC().Add(-olderThan)
	removed := 0
	for id, tracked := range t.attempts {
		if tracked.snapshot.Finished && tracked.snapshot.UpdatedAt.Before(cutoff) {
			delete(t.attempts, id)
			removed++
		}
	}
	return removed
}

func (t *AttemptTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}
