package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrBindingBusy reports that another activation currently holds the same
// binding while the lock mode is LockFail.
var ErrBindingBusy = errors.New("binding busy")

// LockMode selects how concurrent activations of the same binding behave.
// The baseline contract assumes cooperative sequential test execution, so
// locking is opt-in hardening rather than a default.
type LockMode string

const (
	// LockOff performs no locking. Concurrent activations of the same
	// binding are unsupported and undefined.
	LockOff LockMode = "off"

	// LockFail makes a second concurrent activation fail immediately with
	// ErrBindingBusy, preserving the immediate-failure semantics of the
	// unlocked contract.
	LockFail LockMode = "fail"

	// LockBlock makes a second concurrent activation wait until the first
	// releases the binding.
	LockBlock LockMode = "block"
)

// ParseLockMode maps a configuration string to a LockMode, defaulting to
// LockOff for anything unrecognized.
func ParseLockMode(value string) LockMode {
	switch LockMode(value) {
	case LockFail:
		return LockFail
	case LockBlock:
		return LockBlock
	default:
		return LockOff
	}
}

// LockTable hands out weight-1 semaphores keyed by (container, field), one
// per unique binding.
type LockTable struct {
	mu   sync.Mutex
	sems map[bindingKey]*semaphore.Weighted
}

// NewLockTable returns an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{sems: make(map[bindingKey]*semaphore.Weighted)}
}

func (t *LockTable) sem(container any, field string) *semaphore.Weighted {
	key := bindingKey{container: container, field: field}

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sems[key]
	if !ok {
		s = semaphore.NewWeighted(1)
		t.sems[key] = s
	}

	return s
}

// Acquire takes the binding's lock according to mode and returns the matching
// release function. The release function is non-nil in every mode, including
// LockOff, so callers can invoke it unconditionally.
func (t *LockTable) Acquire(ctx context.Context, container any, field string, mode LockMode) (func(), error) {
	switch mode {
	case LockFail:
		s := t.sem(container, field)
		if !s.TryAcquire(1) {
			return nil, fmt.Errorf("field %q is held by another activation: %w", field, ErrBindingBusy)
		}

		return func() { s.Release(1) }, nil

	case LockBlock:
		s := t.sem(container, field)
		if err := s.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("waiting for field %q: %w", field, err)
		}

		return func() { s.Release(1) }, nil

	default:
		return func() {}, nil
	}
}
