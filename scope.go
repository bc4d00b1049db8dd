package rebind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"gooze.dev/pkg/rebind/internal/access"
)

// sharedLocks serializes activations per unique binding when a lock mode is
// enabled. One table for the whole process, because the bindings themselves
// are process-wide state.
var sharedLocks = access.NewLockTable()

// Scope owns the substitution lifecycle for one binding: Enter captures the
// original value and installs the substitute, Exit writes the original back.
// A Scope is built once per fixture and entered/exited once per test unit; it
// holds no binding state between an Exit and the next Enter.
//
// A Scope instance is not safe for concurrent use. Concurrent activations of
// the same binding from different scopes are unsupported unless a lock mode
// is configured; see the package documentation.
type Scope struct {
	target   Target
	doubler  Doubler
	accessor access.Accessor

	substitute any

	open         bool
	original     any
	release      func()
	activationID string
}

// New resolves the binding identified by container and field, builds the
// substitute once via doubler, and returns a reusable Scope. The binding
// itself is not touched until Enter.
//
// Resolution failures (ErrBindingNotFound, ErrAccessDenied) and a substitute
// that is not assignable to the binding's declared type (ErrInvalidType) are
// construction-time errors: they surface before any binding mutation.
func New(container any, field string, doubler Doubler) (*Scope, error) {
	s := &Scope{
		target:   Target{Container: container, Field: field},
		doubler:  doubler,
		accessor: access.NewAccessor(),
	}

	declared, err := s.accessor.DeclaredType(container, field)
	if err != nil {
		return nil, fmt.Errorf("resolving binding %s: %w", s.target, err)
	}

	if doubler == nil {
		return nil, fmt.Errorf("scope for %s: doubler is nil", s.target)
	}

	double, err := doubler.NewDouble()
	if err != nil {
		return nil, fmt.Errorf("building substitute for %s: %w", s.target, err)
	}

	if double == nil {
		return nil, fmt.Errorf("substitute for %s is nil: %w", s.target, ErrInvalidType)
	}

	if !reflect.TypeOf(double).AssignableTo(declared) {
		return nil, fmt.Errorf("substitute %T for %s is not assignable to %s: %w",
			double, s.target, declared, ErrInvalidType)
	}

	s.substitute = double

	return s, nil
}

// Substitute returns the live substitute. Its identity is stable for the life
// of the Scope; only its recorded interaction history is cleared on Enter.
func (s *Scope) Substitute() any {
	return s.substitute
}

// Target returns the descriptor of the binding this scope substitutes.
func (s *Scope) Target() Target {
	return s.target
}

// Open reports whether an activation is currently in progress.
func (s *Scope) Open() bool {
	return s.open
}

// Enter clears the substitute's interaction history, captures the binding's
// current value and installs the substitute. Entering an already-open scope
// fails with ErrAlreadyOpen and leaves the binding exactly as the first Enter
// set it.
func (s *Scope) Enter() error {
	if s.open {
		return fmt.Errorf("binding %s: %w", s.target, ErrAlreadyOpen)
	}

	if err := s.doubler.ResetInteractions(s.substitute); err != nil {
		return fmt.Errorf("resetting substitute history for %s: %w", s.target, err)
	}

	release, err := sharedLocks.Acquire(context.Background(), s.target.Container, s.target.Field, lockMode())
	if err != nil {
		return fmt.Errorf("locking binding %s: %w", s.target, err)
	}

	original, err := s.accessor.CaptureAndReplace(s.target.Container, s.target.Field, s.substitute)
	if err != nil {
		release()
		return fmt.Errorf("installing substitute for %s: %w", s.target, err)
	}

	s.original = original
	s.release = release
	s.open = true
	s.activationID = uuid.NewString()

	slog.Debug("Entered substitution scope", "binding", s.target.String(), "activation", s.activationID)

	return nil
}

// Exit restores the binding to the value captured by the matching Enter and
// reinstates its constraint. Exiting a scope that is not open is a loud
// no-op: it is logged, never silently ignored, and returns nil so teardown
// hooks that fire unconditionally stay harmless.
func (s *Scope) Exit() error {
	if !s.open {
		slog.Warn("Exit without matching Enter ignored", "binding", s.target.String())
		return nil
	}

	err := s.accessor.Restore(s.target.Container, s.target.Field, s.original)

	s.original = nil
	s.open = false

	if s.release != nil {
		s.release()
		s.release = nil
	}

	if err != nil {
		slog.Error("Failed to restore binding", "binding", s.target.String(), "activation", s.activationID, "error", err)
		return fmt.Errorf("restoring binding %s: %w", s.target, err)
	}

	slog.Debug("Exited substitution scope", "binding", s.target.String(), "activation", s.activationID)

	return nil
}

// Run executes body between Enter and Exit. Exit runs on every path out of
// body, including panics. When both the body and the restoration fail, the
// two errors are joined rather than one masking the other.
func (s *Scope) Run(body func() error) (err error) {
	if enterErr := s.Enter(); enterErr != nil {
		return enterErr
	}

	defer func() {
		if exitErr := s.Exit(); exitErr != nil {
			err = errors.Join(err, exitErr)
		}
	}()

	return body()
}

// Activate enters the scope now and registers Exit with the test's cleanup
// list, so restoration runs after the test unit no matter how it ends. The
// live substitute is returned for convenience.
func (s *Scope) Activate(tb testing.TB) any {
	tb.Helper()

	if err := s.Enter(); err != nil {
		tb.Fatalf("rebind: entering scope for %s: %v", s.target, err)
	}

	tb.Cleanup(func() {
		if err := s.Exit(); err != nil {
			tb.Errorf("rebind: restoring %s: %v", s.target, err)
		}
	})

	return s.substitute
}

// Stub is the one-call form: build a scope over container.field with a double
// from factory, activate it for the remainder of the test, and return the
// typed substitute.
func Stub[D any](tb testing.TB, container any, field string, factory func() D) D {
	tb.Helper()

	scope, err := New(container, field, NewMockDoubler(func() any { return factory() }))
	if err != nil {
		tb.Fatalf("rebind: building scope for %T.%s: %v", container, field, err)
	}

	return scope.Activate(tb).(D)
}
