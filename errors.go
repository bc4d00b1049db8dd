package rebind

import (
	"errors"

	"gooze.dev/pkg/rebind/internal/access"
)

// Errors surfaced by scope construction and lifecycle operations. All of them
// are fatal to the current test unit; none is caught and suppressed inside
// this package. Match with errors.Is.
var (
	// ErrBindingNotFound reports that the target container has no binding
	// with the requested name.
	ErrBindingNotFound = access.ErrBindingNotFound

	// ErrAccessDenied reports that the binding cannot be introspected or
	// mutated in this environment.
	ErrAccessDenied = access.ErrAccessDenied

	// ErrInvalidType reports that the substitute is not assignable to the
	// binding's declared type.
	ErrInvalidType = access.ErrInvalidType

	// ErrAlreadyOpen reports a second Enter without a matching Exit. This is
	// a usage defect in the surrounding test, never a recoverable condition.
	ErrAlreadyOpen = errors.New("scope already open")

	// ErrBindingBusy reports that another activation holds the same binding
	// while the lock mode is "fail".
	ErrBindingBusy = access.ErrBindingBusy
)
