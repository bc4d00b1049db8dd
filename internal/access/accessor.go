// Package access implements the low-level mechanics of reading and writing a
// restricted binding: a named field on a shared container struct, addressed
// through a pointer to the container. It is pure mechanism; the substitution
// lifecycle policy lives in the rebind package.
package access

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"unsafe"
)

// Sentinel errors returned by accessor operations. Match with errors.Is.
var (
	// ErrBindingNotFound reports that the container has no field with the
	// requested name. This is a configuration mistake (typo, wrong container)
	// and is never recoverable.
	ErrBindingNotFound = errors.New("binding not found")

	// ErrAccessDenied reports that the binding cannot be introspected or
	// mutated in this environment, for example because the container is not
	// addressable or an unexported field is written without lifting its
	// constraint first. The substitution technique is unusable when this
	// surfaces from resolution.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidType reports that a value is not assignable to the binding's
	// declared type.
	ErrInvalidType = errors.New("invalid type")
)

// Accessor manipulates one restricted binding at a time. Implementations keep
// no lifecycle state beyond which constraints are currently lifted.
type Accessor interface {
	// DeclaredType returns the binding's declared (static) type.
	DeclaredType(container any, field string) (reflect.Type, error)

	// ReadCurrent returns the binding's present value, even when the field is
	// unexported.
	ReadCurrent(container any, field string) (any, error)

	// SetOverridable lifts or reinstates the binding's immutability
	// constraint. Idempotent: toggling to the current state is a no-op.
	SetOverridable(container any, field string, enabled bool) error

	// WriteValue overwrites the binding. For unexported fields the constraint
	// must currently be lifted; that is the caller's responsibility.
	WriteValue(container any, field string, value any) error

	// CaptureAndReplace lifts the constraint, reads the current value and
	// writes newValue, in that order, returning the pre-replacement value.
	// The constraint stays lifted so a later Restore can write unobstructed;
	// on failure it is reinstated before returning.
	CaptureAndReplace(container any, field string, newValue any) (any, error)

	// Restore writes original back and reinstates the constraint. The
	// constraint is reinstated even when the write fails.
	Restore(container any, field string, original any) error
}

type bindingKey struct {
	container any
	field     string
}

type reflectAccessor struct {
	mu     sync.Mutex
	lifted map[bindingKey]bool
}

// NewAccessor returns the conventional reflect-based Accessor.
func NewAccessor() Accessor {
	return &reflectAccessor{lifted: make(map[bindingKey]bool)}
}

// resolve locates the field on the container. Containers must be non-nil
// pointers to structs; anything else leaves the field unaddressable, which
// makes the whole technique inoperable.
func resolve(container any, field string) (reflect.Value, error) {
	if container == nil {
		return reflect.Value{}, fmt.Errorf("container is nil: %w", ErrAccessDenied)
	}

	v := reflect.ValueOf(container)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("container %T is not a non-nil pointer, fields are not addressable: %w", container, ErrAccessDenied)
	}

	elem := v.Elem()
	if elem.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("container %T does not point to a struct: %w", container, ErrAccessDenied)
	}

	f := elem.FieldByName(field)
	if !f.IsValid() {
		return reflect.Value{}, fmt.Errorf("no field %q on %s: %w", field, elem.Type(), ErrBindingNotFound)
	}

	return f, nil
}

func (a *reflectAccessor) DeclaredType(container any, field string) (reflect.Type, error) {
	f, err := resolve(container, field)
	if err != nil {
		return nil, err
	}

	return f.Type(), nil
}

func (a *reflectAccessor) ReadCurrent(container any, field string) (any, error) {
	f, err := resolve(container, field)
	if err != nil {
		return nil, err
	}

	if f.CanInterface() {
		return f.Interface(), nil
	}

	// Unexported field: alias the same memory through an unrestricted value.
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem().Interface(), nil
}

func (a *reflectAccessor) SetOverridable(container any, field string, enabled bool) error {
	if _, err := resolve(container, field); err != nil {
		return err
	}

	key := bindingKey{container: container, field: field}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lifted[key] == enabled {
		slog.Debug("Binding constraint already in requested state", "field", field, "overridable", enabled)
		return nil
	}

	if enabled {
		a.lifted[key] = true
	} else {
		delete(a.lifted, key)
	}

	slog.Debug("Toggled binding constraint", "field", field, "overridable", enabled)

	return nil
}

func (a *reflectAccessor) isLifted(container any, field string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lifted[bindingKey{container: container, field: field}]
}

func (a *reflectAccessor) WriteValue(container any, field string, value any) error {
	f, err := resolve(container, field)
	if err != nil {
		return err
	}

	v, err := coerce(value, f.Type())
	if err != nil {
		return fmt.Errorf("writing field %q: %w", field, err)
	}

	if f.CanSet() {
		f.Set(v)
		return nil
	}

	if !a.isLifted(container, field) {
		return fmt.Errorf("field %q is not overridable and its constraint has not been lifted: %w", field, ErrAccessDenied)
	}

	reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem().Set(v)

	return nil
}

func (a *reflectAccessor) CaptureAndReplace(container any, field string, newValue any) (any, error) {
	if err := a.SetOverridable(container, field, true); err != nil {
		return nil, err
	}

	original, err := a.ReadCurrent(container, field)
	if err != nil {
		a.reinstate(container, field)
		return nil, fmt.Errorf("capturing field %q: %w", field, err)
	}

	if err := a.WriteValue(container, field, newValue); err != nil {
		a.reinstate(container, field)
		return nil, err
	}

	return original, nil
}

func (a *reflectAccessor) Restore(container any, field string, original any) (err error) {
	defer func() {
		if relockErr := a.SetOverridable(container, field, false); relockErr != nil {
			slog.Error("Failed to reinstate binding constraint", "field", field, "error", relockErr)
			err = errors.Join(err, relockErr)
		}
	}()

	if writeErr := a.WriteValue(container, field, original); writeErr != nil {
		slog.Error("Failed to restore binding value", "field", field, "error", writeErr)
		return fmt.Errorf("restoring field %q: %w", field, writeErr)
	}

	return nil
}

// reinstate re-locks the constraint on an error path. The original error is
// what callers care about, so a relock failure is only logged.
func (a *reflectAccessor) reinstate(container any, field string) {
	if err := a.SetOverridable(container, field, false); err != nil {
		slog.Error("Failed to reinstate binding constraint", "field", field, "error", err)
	}
}

// coerce validates that value can be stored in a binding of type t and
// returns the reflect value to store. A nil value maps to t's zero value for
// nilable kinds.
func coerce(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(t), nil
		default:
			return reflect.Value{}, fmt.Errorf("cannot bind nil to %s: %w", t, ErrInvalidType)
		}
	}

	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s: %w", v.Type(), t, ErrInvalidType)
	}

	return v, nil
}
