// Package rebind temporarily replaces the value of a normally-immutable,
// access-restricted binding with a test double and guarantees the original
// value is restored on every exit path from the test.
//
// A binding here is a named field on a shared container struct, typically a
// package singleton whose dependencies cannot be injected through normal
// construction. A Scope captures the field's value on Enter, installs a
// substitute built by a Doubler, and writes the original back on Exit.
// Unexported fields are written by aliasing their memory with
// reflect.NewAt and unsafe.Pointer; where that is impossible (the container
// is not a pointer to struct, so its fields are not addressable) operations
// fail with ErrAccessDenied and the technique is unusable.
//
// The package assumes cooperative, sequential test execution: one test unit's
// full Enter/Exit cycle completes before the next begins. Two scopes mutating
// the same binding concurrently are unsupported and undefined unless the
// opt-in lock mode is enabled (REBIND_LOCK_MODE=fail or block).
package rebind
