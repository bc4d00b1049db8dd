package rebind

import (
	"fmt"
	"reflect"

	"github.com/stretchr/testify/mock"
)

// Doubler is the double-creation collaborator: it produces the substitute a
// Scope installs (once, at construction) and clears the substitute's recorded
// interaction history (once per Enter, so history never leaks between test
// units).
type Doubler interface {
	NewDouble() (any, error)
	ResetInteractions(double any) error
}

// HistoryResetter lets a hand-written double participate in history resets
// without embedding a testify mock.
type HistoryResetter interface {
	ResetHistory()
}

// MockDoubler builds substitutes from a factory function and knows how to
// reset testify mocks between activations.
type MockDoubler struct {
	factory func() any
}

// NewMockDoubler returns a Doubler that calls factory to build the
// substitute. The factory is invoked exactly once per Scope.
func NewMockDoubler(factory func() any) *MockDoubler {
	return &MockDoubler{factory: factory}
}

func (d *MockDoubler) NewDouble() (any, error) {
	if d.factory == nil {
		return nil, fmt.Errorf("mock doubler has no factory")
	}

	double := d.factory()
	if double == nil {
		return nil, fmt.Errorf("mock doubler factory returned nil")
	}

	return double, nil
}

// ResetInteractions clears the double's recorded calls. Expectations the test
// has configured are kept; only history recorded before the reset is dropped.
func (d *MockDoubler) ResetInteractions(double any) error {
	switch v := double.(type) {
	case HistoryResetter:
		v.ResetHistory()
		return nil
	case *mock.Mock:
		clearCalls(v)
		return nil
	}

	if m := embeddedMock(double); m != nil {
		clearCalls(m)
		return nil
	}

	return fmt.Errorf("double %T records no interaction history", double)
}

func clearCalls(m *mock.Mock) {
	m.Calls = nil
}

// embeddedMock locates a promoted mock.Mock inside double, the shape testify
// doubles conventionally have.
func embeddedMock(double any) *mock.Mock {
	v := reflect.ValueOf(double)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil
	}

	f := v.FieldByName("Mock")
	if !f.IsValid() || !f.CanAddr() {
		return nil
	}

	m, ok := f.Addr().Interface().(*mock.Mock)
	if !ok {
		return nil
	}

	return m
}

// ValueDoubler substitutes a plain value instead of a recording double. Its
// history reset is a no-op: there is nothing to record.
type ValueDoubler struct {
	value any
}

// NewValueDoubler returns a Doubler that always hands out value.
func NewValueDoubler(value any) *ValueDoubler {
	return &ValueDoubler{value: value}
}

func (d *ValueDoubler) NewDouble() (any, error) {
	if d.value == nil {
		return nil, fmt.Errorf("value doubler has no value")
	}

	return d.value, nil
}

func (d *ValueDoubler) ResetInteractions(any) error {
	return nil
}
