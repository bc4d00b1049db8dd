package rebind

import (
	"fmt"
	"reflect"
)

// Target identifies one restricted binding: a named field on a shared
// container struct, addressed through a pointer to the container. A Target is
// immutable once a Scope has been constructed over it.
type Target struct {
	Container any
	Field     string
}

func (t Target) String() string {
	if t.Container == nil {
		return fmt.Sprintf("<nil>.%s", t.Field)
	}

	typ := reflect.TypeOf(t.Container)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	return fmt.Sprintf("%s.%s", typ, t.Field)
}
