package mapk

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

var (
	ErrInvalidEnum      = errors.New("invalid enum registration")
	ErrUnknownEnumValue = errors.New("unknown enum value")
)

// enumSet maps the textual names of an enum type to its values.
type enumSet struct {
	typ    reflect.Type
	values map[string]reflect.Value
}

// RegisterEnum registers the values of an enum type on r, or on the default
// registry when r is nil. A value's name is fmt.Sprint(value), so types with
// a String method are matched by it. Strings are matched exactly; the empty
// string maps to the zero value.
func RegisterEnum[T comparable](r *Registry, values ...T) error {
	if r == nil {
		r = _gRegistry
	}

	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Interface {
		return fmt.Errorf("%w: %v is an interface", ErrInvalidEnum, typ)
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: %v has no values", ErrInvalidEnum, typ)
	}

	set := &enumSet{
		typ:    typ,
		values: make(map[string]reflect.Value, len(values)),
	}
	for _, value := range values {
		name := fmt.Sprint(value)
		if name == "" {
			return fmt.Errorf("%w: %v has a value with an empty name", ErrInvalidEnum, typ)
		}
		if _, dup := set.values[name]; dup {
			return fmt.Errorf("%w: %v has duplicate name %q", ErrInvalidEnum, typ, name)
		}
		set.values[name] = reflect.ValueOf(value)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.enums[typ] = set
	return nil
}

func (reg *Registry) enumFor(t reflect.Type) (*enumSet, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	set, ok := reg.enums[t]
	return set, ok
}

func (e *enumSet) parse(name string) (reflect.Value, error) {
	if name == "" {
		return reflect.Zero(e.typ), nil
	}

	if v, ok := e.values[name]; ok {
		return v, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %q is not one of %v [%s]",
		ErrUnknownEnumValue, name, e.typ, strings.Join(e.names(), ", "))
}

func (e *enumSet) names() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func enumProcessor(e *enumSet) *processor {
	return &processor{
		strategy: strategyEnum,
		run: func(v reflect.Value) (reflect.Value, error) {
			return e.parse(v.String())
		},
	}
}
