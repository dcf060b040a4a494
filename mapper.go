package mapk

import (
	"reflect"

	"go.uber.org/zap"
)

// MapperOpts configures a mapper. The zero value is usable: it maps through
// the default registry with identity names and no logging.
type MapperOpts struct {
	// Registry supplies converters, enums and marked constructors. Nil
	// selects DefaultRegistry().
	Registry *Registry
	// NameConverter rewrites parameter names before source lookups. It is
	// applied to nested mappings too. Nil selects Identity.
	NameConverter NameConverter
	// Logger receives Debug logs on plan compilation and memoization. Nil
	// selects zap.NewNop().
	Logger *zap.Logger
	// Validate calls Validatable.Validate on every produced value.
	Validate bool
}

// Mapper builds values of T from keyed sources and structs. Coercion
// decisions are memoized per parameter and source type, so repeated mappings
// of the same shapes skip the decision table.
//
// A Mapper is safe for concurrent use.
type Mapper[T any] struct {
	core     *keyedCore
	validate bool
}

// NewMapper returns a Mapper building T through its marked constructor, or
// its struct literal when it has none.
func NewMapper[T any](opts MapperOpts) (*Mapper[T], error) {
	e := newEngine(opts)
	core, err := e.keyedCore(reflect.TypeFor[T](), false)
	if err != nil {
		return nil, err
	}
	return &Mapper[T]{core: core, validate: e.validate}, nil
}

// NewFuncMapper returns a Mapper building T through fn.
func NewFuncMapper[T any](fn *Func, opts MapperOpts) (*Mapper[T], error) {
	e := newEngine(opts)
	sig, err := funcSignature(fn, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	core, err := e.newKeyedCore(sig, false)
	if err != nil {
		return nil, err
	}
	return &Mapper[T]{core: core, validate: e.validate}, nil
}

// Map builds a T from a single source.
func (m *Mapper[T]) Map(src any) (T, error) {
	return m.MapAll(src)
}

// MapAll builds a T from several sources. Sources are read in order and the
// first value found for a parameter wins.
func (m *Mapper[T]) MapAll(srcs ...any) (T, error) {
	v, err := m.core.mapValues(sourceValues(srcs))
	if err != nil {
		var zero T
		return zero, err
	}
	return result[T](v, m.validate)
}

func sourceValues(srcs []any) []reflect.Value {
	values := make([]reflect.Value, len(srcs))
	for i, src := range srcs {
		values[i] = reflect.ValueOf(src)
	}
	return values
}

// Must panics if err is not nil. It simplifies package level mapper
// variables.
//
//	var userMapper = mapk.Must(mapk.NewMapper[User](mapk.MapperOpts{}))
func Must[M any](m M, err error) M {
	if err != nil {
		panic(err)
	}
	return m
}
