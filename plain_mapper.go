package mapk

import (
	"reflect"
)

// PlainMapper builds values of T like Mapper but evaluates the decision table
// on every value instead of memoizing it. It suits one-off mappings of many
// different source shapes.
type PlainMapper[T any] struct {
	core     *keyedCore
	validate bool
}

// NewPlainMapper returns a PlainMapper building T through its marked
// constructor, or its struct literal when it has none.
func NewPlainMapper[T any](opts MapperOpts) (*PlainMapper[T], error) {
	e := newEngine(opts)
	core, err := e.keyedCore(reflect.TypeFor[T](), true)
	if err != nil {
		return nil, err
	}
	return &PlainMapper[T]{core: core, validate: e.validate}, nil
}

// NewPlainFuncMapper returns a PlainMapper building T through fn.
func NewPlainFuncMapper[T any](fn *Func, opts MapperOpts) (*PlainMapper[T], error) {
	e := newEngine(opts)
	sig, err := funcSignature(fn, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	core, err := e.newKeyedCore(sig, true)
	if err != nil {
		return nil, err
	}
	return &PlainMapper[T]{core: core, validate: e.validate}, nil
}

// Map builds a T from a single source.
func (m *PlainMapper[T]) Map(src any) (T, error) {
	return m.MapAll(src)
}

// MapAll builds a T from several sources. The first value found for a
// parameter wins.
func (m *PlainMapper[T]) MapAll(srcs ...any) (T, error) {
	v, err := m.core.mapValues(sourceValues(srcs))
	if err != nil {
		var zero T
		return zero, err
	}
	return result[T](v, m.validate)
}
