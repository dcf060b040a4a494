package mapk

import (
	"reflect"
)

// BoundMapper maps one struct type S to D with a plan compiled up front: each
// parameter of D is bound to a property of S and its coercion is chosen from
// the property's declared type. A required parameter that S does not declare
// fails construction with ErrPropertyNotDeclared.
//
// Nested values that need their own mapper are planned on first use.
type BoundMapper[S, D any] struct {
	core     *boundCore
	validate bool
}

// NewBoundMapper returns a BoundMapper building D through its marked
// constructor, or its struct literal when it has none.
func NewBoundMapper[S, D any](opts MapperOpts) (*BoundMapper[S, D], error) {
	e := newEngine(opts)
	core, err := e.boundCore(reflect.TypeFor[S](), reflect.TypeFor[D]())
	if err != nil {
		return nil, err
	}
	return &BoundMapper[S, D]{core: core, validate: e.validate}, nil
}

// NewBoundFuncMapper returns a BoundMapper building D through fn.
func NewBoundFuncMapper[S, D any](fn *Func, opts MapperOpts) (*BoundMapper[S, D], error) {
	e := newEngine(opts)
	sig, err := funcSignature(fn, reflect.TypeFor[D]())
	if err != nil {
		return nil, err
	}
	core, err := e.newBoundCore(reflect.TypeFor[S](), sig)
	if err != nil {
		return nil, err
	}
	return &BoundMapper[S, D]{core: core, validate: e.validate}, nil
}

// Map builds a D from src. A nil pointer source fails with ErrNilSource.
func (m *BoundMapper[S, D]) Map(src S) (D, error) {
	v, err := m.core.mapValue(reflect.ValueOf(&src).Elem())
	if err != nil {
		var zero D
		return zero, err
	}
	return result[D](v, m.validate)
}
