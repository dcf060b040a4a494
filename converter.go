package mapk

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrInvalidConverter   = errors.New("invalid converter")
	ErrMultipleConverters = errors.New("multiple converters match the source type")
	ErrConverterOutput    = errors.New("converter output does not fit the parameter type")
)

// Converter turns a value of one type into a value of another. A converter
// applies to any source value assignable to its input type, so a converter
// taking fmt.Stringer applies to every implementer.
type Converter struct {
	from reflect.Type
	to   reflect.Type
	fn   func(reflect.Value) (reflect.Value, error)
}

// ConverterProvider is implemented by types that declare their own converters.
// The method is called on the zero value of the type.
//
//	func (Money) MapkConverters() []mapk.Converter {
//		return []mapk.Converter{mapk.NewConverter(ParseMoney)}
//	}
type ConverterProvider interface {
	MapkConverters() []Converter
}

// NewConverter builds a Converter from a typed function.
func NewConverter[S, D any](fn func(S) (D, error)) Converter {
	c := Converter{
		from: reflect.TypeFor[S](),
		to:   reflect.TypeFor[D](),
	}
	if fn == nil {
		return c
	}

	c.fn = func(v reflect.Value) (reflect.Value, error) {
		d, err := fn(v.Interface().(S))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(&d).Elem(), nil
	}
	return c
}

// ConverterFunc builds a Converter from a function that cannot fail.
func ConverterFunc[S, D any](fn func(S) D) Converter {
	if fn == nil {
		return NewConverter[S, D](nil)
	}
	return NewConverter(func(s S) (D, error) {
		return fn(s), nil
	})
}

func (c Converter) From() reflect.Type { return c.from }

func (c Converter) To() reflect.Type { return c.to }

func (c Converter) String() string {
	return fmt.Sprintf("converter(%v -> %v)", c.from, c.to)
}

func (c Converter) validate() error {
	if c.fn == nil || c.from == nil || c.to == nil {
		return fmt.Errorf("%w: %v", ErrInvalidConverter, c)
	}
	return nil
}

// accepts reports whether values of type t can be passed to the converter.
func (c Converter) accepts(t reflect.Type) bool {
	return t.AssignableTo(c.from)
}

// produces reports whether the converter output fits a parameter of type t.
func (c Converter) produces(t reflect.Type) bool {
	switch {
	case c.to.AssignableTo(t):
		return true
	case t.Kind() == reflect.Pointer && c.to.AssignableTo(t.Elem()):
		return true
	case c.to.Kind() == reflect.Pointer && c.to.Elem().AssignableTo(t):
		return true
	}
	return false
}

func (c Converter) convert(v reflect.Value) (reflect.Value, error) {
	if v.Type() != c.from {
		in := reflect.New(c.from).Elem()
		in.Set(v)
		v = in
	}
	return c.fn(v)
}

// converterProcessor runs c and fits its output to the parameter type.
func converterProcessor(c Converter, to reflect.Type) *processor {
	return &processor{
		strategy: strategyConverter,
		run: func(v reflect.Value) (reflect.Value, error) {
			out, err := c.convert(v)
			if err != nil {
				return reflect.Value{}, err
			}
			out = unwrapInterface(out)
			if !out.IsValid() {
				return reflect.Zero(to), nil
			}
			fitted, ok := fitValue(out, to)
			if !ok {
				return reflect.Value{}, fmt.Errorf("%w: %v", ErrConverterOutput, out.Type())
			}
			return fitted, nil
		},
	}
}
