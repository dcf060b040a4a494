package mapk

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"slices"
)

var (
	ErrInvalidFunc     = errors.New("invalid factory function")
	ErrMultipleTargets = errors.New("find multiple target")
	ErrNoTarget        = errors.New("no target function for type")
	ErrUnknownParam    = errors.New("unknown parameter name")
)

// ParamOpts tunes one parameter of a factory function. Struct fields get the
// same options through the `mapk` tag.
type ParamOpts struct {
	// Alias is looked up in sources instead of the parameter name. It is
	// not passed through the NameConverter.
	Alias string
	// Optional parameters take their default when no source provides them.
	Optional bool
	// Default replaces the zero value of an optional parameter. Setting it
	// makes the parameter optional.
	Default any
	// UseDefault parameters are never bound from a source.
	UseDefault bool
	// Flatten expands the parameter into the parameters of its own type,
	// prefixed with its name.
	Flatten bool
	// Converter names a converter set registered with RegisterNamedConverters.
	Converter string
}

// ConstructorProvider is implemented by types that declare their own marked
// constructors. The method is called on the zero value of the type.
type ConstructorProvider interface {
	MapkConstructors() []*Func
}

// Func is a factory function registered together with the names of its
// parameters, which Go does not keep at runtime.
//
//	mapk.NewFunc(NewUser, "id", "name")
//
// The function must return the produced value, optionally followed by an
// error. Errors found while describing the function are kept and reported
// when the Func is used.
type Func struct {
	fn    reflect.Value
	out   reflect.Type
	names []string
	opts  []ParamOpts
	label string
	err   error
}

// NewFunc describes fn, a function with one named parameter per entry of
// names.
func NewFunc(fn any, names ...string) *Func {
	f := &Func{names: names, opts: make([]ParamOpts, len(names))}

	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		f.err = fmt.Errorf("%w: %T is not a function", ErrInvalidFunc, fn)
		return f
	}
	f.fn = v
	f.label = runtime.FuncForPC(v.Pointer()).Name()

	t := v.Type()
	switch {
	case t.IsVariadic():
		f.err = fmt.Errorf("%w: %s is variadic", ErrInvalidFunc, f.label)
	case t.NumIn() != len(names):
		f.err = fmt.Errorf("%w: %s takes %d parameters, %d names given", ErrInvalidFunc, f.label, t.NumIn(), len(names))
	case t.NumOut() == 0 || t.NumOut() > 2:
		f.err = fmt.Errorf("%w: %s must return a value and an optional error", ErrInvalidFunc, f.label)
	case t.NumOut() == 2 && t.Out(1) != ErrorType:
		f.err = fmt.Errorf("%w: %s second result must be an error", ErrInvalidFunc, f.label)
	}
	if f.err != nil {
		return f
	}

	for i, name := range names {
		if name == "" {
			f.err = fmt.Errorf("%w: %s parameter %d has no name", ErrInvalidFunc, f.label, i)
			return f
		}
		if slices.Contains(names[:i], name) {
			f.err = fmt.Errorf("%w: %s parameter name %q repeated", ErrInvalidFunc, f.label, name)
			return f
		}
	}

	f.out = t.Out(0)
	return f
}

// WithParam sets the options of the named parameter and returns f.
func (f *Func) WithParam(name string, opts ParamOpts) *Func {
	if f.err != nil {
		return f
	}

	i := slices.Index(f.names, name)
	if i < 0 {
		f.err = fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParam, f.label, name)
		return f
	}
	f.opts[i] = opts
	return f
}

// Out returns the produced type, or nil when f is invalid.
func (f *Func) Out() reflect.Type { return f.out }

// Err returns the first error found while describing f.
func (f *Func) Err() error { return f.err }

func (f *Func) String() string { return f.label }

///////////////////////////////////////////////////////////////////////////////
// Signatures
///////////////////////////////////////////////////////////////////////////////

// paramSpec describes one parameter before names are converted.
type paramSpec struct {
	raw        string
	label      string
	typ        reflect.Type
	opts       ParamOpts
	literal    string
	hasLiteral bool
}

// signature is the callable shape shared by struct literals and factories.
type signature struct {
	out    reflect.Type
	label  string
	params []paramSpec
	invoke func(args []reflect.Value) (reflect.Value, error)
}

func (f *Func) signature() *signature {
	params := make([]paramSpec, len(f.names))
	t := f.fn.Type()
	for i, name := range f.names {
		params[i] = paramSpec{
			raw:   name,
			label: name,
			typ:   t.In(i),
			opts:  f.opts[i],
		}
	}

	fn, label := f.fn, f.label
	return &signature{
		out:    f.out,
		label:  label,
		params: params,
		invoke: func(args []reflect.Value) (reflect.Value, error) {
			results := fn.Call(args)
			if len(results) == 2 && !results[1].IsNil() {
				return reflect.Value{}, fmt.Errorf("%w: %s: %w", ErrTargetFailed, label, results[1].Interface().(error))
			}
			return results[0], nil
		},
	}
}

// structSignature treats a struct literal as the primary constructor of t:
// exported fields not tagged ignore are its parameters.
func structSignature(t reflect.Type) (*signature, error) {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	var (
		params  []paramSpec
		indices []int
	)
	for i := 0; i < base.NumField(); i++ {
		field := base.Field(i)
		if !field.IsExported() {
			continue
		}

		tag, err := DecodeFieldTag(field)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", base, err)
		}
		if tag.Ignore {
			continue
		}

		params = append(params, paramSpec{
			raw:   parameterName(field.Name),
			label: field.Name,
			typ:   field.Type,
			opts: ParamOpts{
				Alias:      tag.Alias,
				Optional:   tag.Optional,
				UseDefault: tag.UseDefault,
				Flatten:    tag.Flatten,
				Converter:  tag.Converter,
			},
			literal:    tag.Default,
			hasLiteral: tag.HasDefault,
		})
		indices = append(indices, i)
	}

	pointer := t.Kind() == reflect.Pointer
	return &signature{
		out:    t,
		label:  base.String(),
		params: params,
		invoke: func(args []reflect.Value) (reflect.Value, error) {
			out := reflect.New(base)
			elem := out.Elem()
			for k, index := range indices {
				elem.Field(index).Set(args[k])
			}
			if pointer {
				return out, nil
			}
			return elem, nil
		},
	}, nil
}

// addressed adapts a signature producing S into one producing *S.
func (s *signature) addressed() *signature {
	invoke := s.invoke
	return &signature{
		out:    reflect.PointerTo(s.out),
		label:  s.label,
		params: s.params,
		invoke: func(args []reflect.Value) (reflect.Value, error) {
			v, err := invoke(args)
			if err != nil {
				return reflect.Value{}, err
			}
			out := reflect.New(v.Type())
			out.Elem().Set(v)
			return out, nil
		},
	}
}

///////////////////////////////////////////////////////////////////////////////
// Target selection
///////////////////////////////////////////////////////////////////////////////

// targetFor selects how values of type t are built:
//   - exactly one marked constructor: that constructor
//   - none: the struct literal of t
//   - more than one: ErrMultipleTargets
//
// For a pointer type without its own constructors the element type's
// constructor is used and its result addressed.
func (reg *Registry) targetFor(t reflect.Type) (*signature, error) {
	ctors, err := reg.constructorsFor(t)
	if err != nil {
		return nil, err
	}

	addressed := false
	if len(ctors) == 0 && t.Kind() == reflect.Pointer {
		if ctors, err = reg.constructorsFor(t.Elem()); err != nil {
			return nil, err
		}
		addressed = len(ctors) > 0
	}

	switch len(ctors) {
	case 0:
		if !isStructTarget(t) {
			return nil, fmt.Errorf("%w: %v", ErrNoTarget, t)
		}
		return structSignature(t)
	case 1:
		sig := ctors[0].signature()
		if addressed {
			sig = sig.addressed()
		}
		return sig, nil
	default:
		return nil, fmt.Errorf("%w: %v has %d marked constructors", ErrMultipleTargets, t, len(ctors))
	}
}

// funcSignature checks that f produces t, addressing its result if t is a
// pointer to what f produces.
func funcSignature(f *Func, t reflect.Type) (*signature, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidFunc)
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	switch {
	case f.out == t:
		return f.signature(), nil
	case t.Kind() == reflect.Pointer && f.out == t.Elem():
		return f.signature().addressed(), nil
	case f.out.AssignableTo(t):
		return f.signature(), nil
	}
	return nil, fmt.Errorf("%w: %s produces %v, not %v", ErrInvalidFunc, f, f.out, t)
}

// hasTarget reports whether values of type t can be built by a mapper.
func (reg *Registry) hasTarget(t reflect.Type) bool {
	if isStructTarget(t) {
		return true
	}
	ctors, err := reg.constructorsFor(t)
	return err == nil && len(ctors) > 0
}

func isStructTarget(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && !isSpecialStructType(t)
}
