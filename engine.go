package mapk

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// engine is the state shared by a mapper and every sub-mapper it spawns.
// Sub-mappers are built lazily, on the first value that needs them, so
// self-referential types never recurse while a mapper is constructed.
type engine struct {
	registry *Registry
	names    NameConverter
	logger   *zap.Logger
	validate bool

	keyed *TypeCache[keyedKey, *keyedCore]
	bound *TypeCache[boundKey, *boundCore]
}

type keyedKey struct {
	typ   reflect.Type
	plain bool
}

type boundKey struct {
	src reflect.Type
	dst reflect.Type
}

func newEngine(opts MapperOpts) *engine {
	e := &engine{
		registry: opts.Registry,
		names:    opts.NameConverter,
		logger:   opts.Logger,
		validate: opts.Validate,
		keyed:    NewTypeCache[keyedKey, *keyedCore](),
		bound:    NewTypeCache[boundKey, *boundCore](),
	}
	if e.registry == nil {
		e.registry = _gRegistry
	}
	if e.names == nil {
		e.names = Identity
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

func (e *engine) compile(sig *signature) (*target, error) {
	t, err := compileTarget(e.registry, e.names, sig)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("compiled target",
		zap.Stringer("type", t.typ),
		zap.String("target", t.label),
		zap.Int("parameters", len(t.leaves)),
	)
	return t, nil
}

///////////////////////////////////////////////////////////////////////////////
// Keyed Core
///////////////////////////////////////////////////////////////////////////////

// keyedCore maps any number of sources of any supported kind, looking each
// parameter up by name.
type keyedCore struct {
	e      *engine
	target *target
	bucket *argumentBucket
	mode   resolveMode
}

func (e *engine) keyedCore(t reflect.Type, plain bool) (*keyedCore, error) {
	return e.keyed.GetOrBuild(keyedKey{t, plain}, func() (*keyedCore, error) {
		sig, err := e.registry.targetFor(t)
		if err != nil {
			return nil, err
		}
		return e.newKeyedCore(sig, plain)
	})
}

func (e *engine) newKeyedCore(sig *signature, plain bool) (*keyedCore, error) {
	t, err := e.compile(sig)
	if err != nil {
		return nil, err
	}

	mode := resolveMemo
	if plain {
		mode = resolvePlain
	}
	return &keyedCore{
		e:      e,
		target: t,
		bucket: newArgumentBucket(t),
		mode:   mode,
	}, nil
}

// mapValues consumes srcs in order. The first value found for a parameter
// wins and consumption stops once every parameter is bound.
func (c *keyedCore) mapValues(srcs []reflect.Value) (reflect.Value, error) {
	b := c.bucket.clone()

	for _, src := range srcs {
		if b.complete() {
			break
		}

		view, err := viewOf(src)
		if err != nil {
			return reflect.Value{}, err
		}
		if view == nil {
			continue
		}

		for _, leaf := range c.target.leaves {
			if b.has(leaf.leaf) {
				continue
			}

			value, ok, err := view.lookup(leaf)
			if err != nil {
				return reflect.Value{}, err
			}
			if !ok {
				continue
			}

			out, err := c.e.process(leaf, value, c.mode)
			if err != nil {
				return reflect.Value{}, err
			}
			b.put(leaf.leaf, out)
		}
	}

	return c.target.finish(b)
}

// finish checks for missing parameters and calls the target.
func (t *target) finish(b *argumentBucket) (reflect.Value, error) {
	if missing := b.missing(t); len(missing) > 0 {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrMissingArguments, strings.Join(missing, ", "))
	}
	return t.call(b)
}

///////////////////////////////////////////////////////////////////////////////
// Bound Core
///////////////////////////////////////////////////////////////////////////////

// boundCore maps one struct type to one target with a plan fixed when it is
// compiled.
type boundCore struct {
	e        *engine
	src      reflect.Type
	target   *target
	bucket   *argumentBucket
	bindings []binding
}

type binding struct {
	leaf *param
	prop *property
	proc *processor
}

func (e *engine) boundCore(src, dst reflect.Type) (*boundCore, error) {
	return e.bound.GetOrBuild(boundKey{src, dst}, func() (*boundCore, error) {
		sig, err := e.registry.targetFor(dst)
		if err != nil {
			return nil, err
		}
		return e.newBoundCore(src, sig)
	})
}

func (e *engine) newBoundCore(src reflect.Type, sig *signature) (*boundCore, error) {
	base := derefType(src)
	if base.Kind() != reflect.Struct || isSpecialStructType(base) {
		return nil, fmt.Errorf("%w: %v is not a struct", ErrUnsupportedSource, src)
	}

	props, err := propertiesOf(base)
	if err != nil {
		return nil, err
	}

	t, err := e.compile(sig)
	if err != nil {
		return nil, err
	}

	core := &boundCore{
		e:      e,
		src:    base,
		target: t,
		bucket: newArgumentBucket(t),
	}

	var missing []string
	for _, leaf := range t.leaves {
		if leaf.useDefault {
			continue
		}

		prop, ok := props.byName[leaf.name]
		if !ok {
			if !leaf.optional {
				missing = append(missing, leaf.name)
			}
			continue
		}

		proc, err := e.resolve(leaf, prop.typ, resolveBound)
		if err != nil {
			return nil, newMappingError(leaf, prop.typ, err)
		}
		e.logger.Debug("bound processor",
			zap.String("param", leaf.name),
			zap.String("property", prop.goName),
			zap.Stringer("source", prop.typ),
			zap.Stringer("strategy", proc.strategy),
		)
		core.bindings = append(core.bindings, binding{leaf: leaf, prop: prop, proc: proc})
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v lacks %s", ErrPropertyNotDeclared, base, strings.Join(missing, ", "))
	}
	return core, nil
}

func (c *boundCore) mapValue(src reflect.Value) (reflect.Value, error) {
	v := unwrapValue(src)
	if !v.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrNilSource, c.src)
	}
	if !v.CanAddr() {
		addressable := reflect.New(v.Type()).Elem()
		addressable.Set(v)
		v = addressable
	}

	b := c.bucket.clone()
	for _, bind := range c.bindings {
		value := bind.prop.get(v)

		var (
			out reflect.Value
			err error
		)
		if !value.IsValid() {
			out = reflect.Zero(bind.leaf.typ)
		} else if out, err = bind.proc.run(value); err != nil {
			return reflect.Value{}, newMappingError(bind.leaf, bind.prop.typ, err)
		}
		b.put(bind.leaf.leaf, out)
	}

	return c.target.finish(b)
}

///////////////////////////////////////////////////////////////////////////////
// Results
///////////////////////////////////////////////////////////////////////////////

// result converts a mapped value to T and runs the Validate hook when asked.
func result[T any](v reflect.Value, validate bool) (T, error) {
	var out T
	if v.IsValid() {
		if typed, ok := v.Interface().(T); ok {
			out = typed
		}
	}

	if validate {
		if err := runValidate(&out); err != nil {
			var zero T
			return zero, err
		}
	}
	return out, nil
}

func runValidate[T any](out *T) error {
	var validatable Validatable
	switch v := any(*out).(type) {
	case Validatable:
		validatable = v
	default:
		if v, ok := any(out).(Validatable); ok {
			validatable = v
		}
	}
	if validatable == nil {
		return nil
	}

	if err := validatable.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}
