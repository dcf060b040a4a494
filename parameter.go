package mapk

import (
	"encoding"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// strategy names how a processor turns a source value into a parameter value.
type strategy uint8

const (
	strategyPlain strategy = iota
	strategyConverter
	strategyNumeric
	strategyEnum
	strategyText
	strategyLiteral
	strategyString
	strategyMapper
	strategyBoundMapper
	strategySlice
	strategyMap
	strategyDynamic
)

var strategyNames = [...]string{
	strategyPlain:       "plain",
	strategyConverter:   "converter",
	strategyNumeric:     "numeric",
	strategyEnum:        "enum",
	strategyText:        "text",
	strategyLiteral:     "literal",
	strategyString:      "string",
	strategyMapper:      "mapper",
	strategyBoundMapper: "bound_mapper",
	strategySlice:       "slice",
	strategyMap:         "map",
	strategyDynamic:     "dynamic",
}

func (s strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("strategy(%d)", s)
}

// processor is the coercion chosen for one (parameter, source type) pair.
type processor struct {
	strategy strategy
	run      func(reflect.Value) (reflect.Value, error)
}

// resolveMode selects memoization and sub-mapper flavor.
type resolveMode uint8

const (
	// resolveMemo caches processors per source type (Mapper).
	resolveMemo resolveMode = iota
	// resolvePlain evaluates the decision table on every value (PlainMapper).
	resolvePlain
	// resolveBound fixes processors from static types (BoundMapper).
	resolveBound
)

var plainProcessor = &processor{
	strategy: strategyPlain,
	run:      func(v reflect.Value) (reflect.Value, error) { return v, nil },
}

// process turns a source value into the value of p. A nil value binds the
// zero value of p.
func (e *engine) process(p *param, v reflect.Value, mode resolveMode) (reflect.Value, error) {
	v = unwrapInterface(v)
	if !v.IsValid() {
		return reflect.Zero(p.typ), nil
	}

	proc, err := e.processorFor(p, v.Type(), mode)
	if err != nil {
		return reflect.Value{}, newMappingError(p, v.Type(), err)
	}

	out, err := proc.run(v)
	if err != nil {
		return reflect.Value{}, newMappingError(p, v.Type(), err)
	}
	return out, nil
}

func (e *engine) processorFor(p *param, from reflect.Type, mode resolveMode) (*processor, error) {
	if mode == resolvePlain {
		return e.resolve(p, from, mode)
	}

	if cached, ok := p.memo.Load(from); ok {
		return cached.(*processor), nil
	}

	proc, err := e.resolve(p, from, mode)
	if err != nil {
		return nil, err
	}

	actual, loaded := p.memo.LoadOrStore(from, proc)
	if !loaded {
		e.logger.Debug("memoized processor",
			zap.String("param", p.name),
			zap.Stringer("source", from),
			zap.Stringer("dest", p.typ),
			zap.Stringer("strategy", proc.strategy),
		)
	}
	return actual.(*processor), nil
}

// resolve walks the decision table for a value of type from feeding p:
//
//  1. assignable, also through one pointer level
//  2. a converter accepting from
//  3. numeric to numeric
//  4. string to a registered enum, a TextUnmarshaler or a number or bool
//  5. anything to string
//  6. keyed source to a mappable type, through a sub Mapper
//  7. struct to a mappable type, through a sub BoundMapper
//  8. slices and maps element by element
func (e *engine) resolve(p *param, from reflect.Type, mode resolveMode) (*processor, error) {
	to := p.typ

	switch {
	case from.AssignableTo(to):
		return plainProcessor, nil
	case to.Kind() == reflect.Pointer && from.AssignableTo(to.Elem()):
		return addressProcessor(plainProcessor, to), nil
	case from.Kind() == reflect.Pointer && from.Elem().AssignableTo(to):
		return derefProcessor(plainProcessor, to), nil
	}

	strict := mode == resolveBound
	conv, err := e.registry.findConverter(p.convert, to, from, strict)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return converterProcessor(*conv, to), nil
	}

	if from.Kind() == reflect.Interface {
		if mode != resolveBound {
			return nil, fmt.Errorf("%w: %v to %v", ErrCannotConvert, from, to)
		}
		// Static interface types are resolved per dynamic type.
		return e.dynamicProcessor(p), nil
	}

	if from.Kind() == reflect.Pointer {
		conv, err := e.registry.findConverter(p.convert, to, from.Elem(), strict)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			return derefProcessor(converterProcessor(*conv, to), to), nil
		}

		inner, err := e.resolveValue(p, from.Elem(), to, mode)
		if err != nil {
			return nil, err
		}
		return derefProcessor(inner, to), nil
	}

	return e.resolveValue(p, from, to, mode)
}

// resolveValue handles rules 3 to 8 for a non-pointer source type.
func (e *engine) resolveValue(p *param, from, to reflect.Type, mode resolveMode) (*processor, error) {
	if to.Kind() == reflect.Pointer {
		inner, err := e.resolveValue(p, from, to.Elem(), mode)
		if err != nil {
			return nil, err
		}
		return addressProcessor(inner, to), nil
	}

	switch {
	case from.AssignableTo(to):
		return plainProcessor, nil

	case e.isEnum(to) && from.Kind() != reflect.String:
		return nil, fmt.Errorf("%w: enum %v takes names, not %v", ErrCannotConvert, to, from)

	case isNumericKind(from.Kind()) && isNumericKind(to.Kind()):
		return &processor{
			strategy: strategyNumeric,
			run: func(v reflect.Value) (reflect.Value, error) {
				return convertNumber(v, to)
			},
		}, nil

	case from.Kind() == reflect.String && e.isEnum(to):
		set, _ := e.registry.enumFor(to)
		return enumProcessor(set), nil

	case from.Kind() == reflect.String && implementsTextUnmarshaler(to):
		return textProcessor(to), nil

	case from.Kind() == reflect.String && isLiteralKind(to.Kind()):
		return literalProcessor(to), nil

	case to.Kind() == reflect.String:
		return stringProcessor(from, to), nil

	case isKeyedType(from) && e.registry.hasTarget(to):
		return e.mapperProcessor(to, mode == resolvePlain), nil

	case from.Kind() == reflect.Struct && !isSpecialStructType(from) && e.registry.hasTarget(to):
		if mode == resolvePlain {
			return e.mapperProcessor(to, true), nil
		}
		return e.boundProcessor(from, to), nil

	case (from.Kind() == reflect.Slice || from.Kind() == reflect.Array) && to.Kind() == reflect.Slice:
		return e.sliceProcessor(p, to, mode), nil

	case from.Kind() == reflect.Map && to.Kind() == reflect.Map && keyFits(from.Key(), to.Key()):
		return e.mapProcessor(p, to, mode), nil
	}

	return nil, fmt.Errorf("%w: %v to %v", ErrCannotConvert, from, to)
}

func (e *engine) isEnum(t reflect.Type) bool {
	_, ok := e.registry.enumFor(t)
	return ok
}

///////////////////////////////////////////////////////////////////////////////
// Processors
///////////////////////////////////////////////////////////////////////////////

// addressProcessor stores the result of inner in a new pointer of type to.
func addressProcessor(inner *processor, to reflect.Type) *processor {
	return &processor{
		strategy: inner.strategy,
		run: func(v reflect.Value) (reflect.Value, error) {
			out, err := inner.run(v)
			if err != nil {
				return reflect.Value{}, err
			}
			ptr := reflect.New(to.Elem())
			ptr.Elem().Set(out)
			return ptr, nil
		},
	}
}

// derefProcessor feeds inner the value a pointer points to. A nil pointer
// binds the zero value of to.
func derefProcessor(inner *processor, to reflect.Type) *processor {
	return &processor{
		strategy: inner.strategy,
		run: func(v reflect.Value) (reflect.Value, error) {
			if v.IsNil() {
				return reflect.Zero(to), nil
			}
			return inner.run(v.Elem())
		},
	}
}

func textProcessor(to reflect.Type) *processor {
	return &processor{
		strategy: strategyText,
		run: func(v reflect.Value) (reflect.Value, error) {
			ptr := reflect.New(to)
			if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(v.String())); err != nil {
				return reflect.Value{}, err
			}
			return ptr.Elem(), nil
		},
	}
}

// literalProcessor parses numbers and bools the way default literals are
// parsed, so string-only sources such as url.Values can feed them.
func literalProcessor(to reflect.Type) *processor {
	return &processor{
		strategy: strategyLiteral,
		run: func(v reflect.Value) (reflect.Value, error) {
			return parseLiteral(to, v.String())
		},
	}
}

func isLiteralKind(k reflect.Kind) bool {
	return isNumericKind(k) || k == reflect.Bool || k == reflect.Complex64 || k == reflect.Complex128
}

// stringProcessor formats values with their String method, or fmt.Sprint
// when from has none.
func stringProcessor(from, to reflect.Type) *processor {
	stringer := from.Implements(StringerType)
	return &processor{
		strategy: strategyString,
		run: func(v reflect.Value) (reflect.Value, error) {
			var s string
			if stringer {
				s = v.Interface().(fmt.Stringer).String()
			} else {
				s = fmt.Sprint(v.Interface())
			}
			return reflect.ValueOf(s).Convert(to), nil
		},
	}
}

// dynamicProcessor resolves each value by its dynamic type, memoized.
func (e *engine) dynamicProcessor(p *param) *processor {
	return &processor{
		strategy: strategyDynamic,
		run: func(v reflect.Value) (reflect.Value, error) {
			v = unwrapInterface(v)
			if !v.IsValid() {
				return reflect.Zero(p.typ), nil
			}
			proc, err := e.processorFor(p, v.Type(), resolveMemo)
			if err != nil {
				return reflect.Value{}, err
			}
			return proc.run(v)
		},
	}
}

func (e *engine) mapperProcessor(to reflect.Type, plain bool) *processor {
	return &processor{
		strategy: strategyMapper,
		run: func(v reflect.Value) (reflect.Value, error) {
			core, err := e.keyedCore(to, plain)
			if err != nil {
				return reflect.Value{}, err
			}
			return core.mapValues([]reflect.Value{v})
		},
	}
}

func (e *engine) boundProcessor(from, to reflect.Type) *processor {
	return &processor{
		strategy: strategyBoundMapper,
		run: func(v reflect.Value) (reflect.Value, error) {
			core, err := e.boundCore(from, to)
			if err != nil {
				return reflect.Value{}, err
			}
			return core.mapValue(v)
		},
	}
}

// sliceProcessor maps slices and arrays element by element into a slice.
func (e *engine) sliceProcessor(p *param, to reflect.Type, mode resolveMode) *processor {
	elem := &param{
		name:    p.name + "[]",
		label:   p.label + "[]",
		typ:     to.Elem(),
		convert: p.convert,
		leaf:    -1,
	}
	if mode == resolveBound {
		mode = resolveMemo
	}

	return &processor{
		strategy: strategySlice,
		run: func(v reflect.Value) (reflect.Value, error) {
			if v.Kind() == reflect.Slice && v.IsNil() {
				return reflect.Zero(to), nil
			}

			out := reflect.MakeSlice(to, v.Len(), v.Len())
			for i := 0; i < v.Len(); i++ {
				item, err := e.process(elem, v.Index(i), mode)
				if err != nil {
					return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
				}
				out.Index(i).Set(item)
			}
			return out, nil
		},
	}
}

// mapProcessor maps map values one by one, converting keys.
func (e *engine) mapProcessor(p *param, to reflect.Type, mode resolveMode) *processor {
	elem := &param{
		name:    p.name + "{}",
		label:   p.label + "{}",
		typ:     to.Elem(),
		convert: p.convert,
		leaf:    -1,
	}
	if mode == resolveBound {
		mode = resolveMemo
	}

	return &processor{
		strategy: strategyMap,
		run: func(v reflect.Value) (reflect.Value, error) {
			if v.IsNil() {
				return reflect.Zero(to), nil
			}

			out := reflect.MakeMapWithSize(to, v.Len())
			iter := v.MapRange()
			for iter.Next() {
				item, err := e.process(elem, iter.Value(), mode)
				if err != nil {
					return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
				}
				out.SetMapIndex(iter.Key().Convert(to.Key()), item)
			}
			return out, nil
		},
	}
}

func keyFits(from, to reflect.Type) bool {
	if from.AssignableTo(to) {
		return true
	}
	return from.Kind() == to.Kind() && from.ConvertibleTo(to)
}
