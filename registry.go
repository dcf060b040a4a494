package mapk

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUnknownConverterSet = errors.New("no converter set registered with this name")
)

// Registry holds what a mapper consults besides the types themselves:
// converters keyed by the type they produce, named converter sets selected
// by the `convert` tag item, enum value sets and marked constructors.
//
// A Registry is safe for concurrent use. Mappers memoize their decisions, so
// registrations made after a mapper first saw a source type do not affect it.
type Registry struct {
	mu         sync.RWMutex
	converters map[reflect.Type][]Converter // produced type -> converters
	named      map[string][]Converter       // set name -> converters
	enums      map[reflect.Type]*enumSet    // enum type -> values
	ctors      map[reflect.Type][]*Func     // produced type -> marked constructors

	declaredConverters *TypeCache[reflect.Type, []Converter]
	declaredCtors      *TypeCache[reflect.Type, []*Func]
}

// RegistryOpts configures a new Registry.
type RegistryOpts struct {
	// Converters are registered for the type they produce.
	Converters []Converter
	// NamedConverters are the sets selected by a `convert` tag item.
	NamedConverters map[string][]Converter
	// Constructors are marked constructors of the type they produce.
	Constructors []*Func
	// ExcludeDefaults leaves out the built-in []byte, string and uuid
	// converters.
	ExcludeDefaults bool
}

var (
	_defaultConverters []Converter = nil
)

// NewRegistry returns a Registry holding the default converters, unless
// excluded, followed by those in opts.
func NewRegistry(opts RegistryOpts) (*Registry, error) {
	reg := &Registry{
		converters:         make(map[reflect.Type][]Converter),
		named:              make(map[string][]Converter),
		enums:              make(map[reflect.Type]*enumSet),
		ctors:              make(map[reflect.Type][]*Func),
		declaredConverters: NewTypeCache[reflect.Type, []Converter](),
		declaredCtors:      NewTypeCache[reflect.Type, []*Func](),
	}

	if !opts.ExcludeDefaults {
		if err := reg.RegisterConverter(_defaultConverters...); err != nil {
			return nil, err
		}
	}

	if err := reg.RegisterConverter(opts.Converters...); err != nil {
		return nil, err
	}

	for name, converters := range opts.NamedConverters {
		if err := reg.RegisterNamedConverters(name, converters...); err != nil {
			return nil, err
		}
	}

	if err := reg.RegisterConstructor(opts.Constructors...); err != nil {
		return nil, err
	}

	return reg, nil
}

// RegisterConverter adds converters keyed by the type they produce. Earlier
// registrations take precedence over later ones.
func (reg *Registry) RegisterConverter(converters ...Converter) error {
	for _, c := range converters {
		if err := c.validate(); err != nil {
			return err
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, c := range converters {
		reg.converters[c.to] = append(reg.converters[c.to], c)
	}
	return nil
}

// RegisterNamedConverters adds converters to the set selected by a
// `convert:'<name>'` tag item or ParamOpts.Converter.
func (reg *Registry) RegisterNamedConverters(name string, converters ...Converter) error {
	if name == "" {
		return fmt.Errorf("%w: converter set name", ErrEmptyTagValue)
	}
	for _, c := range converters {
		if err := c.validate(); err != nil {
			return err
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.named[name] = append(reg.named[name], converters...)
	return nil
}

// RegisterConstructor marks factory functions as the constructor of the type
// they produce. A type with exactly one marked constructor is always built
// through it.
func (reg *Registry) RegisterConstructor(funcs ...*Func) error {
	for _, f := range funcs {
		if f == nil {
			return fmt.Errorf("%w: nil", ErrInvalidFunc)
		}
		if err := f.Err(); err != nil {
			return err
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, f := range funcs {
		reg.ctors[f.out] = append(reg.ctors[f.out], f)
	}
	return nil
}

// findConverter returns the converter to use for a parameter of type to fed
// by a value of type from. Candidates come from the named set first, then
// the converters registered for the type, then those the type declares. In
// strict mode more than one match is an error.
func (reg *Registry) findConverter(set string, to, from reflect.Type, strict bool) (*Converter, error) {
	candidates, err := reg.converterCandidates(set, to)
	if err != nil {
		return nil, err
	}

	var found *Converter
	for i := range candidates {
		if !candidates[i].accepts(from) {
			continue
		}
		if found == nil {
			found = &candidates[i]
			if !strict {
				break
			}
			continue
		}
		return nil, fmt.Errorf("%w: %v to %v", ErrMultipleConverters, from, to)
	}
	return found, nil
}

func (reg *Registry) converterCandidates(set string, to reflect.Type) ([]Converter, error) {
	var candidates []Converter

	reg.mu.RLock()
	if set != "" {
		named, ok := reg.named[set]
		if !ok {
			reg.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownConverterSet, set)
		}
		for _, c := range named {
			if c.produces(to) {
				candidates = append(candidates, c)
			}
		}
	}
	candidates = append(candidates, reg.converters[to]...)
	if to.Kind() == reflect.Pointer {
		candidates = append(candidates, reg.converters[to.Elem()]...)
	}
	reg.mu.RUnlock()

	declared, err := reg.declaredConvertersOf(derefType(to))
	if err != nil {
		return nil, err
	}
	for _, c := range declared {
		if c.produces(to) {
			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}

func (reg *Registry) declaredConvertersOf(t reflect.Type) ([]Converter, error) {
	return reg.declaredConverters.GetOrBuild(t, func() ([]Converter, error) {
		provider, ok := zeroValueAs[ConverterProvider](t)
		if !ok {
			return nil, nil
		}

		converters := provider.MapkConverters()
		for _, c := range converters {
			if err := c.validate(); err != nil {
				return nil, fmt.Errorf("%v.MapkConverters: %w", t, err)
			}
		}
		return converters, nil
	})
}

// constructorsFor returns the marked constructors producing t.
func (reg *Registry) constructorsFor(t reflect.Type) ([]*Func, error) {
	reg.mu.RLock()
	ctors := append([]*Func(nil), reg.ctors[t]...)
	reg.mu.RUnlock()

	declared, err := reg.declaredCtors.GetOrBuild(t, func() ([]*Func, error) {
		provider, ok := zeroValueAs[ConstructorProvider](t)
		if !ok {
			return nil, nil
		}

		funcs := provider.MapkConstructors()
		for _, f := range funcs {
			if f == nil {
				return nil, fmt.Errorf("%v.MapkConstructors: %w: nil", t, ErrInvalidFunc)
			}
			if err := f.Err(); err != nil {
				return nil, fmt.Errorf("%v.MapkConstructors: %w", t, err)
			}
			if f.out != t {
				return nil, fmt.Errorf("%v.MapkConstructors: %w: %s produces %v", t, ErrInvalidFunc, f, f.out)
			}
		}
		return funcs, nil
	})
	if err != nil {
		return nil, err
	}

	return append(ctors, declared...), nil
}

// zeroValueAs returns the zero value of t, or a pointer to it, as an I.
// Pointer types never declare anything; their element type does.
func zeroValueAs[I any](t reflect.Type) (I, bool) {
	var zero I

	iface := reflect.TypeFor[I]()
	switch {
	case t.Kind() == reflect.Pointer:
		return zero, false
	case t.Implements(iface):
		if i, ok := reflect.Zero(t).Interface().(I); ok {
			return i, true
		}
	case t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(iface):
		return reflect.New(t).Interface().(I), true
	}

	return zero, false
}

///////////////////////////////////////////////////////////////////////////////
// Global Singleton and Package Functions
///////////////////////////////////////////////////////////////////////////////

var _gRegistry *Registry = nil

func init() {
	_defaultConverters = []Converter{
		ConverterFunc(func(b []byte) string { return string(b) }),
		ConverterFunc(func(s string) []byte { return []byte(s) }),
		NewConverter(uuid.FromBytes),
	}

	var err error
	_gRegistry, err = NewRegistry(RegistryOpts{ExcludeDefaults: false})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize global Registry: %v", err))
	}
}

// Package-level functions that delegate to the global Registry instance

// DefaultRegistry returns the registry used by mappers built without one.
func DefaultRegistry() *Registry {
	return _gRegistry
}

// RegisterConverter adds converters to the default registry.
func RegisterConverter(converters ...Converter) error {
	return _gRegistry.RegisterConverter(converters...)
}

// RegisterNamedConverters adds a converter set to the default registry.
func RegisterNamedConverters(name string, converters ...Converter) error {
	return _gRegistry.RegisterNamedConverters(name, converters...)
}

// RegisterConstructor marks constructors on the default registry.
func RegisterConstructor(funcs ...*Func) error {
	return _gRegistry.RegisterConstructor(funcs...)
}
