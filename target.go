package mapk

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

var (
	ErrNoParameters       = errors.New("this function is not require arguments")
	ErrDuplicateParameter = errors.New("duplicate parameter name")
	ErrFlattenCycle       = errors.New("flatten parameters form a cycle")
	ErrInvalidDefault     = errors.New("invalid default value")
)

// target is a compiled target function. Flattened parameters are nested
// targets whose leaves share the root's argument bucket.
type target struct {
	typ    reflect.Type
	label  string
	slots  []*param
	invoke func(args []reflect.Value) (reflect.Value, error)

	// set on the root only
	leaves []*param
	byName map[string]*param
}

// param is one parameter of a target.
type param struct {
	name       string // looked up in sources
	raw        string // parameter name before aliases and name conversion
	label      string // Go name, for messages
	typ        reflect.Type
	optional   bool
	useDefault bool
	def        reflect.Value // explicit default, invalid when none
	convert    string

	leaf   int     // index in the root's leaves, -1 for flattened params
	nested *target // flattened params only

	memo sync.Map // reflect.Type -> *processor
}

func (p *param) defaultValue() reflect.Value {
	if p.def.IsValid() {
		return p.def
	}
	return reflect.Zero(p.typ)
}

// targetCompiler expands a signature into a target tree.
type targetCompiler struct {
	registry *Registry
	names    NameConverter
	root     *target
	stack    []reflect.Type // types being flattened
}

func compileTarget(reg *Registry, names NameConverter, sig *signature) (*target, error) {
	root := &target{
		typ:    sig.out,
		label:  sig.label,
		invoke: sig.invoke,
		byName: make(map[string]*param),
	}

	c := &targetCompiler{
		registry: reg,
		names:    names,
		root:     root,
		stack:    []reflect.Type{derefType(sig.out)},
	}
	if err := c.expand(root, sig, "", ""); err != nil {
		return nil, fmt.Errorf("%s: %w", sig.label, err)
	}

	if len(root.leaves) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoParameters, sig.label)
	}
	return root, nil
}

// expand adds the parameters of sig below node. prefix is the lookup prefix
// of a flattened parameter, rawPrefix the same prefix without aliases.
func (c *targetCompiler) expand(node *target, sig *signature, prefix, rawPrefix string) error {
	for _, spec := range sig.params {
		p, err := newParam(spec)
		if err != nil {
			return err
		}

		base := spec.raw
		if spec.opts.Alias != "" {
			base = spec.opts.Alias
		}
		p.raw = flattenName(rawPrefix, spec.raw)
		switch {
		case prefix != "":
			p.name = c.names(flattenName(prefix, base))
		case spec.opts.Alias != "":
			p.name = spec.opts.Alias
		default:
			p.name = c.names(spec.raw)
		}

		if spec.opts.Flatten && !spec.opts.UseDefault {
			if err := c.flatten(p, flattenName(prefix, base), p.raw); err != nil {
				return err
			}
			node.slots = append(node.slots, p)
			continue
		}

		if prev, dup := c.root.byName[p.name]; dup {
			return fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateParameter, p.name, prev.label, p.label)
		}
		p.leaf = len(c.root.leaves)
		c.root.leaves = append(c.root.leaves, p)
		c.root.byName[p.name] = p
		node.slots = append(node.slots, p)
	}
	return nil
}

func (c *targetCompiler) flatten(p *param, prefix, rawPrefix string) error {
	base := derefType(p.typ)
	if slices.Contains(c.stack, base) {
		return fmt.Errorf("%w: %v", ErrFlattenCycle, base)
	}

	sig, err := c.registry.targetFor(p.typ)
	if err != nil {
		return fmt.Errorf("flatten %s: %w", p.label, err)
	}

	nested := &target{
		typ:    sig.out,
		label:  sig.label,
		invoke: sig.invoke,
	}

	c.stack = append(c.stack, base)
	err = c.expand(nested, sig, prefix, rawPrefix)
	c.stack = c.stack[:len(c.stack)-1]
	if err != nil {
		return err
	}

	p.leaf = -1
	p.nested = nested
	return nil
}

func newParam(spec paramSpec) (*param, error) {
	p := &param{
		label:      spec.label,
		typ:        spec.typ,
		optional:   spec.opts.Optional || spec.opts.UseDefault,
		useDefault: spec.opts.UseDefault,
		convert:    spec.opts.Converter,
	}

	switch {
	case spec.opts.Default != nil:
		def, ok := fitValue(reflect.ValueOf(spec.opts.Default), spec.typ)
		if !ok {
			return nil, fmt.Errorf("%w: %s: %T is not assignable to %v", ErrInvalidDefault, spec.label, spec.opts.Default, spec.typ)
		}
		p.def = def
		p.optional = true
	case spec.hasLiteral:
		def, err := parseLiteral(spec.typ, spec.literal)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDefault, spec.label, err)
		}
		p.def = def
		p.optional = true
	}

	return p, nil
}

// call builds the target's arguments from b and invokes it. Unbound
// optional parameters take their default.
func (t *target) call(b *argumentBucket) (reflect.Value, error) {
	args := make([]reflect.Value, len(t.slots))
	for i, p := range t.slots {
		switch {
		case p.nested != nil:
			if p.optional && !b.anyBound(p.nested) {
				args[i] = p.defaultValue()
				continue
			}
			v, err := p.nested.call(b)
			if err != nil {
				return reflect.Value{}, err
			}
			args[i] = v
		case b.has(p.leaf):
			args[i] = b.values[p.leaf]
		default:
			args[i] = p.defaultValue()
		}
	}
	return t.invoke(args)
}
