package mapk

import (
	"math/bits"
	"reflect"
)

// bitset tracks which bucket slots are initialized.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (s bitset) has(i int) bool {
	return s[i/64]&(1<<(uint(i)%64)) != 0
}

func (s bitset) set(i int) {
	s[i/64] |= 1 << (uint(i) % 64)
}

func (s bitset) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// argumentBucket collects the values of a target's leaf parameters. The first
// value put into a slot wins.
type argumentBucket struct {
	values []reflect.Value
	init   bitset
	// bound leaves excluding usedefault ones, for anyBound
	bound bitset
}

// newArgumentBucket returns an empty bucket for t with its usedefault
// parameters already filled in.
func newArgumentBucket(t *target) *argumentBucket {
	n := len(t.leaves)
	b := &argumentBucket{
		values: make([]reflect.Value, n),
		init:   newBitset(n),
		bound:  newBitset(n),
	}
	for _, leaf := range t.leaves {
		if leaf.useDefault {
			b.values[leaf.leaf] = leaf.defaultValue()
			b.init.set(leaf.leaf)
		}
	}
	return b
}

func (b *argumentBucket) clone() *argumentBucket {
	return &argumentBucket{
		values: append([]reflect.Value(nil), b.values...),
		init:   append(bitset(nil), b.init...),
		bound:  append(bitset(nil), b.bound...),
	}
}

// put stores v in slot i unless the slot is already initialized.
func (b *argumentBucket) put(i int, v reflect.Value) bool {
	if b.init.has(i) {
		return false
	}
	b.values[i] = v
	b.init.set(i)
	b.bound.set(i)
	return true
}

func (b *argumentBucket) has(i int) bool {
	return b.init.has(i)
}

// complete reports whether every slot is initialized.
func (b *argumentBucket) complete() bool {
	return b.init.count() == len(b.values)
}

// anyBound reports whether a source provided any leaf below t.
func (b *argumentBucket) anyBound(t *target) bool {
	for _, p := range t.slots {
		if p.nested != nil {
			if b.anyBound(p.nested) {
				return true
			}
			continue
		}
		if b.bound.has(p.leaf) {
			return true
		}
	}
	return false
}

// missing lists the parameter names, before aliases and name conversion, of
// required parameters below t that are not initialized. An optional flattened parameter none of whose leaves are
// bound is satisfied by its default.
func (b *argumentBucket) missing(t *target) []string {
	var names []string
	for _, p := range t.slots {
		switch {
		case p.nested != nil:
			if p.optional && !b.anyBound(p.nested) {
				continue
			}
			names = append(names, b.missing(p.nested)...)
		case !p.optional && !b.has(p.leaf):
			names = append(names, p.raw)
		}
	}
	return names
}
