package mapk

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Pair is a single key-value source.
type Pair struct {
	Key   string
	Value any
}

// KV returns the Pair key -> value.
func KV(key string, value any) Pair {
	return Pair{Key: key, Value: value}
}

// Source is a keyed source implemented by the caller.
type Source interface {
	// Lookup returns the value stored under name and whether it exists. A
	// nil value binds the zero value of the parameter.
	Lookup(name string) (any, bool)
	// Keys lists the names the source can provide. Mappers look names up
	// with Lookup only; Keys is for callers that enumerate a source.
	Keys() []string
}

// sourceView looks parameters up in one source value.
type sourceView interface {
	lookup(p *param) (reflect.Value, bool, error)
}

// isKeyedType reports whether values of t are looked up by name.
func isKeyedType(t reflect.Type) bool {
	switch t {
	case PairType, GJSONResultType, YAMLNodeType, URLValuesType:
		return true
	}
	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		return true
	}
	return t.Implements(SourceType) || reflect.PointerTo(t).Implements(SourceType)
}

// viewOf adapts a source value. A nil source yields a nil view.
func viewOf(src reflect.Value) (sourceView, error) {
	v := unwrapInterface(src)
	if !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return nil, nil
	}
	if v.Type().Implements(SourceType) {
		return userView{v.Interface().(Source)}, nil
	}

	v = unwrapValue(v)
	if !v.IsValid() {
		return nil, nil
	}
	if !v.CanAddr() {
		c := reflect.New(v.Type()).Elem()
		c.Set(v)
		v = c
	}
	if s, ok := v.Addr().Interface().(Source); ok {
		return userView{s}, nil
	}

	t := v.Type()
	switch {
	case t == PairType:
		return pairView(v.Interface().(Pair)), nil
	case t == GJSONResultType:
		return newGJSONView(v.Interface().(gjson.Result))
	case t == YAMLNodeType:
		return newYAMLView(v.Addr().Interface().(*yaml.Node))
	case t == URLValuesType:
		return urlValuesView(v.Interface().(url.Values)), nil
	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String:
		return mapView{v}, nil
	case t.Kind() == reflect.Struct && !isSpecialStructType(t):
		props, err := propertiesOf(t)
		if err != nil {
			return nil, err
		}
		return structView{props: props, v: v}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, t)
}

///////////////////////////////////////////////////////////////////////////////
// Keyed Views
///////////////////////////////////////////////////////////////////////////////

type pairView Pair

func (pv pairView) lookup(p *param) (reflect.Value, bool, error) {
	if pv.Key != p.name {
		return reflect.Value{}, false, nil
	}
	return reflect.ValueOf(pv.Value), true, nil
}

type userView struct {
	src Source
}

func (uv userView) lookup(p *param) (reflect.Value, bool, error) {
	value, ok := uv.src.Lookup(p.name)
	return reflect.ValueOf(value), ok, nil
}

type mapView struct {
	m reflect.Value
}

func (mv mapView) lookup(p *param) (reflect.Value, bool, error) {
	key := reflect.ValueOf(p.name).Convert(mv.m.Type().Key())
	value := mv.m.MapIndex(key)
	if !value.IsValid() {
		return reflect.Value{}, false, nil
	}
	return unwrapInterface(value), true, nil
}

// urlValuesView yields the first value of a key, or all of them when the
// parameter is a slice.
type urlValuesView url.Values

func (uv urlValuesView) lookup(p *param) (reflect.Value, bool, error) {
	values, ok := uv[p.name]
	if !ok {
		return reflect.Value{}, false, nil
	}

	t := derefType(p.typ)
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		return reflect.ValueOf(values), true, nil
	}
	if len(values) == 0 {
		return reflect.Value{}, true, nil
	}
	return reflect.ValueOf(values[0]), true, nil
}

// gjsonView exposes the members of a JSON object. Nested objects stay
// gjson.Result so they map recursively; arrays become []any.
type gjsonView map[string]gjson.Result

func newGJSONView(r gjson.Result) (gjsonView, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("%w: JSON %s is not an object", ErrUnsupportedSource, r.Type)
	}

	view := make(gjsonView)
	r.ForEach(func(key, value gjson.Result) bool {
		view[key.String()] = value
		return true
	})
	return view, nil
}

func (gv gjsonView) lookup(p *param) (reflect.Value, bool, error) {
	r, ok := gv[p.name]
	if !ok {
		return reflect.Value{}, false, nil
	}
	return reflect.ValueOf(gjsonValue(r)), true, nil
}

func gjsonValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False, gjson.True:
		return r.Bool()
	case gjson.String:
		return r.Str
	case gjson.Number:
		// integers outside the int64 range keep their value as uint64 or float64
		if _, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return r.Int()
		}
		if _, err := strconv.ParseUint(r.Raw, 10, 64); err == nil {
			return r.Uint()
		}
		return r.Float()
	}

	if r.IsObject() {
		return r
	}
	if r.IsArray() {
		items := r.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = gjsonValue(item)
		}
		return out
	}
	return r.Value()
}

// yamlView exposes the entries of a YAML mapping node. Nested mappings stay
// *yaml.Node so they map recursively; sequences become []any.
type yamlView map[string]*yaml.Node

func newYAMLView(n *yaml.Node) (yamlView, error) {
	n = resolveYAMLNode(n)
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: YAML node %s is not a mapping", ErrUnsupportedSource, n.Tag)
	}

	view := make(yamlView, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if _, dup := view[key]; !dup {
			view[key] = n.Content[i+1]
		}
	}
	return view, nil
}

func (yv yamlView) lookup(p *param) (reflect.Value, bool, error) {
	n, ok := yv[p.name]
	if !ok {
		return reflect.Value{}, false, nil
	}

	value, err := yamlValue(n)
	if err != nil {
		return reflect.Value{}, true, newMappingError(p, nil, err)
	}
	return reflect.ValueOf(value), true, nil
}

func resolveYAMLNode(n *yaml.Node) *yaml.Node {
	for {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) == 1:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
}

func yamlValue(n *yaml.Node) (any, error) {
	n = resolveYAMLNode(n)

	switch n.Kind {
	case yaml.MappingNode:
		return n, nil
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, item := range n.Content {
			value, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	}

	var value any
	if err := n.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

///////////////////////////////////////////////////////////////////////////////
// Struct Sources
///////////////////////////////////////////////////////////////////////////////

type structView struct {
	props *propertySet
	v     reflect.Value // addressable
}

func (sv structView) lookup(p *param) (reflect.Value, bool, error) {
	prop, ok := sv.props.byName[p.name]
	if !ok {
		return reflect.Value{}, false, nil
	}
	return prop.get(sv.v), true, nil
}

// property is a readable member of a struct source: an exported field or a
// getter method.
type property struct {
	name   string
	goName string
	typ    reflect.Type
	index  []int // field path, nil for getters
	method int   // index in the pointer method set
}

// get reads the property from an addressable struct value. Fields behind a
// nil embedded pointer read as nil.
func (p *property) get(v reflect.Value) reflect.Value {
	if p.index == nil {
		return v.Addr().Method(p.method).Call(nil)[0]
	}

	field, err := v.FieldByIndexErr(p.index)
	if err != nil {
		return reflect.Value{}
	}
	return field
}

type propertySet struct {
	typ    reflect.Type
	props  []*property
	byName map[string]*property
}

var _propertyCache = NewTypeCache[reflect.Type, *propertySet]()

// propertiesOf returns the cached properties of struct type t.
func propertiesOf(t reflect.Type) (*propertySet, error) {
	return _propertyCache.GetOrBuild(t, func() (*propertySet, error) {
		return buildPropertySet(t)
	})
}

func buildPropertySet(t reflect.Type) (*propertySet, error) {
	set := &propertySet{
		typ:    t,
		byName: make(map[string]*property),
	}

	add := func(p *property) {
		if _, exists := set.byName[p.name]; exists {
			return
		}
		set.props = append(set.props, p)
		set.byName[p.name] = p
	}

	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() {
			continue
		}

		tag, err := DecodeFieldTag(field)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", t, err)
		}
		if tag.Ignore {
			continue
		}

		name := tag.Alias
		if name == "" {
			name = parameterName(field.Name)
		}
		add(&property{
			name:   name,
			goName: field.Name,
			typ:    field.Type,
			index:  field.Index,
		})
	}

	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if !isGetter(m) {
			continue
		}
		add(&property{
			name:   getterName(m.Name),
			goName: m.Name,
			typ:    m.Type.Out(0),
			method: i,
		})
	}

	return set, nil
}

// isGetter accepts exported methods taking no arguments and returning one
// value, except well-known methods that are not accessors.
func isGetter(m reflect.Method) bool {
	if !m.IsExported() || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
		return false
	}
	if reservedGetterNames[m.Name] {
		return false
	}
	for _, prefix := range []string{"Mapk", "Marshal", "Unmarshal"} {
		if strings.HasPrefix(m.Name, prefix) {
			return false
		}
	}
	return true
}

// getterName names a getter's property: "Name" and "GetName" are both "name".
func getterName(method string) string {
	if rest, ok := strings.CutPrefix(method, "Get"); ok && rest != "" {
		if r := []rune(rest)[0]; unicode.IsUpper(r) {
			return parameterName(rest)
		}
	}
	return parameterName(method)
}
