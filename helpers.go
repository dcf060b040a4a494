package mapk

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedLiteral = errors.New("unsupported literal target type")
	ErrNotRepresentable   = errors.New("value is not representable in target type")
)

///////////////////////////////////////////////////////////////////////////////
// Literals
///////////////////////////////////////////////////////////////////////////////

// parseLiteral builds a value of type t from a default tag literal.
func parseLiteral(t reflect.Type, literal string) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	if err := setLiteral(v, literal); err != nil {
		return reflect.Value{}, fmt.Errorf("default %q for %v: %w", literal, t, err)
	}
	return v, nil
}

// Set field value from a literal with type conversion
//
// Currently supports:
//   - string, bool, int, uint, float and complex kinds (with overflow checking)
//   - []byte (raw byte slice)
//   - uuid.UUID and time.Time
//   - pointers to any of the above
//   - TextUnmarshaler support for custom types
//   - empty interface (stored as string)
func setLiteral(field reflect.Value, value string) error {
	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := setLiteral(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	// time.Time unmarshals RFC3339 only, the literal layouts are wider
	if field.Type() == TimeType {
		return setTimeLiteral(field, value)
	}

	// Check for TextUnmarshaler interface
	if field.CanAddr() {
		if unmarshaler, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return unmarshaler.UnmarshalText([]byte(value))
		}
	}

	if value == "" {
		return setEmptyLiteral(field)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return setIntLiteral(field, value)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return setUintLiteral(field, value)
	case reflect.Float32, reflect.Float64:
		return setFloatLiteral(field, value)
	case reflect.Complex64, reflect.Complex128:
		return setComplexLiteral(field, value)
	case reflect.Bool:
		return setBoolLiteral(field, value)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.Uint8 {
			field.SetBytes([]byte(value))
			return nil
		}
	case reflect.Array:
		if field.Type() == UUIDType {
			id, err := uuid.Parse(value)
			if err != nil {
				return fmt.Errorf("error converting value to UUID: %w", err)
			}
			field.Set(reflect.ValueOf(id))
			return nil
		}
	case reflect.Interface:
		if field.NumMethod() == 0 {
			field.Set(reflect.ValueOf(value))
			return nil
		}
	}

	return fmt.Errorf("%w: %v", ErrUnsupportedLiteral, field.Type())
}

// setEmptyLiteral handles empty literals for different field types
func setEmptyLiteral(field reflect.Value) error {
	switch field.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Interface:
		field.SetZero()
		return nil
	default:
		return fmt.Errorf("cannot set empty value for field type: %v", field.Type())
	}
}

// setIntLiteral sets integer field values with overflow checking
func setIntLiteral(field reflect.Value, value string) error {
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("error converting value to int: %w", err)
	}

	if field.OverflowInt(intValue) {
		return fmt.Errorf("value %d overflows %v", intValue, field.Type())
	}

	field.SetInt(intValue)
	return nil
}

// setUintLiteral sets unsigned integer field values with overflow checking
func setUintLiteral(field reflect.Value, value string) error {
	uintValue, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fmt.Errorf("error converting value to uint: %w", err)
	}

	if field.OverflowUint(uintValue) {
		return fmt.Errorf("value %d overflows %v", uintValue, field.Type())
	}

	field.SetUint(uintValue)
	return nil
}

// setFloatLiteral sets float field values with overflow checking
func setFloatLiteral(field reflect.Value, value string) error {
	floatValue, err := strconv.ParseFloat(value, field.Type().Bits())
	if err != nil {
		return fmt.Errorf("error converting value to float: %w", err)
	}

	if field.OverflowFloat(floatValue) {
		return fmt.Errorf("value %f overflows %v", floatValue, field.Type())
	}

	field.SetFloat(floatValue)
	return nil
}

func setComplexLiteral(field reflect.Value, value string) error {
	complexValue, err := strconv.ParseComplex(value, field.Type().Bits())
	if err != nil {
		return fmt.Errorf("error converting value to complex: %w", err)
	}
	field.SetComplex(complexValue)
	return nil
}

// setBoolLiteral accepts "yes"/"no" and "on"/"off" besides strconv.ParseBool.
func setBoolLiteral(field reflect.Value, value string) error {
	switch strings.ToLower(value) {
	case "yes", "on":
		field.SetBool(true)
		return nil
	case "no", "off":
		field.SetBool(false)
		return nil
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("error converting value to bool: %w", err)
	}
	field.SetBool(boolValue)
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
}

func setTimeLiteral(field reflect.Value, value string) error {
	var (
		ts  time.Time
		err error
	)
	for _, layout := range timeLayouts {
		if ts, err = time.Parse(layout, value); err == nil {
			field.Set(reflect.ValueOf(ts))
			return nil
		}
	}
	return fmt.Errorf("error converting value to time.Time: %w", err)
}

///////////////////////////////////////////////////////////////////////////////
// Numbers
///////////////////////////////////////////////////////////////////////////////

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// convertNumber converts between numeric kinds, refusing conversions that
// would truncate a fraction or overflow the target.
func convertNumber(v reflect.Value, to reflect.Type) (reflect.Value, error) {
	out := reflect.New(to).Elem()

	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := numberAsInt(v)
		if !ok || out.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("%w: %v to %v", ErrNotRepresentable, v.Interface(), to)
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, ok := numberAsUint(v)
		if !ok || out.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("%w: %v to %v", ErrNotRepresentable, v.Interface(), to)
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f := numberAsFloat(v)
		if out.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%w: %v to %v", ErrNotRepresentable, v.Interface(), to)
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, fmt.Errorf("%w: %v is not numeric", ErrNotRepresentable, to)
	}

	return out, nil
}

func numberAsInt(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		return int64(u), u <= math.MaxInt64
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func numberAsUint(v reflect.Value) (uint64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		return uint64(i), i >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(f), true
	}
	return 0, false
}

func numberAsFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint())
	}
	return v.Float()
}

///////////////////////////////////////////////////////////////////////////////
// Types
///////////////////////////////////////////////////////////////////////////////

// isSpecialStructType checks if a struct type should be treated as a leaf
// rather than being mapped recursively. Special types include time.Time,
// uuid.UUID, etc.
func isSpecialStructType(t reflect.Type) bool {
	// List of struct types that should be treated as primitives
	specialTypes := []reflect.Type{TimeType, UUIDType}

	for _, specialType := range specialTypes {
		if t == specialType {
			return true
		}
	}
	return false
}

// derefType strips every pointer level from t.
func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// unwrapValue strips interfaces and pointers. It returns the invalid Value
// when it meets a nil along the way.
func unwrapValue(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// unwrapInterface strips interface wrappers only, keeping pointers intact.
func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// fitValue adapts v to t by assignment, taking an address or dereferencing.
func fitValue(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	switch {
	case v.Type().AssignableTo(t):
		if v.Type() != t {
			out := reflect.New(t).Elem()
			out.Set(v)
			return out, true
		}
		return v, true
	case t.Kind() == reflect.Pointer && v.Type().AssignableTo(t.Elem()):
		out := reflect.New(t.Elem())
		out.Elem().Set(v)
		return out, true
	case v.Kind() == reflect.Pointer && v.Type().Elem().AssignableTo(t):
		if v.IsNil() {
			return reflect.Zero(t), true
		}
		return fitValue(v.Elem(), t)
	}
	return reflect.Value{}, false
}

// implementsTextUnmarshaler reports whether *t can unmarshal text.
func implementsTextUnmarshaler(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(TextUnmarshalerType)
}
