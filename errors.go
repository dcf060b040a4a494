package mapk

import (
	"errors"
	"fmt"
	"reflect"
)

// Base Error types for mapping errors
var (
	ErrMissingArguments    = errors.New("not passed arguments")
	ErrCannotConvert       = errors.New("can not convert value")
	ErrUnsupportedSource   = errors.New("unsupported source type")
	ErrNilSource           = errors.New("source cannot be nil")
	ErrTargetFailed        = errors.New("target function failed")
	ErrPropertyNotDeclared = errors.New("property not declared on source")
	ErrValidationFailed    = errors.New("validation failed after mapping")
)

// MappingError reports a failure to produce the value of one parameter.
// Errors raised by nested mappings are wrapped, so the chain of Param values
// describes the path to the failing value.
type MappingError struct {
	Param    string
	SrcType  reflect.Type
	DestType reflect.Type
	Err      error
}

func (e *MappingError) Error() string {
	if e.SrcType != nil {
		return fmt.Sprintf("mapping error for parameter '%s' (%v -> %v): %v",
			e.Param, e.SrcType, e.DestType, e.Err)
	}
	return fmt.Sprintf("mapping error for parameter '%s' (%v): %v", e.Param, e.DestType, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

func newMappingError(p *param, src reflect.Type, err error) error {
	return &MappingError{
		Param:    p.name,
		SrcType:  src,
		DestType: p.typ,
		Err:      err,
	}
}
