package mapk

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Level string

func TestRegisterEnum(t *testing.T) {
	reg := newTestRegistry(t, RegistryOpts{})

	require.NoError(t, RegisterEnum(reg, Level("debug"), Level("info")))
	set, ok := reg.enumFor(reflect.TypeFor[Level]())
	require.True(t, ok)
	assert.Equal(t, []string{"debug", "info"}, set.names())

	_, ok = reg.enumFor(reflect.TypeFor[Color]())
	assert.False(t, ok)

	tests := []struct {
		name   string
		action func() error
	}{
		{"no values", func() error { return RegisterEnum[Color](reg) }},
		{"interface", func() error { return RegisterEnum[fmt.Stringer](reg, Red) }},
		{"duplicate names", func() error { return RegisterEnum(reg, Level("a"), Level("a")) }},
		{"empty name", func() error { return RegisterEnum(reg, Level("")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.action(), ErrInvalidEnum)
		})
	}
}

func TestEnumParse(t *testing.T) {
	reg := newTestRegistry(t, RegistryOpts{})
	require.NoError(t, RegisterEnum(reg, Red, Green, Blue))

	set, ok := reg.enumFor(reflect.TypeFor[Color]())
	require.True(t, ok)

	v, err := set.parse("BLUE")
	require.NoError(t, err)
	assert.Equal(t, Blue, v.Interface())

	v, err = set.parse("")
	require.NoError(t, err)
	assert.Equal(t, Color(0), v.Interface())

	_, err = set.parse("Blue")
	require.ErrorIs(t, err, ErrUnknownEnumValue)
	assert.Contains(t, err.Error(), "[BLUE, GREEN, RED]")
}

func TestEnumReplacesValues(t *testing.T) {
	reg := newTestRegistry(t, RegistryOpts{})
	require.NoError(t, RegisterEnum(reg, Level("a")))
	require.NoError(t, RegisterEnum(reg, Level("b")))

	set, _ := reg.enumFor(reflect.TypeFor[Level]())
	assert.Equal(t, []string{"b"}, set.names())
}
