package mapk

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
)

//////////////////////////////////////////////////////////////
// Fixtures
//////////////////////////////////////////////////////////////

type Person struct {
	ID    int
	Name  string
	Email *string
}

type account struct {
	ID     int
	first  string
	last   string
	Secret string `mapk:"-"`
	email  string
}

func (a account) Name() string { return a.first + " " + a.last }

func (a *account) GetEmail() *string { return &a.email }

type Address struct {
	City string
	Zip  string
}

type Customer struct {
	Name    string
	Address Address
	Billing *Address
}

type addressRow struct {
	City string
	Zip  string
}

type customerRow struct {
	Name    string
	Address addressRow
	Billing *addressRow
}

type Settings struct {
	Host    string
	Port    int      `mapk:"default:'8080'"`
	Debug   bool     `mapk:"optional"`
	Tags    []string `mapk:"optional"`
	Version string   `mapk:"usedefault default:'v1'"`
	Cache   []byte   `mapk:"-"`
}

type Money struct {
	Amount   int
	Currency string
}

type Order struct {
	ID       int
	Price    Money  `mapk:"flatten"`
	Discount *Money `mapk:"flatten optional"`
}

type Color int

const (
	Red Color = iota + 1
	Green
	Blue
)

func (c Color) String() string {
	switch c {
	case Red:
		return "RED"
	case Green:
		return "GREEN"
	case Blue:
		return "BLUE"
	}
	return fmt.Sprintf("Color(%d)", int(c))
}

type Paint struct {
	Color Color
}

type Event struct {
	ID    uuid.UUID
	At    time.Time
	Label string
}

type Team struct {
	Name    string
	Members []Person
}

type Cents int64

type Invoice struct {
	Total Cents
}

func parseCents(s string) (Cents, error) {
	whole, frac, _ := strings.Cut(s, ".")
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseInt(frac+strings.Repeat("0", 2-len(frac)), 10, 64)
	if err != nil {
		return 0, err
	}
	return Cents(w*100 + f), nil
}

type Percent float64

func (Percent) MapkConverters() []Converter {
	return []Converter{
		NewConverter(func(s string) (Percent, error) {
			f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
			return Percent(f / 100), err
		}),
	}
}

type Ratio struct {
	Share Percent
}

type Point struct {
	x, y int
}

func newPoint(x, y int) (Point, error) {
	if x < 0 || y < 0 {
		return Point{}, errors.New("negative coordinate")
	}
	return Point{x: x, y: y}, nil
}

type Temperature struct {
	Kelvin float64
}

func (Temperature) MapkConstructors() []*Func {
	return []*Func{
		NewFunc(func(celsius float64) Temperature {
			return Temperature{Kelvin: celsius + 273.15}
		}, "celsius"),
	}
}

type Signup struct {
	Email string
}

func (s Signup) Validate() error {
	if !strings.Contains(s.Email, "@") {
		return errors.New("invalid email")
	}
	return nil
}

// envSource is a map, but its Source implementation wins.
type envSource map[string]string

func (e envSource) Lookup(name string) (any, bool) {
	v, ok := e[strings.ToUpper(name)]
	return v, ok
}

func (e envSource) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	return keys
}

func newTestRegistry(t *testing.T, opts RegistryOpts) *Registry {
	t.Helper()
	reg, err := NewRegistry(opts)
	require.NoError(t, err)
	return reg
}

//////////////////////////////////////////////////////////////
// Basic mapping
//////////////////////////////////////////////////////////////

func TestMapperFromMap(t *testing.T) {
	m, err := NewMapper[Person](MapperOpts{})
	require.NoError(t, err)

	got, err := m.Map(map[string]any{"id": 1, "name": "Alice", "email": "alice@example.com"})
	require.NoError(t, err)

	want := Person{ID: 1, Name: "Alice", Email: ptr("alice@example.com")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}
}

func TestMapperFromTypedMap(t *testing.T) {
	type Labels struct {
		Env  string
		Team string
	}

	m := Must(NewMapper[Labels](MapperOpts{}))
	got, err := m.Map(map[string]string{"env": "prod", "team": "core", "extra": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, Labels{Env: "prod", Team: "core"}, got)
}

func TestMapperMissingArguments(t *testing.T) {
	m := Must(NewMapper[Person](MapperOpts{}))

	_, err := m.Map(map[string]any{"id": 1})
	require.ErrorIs(t, err, ErrMissingArguments)
	assert.EqualError(t, err, "not passed arguments: name, email")

	_, err = m.Map(nil)
	assert.ErrorIs(t, err, ErrMissingArguments)
}

func TestMapperNilValueBindsZero(t *testing.T) {
	m := Must(NewMapper[Person](MapperOpts{}))

	got, err := m.Map(map[string]any{"id": nil, "name": "Bob", "email": nil})
	require.NoError(t, err)
	assert.Equal(t, Person{Name: "Bob"}, got)
}

func TestMapperUnsupportedSource(t *testing.T) {
	m := Must(NewMapper[Person](MapperOpts{}))

	_, err := m.Map(42)
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestMapperMapAllFirstWins(t *testing.T) {
	m := Must(NewMapper[Person](MapperOpts{}))

	got, err := m.MapAll(
		KV("id", 1),
		KV("id", 2),
		map[string]any{"name": "Carol", "email": nil, "id": 3},
	)
	require.NoError(t, err)
	assert.Equal(t, Person{ID: 1, Name: "Carol"}, got)
}

func TestMapperMapAllStopsWhenComplete(t *testing.T) {
	m := Must(NewMapper[Person](MapperOpts{}))

	// The trailing source is never read, so its type does not matter.
	got, err := m.MapAll(map[string]any{"id": 1, "name": "Dan", "email": "d@x"}, 42)
	require.NoError(t, err)
	assert.Equal(t, "Dan", got.Name)
}

func TestMapperPairToString(t *testing.T) {
	type Holder struct {
		Value string
	}

	m := Must(NewMapper[Holder](MapperOpts{}))
	got, err := m.Map(KV("value", 1))
	require.NoError(t, err)
	assert.Equal(t, Holder{Value: "1"}, got)
}

func TestMapperPointerDestination(t *testing.T) {
	m := Must(NewMapper[*Address](MapperOpts{}))

	got, err := m.Map(map[string]any{"city": "Oslo", "zip": "0150"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, Address{City: "Oslo", Zip: "0150"}, *got)
}

//////////////////////////////////////////////////////////////
// Struct sources
//////////////////////////////////////////////////////////////

func TestMapperFromStructWithGetters(t *testing.T) {
	m := Must(NewMapper[Person](MapperOpts{}))

	src := account{ID: 7, first: "Ada", last: "Lovelace", Secret: "s", email: "ada@example.com"}
	got, err := m.Map(src)
	require.NoError(t, err)

	want := Person{ID: 7, Name: "Ada Lovelace", Email: ptr("ada@example.com")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}

	// pointers to structs are sources too
	got, err = m.Map(&src)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name)
}

func TestMapperGetterAliasAndIgnore(t *testing.T) {
	type profile struct {
		Handle string `mapk:"name:'name'"`
		Name   string `mapk:"ignore"`
		ID     int
		Email  *string
	}

	m := Must(NewMapper[Person](MapperOpts{}))
	got, err := m.Map(profile{Handle: "ada", Name: "hidden", ID: 1})
	require.NoError(t, err)
	assert.Equal(t, Person{ID: 1, Name: "ada"}, got)
}

func TestMapperEmbeddedSourceFields(t *testing.T) {
	type Base struct {
		ID int
	}
	type withBase struct {
		Base
		Name  string
		Email *string
	}

	m := Must(NewMapper[Person](MapperOpts{}))
	got, err := m.Map(withBase{Base: Base{ID: 9}, Name: "Eve"})
	require.NoError(t, err)
	assert.Equal(t, Person{ID: 9, Name: "Eve"}, got)
}

//////////////////////////////////////////////////////////////
// Parameter options
//////////////////////////////////////////////////////////////

func TestMapperParameterAlias(t *testing.T) {
	type Renamed struct {
		UserName string `mapk:"name:'user-name'"`
		UserAge  int
	}

	m := Must(NewMapper[Renamed](MapperOpts{NameConverter: SnakeCase}))
	got, err := m.Map(map[string]any{"user-name": "x", "user_age": 3})
	require.NoError(t, err)
	assert.Equal(t, Renamed{UserName: "x", UserAge: 3}, got)
}

func TestMapperMissingArgumentsUseParameterNames(t *testing.T) {
	type Renamed struct {
		UserName string `mapk:"name:'user-name'"`
		UserAge  int
	}

	m := Must(NewMapper[Renamed](MapperOpts{NameConverter: SnakeCase}))
	_, err := m.Map(map[string]any{})
	assert.EqualError(t, err, "not passed arguments: userName, userAge")

	o := Must(NewMapper[Order](MapperOpts{NameConverter: SnakeCase}))
	_, err = o.Map(map[string]any{"id": 1, "price_amount": 1})
	assert.EqualError(t, err, "not passed arguments: priceCurrency")
}

func TestMapperDefaults(t *testing.T) {
	m := Must(NewMapper[Settings](MapperOpts{}))

	got, err := m.Map(map[string]any{"host": "localhost", "version": "v9", "cache": []byte("x")})
	require.NoError(t, err)

	want := Settings{Host: "localhost", Port: 8080, Version: "v1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}

	got, err = m.Map(map[string]any{"host": "h", "port": 9000, "debug": true, "tags": []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 9000, got.Port)
	assert.True(t, got.Debug)
	assert.Equal(t, []string{"a"}, got.Tags)
}

func TestMapperFlatten(t *testing.T) {
	m := Must(NewMapper[Order](MapperOpts{}))

	got, err := m.Map(map[string]any{"id": 1, "priceAmount": 250, "priceCurrency": "EUR"})
	require.NoError(t, err)
	want := Order{ID: 1, Price: Money{Amount: 250, Currency: "EUR"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}

	got, err = m.Map(map[string]any{
		"id": 2, "priceAmount": 250, "priceCurrency": "EUR",
		"discountAmount": 50, "discountCurrency": "EUR",
	})
	require.NoError(t, err)
	require.NotNil(t, got.Discount)
	assert.Equal(t, Money{Amount: 50, Currency: "EUR"}, *got.Discount)

	// a partly provided optional flatten is still checked
	_, err = m.Map(map[string]any{"id": 3, "priceAmount": 1, "priceCurrency": "EUR", "discountAmount": 5})
	require.ErrorIs(t, err, ErrMissingArguments)
	assert.Contains(t, err.Error(), "discountCurrency")
}

func TestMapperFlattenWithNameConverter(t *testing.T) {
	m := Must(NewMapper[Order](MapperOpts{NameConverter: SnakeCase}))

	got, err := m.Map(map[string]any{"id": 1, "price_amount": 10, "price_currency": "USD"})
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: 10, Currency: "USD"}, got.Price)
}

func TestMapperFlattenCycle(t *testing.T) {
	type Node struct {
		Value int
		Next  *Node `mapk:"flatten"`
	}

	_, err := NewMapper[Node](MapperOpts{})
	assert.ErrorIs(t, err, ErrFlattenCycle)
}

func TestMapperDuplicateParameter(t *testing.T) {
	type Clash struct {
		Name  string
		Alias string `mapk:"name:'name'"`
	}

	_, err := NewMapper[Clash](MapperOpts{})
	assert.ErrorIs(t, err, ErrDuplicateParameter)
}

func TestMapperInvalidDefault(t *testing.T) {
	type Broken struct {
		Port int `mapk:"default:'eighty'"`
	}

	_, err := NewMapper[Broken](MapperOpts{})
	assert.ErrorIs(t, err, ErrInvalidDefault)
}

func TestMapperNoParameters(t *testing.T) {
	_, err := NewMapper[Point](MapperOpts{})
	assert.ErrorIs(t, err, ErrNoParameters)

	_, err = NewMapper[int](MapperOpts{})
	assert.ErrorIs(t, err, ErrNoTarget)
}

//////////////////////////////////////////////////////////////
// Coercion
//////////////////////////////////////////////////////////////

func TestMapperRecursiveMapping(t *testing.T) {
	m := Must(NewMapper[Customer](MapperOpts{}))

	got, err := m.Map(map[string]any{
		"name":    "Acme",
		"address": map[string]any{"city": "Oslo", "zip": "0150"},
		"billing": map[string]string{"city": "Bergen", "zip": "5003"},
	})
	require.NoError(t, err)

	want := Customer{
		Name:    "Acme",
		Address: Address{City: "Oslo", Zip: "0150"},
		Billing: &Address{City: "Bergen", Zip: "5003"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}
}

func TestMapperRecursiveFromStruct(t *testing.T) {
	m := Must(NewMapper[Customer](MapperOpts{}))

	got, err := m.Map(customerRow{
		Name:    "Acme",
		Address: addressRow{City: "Oslo", Zip: "0150"},
	})
	require.NoError(t, err)
	assert.Equal(t, Customer{Name: "Acme", Address: Address{City: "Oslo", Zip: "0150"}}, got)
}

func TestMapperRecursiveNameConverter(t *testing.T) {
	type Inner struct {
		PoiPoi int
	}
	type Outer struct {
		HogeHoge Inner
		MogeMoge Inner
	}

	m := Must(NewMapper[Outer](MapperOpts{NameConverter: SnakeCase}))
	got, err := m.Map(map[string]any{
		"hoge_hoge": map[string]any{"poi_poi": 1},
		"moge_moge": KV("poi_poi", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, Outer{HogeHoge: Inner{PoiPoi: 1}, MogeMoge: Inner{PoiPoi: 2}}, got)
}

func TestMapperNestedErrorPath(t *testing.T) {
	m := Must(NewMapper[Customer](MapperOpts{}))

	_, err := m.Map(map[string]any{
		"name":    "Acme",
		"address": map[string]any{"city": "Oslo"},
		"billing": nil,
	})
	require.ErrorIs(t, err, ErrMissingArguments)

	var mappingErr *MappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, "address", mappingErr.Param)
	assert.Contains(t, err.Error(), "zip")
}

func TestMapperConverters(t *testing.T) {
	reg := newTestRegistry(t, RegistryOpts{
		Converters: []Converter{NewConverter(parseCents)},
	})

	m := Must(NewMapper[Invoice](MapperOpts{Registry: reg}))

	got, err := m.Map(map[string]any{"total": "12.34"})
	require.NoError(t, err)
	assert.Equal(t, Invoice{Total: 1234}, got)

	// assignable values skip the converter
	got, err = m.Map(map[string]any{"total": Cents(5)})
	require.NoError(t, err)
	assert.Equal(t, Invoice{Total: 5}, got)

	_, err = m.Map(map[string]any{"total": "x.00"})
	var mappingErr *MappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, "total", mappingErr.Param)
	assert.Equal(t, StringType, mappingErr.SrcType)
}

func TestMapperFirstMatchingConverter(t *testing.T) {
	reg := newTestRegistry(t, RegistryOpts{
		Converters: []Converter{
			ConverterFunc(func(s string) Cents { return 1 }),
			ConverterFunc(func(s string) Cents { return 2 }),
		},
	})

	m := Must(NewMapper[Invoice](MapperOpts{Registry: reg}))
	got, err := m.Map(map[string]any{"total": "x"})
	require.NoError(t, err)
	assert.Equal(t, Cents(1), got.Total)
}

func TestMapperNamedConverterSet(t *testing.T) {
	type Reading struct {
		Celsius float64 `mapk:"convert:'fahrenheit'"`
	}

	reg := newTestRegistry(t, RegistryOpts{
		NamedConverters: map[string][]Converter{
			"fahrenheit": {ConverterFunc(func(f int) float64 { return float64(f-32) * 5 / 9 })},
		},
	})

	m := Must(NewMapper[Reading](MapperOpts{Registry: reg}))
	got, err := m.Map(map[string]any{"celsius": 212})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got.Celsius, 1e-9)

	// the set is unknown to the default registry
	m = Must(NewMapper[Reading](MapperOpts{}))
	_, err = m.Map(map[string]any{"celsius": 212})
	assert.ErrorIs(t, err, ErrUnknownConverterSet)
}

func TestMapperDeclaredConverter(t *testing.T) {
	m := Must(NewMapper[Ratio](MapperOpts{}))

	got, err := m.Map(map[string]any{"share": "50%"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, float64(got.Share), 1e-9)
}

func TestMapperEnums(t *testing.T) {
	reg := newTestRegistry(t, RegistryOpts{})
	require.NoError(t, RegisterEnum(reg, Red, Green, Blue))

	m := Must(NewMapper[Paint](MapperOpts{Registry: reg}))

	tests := []struct {
		name    string
		value   any
		want    Color
		wantErr error
	}{
		{"by name", "GREEN", Green, nil},
		{"empty is zero", "", Color(0), nil},
		{"unknown", "PINK", 0, ErrUnknownEnumValue},
		{"case sensitive", "green", 0, ErrUnknownEnumValue},
		{"by number", 3, 0, ErrCannotConvert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Map(KV("color", tt.value))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Color)
		})
	}
}

func TestMapperStringEnumRejectsOtherKinds(t *testing.T) {
	reg := newTestRegistry(t, RegistryOpts{})
	require.NoError(t, RegisterEnum(reg, Level("debug"), Level("info")))

	type Logging struct {
		Level Level
	}

	m := Must(NewMapper[Logging](MapperOpts{Registry: reg}))

	got, err := m.Map(map[string]any{"level": "info"})
	require.NoError(t, err)
	assert.Equal(t, Level("info"), got.Level)

	_, err = m.Map(map[string]any{"level": 5})
	assert.ErrorIs(t, err, ErrCannotConvert)

	_, err = m.Map(map[string]any{"level": "warn"})
	assert.ErrorIs(t, err, ErrUnknownEnumValue)

	type levelRow struct {
		Level int
	}
	_, err = NewBoundMapper[levelRow, Logging](MapperOpts{Registry: reg})
	assert.ErrorIs(t, err, ErrCannotConvert)
}

func TestMapperTextAndStrings(t *testing.T) {
	m := Must(NewMapper[Event](MapperOpts{}))

	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	got, err := m.Map(map[string]any{
		"id":    id.String(),
		"at":    "2024-01-02T03:04:05Z",
		"label": Green,
	})
	require.NoError(t, err)

	want := Event{ID: id, At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Label: "GREEN"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}

	// uuid from raw bytes goes through the default converter
	got, err = m.Map(map[string]any{"id": id[:], "at": time.Time{}, "label": 3.5})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "3.5", got.Label)

	_, err = m.Map(map[string]any{"id": "not-a-uuid", "at": time.Time{}, "label": ""})
	assert.Error(t, err)
}

func TestMapperNumericConversion(t *testing.T) {
	type Sizes struct {
		Count int
		Ratio float32
		Small uint8
	}

	m := Must(NewMapper[Sizes](MapperOpts{}))

	got, err := m.Map(map[string]any{"count": float64(3), "ratio": 2, "small": int64(255)})
	require.NoError(t, err)
	assert.Equal(t, Sizes{Count: 3, Ratio: 2, Small: 255}, got)

	_, err = m.Map(map[string]any{"count": 1.5, "ratio": 2, "small": 1})
	assert.ErrorIs(t, err, ErrNotRepresentable)

	_, err = m.Map(map[string]any{"count": 1, "ratio": 2, "small": 256})
	assert.ErrorIs(t, err, ErrNotRepresentable)
}

func TestMapperCannotConvert(t *testing.T) {
	m := Must(NewMapper[Person](MapperOpts{}))

	_, err := m.Map(map[string]any{"id": []string{"x"}, "name": "n", "email": nil})
	assert.ErrorIs(t, err, ErrCannotConvert)
}

func TestMapperSlicesAndMaps(t *testing.T) {
	type Inventory struct {
		Counts  map[string]int
		Numbers []int64
	}

	m := Must(NewMapper[Team](MapperOpts{}))
	got, err := m.Map(map[string]any{
		"name": "core",
		"members": []any{
			map[string]any{"id": 1, "name": "A", "email": nil},
			KV("id", 2),
		},
	})
	require.Error(t, err, "second member lacks name and email")

	got, err = m.Map(map[string]any{
		"name": "core",
		"members": []map[string]any{
			{"id": 1, "name": "A", "email": nil},
			{"id": 2, "name": "B", "email": "b@x"},
		},
	})
	require.NoError(t, err)
	require.Len(t, got.Members, 2)
	assert.Equal(t, "B", got.Members[1].Name)

	inv := Must(NewMapper[Inventory](MapperOpts{}))
	res, err := inv.Map(map[string]any{
		"counts":  map[string]float64{"a": 1, "b": 2},
		"numbers": []int{4, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, res.Counts)
	assert.Equal(t, []int64{4, 5}, res.Numbers)
}

//////////////////////////////////////////////////////////////
// Keyed sources
//////////////////////////////////////////////////////////////

func TestMapperFromGJSON(t *testing.T) {
	m := Must(NewMapper[Team](MapperOpts{}))

	doc := gjson.Parse(`{
		"name": "core",
		"members": [
			{"id": 1, "name": "Ann", "email": null},
			{"id": 2.0, "name": "Ben", "email": "ben@example.com"}
		]
	}`)

	got, err := m.Map(doc)
	require.NoError(t, err)

	want := Team{
		Name: "core",
		Members: []Person{
			{ID: 1, Name: "Ann"},
			{ID: 2, Name: "Ben", Email: ptr("ben@example.com")},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}

	_, err = m.Map(gjson.Parse(`[1, 2]`))
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestMapperFromGJSONLargeNumbers(t *testing.T) {
	type Counters struct {
		F float64
		U uint64
	}

	m := Must(NewMapper[Counters](MapperOpts{}))

	got, err := m.Map(gjson.Parse(`{"f": 100000000000000000000, "u": 18446744073709551615}`))
	require.NoError(t, err)
	assert.Equal(t, Counters{F: 1e20, U: 18446744073709551615}, got)
}

func TestMapperFromYAML(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
name: Acme
address:
  city: Oslo
  zip: "0150"
billing: null
`), &doc))

	m := Must(NewMapper[Customer](MapperOpts{}))
	got, err := m.Map(&doc)
	require.NoError(t, err)

	want := Customer{Name: "Acme", Address: Address{City: "Oslo", Zip: "0150"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}
}

func TestMapperFromURLValues(t *testing.T) {
	type Query struct {
		Page int
		Tags []string
		Q    string
		Safe bool `mapk:"optional"`
	}

	m := Must(NewMapper[Query](MapperOpts{}))
	got, err := m.Map(url.Values{"page": {"2"}, "tags": {"a", "b"}, "q": {"go", "ignored"}, "safe": {"on"}})
	require.NoError(t, err)
	assert.Equal(t, Query{Page: 2, Tags: []string{"a", "b"}, Q: "go", Safe: true}, got)

	_, err = m.Map(url.Values{"page": {"two"}, "tags": nil, "q": {""}})
	assert.Error(t, err)
}

func TestMapperFromSource(t *testing.T) {
	m := Must(NewMapper[Settings](MapperOpts{}))

	got, err := m.Map(envSource{"HOST": "example.com", "PORT": "9090"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", got.Host)
	assert.Equal(t, 9090, got.Port)
}

//////////////////////////////////////////////////////////////
// Target functions
//////////////////////////////////////////////////////////////

func TestFuncMapper(t *testing.T) {
	m, err := NewFuncMapper[Point](NewFunc(newPoint, "x", "y"), MapperOpts{})
	require.NoError(t, err)

	got, err := m.Map(map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	assert.Equal(t, Point{x: 1, y: 2}, got)

	_, err = m.Map(map[string]any{"x": -1, "y": 2})
	assert.ErrorIs(t, err, ErrTargetFailed)
	assert.Contains(t, err.Error(), "negative coordinate")
}

func TestFuncMapperParamOpts(t *testing.T) {
	fn := NewFunc(newPoint, "x", "y").
		WithParam("x", ParamOpts{Alias: "left"}).
		WithParam("y", ParamOpts{Default: 10})

	m := Must(NewFuncMapper[*Point](fn, MapperOpts{}))
	got, err := m.Map(map[string]any{"left": 4})
	require.NoError(t, err)
	assert.Equal(t, &Point{x: 4, y: 10}, got)
}

func TestFuncMapperWrongType(t *testing.T) {
	_, err := NewFuncMapper[Person](NewFunc(newPoint, "x", "y"), MapperOpts{})
	assert.ErrorIs(t, err, ErrInvalidFunc)

	_, err = NewFuncMapper[Point](NewFunc(newPoint, "x"), MapperOpts{})
	assert.ErrorIs(t, err, ErrInvalidFunc)
}

func TestMapperMarkedConstructor(t *testing.T) {
	reg := newTestRegistry(t, RegistryOpts{
		Constructors: []*Func{NewFunc(newPoint, "x", "y")},
	})

	m := Must(NewMapper[Point](MapperOpts{Registry: reg}))
	got, err := m.MapAll(KV("x", 3), KV("y", 4))
	require.NoError(t, err)
	assert.Equal(t, Point{x: 3, y: 4}, got)
}

func TestMapperDeclaredConstructor(t *testing.T) {
	m := Must(NewMapper[Temperature](MapperOpts{}))

	got, err := m.Map(map[string]any{"celsius": 0})
	require.NoError(t, err)
	assert.InDelta(t, 273.15, got.Kelvin, 1e-9)

	reg := newTestRegistry(t, RegistryOpts{
		Constructors: []*Func{
			NewFunc(func(kelvin float64) Temperature { return Temperature{Kelvin: kelvin} }, "kelvin"),
		},
	})
	_, err = NewMapper[Temperature](MapperOpts{Registry: reg})
	assert.ErrorIs(t, err, ErrMultipleTargets)
}

//////////////////////////////////////////////////////////////
// Options
//////////////////////////////////////////////////////////////

func TestMapperValidate(t *testing.T) {
	m := Must(NewMapper[Signup](MapperOpts{Validate: true}))

	got, err := m.Map(KV("email", "a@b.c"))
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", got.Email)

	got, err = m.Map(KV("email", "nope"))
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, Signup{}, got)

	lenient := Must(NewMapper[Signup](MapperOpts{}))
	_, err = lenient.Map(KV("email", "nope"))
	assert.NoError(t, err)
}

func TestMapperLogsDecisions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	m := Must(NewMapper[Person](MapperOpts{Logger: zap.New(core)}))
	assert.Equal(t, 1, logs.FilterMessage("compiled target").Len())

	for i := 0; i < 3; i++ {
		_, err := m.Map(map[string]any{"id": i, "name": "n", "email": nil})
		require.NoError(t, err)
	}

	// nil email is never resolved, id and name are memoized once
	assert.Equal(t, 2, logs.FilterMessage("memoized processor").Len())
}

func TestMapperMemoizesPerSourceType(t *testing.T) {
	m := Must(NewMapper[Person](MapperOpts{}))

	_, err := m.Map(map[string]any{"id": 1, "name": "a", "email": "e"})
	require.NoError(t, err)
	_, err = m.Map(map[string]any{"id": int64(1), "name": "a", "email": "e"})
	require.NoError(t, err)

	id := m.core.target.byName["id"]
	count := 0
	id.memo.Range(func(_, _ any) bool {
		count++
		return true
	})
	assert.Equal(t, 2, count)
}

func TestMapperConcurrentUse(t *testing.T) {
	m := Must(NewMapper[Customer](MapperOpts{}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := m.Map(map[string]any{
				"name":    fmt.Sprint(i),
				"address": map[string]any{"city": "c", "zip": i},
				"billing": nil,
			})
			assert.NoError(t, err)
			assert.Equal(t, strconv.Itoa(i), got.Address.Zip)
		}(i)
	}
	wg.Wait()
}
