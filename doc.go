// Package mapk builds Go values from other values: key-value maps, key-value
// pairs, structs with exported fields or getters, JSON objects read with
// gjson, YAML mapping nodes and url.Values.
//
// A destination is built by its target function. Each parameter of the target
// is matched by name against the source, and the source value is coerced to
// the parameter type:
//   - assignable values are used as is (also through one pointer level)
//   - registered or type-declared converters
//   - numbers convert between numeric kinds when representable
//   - strings become registered enums, TextUnmarshalers, numbers or bools
//   - anything becomes a string through fmt.Stringer or fmt.Sprint
//   - keyed sources and structs map recursively into nested types
//   - slices and maps convert element by element
//
// The target function of a type is its only marked constructor, registered
// with RegisterConstructor or returned by a MapkConstructors method, and
// otherwise the struct literal, whose exported fields are the parameters.
// Because Go does not keep parameter names at runtime, factory functions are
// described with NewFunc and the names of their parameters.
//
// Three mappers share this engine:
//   - Mapper memoizes its decisions per source type. Use it by default.
//   - PlainMapper decides on every value.
//   - BoundMapper maps one struct type to another with a plan fixed at
//     construction, failing early when a required parameter has no source
//     property.
//
// Destination struct fields are tuned with the `mapk` tag:
//
//	type User struct {
//		ID      uuid.UUID `mapk:"name:'user_id'"`
//		Name    string
//		Age     int       `mapk:"default:'18'"`
//		Token   string    `mapk:"usedefault"`
//		Address Address   `mapk:"flatten"`
//		Cache   []byte    `mapk:"-"`
//	}
//
// The same tag on a source struct renames (`name`) or hides (`ignore`, `-`)
// a property.
//
// Parameter names are the lower camel form of Go names ("UserID" is
// "userID"). A NameConverter such as SnakeCase rewrites them before lookup,
// for sources that use another convention. Aliases are never rewritten.
package mapk
