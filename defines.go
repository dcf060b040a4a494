package mapk

import (
	"encoding"
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// constants for the mapk struct tag
const (
	TagKey               = "mapk"
	TagScopeDelimiter    = byte('\'')
	TagKeyValueDelimiter = byte(':')
	TagEscape            = byte('\\')
	TagIgnoreShorthand   = "-"
)

// constants for valued items in the mapk tag
const (
	NameTagItem    = "name"
	DefaultTagItem = "default"
	ConvertTagItem = "convert"
)

// constants for flag items in the mapk tag
const (
	OptionalTagFlag   = "optional"
	UseDefaultTagFlag = "usedefault"
	FlattenTagFlag    = "flatten"
	IgnoreTagFlag     = "ignore"
)

// Method names that are never treated as getters on a struct source.
var reservedGetterNames = map[string]bool{
	"String":   true,
	"GoString": true,
	"Error":    true,
	"Validate": true,
}

// reflect.TypeOf constants for type checks
var (
	TimeType            = reflect.TypeOf(time.Time{})
	UUIDType            = reflect.TypeOf(uuid.UUID{})
	StringType          = reflect.TypeOf("")
	BytesType           = reflect.TypeOf([]byte(nil))
	PairType            = reflect.TypeOf(Pair{})
	SourceType          = reflect.TypeFor[Source]()
	GJSONResultType     = reflect.TypeOf(gjson.Result{})
	YAMLNodeType        = reflect.TypeOf(yaml.Node{})
	URLValuesType       = reflect.TypeOf(url.Values{})
	ErrorType           = reflect.TypeFor[error]()
	StringerType        = reflect.TypeFor[fmt.Stringer]()
	TextUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)
