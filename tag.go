package mapk

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Base Error types for tag parsing errors
var (
	ErrInvalidTagFormat = errors.New("invalid mapk tag format")
	ErrUnknownTagItem   = errors.New("unknown mapk tag item")
	ErrEmptyTagValue    = errors.New("mapk tag value cannot be empty")
	ErrDuplicateTagItem = errors.New("duplicate mapk tag item")
	ErrUnterminatedTag  = errors.New("unterminated mapk tag value")
)

// This file contains the tag parser for the mapk package. The same tag is read
// on both sides of a mapping: on destination fields it shapes the parameter,
// on source fields it shapes the getter.
//
// Tag grammar:
//     <field> <type> <tag>
// tag:
//     mapk:"<item_list>"
//
// item_list:
//     [<item>]^* // Space Separated
// item:
//     <valued_item> | <flag_item>
//
// valued_item:
//     name:'<alias>' | default:'<literal>' | convert:'<converter_set>'
//     // The scope delimiter may be dropped when the value has no spaces,
//     // e.g. name:user_id. A delimiter inside a value is escaped as \'.
//
// flag_item:
//     optional | usedefault | flatten | ignore | -
//
// Example:
//     Age int `mapk:"name:'user_age' default:'18' optional"`

// FieldTag is the decoded form of a `mapk` struct tag.
type FieldTag struct {
	// Alias replaces the field's parameter or getter name.
	Alias string
	// Default is the literal assigned when an optional parameter is not bound.
	Default    string
	HasDefault bool
	// Converter names a converter set registered with RegisterNamedConverters.
	Converter string

	Optional   bool
	UseDefault bool
	Flatten    bool
	Ignore     bool
}

// TagItem is one space separated item of a tag.
type TagItem struct {
	Key      string
	Value    string
	HasValue bool
}

// DecodeFieldTag reads and decodes the `mapk` tag of a struct field. A field
// without the tag decodes to the zero FieldTag.
func DecodeFieldTag(field reflect.StructField) (FieldTag, error) {
	tag, ok := field.Tag.Lookup(TagKey)
	if !ok {
		return FieldTag{}, nil
	}

	ft, err := DecodeTag(tag)
	if err != nil {
		return FieldTag{}, fmt.Errorf("field %s: %w", field.Name, err)
	}
	return ft, nil
}

// DecodeTag decodes the contents of a `mapk` tag.
func DecodeTag(tag string) (FieldTag, error) {
	items, err := TagItems(tag)
	if err != nil {
		return FieldTag{}, err
	}

	var (
		ft   FieldTag
		seen = make(map[string]bool, len(items))
	)

	for _, item := range items {
		if seen[item.Key] {
			return FieldTag{}, fmt.Errorf("%w: %s", ErrDuplicateTagItem, item.Key)
		}
		seen[item.Key] = true

		switch item.Key {
		case NameTagItem:
			if item.Value == "" {
				return FieldTag{}, fmt.Errorf("%w: %s", ErrEmptyTagValue, item.Key)
			}
			ft.Alias = item.Value
		case DefaultTagItem:
			// An empty default is a legal literal for string fields.
			if !item.HasValue {
				return FieldTag{}, fmt.Errorf("%w: %s", ErrEmptyTagValue, item.Key)
			}
			ft.Default = item.Value
			ft.HasDefault = true
		case ConvertTagItem:
			if item.Value == "" {
				return FieldTag{}, fmt.Errorf("%w: %s", ErrEmptyTagValue, item.Key)
			}
			ft.Converter = item.Value
		case OptionalTagFlag, UseDefaultTagFlag, FlattenTagFlag, IgnoreTagFlag, TagIgnoreShorthand:
			if item.HasValue {
				return FieldTag{}, fmt.Errorf("%w: flag %s takes no value", ErrInvalidTagFormat, item.Key)
			}
			switch item.Key {
			case OptionalTagFlag:
				ft.Optional = true
			case UseDefaultTagFlag:
				ft.UseDefault = true
			case FlattenTagFlag:
				ft.Flatten = true
			default:
				ft.Ignore = true
			}
		default:
			return FieldTag{}, fmt.Errorf("%w: %s", ErrUnknownTagItem, item.Key)
		}
	}

	return ft, nil
}

// TagItems splits a tag into its items, resolving scoped values and escapes.
//
// Example: `name:'user id' optional` -> [{name "user id" true} {optional "" false}]
func TagItems(tag string) ([]TagItem, error) {
	var items []TagItem

	i := 0
	for i < len(tag) {
		// Skip whitespace
		for i < len(tag) && isTagSpace(tag[i]) {
			i++
		}
		if i >= len(tag) {
			break
		}

		// Key runs until whitespace or the key/value delimiter
		start := i
		for i < len(tag) && !isTagSpace(tag[i]) && tag[i] != TagKeyValueDelimiter {
			i++
		}
		key := tag[start:i]
		if key == "" {
			return nil, fmt.Errorf("%w: missing key at offset %d", ErrInvalidTagFormat, start)
		}

		if i >= len(tag) || tag[i] != TagKeyValueDelimiter {
			items = append(items, TagItem{Key: key})
			continue
		}
		i++ // skip ':'

		if i >= len(tag) || isTagSpace(tag[i]) {
			items = append(items, TagItem{Key: key, HasValue: true})
			continue
		}

		if tag[i] != TagScopeDelimiter {
			// Simple value, ends at the next space
			start = i
			for i < len(tag) && !isTagSpace(tag[i]) {
				i++
			}
			items = append(items, TagItem{Key: key, Value: tag[start:i], HasValue: true})
			continue
		}

		value, next, err := scopedTagValue(tag, i+1)
		if err != nil {
			return nil, fmt.Errorf("%w for %q", err, key)
		}
		items = append(items, TagItem{Key: key, Value: value, HasValue: true})
		i = next
	}

	return items, nil
}

// scopedTagValue reads a delimited value starting just after the opening
// delimiter and returns it with the offset following the closing delimiter.
func scopedTagValue(tag string, start int) (string, int, error) {
	var builder strings.Builder

	escaped := false
	for i := start; i < len(tag); i++ {
		c := tag[i]

		if escaped {
			if c != TagScopeDelimiter && c != TagEscape {
				builder.WriteByte(TagEscape)
			}
			builder.WriteByte(c)
			escaped = false
			continue
		}

		switch c {
		case TagEscape:
			escaped = true
		case TagScopeDelimiter:
			return builder.String(), i + 1, nil
		default:
			builder.WriteByte(c)
		}
	}

	return "", 0, ErrUnterminatedTag
}

func isTagSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
