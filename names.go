package mapk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NameConverter rewrites a destination parameter name into the name used to
// look it up in a source. Aliases are never converted.
type NameConverter func(name string) string

// Identity leaves names untouched. It is the default NameConverter.
func Identity(name string) string { return name }

// SnakeCase converts camelCase to snake_case: "fooBar" -> "foo_bar".
func SnakeCase(name string) string {
	return joinWords(splitWords(name), "_", strings.ToLower)
}

// UpperSnakeCase converts camelCase to UPPER_SNAKE_CASE: "fooBar" -> "FOO_BAR".
func UpperSnakeCase(name string) string {
	return joinWords(splitWords(name), "_", strings.ToUpper)
}

// KebabCase converts camelCase to kebab-case: "fooBar" -> "foo-bar".
func KebabCase(name string) string {
	return joinWords(splitWords(name), "-", strings.ToLower)
}

// UpperCamelCase converts camelCase to UpperCamelCase: "fooBar" -> "FooBar".
func UpperCamelCase(name string) string {
	return upperFirst(name)
}

// LowerCamelCase converts snake_case, kebab-case and UpperCamelCase names to
// lowerCamelCase: "foo_bar" -> "fooBar".
func LowerCamelCase(name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(words[0]))
	for _, w := range words[1:] {
		b.WriteString(upperFirst(strings.ToLower(w)))
	}
	return b.String()
}

// parameterName returns the canonical parameter name of a Go identifier: the
// leading run of capitals is lowered, keeping the capital that starts the
// next word ("FooBar" -> "fooBar", "ID" -> "id", "HTTPServer" -> "httpServer").
func parameterName(ident string) string {
	runes := []rune(ident)

	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}

	switch {
	case upper == 0:
		return ident
	case upper == len(runes):
		return strings.ToLower(ident)
	case upper > 1 && unicode.IsLower(runes[upper]):
		upper--
	}

	for i := 0; i < upper; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// flattenName joins a flattened field's prefix with one of its inner names:
// ("bazBaz", "fooFoo") -> "bazBazFooFoo".
func flattenName(prefix, inner string) string {
	if prefix == "" {
		return inner
	}
	return prefix + upperFirst(inner)
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func joinWords(words []string, sep string, fold func(string) string) string {
	for i, w := range words {
		words[i] = fold(w)
	}
	return strings.Join(words, sep)
}

// splitWords splits a camelCase, snake_case or kebab-case identifier into
// words.
//
//   - "userID" -> ["user", "ID"]
//   - "XMLParser" -> ["XML", "Parser"]
//   - "foo_bar-baz" -> ["foo", "bar", "baz"]
func splitWords(s string) []string {
	if s == "" {
		return nil
	}

	var (
		words   []string
		current strings.Builder
	)

	runes := []rune(s)
	for i, r := range runes {
		if isWordSeparator(r) {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			continue
		}

		if i > 0 && startsWord(runes, i) && current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func isWordSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' '
}

func startsWord(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	if !unicode.IsUpper(r) {
		return false
	}

	// lower to upper: "orderID" splits before 'I'
	if !unicode.IsUpper(prev) && !isWordSeparator(prev) {
		return true
	}

	// end of an acronym: "XMLParser" splits before 'P'
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
