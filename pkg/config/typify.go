package config

import (
	"regexp"
	"strings"
)

var (
	integerPattern = regexp.MustCompile(`^-?[0-9]+$`)
	floatPattern   = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
)

// Typify classifies a raw value token. The checks run in a fixed order so that
// literals are never swallowed by the bare-string fallback.
func Typify(raw string) Value {
	s := strings.TrimSpace(raw)

	switch {
	case s == "true" || s == "false":
		return Value{Raw: s, Type: TypeBoolean}
	case integerPattern.MatchString(s):
		return Value{Raw: s, Type: TypeInteger}
	case floatPattern.MatchString(s):
		return Value{Raw: s, Type: TypeFloat}
	case isWrapped(s, '"', '"'):
		return Value{Raw: unescape(s[1 : len(s)-1]), Type: TypeString}
	case isWrapped(s, '[', ']'):
		return Value{Raw: s, Type: TypeArray}
	case isWrapped(s, '{', '}'):
		return Value{Raw: s, Type: TypeInlineTable}
	default:
		return Value{Raw: s, Type: TypeString}
	}
}

// SplitArray splits the text of an array value into typed elements.
//
// The split happens at every comma. Commas inside quoted elements or nested
// brackets are not respected, so ["a,b"] yields two elements. Empty elements
// are dropped.
func SplitArray(raw string) []Value {
	s := strings.TrimSpace(raw)
	if isWrapped(s, '[', ']') {
		s = s[1 : len(s)-1]
	}
	if strings.TrimSpace(s) == "" {
		return []Value{}
	}

	parts := strings.Split(s, ",")
	values := make([]Value, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		values = append(values, Typify(part))
	}
	return values
}

func isWrapped(s string, open, close byte) bool {
	return len(s) >= 2 && s[0] == open && s[len(s)-1] == close
}

// unescape decodes \" and \\ in one left-to-right pass. Any other backslash is kept.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
