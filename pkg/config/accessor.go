package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup returns the entry stored at path.
func (d *Document) Lookup(path string) (Entry, bool) {
	e, ok := d.entries[path]
	return e, ok
}

// Get returns the stored text at path, or def when the path is absent.
func (d *Document) Get(path, def string) string {
	if e, ok := d.entries[path]; ok {
		return e.Raw
	}
	return def
}

// GetString returns the string form of a scalar value. Arrays and inline tables
// are not strings; reading one logs a warning and returns def.
func (d *Document) GetString(path, def string) string {
	e, ok := d.entries[path]
	if !ok {
		return def
	}
	if e.Type == TypeArray || e.Type == TypeInlineTable {
		d.mismatch(path, "string", e)
		return def
	}
	return e.Raw
}

// GetInt returns the integer at path. Only text of the form -?[0-9]+ is accepted;
// anything else logs a warning and returns def.
func (d *Document) GetInt(path string, def int) int {
	e, ok := d.entries[path]
	if !ok {
		return def
	}
	if !integerPattern.MatchString(e.Raw) {
		d.mismatch(path, "integer", e)
		return def
	}
	n, err := strconv.Atoi(e.Raw)
	if err != nil {
		d.mismatch(path, "integer", e)
		return def
	}
	return n
}

// GetFloat returns the number at path. Integer and decimal text are accepted.
func (d *Document) GetFloat(path string, def float64) float64 {
	e, ok := d.entries[path]
	if !ok {
		return def
	}
	if !integerPattern.MatchString(e.Raw) && !floatPattern.MatchString(e.Raw) {
		d.mismatch(path, "float", e)
		return def
	}
	f, err := strconv.ParseFloat(e.Raw, 64)
	if err != nil {
		d.mismatch(path, "float", e)
		return def
	}
	return f
}

// ParseBool interprets s as a boolean. Matching is case-insensitive:
// true, yes, 1 and on are true; false, no, 0 and off are false. The second
// result is false for anything else.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "on":
		return true, true
	case "false", "no", "0", "off":
		return false, true
	default:
		return false, false
	}
}

// GetBool returns the boolean at path, using the vocabulary of ParseBool.
// Anything else logs a warning and returns def.
func (d *Document) GetBool(path string, def bool) bool {
	e, ok := d.entries[path]
	if !ok {
		return def
	}
	b, ok := ParseBool(e.Raw)
	if !ok {
		d.mismatch(path, "boolean", e)
		return def
	}
	return b
}

// GetArray returns the elements of the array at path, each re-typified.
// A value that is not an array logs a warning and returns def.
func (d *Document) GetArray(path string, def []Value) []Value {
	e, ok := d.entries[path]
	if !ok {
		return def
	}
	if e.Type != TypeArray {
		d.mismatch(path, "array", e)
		return def
	}
	return SplitArray(e.Raw)
}

// GetStringSlice returns the element texts of the array at path.
func (d *Document) GetStringSlice(path string, def []string) []string {
	e, ok := d.entries[path]
	if !ok {
		return def
	}
	if e.Type != TypeArray {
		d.mismatch(path, "array", e)
		return def
	}
	values := SplitArray(e.Raw)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Raw
	}
	return out
}

// KeyExists reports whether a non-empty entry is stored at exactly path.
func (d *Document) KeyExists(path string) bool {
	e, ok := d.entries[path]
	return ok && e.Raw != ""
}

// ArrayTableCount returns the number of consecutive instances of an array-table:
// the smallest N for which neither table.N nor any table.N.* path exists.
func (d *Document) ArrayTableCount(table string) int {
	n := 0
	for d.hasNode(fmt.Sprintf("%s.%d", table, n)) {
		n++
	}
	return n
}

// ArrayTableHeaders returns how many [[table]] headers the parser opened,
// including instances that ArrayTableCount does not reach.
func (d *Document) ArrayTableHeaders(table string) int {
	return d.arrayTables[table]
}

func (d *Document) mismatch(path, want string, e Entry) {
	d.logger.Warn().
		Str("path", path).
		Str("expected", want).
		Str("actual", e.Type.String()).
		Str("value", e.Raw).
		Msg("Type mismatch, using default")
}
