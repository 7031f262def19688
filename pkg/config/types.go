package config

import (
	"fmt"
	"time"
)

// ValueType is the type inferred for a value when it is parsed.
type ValueType int

const (
	// TypeString is a quoted or bare string.
	TypeString ValueType = iota

	// TypeInteger is a whole number such as 42 or -7.
	TypeInteger

	// TypeFloat is a decimal number such as 3.14.
	TypeFloat

	// TypeBoolean is true or false.
	TypeBoolean

	// TypeArray is a bracketed list, kept verbatim until read.
	TypeArray

	// TypeInlineTable is a braced table, never destructured by the engine.
	TypeInlineTable
)

var valueTypeNames = map[ValueType]string{
	TypeString:      "string",
	TypeInteger:     "integer",
	TypeFloat:       "float",
	TypeBoolean:     "boolean",
	TypeArray:       "array",
	TypeInlineTable: "inline_table",
}

// String returns the lowercase name of the type.
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler so types render by name in JSON and YAML.
func (t ValueType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ValueType) UnmarshalText(text []byte) error {
	parsed, ok := ParseValueType(string(text))
	if !ok {
		return fmt.Errorf("unknown value type %q", text)
	}
	*t = parsed
	return nil
}

// ParseValueType returns the type with the given lowercase name.
func ParseValueType(name string) (ValueType, bool) {
	for t, n := range valueTypeNames {
		if n == name {
			return t, true
		}
	}
	return TypeString, false
}

// Value is a typed value token.
type Value struct {
	// Raw is the normalized text: quotes stripped and escapes decoded for strings,
	// verbatim for everything else.
	Raw string `json:"value" yaml:"value"`

	// Type is the inferred value type.
	Type ValueType `json:"type" yaml:"type"`
}

// Entry is a stored value. It is the same shape as Value; the alias keeps the
// store vocabulary readable.
type Entry = Value

// KeyValue is an entry together with its fully qualified path.
type KeyValue struct {
	Path  string    `json:"path" yaml:"path"`
	Value string    `json:"value" yaml:"value"`
	Type  ValueType `json:"type" yaml:"type"`
}

// Severity classifies a diagnostic.
type Severity string

const (
	// SeverityError marks a hard failure.
	SeverityError Severity = "error"

	// SeverityWarning marks an advisory problem that never fails a run.
	SeverityWarning Severity = "warning"

	// SeverityInfo is informational.
	SeverityInfo Severity = "info"
)

// Diagnostic reports a problem found while parsing or validating a document.
type Diagnostic struct {
	// File is the source the problem was found in.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// Line is the 1-indexed source line, or 0 when the problem is not tied to a line.
	Line int `json:"line,omitempty" yaml:"line,omitempty"`

	// Path is the dotted path the problem is attributed to, if any.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Message describes the problem.
	Message string `json:"message" yaml:"message"`

	// Severity is error, warning or info.
	Severity Severity `json:"severity" yaml:"severity"`

	// Code is a stable identifier for programmatic handling.
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
}

// String renders the diagnostic as file:line: severity: path: message.
func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	msg := d.Message
	if d.Path != "" {
		msg = d.Path + ": " + msg
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", d.Severity, msg)
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Severity, msg)
}

// IsError reports whether the diagnostic is a hard failure.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// Diagnostic codes produced by the parser.
const (
	CodeUnrecognizedLine = "UNRECOGNIZED_LINE"
	CodeEmptyKey         = "EMPTY_KEY"
	CodeEmptyValue       = "EMPTY_VALUE"
	CodeLineTooLong      = "LINE_TOO_LONG"
	CodeEmptyArrayTable  = "EMPTY_ARRAY_TABLE"
)

// LoadEvent describes one completed or failed load.
type LoadEvent struct {
	// Source is the path or reader name that was loaded.
	Source string

	// Entries is the number of entries in the committed document.
	Entries int

	// Diagnostics holds the parse diagnostics of the committed document.
	Diagnostics []Diagnostic

	// Duration is how long the load took.
	Duration time.Duration

	// Err is set when the load failed and nothing was committed.
	Err error
}

// LoadObserver is notified after every load attempt.
type LoadObserver interface {
	ObserveLoad(event LoadEvent)
}

// Stats summarizes a document.
type Stats struct {
	// Entries is the total number of entries.
	Entries int `json:"entries" yaml:"entries"`

	// ByType counts entries per value type.
	ByType map[string]int `json:"by_type" yaml:"by_type"`

	// Tables lists the distinct first path segments, sorted.
	Tables []string `json:"tables" yaml:"tables"`

	// ArrayTables maps each array-table name to its instance count.
	ArrayTables map[string]int `json:"array_tables,omitempty" yaml:"array_tables,omitempty"`

	// Warnings is the number of warning diagnostics recorded while parsing.
	Warnings int `json:"warnings" yaml:"warnings"`

	// Errors is the number of error diagnostics recorded while parsing.
	Errors int `json:"errors" yaml:"errors"`
}

// ChangeKind is the kind of difference between two documents.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeChanged ChangeKind = "changed"
)

// Change is one path that differs between two documents.
type Change struct {
	Path string     `json:"path" yaml:"path"`
	Kind ChangeKind `json:"kind" yaml:"kind"`
	Old  *Value     `json:"old,omitempty" yaml:"old,omitempty"`
	New  *Value     `json:"new,omitempty" yaml:"new,omitempty"`
}
