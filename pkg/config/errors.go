package config

import (
	"errors"
	"fmt"
)

// ErrorClass classifies engine errors by how the caller is expected to react.
type ErrorClass string

const (
	// ClassUsage is a programming error such as reading before a successful load.
	// It is fatal to the caller and must not be defaulted away.
	ClassUsage ErrorClass = "usage"

	// ClassIO is a source that could not be opened or read. Load aborts and the
	// previous document stays in place.
	ClassIO ErrorClass = "io"

	// ClassSyntax is an unrecognized or malformed line. It is reported as a
	// diagnostic and parsing continues.
	ClassSyntax ErrorClass = "syntax"

	// ClassTypeMismatch is a typed read whose text cannot be coerced. It is logged
	// and the caller receives its default.
	ClassTypeMismatch ErrorClass = "type_mismatch"

	// ClassValidation is a schema rule violation, reported in aggregate.
	ClassValidation ErrorClass = "validation"
)

// Error codes.
const (
	CodeNotLoaded  = "CONFIG_NOT_LOADED"
	CodeNoSource   = "CONFIG_NO_SOURCE"
	CodeOpenFailed = "CONFIG_OPEN_FAILED"
	CodeReadFailed = "CONFIG_READ_FAILED"
)

// Error is a classified configuration error.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Code is a stable identifier for programmatic handling.
	Code string `json:"code,omitempty"`

	// Message is the human-readable message.
	Message string `json:"message"`

	// Path is the file or dotted key the error refers to, if any.
	Path string `json:"path,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same class and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// ErrNotLoaded is returned by Config accessors when no document has been loaded.
var ErrNotLoaded = &Error{
	Class:   ClassUsage,
	Code:    CodeNotLoaded,
	Message: "configuration not loaded",
}

// newIOError wraps a failure to open or read a source.
func newIOError(code, path string, err error) *Error {
	return &Error{
		Class:   ClassIO,
		Code:    code,
		Message: "cannot read configuration source",
		Path:    path,
		Err:     err,
	}
}

// IsUsage reports whether err is a usage error.
func IsUsage(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassUsage
	}
	return false
}

// IsIO reports whether err is an I/O error from loading a source.
func IsIO(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassIO
	}
	return false
}
