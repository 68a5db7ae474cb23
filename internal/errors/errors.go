package errors

import "fmt"

// DocError is docbert's structured error type. It carries enough context for
// the Orchestrator to log and for a CLI-style caller to present, without
// forcing every call site to build ad-hoc wrapped errors.
type DocError struct {
	Code    string
	Message string
	Kind    Kind
	Details map[string]string
	Cause   error

	// Retryable indicates if the operation can be retried. No docbert
	// error codes are retryable today (see retryableCode).
	Retryable bool

	// NotFoundKind/NotFoundName are set only for KindNotFound errors, per
	// the error handling design's "carries kind and name" requirement.
	NotFoundKind string
	NotFoundName string
}

func (e *DocError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DocError) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, target) to match by code.
func (e *DocError) Is(target error) bool {
	t, ok := target.(*DocError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *DocError) WithDetail(key, value string) *DocError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func newError(code, message string, cause error) *DocError {
	return &DocError{
		Code:      code,
		Message:   message,
		Kind:      kindFromCode(code),
		Cause:     cause,
		Retryable: retryableCode(code),
	}
}

// IOErrorf builds an I/O-kind error.
func IOErrorf(code, format string, args ...any) *DocError {
	return newError(code, fmt.Sprintf(format, args...), nil)
}

// StoreErrorf builds a Store-kind error, typically wrapping a bbolt error.
func StoreErrorf(code string, cause error, format string, args ...any) *DocError {
	return newError(code, fmt.Sprintf(format, args...), cause)
}

// IndexErrorf builds an Index-kind error, typically wrapping a bleve error.
func IndexErrorf(code string, cause error, format string, args ...any) *DocError {
	return newError(code, fmt.Sprintf(format, args...), cause)
}

// ModelErrorf builds a Model-kind error.
func ModelErrorf(code string, cause error, format string, args ...any) *DocError {
	return newError(code, fmt.Sprintf(format, args...), cause)
}

// ConfigErrorf builds a Config-kind error.
func ConfigErrorf(code string, format string, args ...any) *DocError {
	return newError(code, fmt.Sprintf(format, args...), nil)
}

// NotFound builds a Not-found error carrying kind ("collection" | "document"
// | "context") and name, as required by the error handling design.
func NotFound(kind, name string) *DocError {
	e := newError(CodeNotFound, fmt.Sprintf("%s not found: %s", kind, name), nil)
	e.NotFoundKind = kind
	e.NotFoundName = name
	return e
}

// IsNotFound reports whether err is a docbert Not-found error.
func IsNotFound(err error) bool {
	de, ok := err.(*DocError)
	return ok && de.Kind == KindNotFound
}

// GetKind extracts the taxonomy kind from err, or "" if err isn't a DocError.
func GetKind(err error) Kind {
	if de, ok := err.(*DocError); ok {
		return de.Kind
	}
	return ""
}
