package aql

import (
	"errors"
	"fmt"
)

// Error is the single error type produced by every compilation stage.
//
// The Kind separates callers' concerns: an ILLEGAL_QUERY is invalid no matter
// which features are enabled, a NOT_IMPLEMENTED query is well-formed but
// outside the supported subset, and an INTERNAL_ERROR means an earlier stage
// let through something a later stage cannot lower.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description naming the offending
	// path, structure, parameter or clause.
	Message string

	// Pos is the byte offset of a parse error (-1 when unknown).
	Pos int

	// Err is an optional underlying cause.
	Err error
}

// ErrorKind categorizes compilation errors.
type ErrorKind string

const (
	// KindParse indicates the query text could not be parsed.
	KindParse ErrorKind = "PARSE_ERROR"

	// KindIllegal indicates a structurally or semantically invalid query.
	KindIllegal ErrorKind = "ILLEGAL_QUERY"

	// KindNotImplemented indicates a valid query using an unsupported construct.
	KindNotImplemented ErrorKind = "NOT_IMPLEMENTED"

	// KindParameter indicates a missing or mistyped query parameter.
	KindParameter ErrorKind = "PARAMETER_ERROR"

	// KindPagination indicates conflicting or out of range LIMIT/OFFSET/fetch values.
	KindPagination ErrorKind = "PAGINATION_CONFLICT"

	// KindInternal indicates a defect in an earlier compilation stage.
	KindInternal ErrorKind = "INTERNAL_ERROR"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == KindParse && e.Pos >= 0 {
		return fmt.Sprintf("%s: %s (at offset %d)", e.Kind, e.Message, e.Pos)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsParseError returns true if err is a parse error.
func IsParseError(err error) bool { return KindOf(err) == KindParse }

// IsIllegal returns true if err reports an illegal query.
func IsIllegal(err error) bool { return KindOf(err) == KindIllegal }

// IsNotImplemented returns true if err reports an unsupported construct.
func IsNotImplemented(err error) bool { return KindOf(err) == KindNotImplemented }

// IsParameterError returns true if err reports a parameter problem.
func IsParameterError(err error) bool { return KindOf(err) == KindParameter }

// IsPaginationError returns true if err reports a LIMIT/OFFSET conflict.
func IsPaginationError(err error) bool { return KindOf(err) == KindPagination }

// IsInternal returns true if err reports a compiler defect.
func IsInternal(err error) bool { return KindOf(err) == KindInternal }

// NewParseError creates a parse error at the given offset.
func NewParseError(pos int, format string, args ...any) *Error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// NewIllegalError creates an ILLEGAL_QUERY error.
func NewIllegalError(format string, args ...any) *Error {
	return &Error{Kind: KindIllegal, Message: fmt.Sprintf(format, args...), Pos: -1}
}

// NewNotImplementedError creates a NOT_IMPLEMENTED error.
func NewNotImplementedError(format string, args ...any) *Error {
	return &Error{Kind: KindNotImplemented, Message: fmt.Sprintf(format, args...), Pos: -1}
}

// NewParameterError creates a PARAMETER_ERROR.
func NewParameterError(format string, args ...any) *Error {
	return &Error{Kind: KindParameter, Message: fmt.Sprintf(format, args...), Pos: -1}
}

// NewPaginationError creates a PAGINATION_CONFLICT error.
func NewPaginationError(format string, args ...any) *Error {
	return &Error{Kind: KindPagination, Message: fmt.Sprintf(format, args...), Pos: -1}
}

// NewInternalError creates an INTERNAL_ERROR.
func NewInternalError(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Pos: -1}
}

// WrapInternalError wraps an unexpected failure as an INTERNAL_ERROR.
func WrapInternalError(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Pos: -1, Err: err}
}
