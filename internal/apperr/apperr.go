// Package apperr defines the structured errors shared by the rendering,
// layout, routing and output packages.
//
// Every error carries a Kind so callers (CLI, HTTP server, remote client)
// can decide whether to skip an item, abort a batch, fall back to local
// generation or surface a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind tags an error with its category.
type Kind string

const (
	// KindValidation marks input that violates a declared constraint.
	KindValidation Kind = "validation"
	// KindSymbology marks a value the selected barcode type cannot encode.
	KindSymbology Kind = "symbology"
	// KindLayoutInfeasible marks a layout where not even one cell fits a row.
	KindLayoutInfeasible Kind = "layout_infeasible"
	// KindRemoteUnavailable marks a failed availability check.
	KindRemoteUnavailable Kind = "remote_unavailable"
	// KindIO marks archive/document serialization and transfer failures.
	KindIO Kind = "io"
)

// Error is a structured error with a kind tag.
type Error struct {
	Kind    Kind   // category
	Field   string // offending field path, for validation errors
	Value   string // offending data value, for symbology errors
	Message string // human-readable message
	Err     error  // underlying cause (optional)
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case e.Field != "":
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	case e.Value != "":
		msg = fmt.Sprintf("%q: %s", e.Value, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a validation error for the given field path.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Symbology returns an encoding error naming the offending value.
func Symbology(value string, cause error, format string, args ...any) *Error {
	return &Error{Kind: KindSymbology, Value: value, Message: fmt.Sprintf(format, args...), Err: cause}
}

// LayoutInfeasible returns a fatal layout error.
func LayoutInfeasible(format string, args ...any) *Error {
	return &Error{Kind: KindLayoutInfeasible, Message: fmt.Sprintf(format, args...)}
}

// RemoteUnavailable returns an availability-check failure.
func RemoteUnavailable(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindRemoteUnavailable, Message: fmt.Sprintf(format, args...), Err: cause}
}

// IO wraps a serialization or transfer failure.
func IO(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindIO, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Is reports whether err (or anything it wraps) is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the kind of the first *Error in the chain.
// Returns an empty Kind if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
