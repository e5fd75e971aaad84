// Package apperr defines the typed errors surfaced by the pipeline and their HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for status mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindExtraction
	KindParse
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindExtraction:
		return "extraction"
	case KindParse:
		return "parse"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified error. Field is set for validation failures.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Kind.String()
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or malformed input on field.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Err: errors.New(msg)}
}

// ValidationErr wraps err as a validation failure on field.
func ValidationErr(field string, err error) error {
	return &Error{Kind: KindValidation, Field: field, Err: err}
}

// NotFound reports an unknown entity.
func NotFound(what, id string) error {
	return &Error{Kind: KindNotFound, Err: fmt.Errorf("%s not found: %s", what, id)}
}

// Extraction wraps a failure to read text out of a source document.
func Extraction(err error) error {
	return &Error{Kind: KindExtraction, Err: err}
}

// Parse wraps malformed model output.
func Parse(err error) error {
	return &Error{Kind: KindParse, Err: err}
}

// Upstream wraps a storage, search, embedding or generation failure.
func Upstream(op string, err error) error {
	return &Error{Kind: KindUpstream, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindParse, KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
