// Package domainerrors carries coded errors across the service boundary.
//
// Services return *Error values so that transports can translate them without
// string matching. Stores should not construct these directly; they return
// sentinel errors (see pkg/platform/sentinel) which services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure reason that callers can branch on.
type Code string

const (
	// Authorization failures.
	CodeUnauthorized Code = "unauthorized"
	CodeNotOwner     Code = "not_owner"

	// State failures.
	CodeNotFound      Code = "not_found"
	CodeDuplicateID   Code = "duplicate_id"
	CodeAlreadyIssued Code = "already_issued"

	// Validation failures. These are raised before any state is read.
	CodeInvalidExpiry Code = "invalid_expiry"
	CodeBadRequest    Code = "bad_request"
	CodeInvalidInput  Code = "invalid_input"

	// Infrastructure failures.
	CodeInternal Code = "internal_error"
	CodeTimeout  Code = "timeout"
)

// Category groups codes into the error taxonomy exposed to callers.
type Category string

const (
	CategoryAuthorization  Category = "authorization"
	CategoryState          Category = "state"
	CategoryValidation     Category = "validation"
	CategoryInfrastructure Category = "infrastructure"
)

var codeCategories = map[Code]Category{
	CodeUnauthorized:  CategoryAuthorization,
	CodeNotOwner:      CategoryAuthorization,
	CodeNotFound:      CategoryState,
	CodeDuplicateID:   CategoryState,
	CodeAlreadyIssued: CategoryState,
	CodeInvalidExpiry: CategoryValidation,
	CodeBadRequest:    CategoryValidation,
	CodeInvalidInput:  CategoryValidation,
	CodeInternal:      CategoryInfrastructure,
	CodeTimeout:       CategoryInfrastructure,
}

// Category returns the taxonomy bucket for the code. Unknown codes are
// treated as infrastructure failures.
func (c Code) Category() Category {
	if cat, ok := codeCategories[c]; ok {
		return cat
	}
	return CategoryInfrastructure
}

// Error is a coded domain error. Message is safe to show to API clients
// except for infrastructure codes.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// From extracts the outermost *Error from err's chain.
func From(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	de, ok := From(err)
	return ok && de.Code == code
}

// CodeOf returns the code of the outermost domain error, or CodeInternal for
// uncoded errors.
func CodeOf(err error) Code {
	if de, ok := From(err); ok {
		return de.Code
	}
	return CodeInternal
}
