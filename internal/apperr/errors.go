package apperr

import (
	stderrors "errors"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another owner. Both cases are reported identically.
	ErrNotFound = errors.New("record not found")

	// ErrInvariantViolation marks operations a correct caller never issues,
	// such as resynchronizing a series through one of its instances.
	ErrInvariantViolation = errors.New("invariant violation")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports malformed or missing input. It is always raised
// before any store mutation.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// Invalid is shorthand for a single-field validation error.
func Invalid(field, msg string) error {
	return NewValidationError(errors.New(field+": "+msg), FieldError{Field: field, Error: msg})
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) == 0 {
			return "validation failed"
		}
		msgs := make([]string, 0, len(err.Fields))
		for _, f := range err.Fields {
			msgs = append(msgs, f.Field+": "+f.Error)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// Invariant wraps ErrInvariantViolation with context.
func Invariant(msg string) error {
	return errors.Wrap(ErrInvariantViolation, msg)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return stderrors.As(err, &ve)
}

// AsValidation extracts the ValidationError from err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

func IsInvariant(err error) bool {
	return stderrors.Is(err, ErrInvariantViolation)
}
