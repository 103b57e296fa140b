package catalog

import (
	"errors"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateName       = errors.New("duplicate name")
	ErrOutOfRange          = errors.New("value out of range")
	ErrInvalidDateOrder    = errors.New("date of birth must be before date of death")
	ErrPastDate            = errors.New("renewal date in the past")
	ErrTooFarAhead         = errors.New("renewal date too far ahead")
	ErrRequired            = errors.New("field is required")
	ErrTooLong             = errors.New("value too long")
	ErrInvalidChoice       = errors.New("invalid choice")
	ErrInvalidFormat       = errors.New("invalid format")
	ErrReferentialRestrict = errors.New("referenced by dependent records")
)

// FieldError is one rejected input field. Kind is one of the sentinel errors above.
type FieldError struct {
	Field   string
	Kind    error
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e FieldError) Unwrap() error {
	return e.Kind
}

// ValidationError collects every field failure for one input.
// errors.Is matches ErrValidation and the Kind of each contained field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Fields)+1)
	errs = append(errs, ErrValidation)
	for _, f := range e.Fields {
		errs = append(errs, f)
	}
	return errs
}

// FieldErrors returns the first message recorded for each field.
func (e *ValidationError) FieldErrors() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, exists := out[f.Field]; !exists {
			out[f.Field] = f.Message
		}
	}
	return out
}

// NewFieldError wraps a single field failure as a ValidationError.
func NewFieldError(field string, kind error, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Kind: kind, Message: message}}}
}

// AsValidation extracts the ValidationError from err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
