package common

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var reThirteenDigits = regexp.MustCompile(`^[0-9]{13}$`)

// ValidationError is one failed rule on one input field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %q)", e.Field, e.Message, fmt.Sprint(e.Value))
}

// ValidationRule checks one field value and returns nil when it passes.
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Validator collects rule failures across request fields.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs every rule against value and records the failures.
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns the failures joined into one error wrapping ErrValidation,
// or nil when every rule passed.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

func (v *Validator) ErrorMessage() string {
	messages := make([]string, len(v.errors))
	for i, err := range v.errors {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// ValidateAndReturnError converts the failures into a gRPC InvalidArgument status.
func ValidateAndReturnError(validator *Validator) error {
	if validator.HasErrors() {
		return InvalidArgumentError(validator.ErrorMessage())
	}
	return nil
}

// stringValue reads a string or non-nil *string.
func stringValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v != nil {
			return *v, true
		}
	}
	return "", false
}

// Required rejects nil, a nil *string and blank strings.
func Required(fieldName string, value interface{}) *ValidationError {
	blank := value == nil
	if p, ok := value.(*string); ok && p == nil {
		blank = true
	}
	if s, ok := stringValue(value); ok && strings.TrimSpace(s) == "" {
		blank = true
	}
	if blank {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	return nil
}

// MaxLen limits a string to max runes. Non-string values pass.
func MaxLen(max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		s, ok := stringValue(value)
		if !ok || utf8.RuneCountInString(s) <= max {
			return nil
		}
		return &ValidationError{
			Field:   fieldName,
			Value:   value,
			Message: fmt.Sprintf("must be at most %d characters", max),
		}
	}
}

func UUID(fieldName string, value interface{}) *ValidationError {
	s, ok := value.(string)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if _, err := uuid.Parse(s); err != nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a valid UUID"}
	}
	return nil
}

// PersonalCode checks the shape of a personal numeric code: exactly 13 ASCII
// digits. It does not verify the control digit.
func PersonalCode(fieldName string, value interface{}) *ValidationError {
	s, ok := value.(string)
	if !ok {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if !reThirteenDigits.MatchString(s) {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be exactly 13 digits"}
	}
	return nil
}
