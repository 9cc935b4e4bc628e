// Package validation checks request and message DTOs with
// go-playground/validator and reports failures as validation AppErrors.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"api-gateway/internal/common/errors"
)

var (
	eventTypePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(\.[a-z0-9_-]+)*$`)
	scopePattern     = regexp.MustCompile(`^[a-z][a-z_]*(:[a-z][a-z_]*)?$`)
)

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
}

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func New() *Validator {
	v := validator.New()

	// report JSON names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	registerGatewayValidators(v)

	return &Validator{validate: v}
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// Default returns a process-wide Validator. validator.Validate caches struct
// metadata, so one instance should be shared.
func Default() *Validator {
	defaultOnce.Do(func() { defaultV = New() })
	return defaultV
}

// Struct validates s and returns a validation AppError listing every failed
// field, or nil.
func (v *Validator) Struct(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return toAppError(err)
	}
	return nil
}

// Var validates a single value against tag.
func (v *Validator) Var(field interface{}, tag string) error {
	if err := v.validate.Var(field, tag); err != nil {
		return toAppError(err)
	}
	return nil
}

// Struct validates s with the default validator.
func Struct(s interface{}) error {
	return Default().Struct(s)
}

func toAppError(err error) error {
	fields := FieldErrors(err)
	if len(fields) == 1 {
		return errors.ValidationError(fields[0].Message).WithContext("fields", fields)
	}

	messages := make([]string, len(fields))
	for i, f := range fields {
		messages[i] = f.Message
	}
	return errors.ValidationError("validation failed: "+strings.Join(messages, "; ")).
		WithContext("fields", fields)
}

// FieldErrors flattens a validator error into FieldErrors.
func FieldErrors(err error) []FieldError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", fe.Field())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", fe.Field(), fe.Param())
	case "event_type":
		return fmt.Sprintf("field '%s' must be a dotted lowercase event type", fe.Field())
	case "event_filter":
		return fmt.Sprintf("field '%s' must be an event type or *", fe.Field())
	case "scope":
		return fmt.Sprintf("field '%s' must be a scope such as webhooks:read", fe.Field())
	case "json":
		return fmt.Sprintf("field '%s' must be valid JSON", fe.Field())
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", fe.Field(), fe.Tag())
	}
}

func registerGatewayValidators(v *validator.Validate) {
	// event types published by the platform, e.g. donation.completed
	v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) <= 128 && eventTypePattern.MatchString(s)
	})

	// subscription filters additionally accept the wildcard
	v.RegisterValidation("event_filter", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "*" || (len(s) <= 128 && eventTypePattern.MatchString(s))
	})

	v.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
		return scopePattern.MatchString(fl.Field().String())
	})
}
