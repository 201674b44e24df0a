// Package validate checks client input at the HTTP and CLI boundary.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Stop id bounds accepted from clients.
const (
	MinStopID = 1
	MaxStopID = 99999
)

// ErrInvalid matches every validation failure via errors.Is.
var ErrInvalid = errors.New("invalid input")

// Error is a validation failure on a single field. Message is safe to show to clients.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool { return target == ErrInvalid }

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRE.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	return v
}

func strongPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Struct validates a request struct using its `validate` tags and returns
// the first failure as an *Error named after the field's json name.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &Error{Field: fe.Field(), Message: message(fe.Field(), fe)}
	}
	return fmt.Errorf("validate: %w", err)
}

// Var validates a single value against a tag list.
func Var(field string, value any, tag string) error {
	err := v.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &Error{Field: field, Message: message(field, verrs[0])}
	}
	return fmt.Errorf("validate %s: %w", field, err)
}

// StopID parses and range-checks a stop id from a path or query parameter.
func StopID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &Error{Field: "stopId", Message: "stopId must be a valid number"}
	}
	if err := Var("stopId", id, fmt.Sprintf("min=%d,max=%d", MinStopID, MaxStopID)); err != nil {
		return 0, err
	}
	return id, nil
}

// StopName trims and length-checks a user supplied stop name.
func StopName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := Var("stopName", name, "required,min=2,max=100"); err != nil {
		return "", err
	}
	return name, nil
}

// NormalizeEmail trims and lower-cases an email address before validation.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func message(field string, fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return "invalid email format"
	case "username":
		return field + " can only contain letters, numbers, and underscores"
	case "password":
		return field + " must contain an uppercase letter, a lowercase letter and a digit"
	default:
		return field + " is invalid"
	}
}
