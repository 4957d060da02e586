// Package inputval validates request payloads.
//
// Request structs declare rules with `validate` tags and human labels with
// `label` tags:
//
//	type createTeamInput struct {
//	    Name string `validate:"required,max=100" label:"Team name"`
//	}
//
// Validate returns a Result whose messages are safe to show to clients.
package inputval

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"reflect"
	"strings"
	"unicode"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Message string
}

// Result collects field errors in struct order.
type Result struct {
	Errors []FieldError
}

func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "".
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every message with "; ".
func (r *Result) All() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
		return f.Name
	})
	must := func(tag string, fn func(string) bool) {
		if err := val.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			panic(err)
		}
	}
	must("authmethod", IsValidAuthMethod)
	must("httpurl", IsValidHTTPURL)
	must("objectid", IsValidObjectID)
	must("password", func(s string) bool { return CheckPassword(s) == nil })
	must("role", func(s string) bool { _, err := models.ParseRole(s); return err == nil })
	must("priority", func(s string) bool { _, err := models.ParsePriority(s); return err == nil })
	return val
}

// Validate runs the struct's tag rules.
func Validate(s any) *Result {
	res := &Result{}
	err := v.Struct(s)
	if err == nil {
		return res
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		res.Errors = append(res.Errors, FieldError{Message: "Invalid input."})
		return res
	}
	for _, fe := range verrs {
		res.Errors = append(res.Errors, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return res
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "email":
		return "A valid email address is required."
	case "password":
		return label + " must be 8-72 characters with upper and lower case letters and a digit."
	case "hexcolor":
		return label + " must be a hex color like #1e40af."
	case "gte":
		return fmt.Sprintf("%s must be %s or greater.", label, fe.Param())
	default:
		return label + " is invalid."
	}
}

// IsValidEmail accepts a bare address (no display name) with a well-formed
// local part and domain.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t<>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(s, "@")
	local, domain := s[:at], s[at+1:]
	for _, part := range []string{local, domain} {
		if part == "" || strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") || strings.Contains(part, "..") {
			return false
		}
	}
	return true
}

// AllowedAuthMethodsList returns the supported sign-in methods in display order.
func AllowedAuthMethodsList() []string {
	return []string{models.AuthMethodPassword, models.AuthMethodGoogle}
}

// IsValidAuthMethod is case-insensitive and ignores surrounding whitespace.
func IsValidAuthMethod(s string) bool {
	return models.IsValidAuthMethod(s)
}

// IsValidHTTPURL accepts absolute http and https URLs with a host.
func IsValidHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidObjectID accepts a 24-character hex id.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}

var (
	errPasswordLength = errors.New("password must be 8 to 72 characters")
	errPasswordMix    = errors.New("password needs an upper case letter, a lower case letter and a digit")
)

// CheckPassword enforces the password policy. 72 bytes is bcrypt's input limit.
func CheckPassword(pw string) error {
	if len(pw) < 8 || len(pw) > 72 {
		return errPasswordLength
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return errPasswordMix
	}
	return nil
}
