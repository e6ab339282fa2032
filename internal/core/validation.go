package core

import (
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
)

// Field names used by the session forms.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
)

// Validation rule names, reported alongside each message.
const (
	RuleRequired  = "required"
	RuleEmail     = "email"
	RulePattern   = "pattern"
	RuleMinLength = "minlength"
)

// MinPasswordLength is the shortest password the forms accept.
const MinPasswordLength = 6

var alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// validationMessages mirrors the texts shown under each form field.
var validationMessages = map[string]map[string]string{
	FieldEmail: {
		RuleRequired: "Email obligatorio",
		RuleEmail:    "Introduzca una dirección email correcta",
	},
	FieldPassword: {
		RuleRequired:  "Contraseña obligatoria",
		RulePattern:   "La contraseña debe tener al menos una letra un número ",
		RuleMinLength: "y más de 6 caracteres",
	},
}

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError groups every failed rule of a credential.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Fields returns the failed rules keyed by field, in the shape the forms render.
func (e *ValidationError) Fields() map[string][]string {
	out := make(map[string][]string)
	for _, fe := range e.Errors {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

func newFieldError(field, rule string) FieldError {
	return FieldError{Field: field, Rule: rule, Message: validationMessages[field][rule]}
}

// ValidateEmail reports the failed email rules, or nil.
func ValidateEmail(email string) []FieldError {
	if email == "" {
		return []FieldError{newFieldError(FieldEmail, RuleRequired)}
	}
	if err := checkmail.ValidateFormat(email); err != nil {
		return []FieldError{newFieldError(FieldEmail, RuleEmail)}
	}
	return nil
}

// ValidatePassword reports the failed password rules, or nil. A password
// must be letters and digits only, hold at least one of each, and be at
// least MinPasswordLength long.
func ValidatePassword(password string) []FieldError {
	if password == "" {
		return []FieldError{newFieldError(FieldPassword, RuleRequired)}
	}
	var errs []FieldError
	if !alphanumeric.MatchString(password) ||
		!strings.ContainsAny(password, "0123456789") ||
		!containsLetter(password) {
		errs = append(errs, newFieldError(FieldPassword, RulePattern))
	}
	if len(password) < MinPasswordLength {
		errs = append(errs, newFieldError(FieldPassword, RuleMinLength))
	}
	return errs
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// Validate applies the email and password rules. It returns a
// *ValidationError listing every failure, or nil.
func (c Credential) Validate() error {
	var errs []FieldError
	errs = append(errs, ValidateEmail(c.Email)...)
	errs = append(errs, ValidatePassword(c.Password)...)
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
