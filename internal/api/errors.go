package api

import (
	"errors"  // errors.As for validator errors
	"strings" // Field name normalization

	"github.com/go-playground/validator/v10" // Binding validation errors
)

// FieldError is one per-field validation violation
type FieldError struct {
	Field string `json:"field"` // JSON field name
	Msg   string `json:"msg"`   // Human readable message
}

// Messages for known field/tag pairs
var fieldMessages = map[string]string{
	"name.required":     "Name is required",
	"email.required":    "Please include a valid email",
	"email.email":       "Please include a valid email",
	"password.required": "Password is required",
	"password.min":      "Please enter a password with 6 or more characters",
	"role.oneof":        "Role must be one of admin, consultant, client, student",
}

// bindErrors converts a gin binding error into a list of field violations
func bindErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Msg: "Invalid request body"}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		msg, ok := fieldMessages[field+"."+fe.Tag()]
		if !ok {
			msg = "Invalid value for " + field
		}
		out = append(out, FieldError{Field: field, Msg: msg})
	}
	return out
}
