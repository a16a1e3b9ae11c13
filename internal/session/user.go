package session

import (
	"errors"
	"strings"
)

// Branches selectable in the UI
const (
	BranchMain = "Main"
	BranchEast = "East"
	BranchWest = "West"

	DefaultBranch = BranchMain
)

var (
	// ErrInvalidLogin covers both an unknown identifier and a wrong password
	ErrInvalidLogin = errors.New("Invalid email or password")
	// ErrEmailRegistered is returned when the email is taken, ignoring case
	ErrEmailRegistered = errors.New("Email already registered")
	// ErrUsernameTaken is returned when the username is taken, ignoring case
	ErrUsernameTaken = errors.New("Username already taken")
	// ErrNotLoggedIn is returned by operations that need a current user
	ErrNotLoggedIn = errors.New("No user is logged in")
)

// User is the client-side profile. Password is only ever populated on
// entries of the registered-users list, where it holds a bcrypt hash.
type User struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
	Password  string `json:"password,omitempty"`
}

// Public returns a copy without the password
func (u User) Public() User {
	u.Password = ""
	return u
}

// Matches reports whether identifier equals the email or the username, ignoring case
func (u User) Matches(identifier string) bool {
	if strings.TrimSpace(identifier) == "" {
		return false
	}
	return equalFoldTrim(u.Email, identifier) || equalFoldTrim(u.Username, identifier)
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// RegisterRequest is the registration form
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RegisterResult is returned by a successful registration
type RegisterResult struct {
	Success  bool   `json:"success"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// FieldViolation is one invalid field reported by the credential service
type FieldViolation struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// ValidationError carries per-field violations
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Msg
	}
	return strings.Join(msgs, "; ")
}
