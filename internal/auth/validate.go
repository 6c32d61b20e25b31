package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Password length bounds, in characters.
const (
	MinPasswordLen = 6
	MaxPasswordLen = 32
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	upperPattern    = regexp.MustCompile(`[A-Z]`)
	lowerPattern    = regexp.MustCompile(`[a-z]`)
	specialPattern  = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// FieldProblem is one failed check on one form field.
type FieldProblem struct {
	Field   string
	Message string
}

// ValidationError lists every problem found in a form before any request is made.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Message
	}
	return strings.Join(parts, "; ")
}

// Has reports whether field has at least one problem.
func (e *ValidationError) Has(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}

type problems []FieldProblem

func (ps *problems) add(field, msg string) {
	*ps = append(*ps, FieldProblem{Field: field, Message: msg})
}

func (ps problems) err() error {
	if len(ps) == 0 {
		return nil
	}
	return &ValidationError{Problems: ps}
}

// Registration is the sign-up form.
type Registration struct {
	Username string
	Email    string
	Password string
	Confirm  string
}

// ValidateUsername applies the sidebar's stricter username rule.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return &ValidationError{Problems: []FieldProblem{{Field: "username", Message: "Username can only contain letters and digits"}}}
	}
	return nil
}

// ValidateLogin checks the login form: username required, password 6 to 32 characters.
func ValidateLogin(username, password string) error {
	var ps problems
	if strings.TrimSpace(username) == "" {
		ps.add("username", "required")
	}
	checkLength(&ps, password)
	return ps.err()
}

// ValidateRegistration checks the sign-up form. The password must also contain
// an upper-case letter, a lower-case letter and a special character, and the
// confirmation must match.
func ValidateRegistration(r Registration) error {
	var ps problems
	if strings.TrimSpace(r.Username) == "" {
		ps.add("username", "required")
	}
	if !emailPattern.MatchString(r.Email) {
		ps.add("email", "invalid email format")
	}
	checkPassword(&ps, r.Password)
	if r.Confirm != r.Password {
		ps.add("confirm", "passwords must match")
	}
	return ps.err()
}

// ValidateProfile checks the profile form, which carries the same rules as
// sign-up minus the confirmation.
func ValidateProfile(username, email, password string) error {
	var ps problems
	if strings.TrimSpace(username) == "" {
		ps.add("username", "required")
	}
	if !emailPattern.MatchString(email) {
		ps.add("email", "invalid email format")
	}
	checkPassword(&ps, password)
	return ps.err()
}

func checkPassword(ps *problems, password string) {
	checkLength(ps, password)
	if !upperPattern.MatchString(password) {
		ps.add("password", "must contain an upper-case latin letter")
	}
	if !lowerPattern.MatchString(password) {
		ps.add("password", "must contain a lower-case latin letter")
	}
	if !specialPattern.MatchString(password) {
		ps.add("password", "must contain a special character")
	}
}

func checkLength(ps *problems, password string) {
	n := utf8.RuneCountInString(password)
	switch {
	case password == "":
		ps.add("password", "required")
	case n < MinPasswordLen:
		ps.add("password", "must be at least 6 characters")
	case n > MaxPasswordLen:
		ps.add("password", "must be at most 32 characters")
	}
}
