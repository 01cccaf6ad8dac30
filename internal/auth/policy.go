package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 30
	passwordMinLength = 8

	// PasswordSpecialChars is the punctuation a password may (and must) use.
	PasswordSpecialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	passwordPattern = regexp.MustCompile(`^[A-Za-z0-9` + escapeClass(PasswordSpecialChars) + `]+$`)
)

// escapeClass backslash-escapes every rune so s can sit inside a character class.
func escapeClass(s string) string {
	var b strings.Builder
	for _, r := range s {
		b.WriteByte('\\')
		b.WriteRune(r)
	}
	return b.String()
}

// Validation messages are observable API behavior.
const (
	MsgUsernameLength  = "Username must be between 3 and 30 characters"
	MsgUsernameCharset = "Username can only contain letters, numbers, underscores and hyphens"
	MsgEmailFormat     = "Invalid email format"
	MsgPasswordLength  = "Password must be at least 8 characters long"
	MsgPasswordCharset = "Password contains invalid characters"
	MsgPasswordUpper   = "Password must contain at least one uppercase letter"
	MsgPasswordLower   = "Password must contain at least one lowercase letter"
	MsgPasswordDigit   = "Password must contain at least one number"
	MsgPasswordSpecial = "Password must contain at least one special character"
)

// PolicyResult is the outcome of a credential check. Reason is empty when Valid.
type PolicyResult struct {
	Valid  bool
	Reason string
}

func ok() PolicyResult                { return PolicyResult{Valid: true} }
func fail(reason string) PolicyResult { return PolicyResult{Reason: reason} }

// ValidateUsername checks length first, then the allowed characters.
func ValidateUsername(username string) PolicyResult {
	n := utf8.RuneCountInString(username)
	if n < usernameMinLength || n > usernameMaxLength {
		return fail(MsgUsernameLength)
	}
	if !usernamePattern.MatchString(username) {
		return fail(MsgUsernameCharset)
	}
	return ok()
}

// ValidateEmail accepts a deliberately narrow local@domain.tld form.
func ValidateEmail(email string) PolicyResult {
	if !emailPattern.MatchString(email) {
		return fail(MsgEmailFormat)
	}
	return ok()
}

// ValidatePassword reports the first failing rule in the order
// length, charset, uppercase, lowercase, digit, special.
func ValidatePassword(password string) PolicyResult {
	if utf8.RuneCountInString(password) < passwordMinLength {
		return fail(MsgPasswordLength)
	}
	if !passwordPattern.MatchString(password) {
		return fail(MsgPasswordCharset)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return fail(MsgPasswordUpper)
	case !hasLower:
		return fail(MsgPasswordLower)
	case !hasDigit:
		return fail(MsgPasswordDigit)
	case !hasSpecial:
		return fail(MsgPasswordSpecial)
	}
	return ok()
}
