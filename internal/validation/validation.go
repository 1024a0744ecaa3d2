// Package validation checks user-supplied identifiers before they reach
// storage or outgoing mail.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	slugRegex  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

const (
	maxStudentIDLen = 64
	maxKeyLen       = 8192
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateStudentID accepts any printable id up to 64 characters. Anonymous
// play uses the empty id, which callers handle before validating.
func ValidateStudentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ValidationError{Field: "student", Message: "student id is required"}
	}
	if len([]rune(id)) > maxStudentIDLen {
		return ValidationError{Field: "student", Message: "student id must be at most 64 characters"}
	}
	for _, r := range id {
		if !unicode.IsPrint(r) {
			return ValidationError{Field: "student", Message: "student id contains control characters"}
		}
	}
	return nil
}

// ValidateGameID checks that id is a lowercase slug like "internet-basics"
func ValidateGameID(id string) error {
	if id == "" {
		return ValidationError{Field: "gameId", Message: "game id is required"}
	}
	if !slugRegex.MatchString(id) {
		return ValidationError{Field: "gameId", Message: "game id must be a lowercase slug"}
	}
	return nil
}

// ValidateKey bounds the size of an encoded achievement key. Its content is
// checked by the key codec.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ValidationError{Field: "key", Message: "key is required"}
	}
	if len(key) > maxKeyLen {
		return ValidationError{Field: "key", Message: "key is too long"}
	}
	return nil
}
