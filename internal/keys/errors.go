package keys

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEncoding means the key is not base64-encoded JSON
	ErrMalformedEncoding = errors.New("malformed encoding")
	// ErrMissingField means a required payload field is absent or empty
	ErrMissingField = errors.New("missing field")
	// ErrSignatureMismatch means the payload was altered or signed with another secret
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// VerifyError describes why an encoded key was rejected.
// errors.Is matches it against the sentinel in Kind.
type VerifyError struct {
	Kind  error
	Field string
	Err   error
}

func (e *VerifyError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *VerifyError) Unwrap() error {
	return e.Kind
}

func malformed(err error) error {
	return &VerifyError{Kind: ErrMalformedEncoding, Err: err}
}

func missingField(name string) error {
	return &VerifyError{Kind: ErrMissingField, Field: name}
}
