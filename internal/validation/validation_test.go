package validation

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{
			name:    "valid email",
			email:   "test@example.com",
			wantErr: false,
		},
		{
			name:    "valid email with subdomain",
			email:   "user@mail.example.com",
			wantErr: false,
		},
		{
			name:    "valid email with plus",
			email:   "user+tag@example.com",
			wantErr: false,
		},
		{
			name:    "missing @",
			email:   "testexample.com",
			wantErr: true,
		},
		{
			name:    "missing domain",
			email:   "test@",
			wantErr: true,
		},
		{
			name:    "missing local part",
			email:   "@example.com",
			wantErr: true,
		},
		{
			name:    "empty string",
			email:   "",
			wantErr: true,
		},
		{
			name:    "spaces in email",
			email:   "test @example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateStudentID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "simple id", id: "alice", wantErr: false},
		{name: "id with spaces and accents", id: "Zoë Smith", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "blank", id: "   ", wantErr: true},
		{name: "control character", id: "ali\nce", wantErr: true},
		{name: "64 characters", id: strings.Repeat("a", 64), wantErr: false},
		{name: "65 characters", id: strings.Repeat("a", 65), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStudentID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStudentID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGameID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "slug", id: "internet-basics", wantErr: false},
		{name: "single word", id: "css", wantErr: false},
		{name: "digits", id: "web-apis-2", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "uppercase", id: "Internet-Basics", wantErr: true},
		{name: "path traversal", id: "../admin", wantErr: true},
		{name: "trailing dash", id: "css-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGameID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGameID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "base64 text", key: "eyJnYW1lSWQiOiJ4In0=", wantErr: false},
		{name: "empty", key: "", wantErr: true},
		{name: "too long", key: strings.Repeat("A", 8193), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidateEmail("nope")
	if got, want := err.Error(), "email: invalid email format"; got != want {
		t.Errorf("Error() = %v, want %v", got, want)
	}
}
