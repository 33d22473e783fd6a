package session

import (
	"regexp"
	"strings"

	"github.com/buildworks/sitelink/transport"
	"github.com/buildworks/sitelink/users"
)

// Deliberately loose: the backend is the authority on address validity, this
// only rejects obviously malformed input before a network round-trip.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateCredentials checks login input shape. Failures are local and never
// reach the transport.
func ValidateCredentials(creds transport.Credentials) error {
	email := strings.TrimSpace(creds.Email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	if creds.Password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	return nil
}

// ValidateRegisterPayload checks registration input, including password
// strength, before any network call.
func ValidateRegisterPayload(payload transport.RegisterPayload) error {
	if err := ValidateCredentials(transport.Credentials{Email: payload.Email, Password: payload.Password}); err != nil {
		return err
	}
	if err := users.ValidatePasswordStrength(payload.Password); err != nil {
		return &ValidationError{Field: "password", Message: err.Error()}
	}
	if strings.TrimSpace(payload.CompanyName) == "" {
		return &ValidationError{Field: "company_name", Message: "company name is required"}
	}
	if strings.TrimSpace(payload.FirstName) == "" {
		return &ValidationError{Field: "first_name", Message: "first name is required"}
	}
	return nil
}

// normalizeIdentifier keys lockout tracking case-insensitively.
func normalizeIdentifier(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
