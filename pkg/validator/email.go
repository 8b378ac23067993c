package validator

import (
	"errors"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyEmail indicates the address is empty
	ErrEmptyEmail = errors.New("email address cannot be empty")

	// ErrInvalidEmail indicates the address could not be parsed
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrDisplayName indicates a "Name <addr>" form where a bare address is expected
	ErrDisplayName = errors.New("email address must not include a display name")
)

// EmailValidator handles notification address validation
type EmailValidator struct {
	validate *playground.Validate
}

// NewEmailValidator creates a new email validator instance
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{validate: playground.New()}
}

// Validate checks a single bare address and returns it sanitized
func (v *EmailValidator) Validate(address string) (string, error) {
	sanitized := v.Sanitize(address)
	if sanitized == "" {
		return "", ErrEmptyEmail
	}

	if strings.ContainsAny(sanitized, "<>") {
		return "", ErrDisplayName
	}
	if err := v.validate.Var(sanitized, "email"); err != nil {
		return "", ErrInvalidEmail
	}
	if !strings.Contains(sanitized[strings.LastIndex(sanitized, "@")+1:], ".") {
		return "", ErrInvalidEmail
	}

	return sanitized, nil
}

// Sanitize trims whitespace and lowercases the domain part
func (v *EmailValidator) Sanitize(address string) string {
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return address
	}
	return address[:at] + strings.ToLower(address[at:])
}

// ValidateList validates a comma-separated address list. Blank entries are skipped.
// Returns the sanitized addresses and a map of rejected entries to their error.
func (v *EmailValidator) ValidateList(raw string) ([]string, map[string]error) {
	var valid []string
	invalid := map[string]error{}
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		sanitized, err := v.Validate(part)
		if err != nil {
			invalid[strings.TrimSpace(part)] = err
			continue
		}
		valid = append(valid, sanitized)
	}
	return valid, invalid
}

// IsValid is a convenience method that returns true if address is valid
func (v *EmailValidator) IsValid(address string) bool {
	_, err := v.Validate(address)
	return err == nil
}
