package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes; x/crypto rejects it outright.
	MaxPasswordBytes = 72
	MaxNameLength    = 255
	MaxEmailLength   = 255
)

// Validation failures, wrapped by the Normalize and Validate helpers.
var (
	ErrRequired     = errors.New("is required")
	ErrTooShort     = errors.New("is too short")
	ErrTooLong      = errors.New("is too long")
	ErrInvalidEmail = errors.New("must be a valid email address")
)

// NormalizeEmail returns the canonical lowercase address and rejects anything
// that is not a bare RFC 5322 address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", fmt.Errorf("email %w", ErrRequired)
	}
	if len(email) > MaxEmailLength {
		return "", fmt.Errorf("email %w: max %d characters", ErrTooLong, MaxEmailLength)
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", fmt.Errorf("email %w", ErrInvalidEmail)
	}
	return email, nil
}

// NormalizeName trims a display name and enforces its length.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("name %w", ErrRequired)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("name %w: max %d characters", ErrTooLong, MaxNameLength)
	}
	return name, nil
}

// ValidatePassword checks minimal password requirements.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password %w", ErrRequired)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password %w: min %d characters", ErrTooShort, MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password %w: max %d bytes", ErrTooLong, MaxPasswordBytes)
	}
	return nil
}

// HashPassword hashes one plaintext password for persistent storage.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword verifies plaintext password against a bcrypt hash.
func VerifyPassword(passwordHash, candidate string) bool {
	if strings.TrimSpace(passwordHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}
