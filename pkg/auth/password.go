package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12 // verification runs on tablet hardware on every admin login
	MinPasswordLen = 10
	MaxPasswordLen = 72 // bcrypt input limit
)

// ErrMalformedHash is returned when a configured admin hash is not a bcrypt hash
var ErrMalformedHash = errors.New("admin password hash is not a bcrypt hash")

// PasswordValidationError lists why a configured admin password was rejected
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "admin password validation failed"
	}
	return "admin password " + strings.Join(e.Errors, "; ")
}

// Passwords that must never guard patient analytics
var commonPasswords = map[string]bool{
	"password":      true,
	"password123":   true,
	"admin":         true,
	"admin123":      true,
	"administrator": true,
	"changeme":      true,
	"letmein":       true,
	"welcome":       true,
	"qwerty":        true,
	"12345678":      true,
	"1234567890":    true,
	"nurse":         true,
	"doctor":        true,
	"clinic":        true,
	"hospital":      true,
}

// HashPassword produces the bcrypt hash an operator puts in configuration
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if len(password) > MaxPasswordLen {
		return "", fmt.Errorf("password exceeds %d bytes", MaxPasswordLen)
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword checks password against a bcrypt hash
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// IsPasswordHash reports whether s parses as a bcrypt hash
func IsPasswordHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// ValidatePassword enforces minimum strength for a plaintext admin password
func ValidatePassword(password string) error {
	problems := make([]string, 0)

	if len(password) < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		problems = append(problems, "must mix letters and digits")
	}

	if commonPasswords[strings.ToLower(password)] {
		problems = append(problems, "is a commonly used password")
	}

	if len(problems) > 0 {
		return &PasswordValidationError{Errors: problems}
	}
	return nil
}
