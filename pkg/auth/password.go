package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 9
	MaxPasswordLen = 25
)

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// ValidatePassword checks the marketplace password policy and returns every
// violation, not just the first one.
func ValidatePassword(password string) []string {
	violations := make([]string, 0)

	if strings.TrimSpace(password) == "" {
		violations = append(violations, "password must not be empty")
		return violations
	}
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		violations = append(violations,
			fmt.Sprintf("password must be between %d and %d characters", MinPasswordLen, MaxPasswordLen))
	}

	return violations
}
