package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoAdminPassword is returned when neither a hash nor a plaintext password is configured.
var ErrNoAdminPassword = errors.New("admin password is not configured")

// HashPassword returns a bcrypt hash of the provided password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// AdminPasswordHash prefers the configured hash and otherwise hashes the plaintext
// once at startup so the plaintext is never compared directly.
func AdminPasswordHash(hash, plain string) (string, error) {
	if hash != "" {
		return hash, nil
	}
	if plain == "" {
		return "", ErrNoAdminPassword
	}
	return HashPassword(plain)
}
