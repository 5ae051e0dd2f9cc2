package config

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordConfig hashes and verifies the operator password.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string
}

// NewPasswordConfig derives the hashing configuration from the auth settings.
// A zero cost means bcrypt's default of 12.
func NewPasswordConfig(a AuthSettings) (*PasswordConfig, error) {
	c := &PasswordConfig{BcryptCost: a.BcryptCost, Pepper: a.PasswordPepper}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return nil, fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.BcryptCost)
	}
	return c, nil
}

// HashPassword hashes a password using bcrypt, with the pepper appended when set.
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw+c.Pepper), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether pw matches the stored hash.
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(pw+c.Pepper)) == nil
}
