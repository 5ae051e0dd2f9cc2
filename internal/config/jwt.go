package config

import (
	"fmt"
	"time"
)

// JWTConfig holds configuration for operator token signing and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig derives the token configuration from the auth settings.
func NewJWTConfig(a AuthSettings) (*JWTConfig, error) {
	c := &JWTConfig{
		Secret:          a.JWTSecret,
		ExpirationHours: a.JWTExpirationHours,
	}
	if c.ExpirationHours == 0 {
		c.ExpirationHours = 24
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// Expiration returns the token lifetime.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
