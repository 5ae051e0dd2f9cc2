package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTConfig(t *testing.T) {
	c, err := NewJWTConfig(AuthSettings{JWTSecret: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, 24, c.ExpirationHours)
	assert.Equal(t, 24*time.Hour, c.Expiration())

	_, err = NewJWTConfig(AuthSettings{})
	assert.Error(t, err)

	_, err = NewJWTConfig(AuthSettings{JWTSecret: "s", JWTExpirationHours: -1})
	assert.Error(t, err)
}
