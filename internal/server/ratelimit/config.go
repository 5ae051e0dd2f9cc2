package ratelimit

import (
	"time"

	"github.com/jonathan/vulture/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	RPS             float64 // default sustained rate per client
	Burst           int     // default burst per client
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// FromSettings builds the limiter configuration from the runtime settings.
func FromSettings(s config.RateLimitSettings) *Config {
	c := &Config{
		Enabled:         s.Enabled,
		RPS:             s.RPS,
		Burst:           s.Burst,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         10 * time.Minute,
		Whitelist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
	if c.RPS <= 0 {
		c.RPS = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	return c
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Starting a run drives the LLM and a browser
		{Path: "/runs", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		// Approval decisions resume runs
		{Path: "/runs/", Method: "POST", Limit: 120, Window: time.Minute, Burst: 10},

		// Profile writes
		{Path: "/profiles", Method: "POST", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/profiles/", Method: "PUT", Limit: 60, Window: time.Minute, Burst: 10},

		// Login attempts
		{Path: "/auth/token", Method: "POST", Limit: 10, Window: time.Minute, Burst: 3},
	}
}
