package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/config"
)

func newTestLimiter(t *testing.T, cfg *Config) (*Limiter, *time.Time) {
	t.Helper()
	cfg.Enabled = true
	l := NewLimiter(cfg)
	t.Cleanup(l.Stop)

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_AllowsBurstThenDenies(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{RPS: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("127.0.0.1", "/runs/abc", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := l.Allow("127.0.0.1", "/runs/abc", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, time.Second, info.RetryAfter)
}

func TestLimiter_Refills(t *testing.T) {
	l, now := newTestLimiter(t, &Config{RPS: 1, Burst: 1})

	allowed, _ := l.Allow("c", "/runs", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("c", "/runs", "GET")
	require.False(t, allowed)

	*now = now.Add(time.Second)
	allowed, _ = l.Allow("c", "/runs", "GET")
	assert.True(t, allowed)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{RPS: 1, Burst: 1})

	allowed, _ := l.Allow("a", "/runs", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("b", "/runs", "GET")
	assert.True(t, allowed)
}

func TestLimiter_EndpointConfigs(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		RPS:   100,
		Burst: 100,
		EndpointConfigs: []EndpointConfig{
			{Path: "/runs/", Method: "POST", Limit: 2, Window: time.Minute},
		},
	})

	// Prefix endpoints share one bucket across ids
	allowed, info := l.Allow("c", "/runs/1/events/2/approve", "POST")
	require.True(t, allowed)
	assert.Equal(t, 2, info.Limit)
	allowed, _ = l.Allow("c", "/runs/3/events/4/reject", "POST")
	require.True(t, allowed)
	allowed, info = l.Allow("c", "/runs/5/events/6/approve", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 30*time.Second, info.RetryAfter)

	// Other methods fall back to the default bucket
	allowed, _ = l.Allow("c", "/runs/1", "GET")
	assert.True(t, allowed)
}

func TestLimiter_UnlimitedAndDisabled(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{RPS: 1, Burst: 1})
	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("c", "/health", "GET")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}

	off := NewLimiter(&Config{Enabled: false})
	defer off.Stop()
	for i := 0; i < 5; i++ {
		allowed, _ := off.Allow("c", "/runs", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_Whitelist(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{RPS: 1, Burst: 1, Whitelist: map[string]bool{"10.0.0.1": true}})
	for i := 0; i < 5; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/runs", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_SweepDropsIdleBuckets(t *testing.T) {
	l, now := newTestLimiter(t, &Config{RPS: 1, Burst: 1, IdleTTL: time.Minute})

	l.Allow("a", "/runs", "GET")
	*now = now.Add(30 * time.Second)
	l.Allow("b", "/runs", "GET")

	l.sweep(now.Add(45 * time.Second))
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.entries, 1)
	assert.Contains(t, l.entries, "b:/runs:GET")
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{RPS: 1, Burst: 50})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("c", "/runs", "GET"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := NewLimiter(&Config{Enabled: true, CleanupInterval: time.Millisecond})
	l.Stop()
	l.Stop()
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.RateLimitSettings{Enabled: true})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 10.0, cfg.RPS)
	assert.Equal(t, 20, cfg.Burst)
	assert.NotEmpty(t, cfg.EndpointConfigs)

	cfg = FromSettings(config.RateLimitSettings{RPS: 2.5, Burst: 4})
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2.5, cfg.RPS)
	assert.Equal(t, 4, cfg.Burst)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	tests := []struct {
		path, method string
		wantPath     string
		unlimited    bool
		none         bool
	}{
		{path: "/health", method: "GET", unlimited: true},
		{path: "/runs/abc/stream", method: "GET", unlimited: true},
		{path: "/runs", method: "POST", wantPath: "/runs"},
		{path: "/runs/abc/events/def/approve", method: "POST", wantPath: "/runs/"},
		{path: "/profiles/abc/answers", method: "PUT", wantPath: "/profiles/"},
		{path: "/auth/token", method: "POST", wantPath: "/auth/token"},
		{path: "/runs", method: "GET", none: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.method, tt.path), func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			switch {
			case tt.none:
				assert.Nil(t, got)
			case tt.unlimited:
				require.NotNil(t, got)
				assert.Zero(t, got.Limit)
			default:
				require.NotNil(t, got)
				assert.Equal(t, tt.wantPath, got.Path)
			}
		})
	}
}
