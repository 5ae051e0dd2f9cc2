// Package ratelimit provides per-client request limiting on top of token buckets
// from golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client, endpoint and method.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  *Config
	now     func() time.Time

	cleanupStop chan struct{}
	stopOnce    sync.Once
}

// NewLimiter creates a limiter. A nil config disables limiting.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{}
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		config:  config,
		now:     time.Now,
	}

	if config.Enabled && config.CleanupInterval > 0 {
		l.cleanupStop = make(chan struct{})
		go l.cleanup(config.CleanupInterval)
	}
	return l
}

// Allow reports whether a request from clientID to endpoint may proceed.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}

	ec := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if ec != nil && ec.Limit <= 0 {
		return true, Info{Allowed: true}
	}

	every, burst := l.bucketShape(ec)
	key := clientID + ":" + endpoint + ":" + method
	if ec != nil && len(ec.Path) > 0 && ec.Path[len(ec.Path)-1] == '/' {
		key = clientID + ":" + ec.Path + ":" + method
	}

	now := l.now()
	lim := l.getLimiter(key, every, burst, now)

	info := Info{Limit: burst}
	if lim.AllowN(now, 1) {
		info.Allowed = true
	} else {
		r := lim.ReserveN(now, 1)
		info.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}

	tokens := lim.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}
	info.Remaining = int(tokens)
	info.ResetTime = now
	if missing := float64(burst) - tokens; missing > 0 && every > 0 {
		info.ResetTime = now.Add(time.Duration(missing / float64(every) * float64(time.Second)))
	}
	return info.Allowed, info
}

// bucketShape converts an endpoint window into a rate. A nil config uses the default.
func (l *Limiter) bucketShape(ec *EndpointConfig) (rate.Limit, int) {
	if ec == nil {
		return rate.Limit(l.config.RPS), l.config.Burst
	}
	burst := ec.Burst
	if burst <= 0 {
		burst = ec.Limit
	}
	return rate.Every(ec.Window / time.Duration(ec.Limit)), burst
}

func (l *Limiter) getLimiter(key string, every rate.Limit, burst int, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(every, burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(l.now())
		case <-l.cleanupStop:
			return
		}
	}
}

// sweep drops buckets idle for longer than the configured TTL.
func (l *Limiter) sweep(now time.Time) {
	ttl := l.config.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) > ttl {
			delete(l.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupStop != nil {
			close(l.cleanupStop)
		}
	})
}
