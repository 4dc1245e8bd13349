// Package ratelimit caps requests per client over a fixed one-minute window.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const window = time.Minute

type Limiter struct {
	mu          sync.Mutex
	clients     map[string]*clientWindow
	stop        chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
	limit       int
	staleAfter  time.Duration
	rejected    atomic.Int64
	cleanupTick time.Duration
}

type clientWindow struct {
	started  time.Time
	lastSeen time.Time
	requests int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Clients idle for longer are forgotten by the cleanup loop.
	StaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
		StaleAfter:        10 * time.Minute,
	}
}

// NewLimiter starts the cleanup loop; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = def.StaleAfter
	}

	l := &Limiter{
		clients:     make(map[string]*clientWindow),
		stop:        make(chan struct{}),
		now:         time.Now,
		limit:       config.RequestsPerMinute,
		staleAfter:  config.StaleAfter,
		cleanupTick: config.CleanupInterval,
	}
	go l.cleanupLoop()
	return l
}

// Allow counts one request for key and reports whether it fits the window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok || now.Sub(c.started) >= window {
		l.clients[key] = &clientWindow{started: now, lastSeen: now, requests: 1}
		return true
	}

	c.lastSeen = now
	c.requests++
	if c.requests > l.limit {
		l.rejected.Add(1)
		return false
	}
	return true
}

// RetryAfter returns how long key must wait for its window to reset.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[key]
	if !ok {
		return 0
	}
	if d := window - l.now().Sub(c.started); d > 0 {
		return d
	}
	return 0
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-l.stop:
			return
		}
	}
}

// Cleanup forgets clients that have been idle past the stale threshold and
// returns how many were dropped.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.staleAfter)
	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

type Metrics struct {
	Rejected    int64
	ClientCount int
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		Rejected:    l.rejected.Load(),
		ClientCount: l.ActiveClients(),
	}
}

// Middleware rejects requests over the limit. keyOf picks the client key,
// usually its IP. onLimit writes the rejection; when nil a plain 429 is sent.
func (l *Limiter) Middleware(keyOf func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if l.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			secs := int(l.RetryAfter(key).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		})
	}
}
