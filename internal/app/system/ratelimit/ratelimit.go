// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/normalize"
)

// Limiter counts requests per key in fixed windows. It is safe for
// concurrent use.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limit    int
	duration time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	count     int
	expiresAt time.Time
}

// New creates a limiter allowing limit requests per key every duration.
// Expired windows are swept in the background until Stop is called.
func New(limit int, duration time.Duration) *Limiter {
	l := &Limiter{
		windows:  make(map[string]*window),
		limit:    limit,
		duration: duration,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.sweep(2 * duration)
	return l
}

// SetClock overrides the time source, for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow records a request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.duration)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many requests key has left in its current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().After(w.expiresAt) {
		return l.limit
	}
	if n := l.limit - w.count; n > 0 {
		return n
	}
	return 0
}

// RetryAfter returns how long until key's window resets, or zero when key
// is not limited.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.count < l.limit {
		return 0
	}
	if d := w.expiresAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Reset clears the window for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Stop ends the background sweeper. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// ClientIP returns the caller's address: the first X-Forwarded-For entry,
// then X-Real-IP, then RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Config sets the per-IP and per-email windows of a LoginLimiter.
type Config struct {
	IPLimit     int
	IPWindow    time.Duration
	EmailLimit  int
	EmailWindow time.Duration
}

// DefaultConfig allows 10 attempts per IP per minute and 5 per email every
// 5 minutes.
var DefaultConfig = Config{
	IPLimit:     10,
	IPWindow:    time.Minute,
	EmailLimit:  5,
	EmailWindow: 5 * time.Minute,
}

// LoginLimiter guards credential endpoints (login, forgot-password) by
// client IP and by target email.
type LoginLimiter struct {
	ip    *Limiter
	email *Limiter
}

// NewLoginLimiter creates a limiter with DefaultConfig.
func NewLoginLimiter() *LoginLimiter {
	return NewLoginLimiterFromConfig(DefaultConfig)
}

// NewLoginLimiterWithConfig creates a login limiter with custom limits.
func NewLoginLimiterWithConfig(ipLimit int, ipDuration time.Duration, emailLimit int, emailDuration time.Duration) *LoginLimiter {
	return NewLoginLimiterFromConfig(Config{
		IPLimit:     ipLimit,
		IPWindow:    ipDuration,
		EmailLimit:  emailLimit,
		EmailWindow: emailDuration,
	})
}

// NewLoginLimiterFromConfig creates a login limiter from cfg.
func NewLoginLimiterFromConfig(cfg Config) *LoginLimiter {
	return &LoginLimiter{
		ip:    New(cfg.IPLimit, cfg.IPWindow),
		email: New(cfg.EmailLimit, cfg.EmailWindow),
	}
}

// Decision is the outcome of a LoginLimiter check.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// Check records an attempt from r against email.
func (ll *LoginLimiter) Check(r *http.Request, email string) Decision {
	ip := ClientIP(r)
	if !ll.ip.Allow(ip) {
		return Decision{
			Reason:     "Too many attempts. Please wait a minute before trying again.",
			RetryAfter: ll.ip.RetryAfter(ip),
		}
	}
	if key := normalize.Email(email); key != "" {
		if !ll.email.Allow(key) {
			return Decision{
				Reason:     "Too many attempts for this account. Please wait a few minutes.",
				RetryAfter: ll.email.RetryAfter(key),
			}
		}
	}
	return Decision{Allowed: true}
}

// ResetEmail clears the email window after a successful sign-in.
func (ll *LoginLimiter) ResetEmail(email string) {
	if key := normalize.Email(email); key != "" {
		ll.email.Reset(key)
	}
}

// SetClock overrides the time source of both windows, for tests.
func (ll *LoginLimiter) SetClock(now func() time.Time) {
	ll.ip.SetClock(now)
	ll.email.SetClock(now)
}

// Stop ends both background sweepers.
func (ll *LoginLimiter) Stop() {
	ll.ip.Stop()
	ll.email.Stop()
}
