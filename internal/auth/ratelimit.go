package auth

import (
	"sync"
	"time"
)

// Rate limit policy for login attempts. Fixed, not runtime-configurable:
// at most maxAttempts per identifier within one attemptWindow.
const (
	maxAttempts   = 5
	attemptWindow = 15 * time.Minute
)

// attemptRecord tracks login attempts for a single identifier within a
// time window. Stale once resetTime has passed.
type attemptRecord struct {
	count     int
	resetTime time.Time
}

// RateLimitResult is the outcome of consulting the limiter.
type RateLimitResult struct {
	// Allowed reports whether the attempt may proceed.
	Allowed bool

	// RemainingAttempts is how many attempts are left in the window
	// after this one.
	RemainingAttempts int

	// ResetTime is when the window ends. Only set when Allowed is false,
	// so callers can surface a Retry-After duration.
	ResetTime time.Time
}

// Limiter is a per-identifier (client IP) login attempt counter. It is an
// explicitly constructed, injectable component -- one instance per process,
// created in app bootstrap and handed to the auth handler. The map is
// mutex-guarded: two simultaneous requests from the same identifier must
// never both slip past the limit.
//
// Records are process-lifetime only; restarts clear all counters. That is
// acceptable for a login throttle and deliberately not persisted.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord

	// now is the clock, overridable in tests to simulate window expiry.
	now func() time.Time
}

// NewLimiter creates an empty login rate limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		attempts: make(map[string]*attemptRecord),
		now:      time.Now,
	}
}

// Consume records a login attempt for the identifier and reports whether it
// may proceed. Call exactly once per real login attempt -- every call
// spends quota. Status displays must use Peek instead.
func (l *Limiter) Consume(identifier string) RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	record, exists := l.attempts[identifier]

	// First attempt, or the previous window has expired: open a fresh one.
	if !exists || now.After(record.resetTime) {
		l.attempts[identifier] = &attemptRecord{
			count:     1,
			resetTime: now.Add(attemptWindow),
		}
		return RateLimitResult{Allowed: true, RemainingAttempts: maxAttempts - 1}
	}

	if record.count >= maxAttempts {
		return RateLimitResult{
			Allowed:           false,
			RemainingAttempts: 0,
			ResetTime:         record.resetTime,
		}
	}

	record.count++
	return RateLimitResult{
		Allowed:           true,
		RemainingAttempts: maxAttempts - record.count,
	}
}

// Peek reports the identifier's current quota without spending an attempt.
func (l *Limiter) Peek(identifier string) RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	record, exists := l.attempts[identifier]

	if !exists || now.After(record.resetTime) {
		return RateLimitResult{Allowed: true, RemainingAttempts: maxAttempts}
	}

	if record.count >= maxAttempts {
		return RateLimitResult{
			Allowed:           false,
			RemainingAttempts: 0,
			ResetTime:         record.resetTime,
		}
	}

	return RateLimitResult{
		Allowed:           true,
		RemainingAttempts: maxAttempts - record.count,
	}
}

// Reset deletes the identifier's record, fully restoring its quota.
// Called after a successful login.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, identifier)
}

// Sweep removes expired records. Run periodically from app bootstrap so the
// map doesn't grow without bound under scanning traffic.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, record := range l.attempts {
		if now.After(record.resetTime) {
			delete(l.attempts, id)
		}
	}
}
