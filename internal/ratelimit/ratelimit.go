// Package ratelimit is the admission gate in front of scan execution: a
// per-identity sliding window over request timestamps, kept entirely
// in-process. Deploying more than one instance requires an external shared
// counter, which this package deliberately does not provide.
package ratelimit

import (
	"sync"
	"time"

	"github.com/a11ygate/a11ygate/internal/logging"
)

const (
	// DefaultWindow is the trailing window requests are counted over.
	DefaultWindow = time.Minute

	// DefaultMaxRequests is the per-identity quota within the window.
	DefaultMaxRequests = 10

	// sweepInterval bounds memory by periodically dropping idle identities.
	sweepInterval = 5 * time.Minute
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed bool

	// Remaining is the quota left in the window, set when Allowed.
	Remaining int

	// RetryAfter is the whole-second wait until the oldest retained request
	// leaves the window, set when rejected.
	RetryAfter int
}

// Limiter admits requests per identity within a sliding time window.
type Limiter struct {
	window time.Duration
	max    int
	logger logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter and starts its background sweep. window and max fall
// back to the defaults when zero.
func New(window time.Duration, max int, logger logging.Logger, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	l := &Limiter{
		window:    window,
		max:       max,
		logger:    logger,
		now:       time.Now,
		windows:   make(map[string][]time.Time),
		stopSweep: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.sweepLoop()
	return l
}

// Check records one request attempt for identity and reports whether it is
// admitted. The read-filter-append sequence runs under a single lock; the
// expected contention (one short critical section per scan request) does not
// justify per-identity locking.
func (l *Limiter) Check(identity string) Result {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	valid := filterAfter(l.windows[identity], cutoff)

	if len(valid) >= l.max {
		l.windows[identity] = valid
		wait := valid[0].Add(l.window).Sub(now)
		retry := int((wait + time.Second - 1) / time.Second)
		if l.logger != nil {
			l.logger.Warn("rate limit exceeded",
				logging.Field{Key: "identity", Value: identity},
				logging.Field{Key: "retry_after", Value: retry})
		}
		return Result{Allowed: false, RetryAfter: retry}
	}

	valid = append(valid, now)
	l.windows[identity] = valid

	return Result{Allowed: true, Remaining: l.max - len(valid)}
}

// Close stops the background sweep. Safe to call more than once.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stopSweep) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopSweep:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep drops identities with no requests left inside the window.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for identity, stamps := range l.windows {
		valid := filterAfter(stamps, cutoff)
		if len(valid) == 0 {
			delete(l.windows, identity)
		} else {
			l.windows[identity] = valid
		}
	}
}

func filterAfter(stamps []time.Time, cutoff time.Time) []time.Time {
	valid := stamps[:0:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	return valid
}
