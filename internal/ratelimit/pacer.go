// Package ratelimit paces calls to remote model endpoints with an adaptive
// per-target interval and a bounded retry budget.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// Config controls the adaptive window and retry budget of a Pacer.
type Config struct {
	MinInterval    time.Duration // initial lower bound of the window
	MaxInterval    time.Duration // initial upper bound of the window
	SlowdownGuard  time.Duration // minimum spacing between slow-downs across all targets
	SlowdownFactor float64
	SpeedupFactor  float64
	Timeout        time.Duration // per-attempt deadline
	MaxAttempts    int
	RetryBase      time.Duration // first backoff between attempts
	RetryCap       time.Duration
}

// DefaultConfig returns the pacing parameters used by the generator.
func DefaultConfig() Config {
	return Config{
		MinInterval:    time.Millisecond,
		MaxInterval:    50 * time.Millisecond,
		SlowdownGuard:  10 * time.Millisecond,
		SlowdownFactor: 1.01,
		SpeedupFactor:  0.999,
		Timeout:        80 * time.Second,
		MaxAttempts:    5,
		RetryBase:      100 * time.Millisecond,
		RetryCap:       5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinInterval <= 0 {
		c.MinInterval = d.MinInterval
	}
	if c.MaxInterval < c.MinInterval {
		c.MaxInterval = c.MinInterval
	}
	if c.SlowdownGuard < 0 {
		c.SlowdownGuard = 0
	}
	if c.SlowdownFactor < 1 {
		c.SlowdownFactor = d.SlowdownFactor
	}
	if c.SpeedupFactor <= 0 || c.SpeedupFactor > 1 {
		c.SpeedupFactor = d.SpeedupFactor
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	if c.RetryCap < c.RetryBase {
		c.RetryCap = c.RetryBase
	}
	return c
}

// Window is a snapshot of the pacing interval for one target.
type Window struct {
	Min         time.Duration
	Max         time.Duration
	LastRequest time.Time
}

// Mid returns the interval currently enforced between calls.
func (w Window) Mid() time.Duration {
	return (w.Min + w.Max) / 2
}

type window struct {
	Window
	limiter *rate.Limiter
}

// Pacer spaces calls per target and adapts the spacing to observed
// failures. A Pacer is safe for concurrent use.
type Pacer struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	windows      map[string]*window
	lastSlowdown time.Time
}

// NewPacer creates a Pacer. Zero fields of cfg take their defaults.
func NewPacer(cfg Config, logger *slog.Logger) *Pacer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pacer{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Config returns the effective configuration.
func (p *Pacer) Config() Config { return p.cfg }

// Snapshot returns the current window for target. Unknown targets report the
// initial window.
func (p *Pacer) Snapshot(target string) Window {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.windowLocked(target).Window
}

func (p *Pacer) windowLocked(target string) *window {
	w, ok := p.windows[target]
	if !ok {
		w = &window{Window: Window{Min: p.cfg.MinInterval, Max: p.cfg.MaxInterval}}
		w.limiter = rate.NewLimiter(rate.Every(w.Mid()), 1)
		p.windows[target] = w
	}
	return w
}

func (p *Pacer) limiter(target string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.windowLocked(target).limiter
}

func (p *Pacer) markRequest(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.windowLocked(target).LastRequest = p.now()
}

// speedUp narrows the window after a success.
func (p *Pacer) speedUp(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.windowLocked(target)
	w.Max = w.Mid()
	w.Min = scale(w.Min, p.cfg.SpeedupFactor)
	w.limiter.SetLimit(rate.Every(w.Mid()))
}

// slowDown widens the window after a transient failure. Slow-downs closer
// together than the guard interval are ignored, whatever the target.
func (p *Pacer) slowDown(target string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.lastSlowdown.IsZero() && now.Sub(p.lastSlowdown) <= p.cfg.SlowdownGuard {
		return false
	}
	w := p.windowLocked(target)
	w.Min = w.Mid()
	w.Max = scale(w.Max, p.cfg.SlowdownFactor)
	w.limiter.SetLimit(rate.Every(w.Mid()))
	p.lastSlowdown = now
	return true
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(math.Round(float64(d) * f))
}

// Call runs fn for target once the target's pacing interval has elapsed.
// Transient failures widen the window and are retried until the attempt
// budget is spent; any other error is returned as is.
func Call[T any](ctx context.Context, p *Pacer, target string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := 0

	backoff := retry.WithCappedDuration(p.cfg.RetryCap, retry.NewExponential(p.cfg.RetryBase))
	backoff = retry.WithMaxRetries(uint64(p.cfg.MaxAttempts-1), backoff) //nolint:gosec // MaxAttempts is positive

	v, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (T, error) {
		attempts++

		if err := p.limiter(target).Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			return zero, fmt.Errorf("pace %s: %w", target, err)
		}
		p.markRequest(target)

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		v, err := fn(attemptCtx)
		cancel()

		if err == nil {
			p.speedUp(target)
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !IsTransient(err) && !errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}

		slowed := p.slowDown(target)
		p.logger.Warn("transient failure",
			"target", target,
			"attempt", attempts,
			"slowed", slowed,
			"error", err,
		)
		if attempts >= p.cfg.MaxAttempts {
			return zero, &ExhaustedError{Target: target, Attempts: attempts, Last: err}
		}
		return zero, retry.RetryableError(err)
	})
	if err != nil {
		return zero, err
	}
	return v, nil
}
