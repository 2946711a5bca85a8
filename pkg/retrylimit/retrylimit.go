// Package retrylimit provides an adaptive rate limiter and a retry loop for
// outbound Discord REST calls. Rate limited (429) and server side (5xx)
// failures are retried with backoff; anything else is retried a bounded
// number of times unless it is marked fatal.
//
// Example usage:
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
//	err := retrylimit.WithRetry(ctx, func() error {
//	    _, err := session.ChannelMessageSendEmbed(channelID, embed)
//	    return err
//	}, lim)
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter manages a rate limit that adjusts automatically based
// on the outcome of requests. It increases on success and decreases on
// rate limits. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
	now       func() time.Time
}

// NewAdaptiveLimiter creates an AdaptiveLimiter.
//
// Parameters:
//   - initial: starting requests per second
//   - min: minimum allowed rate
//   - max: maximum allowed rate
//   - stepUp: increment on success
//   - stepDown: multiplier applied on failure (e.g., 0.5 to halve)
func NewAdaptiveLimiter(initial, min, max rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	initial = clamp(initial, 1, max)
	if min < 1 {
		min = 1
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, burst(initial)),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
		now:      time.Now,
	}
}

// Wait blocks until a token is available or the context is canceled.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success increases the rate, unless a rate limit was hit in the last ten
// seconds.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.now().Sub(a.lastError) > 10*time.Second {
		a.setLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited reduces the rate after the server signalled overload.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = a.now()
	a.setLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) setLimit(l rate.Limit) {
	l = clamp(l, a.minLimit, a.maxLimit)
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
		a.limiter.SetBurst(burst(l))
	}
}

func clamp(l, lo, hi rate.Limit) rate.Limit {
	return max(lo, min(l, hi))
}

func burst(l rate.Limit) int {
	return max(1, int(l))
}

// FatalError wraps errors that must not be retried.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as not retryable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// StatusCode extracts the HTTP status of a Discord REST failure, or 0.
func StatusCode(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	var limited *discordgo.RateLimitError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests
	}
	return 0
}

// Classify reports whether err should slow the limiter down.
type Classify func(error) bool

// Overloaded is the default Classify: 429 and 5xx responses.
func Overloaded(err error) bool {
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || code >= 500 && code < 600
}

// Permanent reports 4xx responses other than 429. Retrying them cannot
// succeed, e.g. a missing channel or missing permissions.
func Permanent(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// Config configures the retry loop.
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	RateLimitDelay time.Duration
	Multiplier     float64
	Jitter         bool
	Classify       Classify
	OnRetry        func(attempt int, err error)
}

// DefaultConfig suits replies to a user: a handful of quick attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		RateLimitDelay: time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		Classify:       Overloaded,
	}
}

// WithRetry runs fn with DefaultConfig.
func WithRetry(ctx context.Context, fn func() error, lim *AdaptiveLimiter) error {
	return WithRetryConfig(ctx, fn, lim, DefaultConfig())
}

// WithRetryConfig runs fn until it succeeds, fails permanently or fatally,
// the context ends, or MaxAttempts is reached. The last error is returned
// wrapped in the latter case.
func WithRetryConfig(ctx context.Context, fn func() error, lim *AdaptiveLimiter, cfg Config) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Classify == nil {
		cfg.Classify = Overloaded
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	delay := cfg.InitialDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return errors.Join(werr, err)
			}
		} else if ctx.Err() != nil {
			return errors.Join(ctx.Err(), err)
		}

		err = fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				log.Ctx(ctx).Debug().Int("attempts", attempt).Msg("Request succeeded after retrying")
			}
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) || Permanent(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		wait := delay
		if cfg.Classify(err) {
			if lim != nil {
				lim.RateLimited()
			}
			if StatusCode(err) == http.StatusTooManyRequests {
				wait = cfg.RateLimitDelay
			}
		}
		if cfg.Jitter {
			wait = jitter(wait)
		}
		log.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Request failed, retrying")

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(wait):
		}

		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}
	return fmt.Errorf("giving up after %d attempts: %w", cfg.MaxAttempts, err)
}

// jitter adds up to 25% to d.
func jitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	return d + rand.N(d/4)
}
