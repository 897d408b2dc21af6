package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"govee-client/internal/constants"
	"govee-client/internal/models"
)

// Limiter tracks the shared request budget the API grants per key. Every
// outgoing call consults DelayIfNeeded first; every response feeds Record.
// The budget is shared with any other client using the same key, so the
// default threshold leaves headroom rather than draining it to zero.
type Limiter struct {
	logger *log.Logger

	mu        sync.Mutex
	total     int
	remaining int
	reset     time.Time
	threshold int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewLimiter(logger *log.Logger) *Limiter {
	return &Limiter{
		logger:    logger,
		total:     constants.DefaultRateLimitTotal,
		remaining: constants.DefaultRateLimitTotal,
		threshold: constants.DefaultRateLimitThreshold,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// DelayIfNeeded suspends the caller until the rate limit window resets when
// the remaining budget has dropped to the safety threshold.
func (l *Limiter) DelayIfNeeded(ctx context.Context) error {
	l.mu.Lock()
	remaining, total, threshold := l.remaining, l.total, l.threshold
	wait := l.reset.Sub(l.now())
	l.mu.Unlock()

	if remaining > threshold || wait <= 0 {
		return nil
	}
	l.logger.Warn("rate limiting active, delaying request", "remaining", remaining, "total", total, "wait", wait)
	return l.sleep(ctx, wait)
}

// Record updates the budget from response headers. When the headers are
// absent or unparsable the remaining budget is decremented pessimistically,
// so repeated unparsable responses degrade toward over-throttling.
func (l *Limiter) Record(headers http.Header) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total, errTotal := strconv.Atoi(headers.Get(constants.HeaderRateLimitTotal))
	remaining, errRemaining := strconv.Atoi(headers.Get(constants.HeaderRateLimitRemaining))
	resetEpoch, errReset := strconv.ParseFloat(headers.Get(constants.HeaderRateLimitReset), 64)

	if errTotal != nil || errRemaining != nil || errReset != nil {
		l.remaining--
		l.logger.Warn("rate limit headers missing or unparsable, assuming one request used", "remaining", l.remaining)
		return
	}

	l.total = total
	l.remaining = remaining

	// never trust a reset further away than the cap
	reset := time.Unix(int64(resetEpoch), 0)
	capped := l.now().Add(constants.RateLimitResetMax)
	if reset.After(capped) {
		reset = capped
	}
	l.reset = reset

	l.logger.Debug("rate limit tracked", "total", l.total, "remaining", l.remaining, "reset", l.reset)
}

// SetThreshold sets the remaining-budget value at or below which calls are
// proactively delayed.
func (l *Limiter) SetThreshold(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < 1 {
		return models.NewConfigError("rate limiter threshold %d must be 1 or above", n)
	}
	if n > l.total {
		return models.NewConfigError("rate limiter threshold %d must be below the total limit %d", n, l.total)
	}
	l.threshold = n
	return nil
}

func (l *Limiter) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// Reset returns the absolute time the current rate limit window resets.
func (l *Limiter) Reset() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reset
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
