package ratelimit

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, now time.Time) (*Limiter, *time.Duration) {
	t.Helper()
	l := NewLimiter(log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel}))
	l.now = func() time.Time { return now }
	var slept time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		return nil
	}
	return l, &slept
}

func limitHeaders(total, remaining int, reset time.Time) http.Header {
	h := http.Header{}
	h.Set("Rate-Limit-Total", strconv.Itoa(total))
	h.Set("Rate-Limit-Remaining", strconv.Itoa(remaining))
	h.Set("Rate-Limit-Reset", strconv.FormatInt(reset.Unix(), 10))
	return h
}

func Test_Record(t *testing.T) {

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should track budget from response headers", func(t *testing.T) {
		l, _ := newTestLimiter(t, now)

		l.Record(limitHeaders(100, 42, now.Add(30*time.Second)))

		assert.Equal(t, 100, l.Total())
		assert.Equal(t, 42, l.Remaining())
		assert.Equal(t, now.Add(30*time.Second).Unix(), l.Reset().Unix())
	})

	t.Run("should cap the reset time", func(t *testing.T) {
		l, _ := newTestLimiter(t, now)

		l.Record(limitHeaders(100, 42, now.Add(2*time.Hour)))

		assert.Equal(t, now.Add(180*time.Second).Unix(), l.Reset().Unix())
	})

	t.Run("missing headers: should decrement remaining and keep reset", func(t *testing.T) {
		l, _ := newTestLimiter(t, now)
		l.Record(limitHeaders(100, 42, now.Add(30*time.Second)))

		l.Record(http.Header{})
		l.Record(http.Header{})

		assert.Equal(t, 40, l.Remaining())
		assert.Equal(t, now.Add(30*time.Second).Unix(), l.Reset().Unix())
	})

	t.Run("partial headers: should decrement remaining", func(t *testing.T) {
		l, _ := newTestLimiter(t, now)
		h := http.Header{}
		h.Set("Rate-Limit-Total", "100")

		l.Record(h)

		assert.Equal(t, 99, l.Remaining())
	})
}

func Test_DelayIfNeeded(t *testing.T) {

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("budget above threshold: should not delay", func(t *testing.T) {
		l, slept := newTestLimiter(t, now)
		l.Record(limitHeaders(100, 6, now.Add(60*time.Second)))

		err := l.DelayIfNeeded(context.Background())

		assert.NoError(t, err)
		assert.Zero(t, *slept)
	})

	t.Run("budget at threshold: should delay until the window resets", func(t *testing.T) {
		l, slept := newTestLimiter(t, now)
		l.Record(limitHeaders(100, 5, now.Add(60*time.Second)))

		err := l.DelayIfNeeded(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 60*time.Second, *slept)
	})

	t.Run("window already reset: should not delay", func(t *testing.T) {
		l, slept := newTestLimiter(t, now)
		l.Record(limitHeaders(100, 0, now.Add(-time.Second)))

		err := l.DelayIfNeeded(context.Background())

		assert.NoError(t, err)
		assert.Zero(t, *slept)
	})

	t.Run("raising the threshold makes a borderline budget delay", func(t *testing.T) {
		l, slept := newTestLimiter(t, now)
		l.Record(limitHeaders(100, 10, now.Add(60*time.Second)))

		assert.NoError(t, l.DelayIfNeeded(context.Background()))
		assert.Zero(t, *slept)

		assert.NoError(t, l.SetThreshold(10))
		assert.NoError(t, l.DelayIfNeeded(context.Background()))
		assert.Equal(t, 60*time.Second, *slept)
	})

	t.Run("cancelled context: should return the context error", func(t *testing.T) {
		l, _ := newTestLimiter(t, now)
		l.sleep = sleepContext
		l.Record(limitHeaders(100, 1, now.Add(60*time.Second)))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, l.DelayIfNeeded(ctx), context.Canceled)
	})
}

func Test_SetThreshold(t *testing.T) {

	tests := []struct {
		name      string
		threshold int
		wantErr   bool
	}{
		{name: "below 1 is rejected", threshold: 0, wantErr: true},
		{name: "above total is rejected", threshold: 101, wantErr: true},
		{name: "1 is accepted", threshold: 1},
		{name: "total is accepted", threshold: 100},
	}

	for _, c := range tests {
		t.Run(c.name, func(t *testing.T) {
			l, _ := newTestLimiter(t, time.Now())
			err := l.SetThreshold(c.threshold)
			if c.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
