package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadfinder/internal/model"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestDoVal_RetriesTransient(t *testing.T) {
	var calls int
	var retried []int
	cfg := RetryConfig{
		MaxAttempts: 3,
		Sleep:       noSleep,
		OnRetry:     func(a int, _ error) { retried = append(retried, a) },
	}

	v, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("503"), 503)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoVal_StopsOnPermanent(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{MaxAttempts: 5, Sleep: noSleep}, func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	assert.EqualError(t, err, "bad request")
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), RetryConfig{MaxAttempts: 4, Sleep: noSleep}, func(_ context.Context) error {
		calls++
		return syscall.ECONNRESET
	})
	assert.ErrorIs(t, err, syscall.ECONNRESET)
	assert.Equal(t, 4, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, RetryConfig{MaxAttempts: 5, Sleep: noSleep}, func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("timeout"), 0)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Capped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}.withDefaults()
	cfg.JitterFraction = 0
	assert.Equal(t, time.Second, cfg.backoff(1))
	assert.Equal(t, 2*time.Second, cfg.backoff(2))
	assert.Equal(t, 3*time.Second, cfg.backoff(3))
	assert.Equal(t, 3*time.Second, cfg.backoff(10))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(5, 100, 0)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, DefaultRetryConfig().MaxBackoff, cfg.MaxBackoff)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"tagged", NewTransientError(errors.New("x"), 429), true},
		{"wrapped tag", fmt.Errorf("poll: %w", NewTransientError(errors.New("x"), 502)), true},
		{"conn reset", syscall.ECONNRESET, true},
		{"message", errors.New("read tcp: i/o timeout"), true},
		{"plain", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, c := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(c), c)
	}
	for _, c := range []int{200, 400, 401, 404} {
		assert.False(t, IsTransientHTTPStatus(c), c)
	}
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Now()
	b := NewBreaker("zerobounce", BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	b.now = func() time.Time { return now }

	fail := func(_ context.Context) (int, error) { return 0, errors.New("down") }
	ok := func(_ context.Context) (int, error) { return 1, nil }

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, BreakerClosed, b.State())
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, BreakerOpen, b.State())

	var called bool
	_, err := Call(context.Background(), b, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())
	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("apify", BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) { return 0, errors.New("x") })
	now = now.Add(2 * time.Second)
	_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) { return 0, errors.New("x") })
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreakers_Registry(t *testing.T) {
	r := NewBreakers(DefaultBreakerConfig())
	a := r.Get("apify")
	assert.Same(t, a, r.Get("apify"))
	assert.NotSame(t, a, r.Get("zerobounce"))
	assert.Equal(t, map[string]BreakerState{"apify": BreakerClosed, "zerobounce": BreakerClosed}, r.States())
}

func TestIsOutage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"per-request rejection", fmt.Errorf("acme.com: %w", model.ErrValidationFailed), false},
		{"plain", errors.New("bad json"), false},
		{"rate limited", fmt.Errorf("guessformat: %w", model.ErrRateLimited), true},
		{"unavailable", &model.ProviderUnavailableError{Provider: "zerobounce"}, true},
		{"transient", NewTransientError(errors.New("502"), 502), true},
		{"conn reset", syscall.ECONNRESET, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOutage(tt.err))
		})
	}
}

func TestBreaker_DefaultIgnoresPerRequestErrors(t *testing.T) {
	b := NewBreaker("format_lookup", DefaultBreakerConfig())
	for i := 0; i < 10; i++ {
		_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) {
			return 0, fmt.Errorf("nofmt%d.com: %w", i, model.ErrValidationFailed)
		})
		_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) { return 0, context.Canceled })
	}
	assert.Equal(t, BreakerClosed, b.State())

	for i := 0; i < 5; i++ {
		_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) {
			return 0, NewTransientError(errors.New("503"), 503)
		})
	}
	assert.Equal(t, BreakerOpen, b.State())
}
