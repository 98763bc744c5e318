package keypool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errQuota = errors.New("429 quota exceeded")

func TestDoNoKeys(t *testing.T) {
	p := New(nil)
	err := p.Do(context.Background(), func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestDoRoundRobinStartsAtNextKey(t *testing.T) {
	p := New([]string{"k1", "k2", "k3"})

	var used []string
	for i := 0; i < 4; i++ {
		err := p.Do(context.Background(), func(_ context.Context, key string) error {
			used = append(used, key)
			return nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"k1", "k2", "k3", "k1"}, used)
}

func TestDoFailsOverToNextKey(t *testing.T) {
	p := New([]string{"bad", "good"})

	var tried []string
	err := p.Do(context.Background(), func(_ context.Context, key string) error {
		tried = append(tried, key)
		if key == "bad" {
			return errQuota
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"bad", "good"}, tried)
	assert.Equal(t, 1, p.Stats()["bad"].Failures)
	assert.Equal(t, 0, p.Stats()["good"].Failures)
}

func TestDoExhausted(t *testing.T) {
	p := New([]string{"a", "b"})

	calls := 0
	err := p.Do(context.Background(), func(context.Context, string) error {
		calls++
		return errQuota
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errQuota)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	fatal := errors.New("400 bad request")
	p := New([]string{"a", "b"}, WithRetryable(func(err error) bool {
		return errors.Is(err, errQuota)
	}))

	calls := 0
	err := p.Do(context.Background(), func(context.Context, string) error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestBenchedKeyIsTriedLast(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := New([]string{"a", "b"}, WithCooldown(1, time.Minute), withClock(func() time.Time { return now }))

	// a fails once and gets benched
	_ = p.Do(context.Background(), func(_ context.Context, key string) error {
		if key == "a" {
			return errQuota
		}
		return nil
	})
	require.True(t, p.Stats()["a"].Benched)

	// Round robin would start at b now anyway; force the next call to start at a.
	p.next = 0
	var first string
	_ = p.Do(context.Background(), func(_ context.Context, key string) error {
		if first == "" {
			first = key
		}
		return nil
	})
	assert.Equal(t, "b", first)

	now = now.Add(2 * time.Minute)
	assert.False(t, p.Stats()["a"].Benched)
}

func TestCallReturnsValue(t *testing.T) {
	p := New([]string{"a", "b"})

	v, err := Call(context.Background(), p, func(_ context.Context, key string) (string, error) {
		if key == "a" {
			return "", errQuota
		}
		return "hello from " + key, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello from b", v)
}

func TestDoRespectsCancelledContext(t *testing.T) {
	p := New([]string{"a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
