// Package keypool rotates API keys for providers that hand out several
// low-quota keys (Groq, YouTube Data API). A Pool picks a key per attempt,
// tracks failures per key and benches keys that keep failing.
package keypool

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

type Policy int

const (
	RoundRobin Policy = iota
	Random
)

var ErrNoKeys = errors.New("keypool: no keys configured")

// ErrExhausted is returned (wrapping the last attempt's error) when every
// key was tried without success.
var ErrExhausted = errors.New("keypool: all keys failed")

type keyState struct {
	failures     int
	benchedUntil time.Time
	lastErr      error
}

type Pool struct {
	mu          sync.Mutex
	keys        []string
	state       map[string]*keyState
	next        int
	policy      Policy
	maxFailures int
	cooldown    time.Duration
	retryable   func(error) bool
	now         func() time.Time
	rnd         *rand.Rand
}

type Option func(*Pool)

func WithPolicy(p Policy) Option { return func(pool *Pool) { pool.policy = p } }

// WithCooldown benches a key for d after maxFailures consecutive failures.
func WithCooldown(maxFailures int, d time.Duration) Option {
	return func(pool *Pool) {
		pool.maxFailures = maxFailures
		pool.cooldown = d
	}
}

// WithRetryable decides whether an error should move on to the next key.
// Non-retryable errors are returned immediately.
func WithRetryable(fn func(error) bool) Option { return func(pool *Pool) { pool.retryable = fn } }

func withClock(now func() time.Time) Option { return func(pool *Pool) { pool.now = now } }

func New(keys []string, opts ...Option) *Pool {
	p := &Pool{
		keys:        append([]string(nil), keys...),
		state:       make(map[string]*keyState, len(keys)),
		maxFailures: 3,
		cooldown:    5 * time.Minute,
		retryable:   func(error) bool { return true },
		now:         time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, k := range p.keys {
		p.state[k] = &keyState{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Len() int {
	return len(p.keys)
}

// order returns the keys to try for one call: healthy keys first in policy
// order, benched keys last so a fully benched pool still gets a chance.
func (p *Pool) order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.keys)
	start := 0
	switch p.policy {
	case Random:
		start = p.rnd.Intn(n)
	default:
		start = p.next % n
		p.next++
	}

	now := p.now()
	healthy := make([]string, 0, n)
	benched := make([]string, 0)
	for i := 0; i < n; i++ {
		k := p.keys[(start+i)%n]
		if p.state[k].benchedUntil.After(now) {
			benched = append(benched, k)
			continue
		}
		healthy = append(healthy, k)
	}
	return append(healthy, benched...)
}

func (p *Pool) markFailure(key string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state[key]
	st.failures++
	st.lastErr = err
	if p.maxFailures > 0 && st.failures >= p.maxFailures {
		st.benchedUntil = p.now().Add(p.cooldown)
		st.failures = 0
	}
}

func (p *Pool) markSuccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.state[key]
	st.failures = 0
	st.benchedUntil = time.Time{}
	st.lastErr = nil
}

// Do calls fn with successive keys until one succeeds, fn returns a
// non-retryable error, the context ends, or every key has been tried once.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context, key string) error) error {
	if len(p.keys) == 0 {
		return ErrNoKeys
	}

	var lastErr error
	for _, key := range p.order() {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, key)
		if err == nil {
			p.markSuccess(key)
			return nil
		}

		p.markFailure(key, err)
		lastErr = err
		if !p.retryable(err) {
			return err
		}
	}
	return errors.Join(ErrExhausted, lastErr)
}

// Call is Do for functions returning a value.
func Call[T any](ctx context.Context, p *Pool, fn func(ctx context.Context, key string) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context, key string) error {
		v, err := fn(ctx, key)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type KeyStats struct {
	Failures int
	Benched  bool
	LastErr  error
}

// Stats reports per-key state keyed by the key's last four characters.
func (p *Pool) Stats() map[string]KeyStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make(map[string]KeyStats, len(p.keys))
	for _, k := range p.keys {
		st := p.state[k]
		out[suffix(k)] = KeyStats{
			Failures: st.failures,
			Benched:  st.benchedUntil.After(now),
			LastErr:  st.lastErr,
		}
	}
	return out
}

func suffix(k string) string {
	if len(k) <= 4 {
		return k
	}
	return "..." + k[len(k)-4:]
}
