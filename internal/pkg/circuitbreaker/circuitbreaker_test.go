package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBreaker(cfg Config) (*CircuitBreaker, *clock) {
	c := &clock{t: time.Unix(0, 0)}
	cb := New(cfg)
	cb.now = c.now
	return cb, c
}

func fail() error { return errUpstream }

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb, _ := newTestBreaker(Config{Name: "rapier", MaxFailures: 2, Timeout: time.Minute})
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreakerHalfOpenTrial(t *testing.T) {
	cb, c := newTestBreaker(Config{Name: "rapier", MaxFailures: 1, Timeout: time.Second})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, fail))
	require.Equal(t, StateOpen, cb.State())

	t.Run("failed trial reopens", func(t *testing.T) {
		c.t = c.t.Add(2 * time.Second)
		assert.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("successful trial closes", func(t *testing.T) {
		c.t = c.t.Add(2 * time.Second)
		assert.NoError(t, cb.Execute(ctx, func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 0, cb.Failures())
	})
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	notFound := errors.New("not found")
	cb, _ := newTestBreaker(Config{
		Name:        "rapier",
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, notFound) },
	})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(context.Background(), func() error { return notFound }), notFound)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHonoursCanceledContext(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig("rapier"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteWithResult(cb, ctx, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(func(name string) Config {
		cfg := DefaultConfig(name)
		cfg.MaxFailures = 1
		return cfg
	})

	a := r.Get("physics:b.example")
	assert.Same(t, a, r.Get("physics:b.example"))
	require.Error(t, a.Execute(context.Background(), fail))
	r.Get("physics:a.example")

	assert.Equal(t, []Stat{
		{Name: "physics:a.example", State: "closed", Failures: 0},
		{Name: "physics:b.example", State: "open", Failures: 1},
	}, r.Stats())
}
