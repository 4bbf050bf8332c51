package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

// testClock lets tests advance the breaker's notion of time.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(cfg Config) (*CircuitBreaker, *testClock) {
	cb := New("test", cfg)
	clock := &testClock{now: time.Unix(1700000000, 0)}
	cb.clock = clock.Now
	return cb, clock
}

func fail(ctx context.Context) error { return errUpstream }
func ok(ctx context.Context) error   { return nil }

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 3})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
		require.Equal(t, Closed, cb.State())
	}
	require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	require.Equal(t, Open, cb.State())
	require.Equal(t, uint64(1), cb.Stats().TripsTotal)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 2})
	ctx := context.Background()

	require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	require.NoError(t, cb.Call(ctx, ok))
	require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	require.Equal(t, Closed, cb.State())
}

func TestBreaker_OpenRejectsWithRetryAfter(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: 30 * time.Second})
	ctx := context.Background()

	require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	require.Equal(t, Open, cb.State())

	clock.Advance(10 * time.Second)
	err := cb.Call(ctx, ok)
	var open *OpenError
	require.ErrorAs(t, err, &open)
	require.Equal(t, "test", open.Provider)
	require.Equal(t, Open, open.State)
	require.Equal(t, 20*time.Second, open.RetryAfter)
	require.Equal(t, uint64(1), cb.Stats().RejectionsTotal)
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	cb, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 2,
	})
	ctx := context.Background()

	require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	clock.Advance(31 * time.Second)

	require.NoError(t, cb.Call(ctx, ok))
	require.Equal(t, HalfOpen, cb.State())
	require.NoError(t, cb.Call(ctx, ok))
	require.Equal(t, Closed, cb.State())
	require.Equal(t, 0, cb.Stats().FailureCount)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(Config{FailureThreshold: 1, Timeout: 30 * time.Second})
	ctx := context.Background()

	require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	clock.Advance(31 * time.Second)

	require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	require.Equal(t, Open, cb.State())
	require.Equal(t, uint64(2), cb.Stats().TripsTotal)
}

func TestBreaker_HalfOpenProbeCap(t *testing.T) {
	cb, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	})
	ctx := context.Background()

	require.ErrorIs(t, cb.Call(ctx, fail), errUpstream)
	clock.Advance(31 * time.Second)

	// While one probe is in flight, a second call is rejected.
	err := cb.Call(ctx, func(ctx context.Context) error {
		nested := cb.Call(ctx, ok)
		var open *OpenError
		require.ErrorAs(t, nested, &open)
		require.Equal(t, HalfOpen, open.State)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, HalfOpen, cb.State())
}

func TestBreaker_StreamOutcomeRecordedAfterDrain(t *testing.T) {
	cb, _ := newTestBreaker(Config{FailureThreshold: 1})
	ctx := context.Background()

	// A stream that yields output and then breaks is one failure.
	err := cb.Call(ctx, func(ctx context.Context) error {
		require.Equal(t, Closed, cb.State())
		return errUpstream
	})
	require.ErrorIs(t, err, errUpstream)
	require.Equal(t, Open, cb.State())
}

func TestOpenError_Message(t *testing.T) {
	err := &OpenError{Provider: "anthropic", State: Open, RetryAfter: 12 * time.Second}
	require.Contains(t, err.Error(), "anthropic")
	require.Contains(t, err.Error(), "open")
}

func TestManager_SingletonPerProvider(t *testing.T) {
	m := NewManager(Config{})
	a := m.Get("openai")
	b := m.Get("openai")
	require.Same(t, a, b)
	require.NotSame(t, a, m.Get("anthropic"))
}

func TestManager_CallAndSnapshot(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 1})
	ctx := context.Background()

	require.ErrorIs(t, m.Call(ctx, "openai", fail), errUpstream)
	require.NoError(t, m.Call(ctx, "anthropic", ok))

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, uint64(1), snap["openai"].TripsTotal)
	require.Equal(t, uint64(0), snap["anthropic"].TripsTotal)
}
