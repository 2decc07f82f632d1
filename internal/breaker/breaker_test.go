package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreakerCachesProbeForTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	calls := 0
	var probeErr error
	b := New(func(ctx context.Context) error {
		calls++
		return probeErr
	}, 30*time.Second, clock.Now)
	ctx := context.Background()

	if !b.Available(ctx) || calls != 1 {
		t.Fatalf("first probe: calls=%d", calls)
	}

	probeErr = errors.New("dial tcp: connection refused")
	clock.Advance(29 * time.Second)
	if !b.Available(ctx) || calls != 1 {
		t.Fatalf("cached result expected within ttl, calls=%d", calls)
	}

	clock.Advance(2 * time.Second)
	if b.Available(ctx) || calls != 2 {
		t.Fatalf("stale result must be re-probed, calls=%d", calls)
	}
	_, _, lastErr := b.State()
	if lastErr == nil {
		t.Fatal("State must expose the last probe error")
	}

	probeErr = nil
	clock.Advance(10 * time.Second)
	if b.Available(ctx) {
		t.Fatal("open breaker must stay open for ttl")
	}
	clock.Advance(25 * time.Second)
	if !b.Available(ctx) || calls != 3 {
		t.Fatalf("breaker should close after successful probe, calls=%d", calls)
	}
}

func TestBreakerReportFailure(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	calls := 0
	b := New(func(ctx context.Context) error {
		calls++
		return nil
	}, time.Minute, clock.Now)
	ctx := context.Background()

	if !b.Available(ctx) {
		t.Fatal("expected available")
	}
	b.ReportFailure(errors.New("i/o timeout"))
	if b.Available(ctx) {
		t.Fatal("expected open breaker after reported failure")
	}

	clock.Advance(61 * time.Second)
	if !b.Available(ctx) || calls != 2 {
		t.Fatalf("expected re-probe after ttl, calls=%d", calls)
	}
}

func TestBreakerIgnoresProbeCancelledByCaller(t *testing.T) {
	calls := 0
	b := New(func(ctx context.Context) error {
		calls++
		return ctx.Err()
	}, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !b.Available(ctx) {
		t.Fatal("cancelled caller must not mark the store down")
	}
	if _, checkedAt, _ := b.State(); !checkedAt.IsZero() {
		t.Fatal("cancelled probe must not be cached")
	}
	if !b.Available(context.Background()) || calls != 2 {
		t.Fatalf("next caller must probe again, calls=%d", calls)
	}
}
