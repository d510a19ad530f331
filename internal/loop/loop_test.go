package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestStartStop(t *testing.T) {
	l := New(Options{Name: "test", Interval: 5 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int64
	l.Start(context.Background(), func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})
	require.True(t, l.Running())

	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)

	l.Stop()
	require.False(t, l.Running())

	// No further ticks once Stop has returned.
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, ticks.Load())
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	l := New(Options{Name: "test", Interval: time.Hour}, zerolog.Nop())

	var starts atomic.Int64
	tick := func(ctx context.Context) error {
		starts.Add(1)
		return nil
	}

	l.Start(context.Background(), tick)
	l.Start(context.Background(), tick)

	require.Eventually(t, func() bool { return starts.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(1), starts.Load())

	l.Stop()
}

func TestStopWhileStoppedIsNoop(t *testing.T) {
	l := New(Options{Name: "test", Interval: time.Second}, zerolog.Nop())
	l.Stop()
	l.Stop()
	require.False(t, l.Running())
}

func TestBackoffAfterTickError(t *testing.T) {
	l := New(Options{Name: "test", Interval: time.Millisecond, Backoff: 250 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int64
	l.Start(context.Background(), func(ctx context.Context) error {
		ticks.Add(1)
		return errors.New("boom")
	})
	defer l.Stop()

	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, time.Millisecond)
	// During the backoff window no additional tick may run.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int64(1), ticks.Load())
}

func TestPanicIsContained(t *testing.T) {
	l := New(Options{Name: "test", Interval: time.Millisecond, Backoff: 5 * time.Millisecond}, zerolog.Nop())

	var ticks atomic.Int64
	l.Start(context.Background(), func(ctx context.Context) error {
		ticks.Add(1)
		panic("kaboom")
	})
	defer l.Stop()

	// The loop survives repeated panics and keeps ticking after backoff.
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
}
