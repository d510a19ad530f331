package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one iteration of a background loop's work.
type TickFunc func(ctx context.Context) error

// Options tune loop behaviour.
type Options struct {
	Name     string
	Interval time.Duration
	// Backoff is the pause applied after a tick returns an error or panics.
	// It is deliberately longer than Interval to avoid hot-looping against a
	// systemic outage such as an unreachable database.
	Backoff time.Duration
}

// Loop supervises a single recurring background task. The interval is measured
// from the completion of the previous tick, so slow work pushes out the
// schedule rather than overlapping.
type Loop struct {
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a stopped Loop.
func New(opts Options, logger zerolog.Logger) *Loop {
	if opts.Interval <= 0 {
		panic("loop interval must be positive")
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * opts.Interval
	}
	return &Loop{opts: opts, logger: logger.With().Str("component", "loop").Str("loop", opts.Name).Logger()}
}

// Start spawns the background task. Calling Start while the loop is already
// running is a no-op.
func (l *Loop) Start(ctx context.Context, tick TickFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done

	go func() {
		defer close(done)
		l.run(runCtx, tick)
	}()

	l.logger.Info().Msg("loop started")
}

// Stop signals the loop to exit at the next tick boundary and blocks until the
// background task has fully exited. Stopping a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if done == nil {
		return
	}

	cancel()
	<-done
	l.logger.Info().Msg("loop stopped")
}

// Running reports whether the background task is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}

func (l *Loop) run(ctx context.Context, tick TickFunc) {
	for {
		pause := l.opts.Interval
		if err := l.safeTick(ctx, tick); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error().Err(err).Dur("backoff", l.opts.Backoff).Msg("tick failed")
			pause = l.opts.Backoff
		}

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// safeTick converts a panicking tick into an error so a bug in loop work can
// never take down the hosting process.
func (l *Loop) safeTick(ctx context.Context, tick TickFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return tick(ctx)
}
