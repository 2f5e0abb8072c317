// Package countdown drives the game countdown.
//
// Runner.Run(ctx, duration) calls Broadcaster.BroadcastCountdown once per tick
// with duration, duration-1, ... 0, waiting Tick between calls. The hub does no
// sleeping of its own; all timing lives here.
package countdown

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Broadcaster receives one call per countdown tick.
type Broadcaster interface {
	BroadcastCountdown(tick int)
}

// Runner schedules countdown ticks.
type Runner struct {
	b           Broadcaster
	tick        time.Duration
	maxDuration int
}

// New creates a Runner that waits tick between broadcasts and accepts
// durations up to maxDuration.
func New(b Broadcaster, tick time.Duration, maxDuration int) *Runner {
	return &Runner{b: b, tick: tick, maxDuration: maxDuration}
}

// MaxDuration returns the largest accepted duration.
func (r *Runner) MaxDuration() int { return r.maxDuration }

// Run broadcasts duration down to 0 inclusive. It blocks for duration*Tick and
// returns ctx.Err() if cancelled between ticks.
func (r *Runner) Run(ctx context.Context, duration int) error {
	if duration < 0 || duration > r.maxDuration {
		return fmt.Errorf("countdown: duration %d out of range [0, %d]", duration, r.maxDuration)
	}

	slog.Info("countdown: started", "duration", duration)
	for i := duration; i >= 0; i-- {
		r.b.BroadcastCountdown(i)
		if i == 0 {
			break
		}
		select {
		case <-ctx.Done():
			slog.Warn("countdown: cancelled", "remaining", i)
			return ctx.Err()
		case <-time.After(r.tick):
		}
	}

	slog.Info("countdown: finished", "duration", duration)
	return nil
}
