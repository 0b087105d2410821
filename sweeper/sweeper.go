// Package sweeper runs the background expiry loop that physically
// deletes stale typing beacons. Reads already filter on the liveness
// window, so the sweep is storage hygiene: its window is longer than
// the liveness window and deleting late costs nothing.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// A Store deletes beacons strictly older than the cutoff and reports
// the number deleted.
type Store interface {
	SweepExpired(ctx context.Context, cutoff time.Time) (int, error)
}

const (
	defaultInterval = time.Minute
	defaultWindow   = 5 * time.Second
)

// Sweeper deletes expired typing beacons on a fixed interval.
type Sweeper struct {
	Logger *slog.Logger
	Store  Store

	// Interval between sweeps. Zero means one minute.
	Interval time.Duration

	// Window is how old a beacon must be before it is purged. Zero
	// means five seconds. It must not be shorter than the read-side
	// liveness window or live beacons could be deleted early.
	Window time.Duration
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return defaultInterval
}

func (s *Sweeper) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return defaultWindow
}

// Run sweeps until the context is cancelled. The cutoff is computed
// once per sweep, so a beacon refreshed while a sweep is in flight is
// never deleted. A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.window())
	deleted, err := s.Store.SweepExpired(ctx, cutoff)
	if err != nil {
		s.Logger.Error("Could not sweep typing beacons", "error", err.Error())
		return
	}
	if deleted > 0 {
		s.Logger.Info("Swept expired typing beacons", "deleted", deleted)
	}
}
