package lifecycle

import (
	"context"
	"time"

	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// SuspendConfig holds configuration for the SuspendDetector.
type SuspendConfig struct {
	// Interval is the tick of the detector.
	Interval time.Duration `env:"SUSPEND_INTERVAL" default:"5s"`

	// Threshold is the gap between ticks taken as a suspension.
	Threshold time.Duration `env:"SUSPEND_THRESHOLD" default:"30s"`
}

// SuspendDetector reports the process as hidden and visible again when its
// ticker observes a wall-clock gap far larger than its interval, as happens
// after a system sleep or a stopped process.
type SuspendDetector struct {
	cfg      SuspendConfig
	listener VisibilityListener
	log      logging.Logger

	// Now returns the current time. It is replaced in tests.
	Now func() time.Time

	last time.Time
}

// NewSuspendDetector creates a new SuspendDetector reporting to listener.
func NewSuspendDetector(cfg SuspendConfig, listener VisibilityListener) *SuspendDetector {
	return &SuspendDetector{ //nolint:exhaustruct
		cfg:      cfg,
		listener: listener,
		log:      logging.GetLogger("client.lifecycle.suspend"),
		Now:      time.Now,
	}
}

// Run checks for suspensions on every tick until ctx is done.
func (sd *SuspendDetector) Run(ctx context.Context) error {
	ticker := time.NewTicker(sd.cfg.Interval)
	defer ticker.Stop()

	sd.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sd.Check(ctx)
		}
	}
}

// Check compares the wall clock with the previous check and reports whether
// a suspension happened in between.
func (sd *SuspendDetector) Check(ctx context.Context) bool {
	// wall clock only: the monotonic clock stops while the system sleeps
	now := sd.Now().Round(0)
	last := sd.last
	sd.last = now

	if last.IsZero() {
		return false
	}

	gap := now.Sub(last)
	if gap < sd.cfg.Threshold {
		return false
	}

	sd.log.InfoContext(ctx, "suspension detected", "gap", gap.Round(time.Second))
	sd.listener.OnVisibilityChange(ctx, Hidden)
	sd.listener.OnVisibilityChange(ctx, Visible)

	return true
}
