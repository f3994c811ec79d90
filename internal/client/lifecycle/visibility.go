// Package lifecycle recreates the backend client when a client instance
// returns from the background, where its token refresh timers did not run.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/mkrupp/eventhub/internal/client/backend"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// VisibilityState is the visibility of a client instance.
type VisibilityState string

const (
	Visible VisibilityState = "visible"
	Hidden  VisibilityState = "hidden"
)

// Config holds configuration for the VisibilityCoordinator.
type Config struct {
	// ProbeDelay is how long after a reset the session is probed once.
	// Zero disables the probe.
	ProbeDelay time.Duration `env:"PROBE_DELAY" default:"1s"`
}

// ClientResetter replaces the backend client.
type ClientResetter interface {
	Reset(ctx context.Context) (*backend.Client, error)
}

// VisibilityListener receives visibility changes.
type VisibilityListener interface {
	OnVisibilityChange(ctx context.Context, state VisibilityState)
}

// VisibilityCoordinator resets the backend client when the instance becomes
// visible again after having been hidden.
type VisibilityCoordinator struct {
	cfg    Config
	holder ClientResetter
	log    logging.Logger

	m         sync.Mutex
	wasHidden bool
	probes    sync.WaitGroup
}

var _ VisibilityListener = (*VisibilityCoordinator)(nil)

// NewVisibilityCoordinator creates a new VisibilityCoordinator.
func NewVisibilityCoordinator(cfg Config, holder ClientResetter) *VisibilityCoordinator {
	return &VisibilityCoordinator{ //nolint:exhaustruct
		cfg:    cfg,
		holder: holder,
		log:    logging.GetLogger("client.lifecycle.visibility"),
	}
}

// OnVisibilityChange implements VisibilityListener.
func (vc *VisibilityCoordinator) OnVisibilityChange(ctx context.Context, state VisibilityState) {
	vc.handle(ctx, state)
}

// OnFocus handles the instance gaining focus, which implies it is visible.
func (vc *VisibilityCoordinator) OnFocus(ctx context.Context) {
	vc.handle(ctx, Visible)
}

// Wait blocks until every pending session probe has finished.
func (vc *VisibilityCoordinator) Wait() {
	vc.probes.Wait()
}

func (vc *VisibilityCoordinator) handle(ctx context.Context, state VisibilityState) {
	vc.m.Lock()
	defer vc.m.Unlock()

	if state == Hidden {
		vc.wasHidden = true

		return
	}

	if !vc.wasHidden {
		return
	}

	vc.wasHidden = false

	vc.log.InfoContext(ctx, "visible again, recreating backend client")

	client, err := vc.holder.Reset(ctx)
	if err != nil {
		vc.log.ErrorContext(ctx, "recreating backend client failed", "error", err)

		return
	}

	if vc.cfg.ProbeDelay > 0 {
		vc.probes.Add(1)

		go vc.probe(ctx, client)
	}
}

// probe reads the session once after the probe delay. The result is only logged.
func (vc *VisibilityCoordinator) probe(ctx context.Context, client *backend.Client) {
	defer vc.probes.Done()

	timer := time.NewTimer(vc.cfg.ProbeDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	session, err := client.Session(ctx)

	switch {
	case err != nil:
		vc.log.WarnContext(ctx, "session probe failed", "error", err)
	case session == nil:
		vc.log.InfoContext(ctx, "session probe: signed out")
	default:
		vc.log.InfoContext(ctx, "session probe: signed in",
			"user.id", session.User.ID, "expires.in", session.ExpiresIn(time.Now()).Round(time.Second))
	}
}
