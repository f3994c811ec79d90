package backend

import (
	"context"
	"time"
)

// StartAutoRefresh refreshes the session in the background whenever it is
// about to expire. It does nothing if auto-refresh is already running.
func (c *Client) StartAutoRefresh(ctx context.Context) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.stopRefresh != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.stopRefresh = cancel
	c.refreshDone = done

	interval := c.cfg.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second //nolint:mnd
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.log.DebugContext(ctx, "auto-refresh started", "interval", interval)

		for {
			select {
			case <-ctx.Done():
				c.log.DebugContext(ctx, "auto-refresh stopped")

				return
			case <-ticker.C:
				c.refreshIfExpiring(ctx)
			}
		}
	}()
}

// StopAutoRefresh stops the background refresh and waits for it to return.
func (c *Client) StopAutoRefresh() {
	c.m.Lock()
	cancel, done := c.stopRefresh, c.refreshDone
	c.stopRefresh, c.refreshDone = nil, nil
	c.m.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (c *Client) refreshIfExpiring(ctx context.Context) {
	c.m.Lock()
	err := c.load(ctx)
	session := c.session
	c.m.Unlock()

	if err != nil {
		c.log.WarnContext(ctx, "auto-refresh: load session", "error", err)

		return
	}

	if session == nil || session.ExpiresIn(c.Now()) > c.cfg.RefreshMargin {
		return
	}

	if _, err := c.Refresh(ctx); err != nil {
		c.log.WarnContext(ctx, "auto-refresh failed", "error", err)
	}
}
