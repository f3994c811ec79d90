package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/eventhub/internal/channel"
	"github.com/mkrupp/eventhub/internal/channel/wshub"
	"github.com/mkrupp/eventhub/internal/client/lifecycle"
	"github.com/mkrupp/eventhub/internal/client/signup"
)

// terminalView prints what a browser tab would show. The tab ends on its
// first navigation, close or error.
type terminalView struct {
	out  io.Writer
	once sync.Once
	done chan struct{}
	err  error
}

var _ signup.View = (*terminalView)(nil)

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{ //nolint:exhaustruct
		out:  out,
		done: make(chan struct{}),
	}
}

func (v *terminalView) Navigate(path string) {
	_, _ = fmt.Fprintf(v.out, "navigate to %s\n", path)
	v.finish(nil)
}

func (v *terminalView) Close() {
	_, _ = fmt.Fprintln(v.out, "tab closed: the registration is handled by another tab")
	v.finish(nil)
}

func (v *terminalView) ShowError(err error) {
	_, _ = fmt.Fprintf(v.out, "error: %v\n", err)
	v.finish(err)
}

func (v *terminalView) finish(err error) {
	v.once.Do(func() {
		v.err = err
		close(v.done)
	})
}

// Done is closed when the tab ended.
func (v *terminalView) Done() <-chan struct{} {
	return v.done
}

// Err returns the error shown before the tab ended.
func (v *terminalView) Err() error {
	select {
	case <-v.done:
		return v.err
	default:
		return nil
	}
}

// runTab runs the instance as a tab: it joins the signup channel, handles
// auth events and coordination messages, and recreates the backend client
// after the process was suspended. start runs once the tab is listening. The
// tab ends when the view ends it, ctx is done or, if wait is positive, after
// wait has passed.
func (a *app) runTab(ctx context.Context, wait time.Duration, start func(context.Context) error) (err error) {
	ch, err := wshub.Dial(ctx, nil, a.cfg.Backend.BaseURL, channel.SignupChannel)
	if err != nil {
		return fmt.Errorf("join signup channel: %w", err)
	}
	defer func() { err = errors.Join(err, ch.Close()) }()

	events, unsubscribe := a.holder.Subscribe(ctx)
	defer unsubscribe()

	view := newTerminalView(a.out)
	coordinator := signup.NewCoordinator(a.cfg.Signup, a, a.store, ch, view)
	visibility := lifecycle.NewVisibilityCoordinator(a.cfg.Lifecycle, a.holder)
	suspend := lifecycle.NewSuspendDetector(a.cfg.Suspend, visibility)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := coordinator.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("run coordinator: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		return suspend.Run(ctx)
	})

	g.Go(func() error {
		a.watchResume(ctx, visibility)

		return nil
	})

	g.Go(func() error {
		defer cancel()

		if start != nil {
			if err := start(ctx); err != nil {
				return err
			}
		}

		var timeout <-chan time.Time

		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()

			timeout = timer.C
		}

		select {
		case <-ctx.Done():
		case <-view.Done():
		case <-timeout:
		}

		return nil
	})

	err = g.Wait()
	visibility.Wait()

	return errors.Join(err, view.Err())
}

// watchResume reports the process as hidden and visible again whenever it is
// continued after a stop.
func (a *app) watchResume(ctx context.Context, listener lifecycle.VisibilityListener) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGCONT)

	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			a.log.InfoContext(ctx, "process continued")
			listener.OnVisibilityChange(ctx, lifecycle.Hidden)
			listener.OnVisibilityChange(ctx, lifecycle.Visible)
		}
	}
}

// confirmationToken extracts the token from a confirmation link. Any argument
// that is not a link is taken as the token itself.
func confirmationToken(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errNoToken
	}

	if !strings.Contains(arg, "://") {
		return arg, nil
	}

	u, err := url.Parse(arg)
	if err != nil {
		return "", fmt.Errorf("parse confirmation link: %w", err)
	}

	token := u.Query().Get("token")
	if token == "" {
		return "", errNoToken
	}

	return token, nil
}

var errNoToken = errors.New("no confirmation token")
