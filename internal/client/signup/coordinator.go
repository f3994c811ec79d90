// Package signup materializes the profile of a newly confirmed account from
// the registration data kept since signup. Every client instance of a profile
// runs a Coordinator; the instances agree through the shared local store and
// the signup broadcast channel that only one of them inserts the profile row.
//
// The agreement is best effort: two instances passing the guard check before
// either writes the guard both insert. The unique profile name enforced by the
// backend rejects the second insert.
package signup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mkrupp/eventhub/internal/channel"
	"github.com/mkrupp/eventhub/internal/client/localstore"
	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// Local store keys.
const (
	PendingKey   = "eventhub.signup.pending"
	GuardKey     = "eventhub.signup.guard"
	CompletedKey = "eventhub.signup.completed"
)

// Config holds configuration for the Coordinator.
type Config struct {
	// DebounceWindow is how long a started materialization keeps other
	// attempts from starting.
	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW" default:"5s"`

	// LandingPath is where the view navigates after the profile is created.
	LandingPath string `env:"LANDING_PATH" default:"/dashboard"`
}

// ProfileCreator inserts the profile row of the signed-in account.
type ProfileCreator interface {
	CreateProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error)
}

// View is the user-facing side of a client instance.
type View interface {
	Navigate(path string)
	// Close disposes of the client instance.
	Close()
	ShowError(err error)
}

// Outcome tells what handling an auth event did.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeNoPending
	OutcomeStoodDown
	OutcomeMaterialized
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeNoPending:
		return "no pending registration"
	case OutcomeStoodDown:
		return "stood down"
	case OutcomeMaterialized:
		return "materialized"
	case OutcomeFailed:
		return "failed"
	default:
		return "Outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Coordinator runs the profile materialization of one client instance. Its
// methods must be called from a single goroutine, which Run provides.
type Coordinator struct {
	cfg      Config
	profiles ProfileCreator
	store    localstore.Store
	channel  channel.Channel
	view     View
	log      logging.Logger

	// Now returns the current time. It is replaced in tests.
	Now func() time.Time

	closed bool
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(
	cfg Config,
	profiles ProfileCreator,
	store localstore.Store,
	ch channel.Channel,
	view View,
) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		profiles: profiles,
		store:    store,
		channel:  ch,
		view:     view,
		log:      logging.GetLogger("client.signup.coordinator"),
		Now:      time.Now,
		closed:   false,
	}
}

// SavePending keeps the registration data until the account is confirmed.
func (c *Coordinator) SavePending(ctx context.Context, pending domain.PendingRegistration) error {
	if err := pending.Validate(c.Now()); err != nil {
		return err
	}

	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode pending registration: %w", err)
	}

	if err := c.store.Set(ctx, PendingKey, string(raw)); err != nil {
		return fmt.Errorf("save pending registration: %w", err)
	}

	c.log.InfoContext(ctx, "pending registration saved", "email", pending.Email)

	return nil
}

// Pending returns the pending registration, or nil if there is none.
func (c *Coordinator) Pending(ctx context.Context) (*domain.PendingRegistration, error) {
	raw, ok, err := c.store.Get(ctx, PendingKey)
	if err != nil {
		return nil, fmt.Errorf("get pending registration: %w", err)
	}

	if !ok {
		return nil, nil //nolint:nilnil
	}

	var pending domain.PendingRegistration
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, fmt.Errorf("decode pending registration: %w", err)
	}

	return &pending, nil
}

// Completed reports whether a profile was materialized by any instance.
func (c *Coordinator) Completed(ctx context.Context) (bool, error) {
	_, ok, err := c.store.Get(ctx, CompletedKey)
	if err != nil {
		return false, fmt.Errorf("get completion flag: %w", err)
	}

	return ok, nil
}

// HandleAuthEvent materializes the pending registration when event is the
// sign-in of a confirmed account and no other attempt started within the
// debounce window.
func (c *Coordinator) HandleAuthEvent(ctx context.Context, event domain.AuthEvent) (Outcome, error) {
	if !event.ConfirmedSignIn() {
		return OutcomeIgnored, nil
	}

	log := c.log.With("user.id", event.Session.User.ID)

	pending, err := c.Pending(ctx)
	if err != nil {
		return OutcomeFailed, err
	}

	if pending == nil {
		log.DebugContext(ctx, "no pending registration")

		return OutcomeNoPending, nil
	}

	started, err := c.guard(ctx)
	if err != nil {
		return OutcomeFailed, err
	}

	now := c.Now()
	if !started.IsZero() && now.Sub(started) < c.cfg.DebounceWindow {
		log.InfoContext(ctx, "materialization already started", "started", started)
		c.close()

		return OutcomeStoodDown, nil
	}

	if err := c.store.Set(ctx, GuardKey, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return OutcomeFailed, fmt.Errorf("set guard: %w", err)
	}

	c.publish(ctx, domain.CoordinationExecuting)

	profile, err := c.profiles.CreateProfile(ctx, pending.Profile(event.Session.User.ID))
	if err != nil {
		err = fmt.Errorf("create profile: %w", err)

		if rerr := c.store.Remove(ctx, GuardKey); rerr != nil {
			err = errors.Join(err, fmt.Errorf("clear guard: %w", rerr))
		}

		log.ErrorContext(ctx, "materialization failed", "error", err)
		c.view.ShowError(err)

		return OutcomeFailed, err
	}

	if err := c.finish(ctx); err != nil {
		log.WarnContext(ctx, "cleanup after materialization failed", "error", err)
	}

	c.publish(ctx, domain.CoordinationSucceeded)

	log.InfoContext(ctx, "profile materialized", "profile.name", profile.Name)
	c.view.Navigate(c.cfg.LandingPath)

	return OutcomeMaterialized, nil
}

// HandleMessage closes the instance when another instance announces it is
// handling or has handled a registration that is pending here.
func (c *Coordinator) HandleMessage(ctx context.Context, msg domain.CoordinationMessage) error {
	switch msg.Kind {
	case domain.CoordinationExecuting, domain.CoordinationSucceeded:
	default:
		c.log.DebugContext(ctx, "ignoring unknown message", "kind", msg.Kind)

		return nil
	}

	pending, err := c.Pending(ctx)
	if err != nil {
		return err
	}

	if pending == nil {
		return nil
	}

	c.log.InfoContext(ctx, "another instance handles the registration", "kind", msg.Kind)
	c.close()

	return nil
}

// Run handles auth events and channel messages one at a time until ctx is
// done, authEvents is closed or the view was closed.
func (c *Coordinator) Run(ctx context.Context, authEvents <-chan domain.AuthEvent) error {
	messages := c.channel.Messages()

	for !c.closed {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-authEvents:
			if !ok {
				return nil
			}

			outcome, err := c.HandleAuthEvent(ctx, event)
			if err != nil {
				c.log.WarnContext(ctx, "auth event not handled", "event", event.Kind, "error", err)

				continue
			}

			c.log.DebugContext(ctx, "auth event handled", "event", event.Kind, "outcome", outcome)

		case msg, ok := <-messages:
			if !ok {
				messages = nil

				continue
			}

			if err := c.HandleMessage(ctx, msg); err != nil {
				c.log.WarnContext(ctx, "message not handled", "kind", msg.Kind, "error", err)
			}
		}
	}

	return nil
}

// guard returns the start time of the latest attempt, or the zero time.
func (c *Coordinator) guard(ctx context.Context) (time.Time, error) {
	raw, ok, err := c.store.Get(ctx, GuardKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("get guard: %w", err)
	}

	if !ok {
		return time.Time{}, nil
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.log.WarnContext(ctx, "ignoring malformed guard", "guard", raw)

		return time.Time{}, nil
	}

	return time.UnixMilli(millis), nil
}

func (c *Coordinator) finish(ctx context.Context) error {
	return errors.Join(
		c.store.Remove(ctx, PendingKey),
		c.store.Set(ctx, CompletedKey, "true"),
	)
}

// publish broadcasts kind. Failures are only logged.
func (c *Coordinator) publish(ctx context.Context, kind domain.CoordinationKind) {
	if err := c.channel.Publish(ctx, domain.CoordinationMessage{Kind: kind}); err != nil {
		c.log.WarnContext(ctx, "broadcast failed", "kind", kind, "error", err)
	}
}

func (c *Coordinator) close() {
	if c.closed {
		return
	}

	c.closed = true
	c.view.Close()
}
