package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/mkrupp/eventhub/internal/client/backend"
	"github.com/mkrupp/eventhub/internal/client/localstore"
	"github.com/mkrupp/eventhub/internal/client/signup"
	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// app is one client instance. Every instance started with the same store path
// belongs to the same client profile.
type app struct {
	cfg Config
	out io.Writer
	log logging.Logger

	store  localstore.Store
	holder *backend.Holder
}

func newApp(cfg Config, out io.Writer) *app {
	return &app{ //nolint:exhaustruct
		cfg: cfg,
		out: out,
		log: logging.GetLogger("cmd.eventcli"),
	}
}

// open tags ctx with a fresh tab ID and opens the profile's local store.
func (a *app) open(ctx context.Context) (context.Context, error) {
	ctx = context_.WithTabID(ctx, uuid.NewString())

	store, err := localstore.NewSQLiteStore(ctx, a.cfg.Store)
	if err != nil {
		return ctx, fmt.Errorf("open local store: %w", err)
	}

	a.store = store
	a.holder = backend.NewHolder(a.cfg.Backend, store, nil)

	return ctx, nil
}

func (a *app) close() error {
	if a.holder != nil {
		a.holder.Destroy()
	}

	if a.store == nil {
		return nil
	}

	return a.store.Close()
}

// client returns the current backend client of the instance.
func (a *app) client(ctx context.Context) *backend.Client {
	return a.holder.Get(ctx)
}

// CreateProfile implements signup.ProfileCreator with whatever client is
// current, since the lifecycle coordinator may replace it.
func (a *app) CreateProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	return a.client(ctx).CreateProfile(ctx, profile)
}

var _ signup.ProfileCreator = (*app)(nil)

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format+"\n", args...)
}

// checkPassword applies the signup form rules to a new password.
func checkPassword(password, confirmation string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: at least %d characters", domain.ErrWeakPassword, minPasswordLength)
	}

	if password != confirmation {
		return errPasswordMismatch
	}

	return nil
}

const minPasswordLength = 6

var errPasswordMismatch = errors.New("passwords do not match")
