package backend

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/mkrupp/eventhub/internal/client/localstore"
	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

const subscriberBufferSize = 16

// Holder owns the backend client of a client instance. All code obtains the
// client through Get; only Reset and Destroy replace it.
//
// Auth events of every client the holder creates are delivered to the
// subscribers of the holder, so subscriptions survive a Reset.
type Holder struct {
	cfg        Config
	store      localstore.Store
	httpClient *http.Client
	log        logging.Logger

	m      sync.Mutex
	client *Client

	subsM sync.Mutex
	subs  map[chan domain.AuthEvent]struct{}
}

// NewHolder creates a new Holder. No client is created until Get is called.
func NewHolder(cfg Config, store localstore.Store, httpClient *http.Client) *Holder {
	return &Holder{ //nolint:exhaustruct
		cfg:        cfg,
		store:      store,
		httpClient: httpClient,
		log:        logging.GetLogger("client.backend.holder"),
		subs:       make(map[chan domain.AuthEvent]struct{}),
	}
}

// Get returns the current client, creating it and starting its auto-refresh
// on first use.
func (h *Holder) Get(ctx context.Context) *Client {
	h.m.Lock()
	defer h.m.Unlock()

	if h.client == nil {
		h.client = h.newClient(ctx)
	}

	return h.client
}

// Reset discards the current client together with every persisted key of the
// auth token and replaces it with a fresh client.
func (h *Holder) Reset(ctx context.Context) (_ *Client, err error) {
	h.m.Lock()
	defer h.m.Unlock()

	defer func() {
		if err != nil {
			h.log.ErrorContext(ctx, "reset failed", "error", err)
		} else {
			h.log.InfoContext(ctx, "client reset")
		}
	}()

	if h.client != nil {
		h.client.StopAutoRefresh()
		h.client = nil
	}

	removed, err := h.store.RemovePrefix(ctx, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("remove cached tokens: %w", err)
	}

	h.log.DebugContext(ctx, "cached tokens removed", "count", removed)

	h.client = h.newClient(ctx)
	h.notify(domain.AuthEvent{Kind: domain.AuthEventInitialSession, Session: nil})

	return h.client, nil
}

// Destroy stops the current client and closes every subscription.
func (h *Holder) Destroy() {
	h.m.Lock()
	defer h.m.Unlock()

	if h.client != nil {
		h.client.StopAutoRefresh()
		h.client = nil
	}

	h.subsM.Lock()
	defer h.subsM.Unlock()

	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub)
	}
}

// Subscribe returns a channel receiving auth events, starting with an
// INITIAL_SESSION event carrying the current session. The returned function
// ends the subscription.
func (h *Holder) Subscribe(ctx context.Context) (<-chan domain.AuthEvent, func()) {
	session, err := h.Get(ctx).Session(ctx)
	if err != nil {
		h.log.WarnContext(ctx, "initial session unavailable", "error", err)
	}

	sub := make(chan domain.AuthEvent, subscriberBufferSize)
	sub <- domain.AuthEvent{Kind: domain.AuthEventInitialSession, Session: session}

	h.subsM.Lock()
	h.subs[sub] = struct{}{}
	h.subsM.Unlock()

	var once sync.Once

	return sub, func() {
		once.Do(func() {
			h.subsM.Lock()
			defer h.subsM.Unlock()

			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub)
			}
		})
	}
}

// newClient creates a client reporting to the subscribers. Callers hold h.m.
func (h *Holder) newClient(ctx context.Context) *Client {
	client := NewClient(h.cfg, h.store, h.httpClient, h.notify)
	client.StartAutoRefresh(ctx)

	return client
}

// notify delivers event to every subscriber without blocking.
func (h *Holder) notify(event domain.AuthEvent) {
	h.subsM.Lock()
	defer h.subsM.Unlock()

	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			h.log.Warn("dropping auth event for slow subscriber", "event", event.Kind)
		}
	}
}
