package eventsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
	"github.com/mkrupp/eventhub/internal/svc/authsvc/authclient"
)

// idPattern matches the UUIDs events and registrations are keyed by.
const idPattern = "{id:[0-9a-fA-F-]{36}}"

// HTTPTransport handles HTTP requests for the event service.
type HTTPTransport struct {
	eventSvc   *EventService
	authClient authclient.AuthClient
	log        logging.Logger
	router     *mux.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport serving the event endpoints.
func NewHTTPTransport(eventSvc *EventService, authClient authclient.AuthClient) *HTTPTransport {
	ht := &HTTPTransport{
		eventSvc:   eventSvc,
		authClient: authClient,
		log:        logging.GetLogger("svc.eventsvc.http_transport"),
		router:     mux.NewRouter(),
	}

	ht.Register(ht.router)

	return ht
}

// Register adds the event routes below /rest/v1 to router. The feed, event
// details and reviews are public; event details of pending events need the
// creator's or an admin's token. Everything else requires authentication,
// the /admin routes the admin role.
func (ht *HTTPTransport) Register(router *mux.Router) {
	r := router.PathPrefix("/rest/v1").Subrouter()
	r.HandleFunc("/feed", ht.HandleFeed).Methods(http.MethodGet)
	r.HandleFunc("/events/"+idPattern+"/reviews", ht.HandleReviews).Methods(http.MethodGet)

	optional := r.NewRoute().Subrouter()
	optional.Use(http_.OptionallyAuthorizing(ht.authClient, ht.log))
	optional.HandleFunc("/events/"+idPattern, ht.HandleGet).Methods(http.MethodGet)

	private := r.NewRoute().Subrouter()
	private.Use(http_.Authorizing(ht.authClient, ht.log))
	private.HandleFunc("/events", ht.HandleCreate).Methods(http.MethodPost)
	private.HandleFunc("/events/mine", ht.HandleMine).Methods(http.MethodGet)
	private.HandleFunc("/events/"+idPattern, ht.HandleUpdate).Methods(http.MethodPatch)
	private.HandleFunc("/events/"+idPattern, ht.HandleDelete).Methods(http.MethodDelete)
	private.HandleFunc("/events/"+idPattern+"/images", ht.HandleAddImages).Methods(http.MethodPost)
	private.HandleFunc("/events/"+idPattern+"/held", ht.HandleMarkHeld).Methods(http.MethodPost)
	private.HandleFunc("/events/"+idPattern+"/registrations", ht.HandleRegister).Methods(http.MethodPost)
	private.HandleFunc("/events/"+idPattern+"/registrations", ht.HandleRegistrations).Methods(http.MethodGet)
	private.HandleFunc("/events/"+idPattern+"/reviews", ht.HandleReview).Methods(http.MethodPost)
	private.HandleFunc("/registrations/mine", ht.HandleMyRegistrations).Methods(http.MethodGet)
	private.HandleFunc("/registrations/"+idPattern+"/confirm", ht.HandleConfirm).Methods(http.MethodPost)
	private.HandleFunc("/registrations/"+idPattern, ht.HandleCancel).Methods(http.MethodDelete)
	private.HandleFunc("/reviews/mine", ht.HandleMyReviews).Methods(http.MethodGet)

	admin := private.PathPrefix("/admin/events").Subrouter()
	admin.Use(http_.AdminMiddleware)
	admin.HandleFunc("/pending", ht.HandlePending).Methods(http.MethodGet)
	admin.HandleFunc("/"+idPattern+"/approve", ht.HandleApprove).Methods(http.MethodPost)
	admin.HandleFunc("/"+idPattern+"/reject", ht.HandleReject).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleFeed returns a domain.FeedPage. Query parameters: name, city, page, pageSize.
func (ht *HTTPTransport) HandleFeed(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleFeed(w, r)
}

func (ht *HTTPTransport) handleFeed(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "feed") }(r.Context())

	query, err := parseFeedQuery(r.URL.Query())
	if err != nil {
		http_.WriteError(w, err)

		return err
	}

	page, err := ht.eventSvc.Feed(r.Context(), query)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("feed: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, page)
}

func parseFeedQuery(values url.Values) (domain.FeedQuery, error) {
	query := domain.FeedQuery{Name: values.Get("name")} //nolint:exhaustruct

	for key, dst := range map[string]*int{"page": &query.Page, "pageSize": &query.PageSize} {
		if v := values.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return domain.FeedQuery{}, fmt.Errorf("%w: %s: %w", http_.ErrBadRequest, key, err)
			}

			*dst = n
		}
	}

	if v := values.Get("city"); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil {
			return domain.FeedQuery{}, fmt.Errorf("%w: city: %w", http_.ErrBadRequest, err)
		}

		query.CityID = &code
	}

	return query, nil
}

// HandleGet returns the domain.EventDetails of the event in the URL.
func (ht *HTTPTransport) HandleGet(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGet(w, r)
}

func (ht *HTTPTransport) handleGet(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "get event") }(r.Context())

	details, err := ht.eventSvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("get: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, details)
}

// HandleCreate publishes the JSON domain.Event of the request body.
func (ht *HTTPTransport) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreate(w, r)
}

func (ht *HTTPTransport) handleCreate(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "create event") }(r.Context())

	var req domain.Event
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	e, err := ht.eventSvc.Create(r.Context(), req)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("create: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, e)
}

// HandleMine returns the caller's events.
func (ht *HTTPTransport) HandleMine(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleMine(w, r)
}

func (ht *HTTPTransport) handleMine(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "my events") }(r.Context())

	events, err := ht.eventSvc.Mine(r.Context())
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("mine: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, events)
}

// HandleUpdate applies a JSON domain.EventUpdate to the event in the URL.
func (ht *HTTPTransport) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdate(w, r)
}

func (ht *HTTPTransport) handleUpdate(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "update event") }(r.Context())

	var req domain.EventUpdate
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	e, err := ht.eventSvc.Update(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("update: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, e)
}

// HandleAddImages appends the URLs of a JSON domain.EventImagesRequest to the gallery.
func (ht *HTTPTransport) HandleAddImages(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleAddImages(w, r)
}

func (ht *HTTPTransport) handleAddImages(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "add images") }(r.Context())

	var req domain.EventImagesRequest
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	e, err := ht.eventSvc.AddImages(r.Context(), mux.Vars(r)["id"], req.URLs)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("add images: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, e)
}

// HandleDelete soft-deletes the event in the URL.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDelete(w, r)
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "delete event") }(r.Context())

	return ht.noContent(w, ht.eventSvc.Delete(r.Context(), mux.Vars(r)["id"]))
}

// HandleMarkHeld marks the event in the URL as held.
func (ht *HTTPTransport) HandleMarkHeld(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleMarkHeld(w, r)
}

func (ht *HTTPTransport) handleMarkHeld(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "mark held") }(r.Context())

	return ht.noContent(w, ht.eventSvc.MarkHeld(r.Context(), mux.Vars(r)["id"]))
}

// noContent writes err, or 204 when it is nil.
func (ht *HTTPTransport) noContent(w http.ResponseWriter, err error) error {
	if err != nil {
		http_.WriteError(w, err)

		return err
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}
