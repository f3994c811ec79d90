package profilesvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
	"github.com/mkrupp/eventhub/internal/svc/authsvc/authclient"
)

// HTTPTransport handles HTTP requests for the profile service.
type HTTPTransport struct {
	profileSvc *ProfileService
	authClient authclient.AuthClient
	log        logging.Logger
	router     *mux.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport serving the profile endpoints.
func NewHTTPTransport(profileSvc *ProfileService, authClient authclient.AuthClient) *HTTPTransport {
	ht := &HTTPTransport{
		profileSvc: profileSvc,
		authClient: authClient,
		log:        logging.GetLogger("svc.profilesvc.http_transport"),
		router:     mux.NewRouter(),
	}

	ht.Register(ht.router)

	return ht
}

// Register adds the profile routes to router:
//   - GET /rest/v1/profiles/available?name=: display name availability
//   - GET /rest/v1/profiles/by-name/{name}: public profile page
//   - POST /rest/v1/profiles: create the own profile
//   - GET|PATCH|DELETE /rest/v1/profiles/me: read, edit one field, delete
//   - POST /rest/v1/profiles/me/image?filename=: upload the profile image
func (ht *HTTPTransport) Register(router *mux.Router) {
	r := router.PathPrefix("/rest/v1/profiles").Subrouter()
	r.HandleFunc("/available", ht.HandleNameAvailable).Methods(http.MethodGet)
	r.HandleFunc("/by-name/{name}", ht.HandleGetByName).Methods(http.MethodGet)

	private := r.NewRoute().Subrouter()
	private.Use(http_.Authorizing(ht.authClient, ht.log))
	private.HandleFunc("", ht.HandleCreate).Methods(http.MethodPost)
	private.HandleFunc("/me", ht.HandleGet).Methods(http.MethodGet)
	private.HandleFunc("/me", ht.HandleUpdate).Methods(http.MethodPatch)
	private.HandleFunc("/me", ht.HandleDelete).Methods(http.MethodDelete)
	private.HandleFunc("/me/image", ht.HandleSetImage).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleCreate inserts the caller's profile from a JSON domain.Profile.
func (ht *HTTPTransport) HandleCreate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCreate(w, r)
}

func (ht *HTTPTransport) handleCreate(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "create profile") }(r.Context())

	var req domain.Profile
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	p, err := ht.profileSvc.Create(r.Context(), req)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("create: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, p)
}

// HandleGet returns the caller's profile.
func (ht *HTTPTransport) HandleGet(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGet(w, r)
}

func (ht *HTTPTransport) handleGet(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "get profile") }(r.Context())

	p, err := ht.profileSvc.Get(r.Context())
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("get: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, p)
}

// HandleGetByName returns the profile using the display name in the URL.
func (ht *HTTPTransport) HandleGetByName(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGetByName(w, r)
}

func (ht *HTTPTransport) handleGetByName(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) {
		http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "get profile by name")
	}(r.Context())

	p, err := ht.profileSvc.GetByName(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("get by name: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, p)
}

// HandleNameAvailable returns a domain.NameAvailability for the name query parameter.
func (ht *HTTPTransport) HandleNameAvailable(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleNameAvailable(w, r)
}

func (ht *HTTPTransport) handleNameAvailable(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "name available") }(r.Context())

	availability, err := ht.profileSvc.NameAvailable(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("name available: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, availability)
}

// HandleUpdate applies a JSON domain.ProfileUpdate to the caller's profile.
func (ht *HTTPTransport) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpdate(w, r)
}

func (ht *HTTPTransport) handleUpdate(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "update profile") }(r.Context())

	var req domain.ProfileUpdate
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	p, err := ht.profileSvc.Update(r.Context(), req)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("update: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, p)
}

// HandleSetImage stores the request body as the caller's profile image. The
// filename query parameter names the image type by its extension.
func (ht *HTTPTransport) HandleSetImage(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSetImage(w, r)
}

func (ht *HTTPTransport) handleSetImage(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "set image") }(r.Context())

	filename := r.URL.Query().Get("filename")

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ht.profileSvc.imageSvc.MaxSize()))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			err = errors.Join(domain.ErrImageTooLarge, err)
		}

		http_.WriteError(w, err)

		return fmt.Errorf("read body: %w", err)
	}

	p, err := ht.profileSvc.SetImage(r.Context(), filename, data)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("set image: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, p)
}

// HandleDelete soft-deletes the caller's profile.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDelete(w, r)
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "delete profile") }(r.Context())

	if err := ht.profileSvc.Delete(r.Context()); err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("delete: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}
