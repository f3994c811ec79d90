package citysvc

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mkrupp/eventhub/internal/infra/logging"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
)

// HTTPTransport serves the public municipality lookup.
type HTTPTransport struct {
	citySvc *CityService
	log     logging.Logger
	router  *mux.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport serving the city endpoints.
func NewHTTPTransport(citySvc *CityService) *HTTPTransport {
	ht := &HTTPTransport{
		citySvc: citySvc,
		log:     logging.GetLogger("svc.citysvc.http_transport"),
		router:  mux.NewRouter(),
	}

	ht.Register(ht.router)

	return ht
}

// Register adds the city routes to router:
//   - GET /rest/v1/cities?q=: search by name
//   - GET /rest/v1/cities/{code}: municipality by IBGE code
//   - GET /rest/v1/states: every federative unit
func (ht *HTTPTransport) Register(router *mux.Router) {
	r := router.PathPrefix("/rest/v1").Subrouter()
	r.HandleFunc("/cities", ht.HandleSearch).Methods(http.MethodGet)
	r.HandleFunc("/cities/{code:[0-9]+}", ht.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/states", ht.HandleStates).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleSearch returns the municipalities matching the q query parameter.
func (ht *HTTPTransport) HandleSearch(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSearch(w, r)
}

func (ht *HTTPTransport) handleSearch(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "search cities") }(r.Context())

	cities, err := ht.citySvc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("search: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, cities)
}

// HandleGet returns the municipality with the code in the URL.
func (ht *HTTPTransport) HandleGet(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleGet(w, r)
}

func (ht *HTTPTransport) handleGet(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "get city") }(r.Context())

	code, err := strconv.Atoi(mux.Vars(r)["code"])
	if err != nil {
		err = fmt.Errorf("%w: %w", http_.ErrBadRequest, err)
		http_.WriteError(w, err)

		return err
	}

	city, err := ht.citySvc.Get(r.Context(), code)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("get: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, city)
}

// HandleStates returns every federative unit.
func (ht *HTTPTransport) HandleStates(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleStates(w, r)
}

func (ht *HTTPTransport) handleStates(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "states") }(r.Context())

	states, err := ht.citySvc.States(r.Context())
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("states: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, states)
}
