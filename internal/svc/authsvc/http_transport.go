package authsvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
)

// HTTPTransport handles HTTP requests for the authentication service.
type HTTPTransport struct {
	authSvc *AuthService
	log     logging.Logger
	router  *mux.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport serving the auth endpoints.
func NewHTTPTransport(authSvc *AuthService) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc: authSvc,
		log:     logging.GetLogger("svc.authsvc.http_transport"),
		router:  mux.NewRouter(),
	}

	ht.Register(ht.router)

	return ht
}

// Register adds the auth service routes to router:
//   - POST /auth/v1/signup: register an account, mails the confirmation link
//   - GET|POST /auth/v1/verify: confirm an email address and sign in
//   - POST /auth/v1/token: sign in with email and password
//   - POST /auth/v1/token/refresh: exchange the bearer token for a new session
//   - POST /auth/v1/logout: revoke the bearer token
//   - GET /auth/v1/user: the user of the bearer token
//   - POST /auth/v1/resend: mail another confirmation link
func (ht *HTTPTransport) Register(router *mux.Router) {
	r := router.PathPrefix("/auth/v1").Subrouter()
	r.HandleFunc("/signup", ht.HandleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/verify", ht.HandleVerify).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/token", ht.HandleSignIn).Methods(http.MethodPost)
	r.HandleFunc("/token/refresh", ht.HandleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/logout", ht.HandleLogout).Methods(http.MethodPost)
	r.HandleFunc("/user", ht.HandleUser).Methods(http.MethodGet)
	r.HandleFunc("/resend", ht.HandleResend).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleSignUp processes account registration requests.
// Expects a JSON domain.SignUpRequest, returns the created domain.User.
func (ht *HTTPTransport) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSignUp(w, r)
}

func (ht *HTTPTransport) handleSignUp(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "sign up") }(r.Context())

	var req domain.SignUpRequest
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	user, err := ht.authSvc.SignUp(r.Context(), req)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("sign up: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, user)
}

// HandleVerify confirms an email address. The token is read from the "token"
// query parameter (the mailed link) or a JSON domain.VerifyRequest body.
// Returns the new domain.Session.
func (ht *HTTPTransport) HandleVerify(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleVerify(w, r)
}

func (ht *HTTPTransport) handleVerify(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "verify") }(r.Context())

	req := domain.VerifyRequest{Token: r.URL.Query().Get("token")}
	if r.Method == http.MethodPost {
		if err := http_.DecodeJSON(r, &req); err != nil {
			http_.WriteError(w, err)

			return err
		}
	}

	session, err := ht.authSvc.Verify(r.Context(), req.Token)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("verify: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, session)
}

// HandleSignIn processes password sign-in requests.
// Expects a JSON domain.CredentialsRequest, returns a domain.Session.
func (ht *HTTPTransport) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleSignIn(w, r)
}

func (ht *HTTPTransport) handleSignIn(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "sign in") }(r.Context())

	var req domain.CredentialsRequest
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	session, err := ht.authSvc.SignIn(r.Context(), req)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("sign in: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, session)
}

// HandleRefresh exchanges the bearer token for a new domain.Session.
func (ht *HTTPTransport) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRefresh(w, r)
}

func (ht *HTTPTransport) handleRefresh(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "refresh") }(r.Context())

	token := http_.BearerToken(r)
	if token == "" {
		http_.WriteError(w, domain.ErrNoAuthToken)

		return domain.ErrNoAuthToken
	}

	session, err := ht.authSvc.Refresh(r.Context(), token)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("refresh: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, session)
}

// HandleLogout revokes the bearer token.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogout(w, r)
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "logout") }(r.Context())

	token := http_.BearerToken(r)
	if token == "" {
		http_.WriteError(w, domain.ErrNoAuthToken)

		return domain.ErrNoAuthToken
	}

	if err := ht.authSvc.Logout(r.Context(), token); err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("logout: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// HandleUser returns the domain.User of the bearer token.
func (ht *HTTPTransport) HandleUser(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUser(w, r)
}

func (ht *HTTPTransport) handleUser(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "get user") }(r.Context())

	token := http_.BearerToken(r)
	if token == "" {
		http_.WriteError(w, domain.ErrNoAuthToken)

		return domain.ErrNoAuthToken
	}

	user, err := ht.authSvc.Validate(r.Context(), token)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("validate: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, user)
}

// HandleResend mails another confirmation link.
// Expects a JSON domain.ResendRequest.
func (ht *HTTPTransport) HandleResend(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleResend(w, r)
}

func (ht *HTTPTransport) handleResend(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "resend") }(r.Context())

	var req domain.ResendRequest
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	if err := ht.authSvc.Resend(r.Context(), req); err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("resend: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}
