// Package backend is the client of the eventhub API. It keeps the signed-in
// session in the client profile's local store and refreshes it in the
// background.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mkrupp/eventhub/internal/client/localstore"
	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
	"github.com/mkrupp/eventhub/internal/svc/authsvc/authclient"
)

// TokenKey is the local store key of the persisted session. Every key with
// this prefix belongs to the auth client.
const TokenKey = "eventhub.auth.token"

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the root of the eventhub API.
	BaseURL string `env:"BASE_URL" default:"http://localhost:8080"`

	// RedirectTo is the page confirmation links lead to after signup.
	RedirectTo string `env:"REDIRECT_TO" default:""`

	// RefreshInterval is how often the auto-refresh checks the session.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" default:"30s"`

	// RefreshMargin is how long before expiry the session is refreshed.
	RefreshMargin time.Duration `env:"REFRESH_MARGIN" default:"2m"`
}

// Client calls the eventhub API on behalf of one client instance.
type Client struct {
	cfg        Config
	httpClient *http.Client
	auth       authclient.AuthClient
	store      localstore.Store
	notify     func(domain.AuthEvent)
	log        logging.Logger

	// Now returns the current time. It is replaced in tests.
	Now func() time.Time

	m           sync.Mutex
	session     *domain.Session
	loaded      bool
	stopRefresh context.CancelFunc
	refreshDone chan struct{}
}

// NewClient creates a new Client persisting its session in store. Auth state
// changes are passed to notify, which may be nil. If httpClient is nil,
// http.DefaultClient is used.
func NewClient(
	cfg Config,
	store localstore.Store,
	httpClient *http.Client,
	notify func(domain.AuthEvent),
) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if notify == nil {
		notify = func(domain.AuthEvent) {}
	}

	client := &Client{ //nolint:exhaustruct
		cfg:        cfg,
		httpClient: httpClient,
		store:      store,
		notify:     notify,
		log:        logging.GetLogger("client.backend.client"),
		Now:        time.Now,
	}

	client.auth = authclient.NewHTTPClient(authclient.HTTPClientConfig{AuthURL: client.url("/auth/v1/user")}, httpClient)

	return client
}

// Session returns the current session, or nil when signed out or expired.
func (c *Client) Session(ctx context.Context) (*domain.Session, error) {
	c.m.Lock()
	defer c.m.Unlock()

	if err := c.load(ctx); err != nil {
		return nil, err
	}

	if c.session == nil || c.session.ExpiresIn(c.Now()) <= 0 {
		return nil, nil //nolint:nilnil
	}

	session := *c.session

	return &session, nil
}

// load reads the persisted session once. Callers hold c.m.
func (c *Client) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	raw, ok, err := c.store.Get(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	c.loaded = true

	if !ok {
		return nil
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		c.log.WarnContext(ctx, "discarding malformed session", "error", err)

		return nil
	}

	c.session = &session

	return nil
}

// setSession stores or, for nil, removes the session and notifies about kind.
func (c *Client) setSession(ctx context.Context, session *domain.Session, kind domain.AuthEventKind) error {
	c.m.Lock()

	var err error

	if session == nil {
		err = c.store.Remove(ctx, TokenKey)
	} else {
		var raw []byte
		if raw, err = json.Marshal(session); err == nil {
			err = c.store.Set(ctx, TokenKey, string(raw))
		}
	}

	c.session = session
	c.loaded = true
	c.m.Unlock()

	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	c.log.DebugContext(ctx, "auth state changed", "event", kind)
	c.notify(domain.AuthEvent{Kind: kind, Session: session})

	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	session, err := c.Session(ctx)
	if err != nil || session == nil {
		return "", err
	}

	return session.AccessToken, nil
}

// do sends a request to the API path and decodes the JSON response into out,
// if not nil. Error responses are returned as *http_.ResponseError wrapping
// the matching domain error.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	contentType string,
	body io.Reader,
	header http.Header,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	for key, values := range header {
		req.Header[key] = values
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if token, err := c.accessToken(ctx); err != nil {
		return err
	} else if token != "" {
		req.Header.Set(http_.AuthorizationHeader, "Bearer "+token)
	}

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(http_.TraceIDHeader, traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp http_.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			errResp = http_.ErrorResponse{Code: "", Message: ""}
		}

		return http_.ErrorFromResponse(resp.StatusCode, errResp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + path
}

// doJSON sends in as JSON body, if not nil.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if in == nil {
		return c.do(ctx, method, path, "", nil, nil, out)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	return c.do(ctx, method, path, "application/json", bytes.NewReader(body), nil, out)
}

// SignUp registers an account. The returned user is unconfirmed until the
// link mailed to the address is opened.
func (c *Client) SignUp(ctx context.Context, email, password string) (domain.User, error) {
	var user domain.User

	req := domain.SignUpRequest{Email: email, Password: password, RedirectTo: c.cfg.RedirectTo}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/signup", req, &user); err != nil {
		return domain.User{}, fmt.Errorf("sign up: %w", err) //nolint:exhaustruct
	}

	return user, nil
}

// SignIn signs in with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	return c.signIn(ctx, "/auth/v1/token", domain.CredentialsRequest{Email: email, Password: password})
}

// Verify confirms the email address with the token of a confirmation link
// and signs in.
func (c *Client) Verify(ctx context.Context, token string) (domain.Session, error) {
	return c.signIn(ctx, "/auth/v1/verify", domain.VerifyRequest{Token: token})
}

func (c *Client) signIn(ctx context.Context, path string, req any) (domain.Session, error) {
	var session domain.Session
	if err := c.doJSON(ctx, http.MethodPost, path, req, &session); err != nil {
		return domain.Session{}, fmt.Errorf("sign in: %w", err) //nolint:exhaustruct
	}

	if err := c.setSession(ctx, &session, domain.AuthEventSignedIn); err != nil {
		return domain.Session{}, err //nolint:exhaustruct
	}

	return session, nil
}

// Resend mails another confirmation link to email.
func (c *Client) Resend(ctx context.Context, email string) error {
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/resend", domain.ResendRequest{Email: email}, nil); err != nil {
		return fmt.Errorf("resend: %w", err)
	}

	return nil
}

// Refresh exchanges the access token for a new session. A rejected token
// signs the client out.
func (c *Client) Refresh(ctx context.Context) (domain.Session, error) {
	var session domain.Session

	err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token/refresh", nil, &session)

	switch {
	case errors.Is(err, domain.ErrInvalidAuthToken), errors.Is(err, domain.ErrNoAuthToken):
		if serr := c.setSession(ctx, nil, domain.AuthEventSignedOut); serr != nil {
			err = errors.Join(err, serr)
		}

		return domain.Session{}, fmt.Errorf("refresh: %w", err) //nolint:exhaustruct
	case err != nil:
		return domain.Session{}, fmt.Errorf("refresh: %w", err) //nolint:exhaustruct
	}

	if err := c.setSession(ctx, &session, domain.AuthEventTokenRefreshed); err != nil {
		return domain.Session{}, err //nolint:exhaustruct
	}

	return session, nil
}

// SignOut revokes the access token and forgets the session.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	if errors.Is(err, domain.ErrInvalidAuthToken) || errors.Is(err, domain.ErrNoAuthToken) {
		err = nil
	}

	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	return c.setSession(ctx, nil, domain.AuthEventSignedOut)
}

// User asks the API for the user of the current session.
func (c *Client) User(ctx context.Context) (domain.User, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return domain.User{}, err //nolint:exhaustruct
	}

	if session == nil {
		return domain.User{}, domain.ErrNoSession //nolint:exhaustruct
	}

	user, err := c.auth.Validate(ctx, session.AccessToken)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err) //nolint:exhaustruct
	}

	return user, nil
}
