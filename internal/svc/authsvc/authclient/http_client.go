package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

const (
	TraceIDHeader       = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

var errUnexpectedStatus = errors.New("unexpected status")

type HTTPClientConfig struct {
	// AuthURL returns the user owning the bearer token of a GET request.
	AuthURL string `env:"AUTH_URL" default:"http://localhost:8080/auth/v1/user"`
}

// HTTPClient validates tokens against a remote auth service.
type HTTPClient struct {
	cfg    HTTPClientConfig
	client *http.Client
	log    logging.Logger
}

var _ AuthClient = (*HTTPClient)(nil)

// NewHTTPClient returns a client sending its requests through client, or
// http.DefaultClient when client is nil.
func NewHTTPClient(cfg HTTPClientConfig, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPClient{cfg: cfg, client: client, log: logging.GetLogger("svc.authsvc.authclient")}
}

// Validate implements AuthClient.Validate.
func (c *HTTPClient) Validate(ctx context.Context, token string) (user domain.User, err error) {
	defer func() {
		if err != nil && !errors.Is(err, domain.ErrInvalidAuthToken) {
			c.log.WarnContext(ctx, "token validation failed", "error", err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.AuthURL, nil)
	if err != nil {
		return user, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set(AuthorizationHeader, "Bearer "+token)

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return user, fmt.Errorf("validate: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return user, domain.ErrInvalidAuthToken
	default:
		return user, fmt.Errorf("validate: %w %d", errUnexpectedStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err) //nolint:exhaustruct
	}

	return user, nil
}
