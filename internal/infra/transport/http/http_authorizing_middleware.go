package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/svc/authsvc/authclient"
)

// AuthorizationHeader carries the bearer access token.
const AuthorizationHeader = "Authorization"

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get(AuthorizationHeader), "Bearer")

	return strings.TrimSpace(token)
}

// AuthorizingMiddleware creates middleware that validates bearer tokens.
// Requests without a valid token are rejected with 401. On success the
// authenticated user is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	authClient authclient.AuthClient,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			log.WarnContext(r.Context(), "no token provided")
			WriteError(w, domain.ErrNoAuthToken)

			return
		}

		user, err := authClient.Validate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidAuthToken) {
				log.ErrorContext(r.Context(), "validate token failed", "error", err)
			}

			WriteError(w, errors.Join(domain.ErrInvalidAuthToken, err))

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithUser(r.Context(), user)))
	})
}

// Authorizing returns AuthorizingMiddleware in the form accepted by mux.Router.Use.
func Authorizing(authClient authclient.AuthClient, log logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return AuthorizingMiddleware(next, authClient, log)
	}
}

// AdminMiddleware rejects requests of users without the admin role. It must
// run after AuthorizingMiddleware.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := context_.UserFromContext(r.Context()); !ok || !user.IsAdmin() {
			WriteError(w, domain.ErrUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// OptionallyAuthorizing works like Authorizing but lets requests without a
// token through anonymously.
func OptionallyAuthorizing(authClient authclient.AuthClient, log logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		authorizing := AuthorizingMiddleware(next, authClient, log)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if BearerToken(r) == "" {
				next.ServeHTTP(w, r)

				return
			}

			authorizing.ServeHTTP(w, r)
		})
	}
}
