package domain

import (
	"errors"
	"time"
)

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrInvalidAuthToken is returned when a token's signature is invalid or it has expired.
	ErrInvalidAuthToken = errors.New("invalid auth token")
	// ErrUnauthorized is returned when the authenticated user lacks permission.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSession is returned by clients that are not signed in.
	ErrNoSession = errors.New("no session")
)

// User is the account as seen by clients.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Role             string     `json:"role,omitempty"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// IsAdmin reports whether the user may moderate events.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session is a signed-in user together with its access token.
type Session struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"` // Unix timestamp
	User        User   `json:"user"`
}

// ExpiresIn returns the time left until the access token expires.
func (s Session) ExpiresIn(now time.Time) time.Duration {
	return time.Unix(s.ExpiresAt, 0).Sub(now)
}

// AuthEventKind names an authentication state transition.
type AuthEventKind string

const (
	AuthEventInitialSession AuthEventKind = "INITIAL_SESSION"
	AuthEventSignedIn       AuthEventKind = "SIGNED_IN"
	AuthEventSignedOut      AuthEventKind = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent is delivered to auth state subscribers. Session is nil after sign out.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

// ConfirmedSignIn reports whether the event is a sign-in of a user whose email
// address is verified.
func (e AuthEvent) ConfirmedSignIn() bool {
	return e.Kind == AuthEventSignedIn &&
		e.Session != nil &&
		e.Session.User.EmailConfirmedAt != nil
}

// SignUpRequest is the payload of a sign-up call.
type SignUpRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RedirectTo string `json:"redirectTo,omitempty"`
}

// CredentialsRequest is the payload of a password sign-in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyRequest carries the token from the confirmation link.
type VerifyRequest struct {
	Token string `json:"token"`
}

// ResendRequest asks for another confirmation mail.
type ResendRequest struct {
	Email string `json:"email"`
}
