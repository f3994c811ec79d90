package authsvc

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/repo/account"
	"github.com/mkrupp/eventhub/internal/svc/authsvc/authclient"
	"github.com/mkrupp/eventhub/internal/util/encoding"
)

// confirmationTokenBytes is the entropy of a confirmation token.
const confirmationTokenBytes = 20

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/authsvc.key"`

	// Issuer is the iss claim of issued access tokens
	Issuer string `env:"ISSUER" default:"eventhub"`

	// TokenDuration is the validity duration of access tokens
	TokenDuration time.Duration `env:"TOKEN_DURATION" default:"1h"`

	// ConfirmationTTL is how long a confirmation link stays valid
	ConfirmationTTL time.Duration `env:"CONFIRMATION_TTL" default:"24h"`

	// ResendInterval is the minimum time between two confirmation mails
	ResendInterval time.Duration `env:"RESEND_INTERVAL" default:"60s"`

	BcryptCost int `env:"BCRYPT_COST" default:"10"`

	// SiteURL is the public base URL confirmation links point to
	SiteURL string `env:"SITE_URL" default:"http://localhost:8080"`

	// AdminEmails are granted the admin role when they sign up
	AdminEmails []string `env:"ADMIN_EMAILS" default:""`
}

// AuthService provides account registration, email confirmation and
// session management. Sessions are RS256 signed JWT access tokens.
type AuthService struct {
	Config      AuthConfig
	AccountRepo account.Repository
	Mailer      Mailer
	Log         logging.Logger
	SigningKey  *rsa.PrivateKey

	// Now returns the current time; time.Now when nil.
	Now func() time.Time

	revoked sync.Map // token id -> expiry (Unix)
}

var _ authclient.AuthClient = (*AuthService)(nil)

// NewAuthService creates a new AuthService with the given account repository factory and configuration.
// If mailer is nil, confirmation links are written to the log.
func NewAuthService(
	ctx context.Context,
	repoFactory account.RepositoryFactory,
	mailer Mailer,
	cfg AuthConfig,
) (*AuthService, error) {
	log := logging.GetLogger("svc.authsvc.auth_service")

	signingKey, err := LoadSigningKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	accountRepo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new account repo: %w", err)
	}

	if mailer == nil {
		mailer = LogMailer{Log: logging.GetLogger("svc.authsvc.mailer")}
	}

	return &AuthService{ //nolint:exhaustruct
		Config:      cfg,
		AccountRepo: accountRepo,
		Mailer:      mailer,
		Log:         log,
		SigningKey:  signingKey,
	}, nil
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}

	return time.Now()
}

// SignUp registers a new unconfirmed account and mails its confirmation link.
// Signing in is refused with domain.ErrEmailNotConfirmed until Verify is called
// with the token from that link.
func (s *AuthService) SignUp(ctx context.Context, req domain.SignUpRequest) (_ domain.User, err error) {
	email := normalizeEmail(req.Email)
	log := s.Log.With(logging.Group("account", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "sign up failed", "error", err)
		} else {
			log.DebugContext(ctx, "signed up")
		}
	}()

	if addr, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, errors.Join(domain.ErrInvalidEmail, err) //nolint:exhaustruct
	} else if addr.Address != email {
		return domain.User{}, domain.ErrInvalidEmail //nolint:exhaustruct
	}

	if utf8.RuneCountInString(req.Password) < domain.MinPasswordLength {
		return domain.User{}, fmt.Errorf("%w: at least %d characters", domain.ErrWeakPassword, domain.MinPasswordLength) //nolint:exhaustruct
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.Config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			err = errors.Join(domain.ErrWeakPassword, err)
		}

		return domain.User{}, fmt.Errorf("hash password: %w", err) //nolint:exhaustruct
	}

	token, err := encoding.NewToken(confirmationTokenBytes)
	if err != nil {
		return domain.User{}, err //nolint:exhaustruct
	}

	now := s.now()
	acc := domain.Account{
		ID:                 uuid.NewString(),
		Email:              email,
		PasswordHash:       passwordHash,
		Role:               s.roleFor(email),
		ConfirmationToken:  token,
		ConfirmationSentAt: now.Unix(),
		EmailConfirmedAt:   0,
		CreatedAt:          now.Unix(),
	}

	log = log.With(logging.Group("account", "id", acc.ID))

	if err := s.AccountRepo.CreateAccount(ctx, acc); err != nil {
		return domain.User{}, fmt.Errorf("create account: %w", err) //nolint:exhaustruct
	}

	if err := s.Mailer.SendConfirmation(ctx, email, s.confirmationLink(token, req.RedirectTo)); err != nil {
		return domain.User{}, fmt.Errorf("send confirmation: %w", err) //nolint:exhaustruct
	}

	return acc.User(), nil
}

// Verify confirms the email address of the account the token was mailed to
// and signs it in.
func (s *AuthService) Verify(ctx context.Context, token string) (_ domain.Session, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "verify failed", "error", err)
		} else {
			log.DebugContext(ctx, "email confirmed")
		}
	}()

	token = encoding.NormalizeCrockfordB32LC(token)
	if token == "" {
		return domain.Session{}, domain.ErrInvalidConfirmationToken //nolint:exhaustruct
	}

	acc, err := s.AccountRepo.GetAccountByConfirmationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			err = errors.Join(domain.ErrInvalidConfirmationToken, err)
		}

		return domain.Session{}, fmt.Errorf("get account: %w", err) //nolint:exhaustruct
	}

	log = log.With(logging.Group("account", "id", acc.ID, "email", acc.Email))

	now := s.now()
	if now.Sub(time.Unix(acc.ConfirmationSentAt, 0)) > s.Config.ConfirmationTTL {
		return domain.Session{}, fmt.Errorf("%w: expired", domain.ErrInvalidConfirmationToken) //nolint:exhaustruct
	}

	if err := s.AccountRepo.ConfirmEmail(ctx, acc.ID, now.Unix()); err != nil {
		return domain.Session{}, fmt.Errorf("confirm email: %w", err) //nolint:exhaustruct
	}

	acc.ConfirmationToken = ""
	acc.EmailConfirmedAt = now.Unix()

	return s.issueSession(acc, now)
}

// SignIn authenticates with email and password. Accounts whose email is not
// confirmed yet are refused with domain.ErrEmailNotConfirmed.
func (s *AuthService) SignIn(ctx context.Context, req domain.CredentialsRequest) (_ domain.Session, err error) {
	email := normalizeEmail(req.Email)
	log := s.Log.With(logging.Group("account", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "sign in failed", "error", err)
		} else {
			log.DebugContext(ctx, "signed in")
		}
	}()

	acc, err := s.AccountRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.Session{}, errors.Join(domain.ErrInvalidCredentials, err) //nolint:exhaustruct
		}

		return domain.Session{}, fmt.Errorf("get account: %w", err) //nolint:exhaustruct
	}

	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(req.Password)); err != nil {
		return domain.Session{}, domain.ErrInvalidCredentials //nolint:exhaustruct
	}

	if !acc.Confirmed() {
		return domain.Session{}, domain.ErrEmailNotConfirmed //nolint:exhaustruct
	}

	return s.issueSession(acc, s.now())
}

// Validate implements authclient.AuthClient.Validate. The user is read from
// the account store so role and confirmation changes apply immediately.
func (s *AuthService) Validate(ctx context.Context, token string) (_ domain.User, err error) {
	claims, err := s.validate(token)
	if err != nil {
		return domain.User{}, err //nolint:exhaustruct
	}

	acc, err := s.AccountRepo.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			err = errors.Join(domain.ErrInvalidAuthToken, err)
		}

		return domain.User{}, fmt.Errorf("get account: %w", err) //nolint:exhaustruct
	}

	return acc.User(), nil
}

// Refresh exchanges a still valid access token for a new one. The old token
// is revoked.
func (s *AuthService) Refresh(ctx context.Context, token string) (_ domain.Session, err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "refresh failed", "error", err)
		} else {
			log.DebugContext(ctx, "token refreshed")
		}
	}()

	claims, err := s.validate(token)
	if err != nil {
		return domain.Session{}, err //nolint:exhaustruct
	}

	log = log.With(logging.Group("account", "id", claims.Subject))

	acc, err := s.AccountRepo.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			err = errors.Join(domain.ErrInvalidAuthToken, err)
		}

		return domain.Session{}, fmt.Errorf("get account: %w", err) //nolint:exhaustruct
	}

	session, err := s.issueSession(acc, s.now())
	if err != nil {
		return domain.Session{}, err //nolint:exhaustruct
	}

	s.revoke(claims)

	return session, nil
}

// Logout revokes the access token.
func (s *AuthService) Logout(ctx context.Context, token string) (err error) {
	defer func() {
		if err != nil {
			s.Log.ErrorContext(ctx, "logout failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "logged out")
		}
	}()

	claims, err := s.validate(token)
	if err != nil {
		return err
	}

	s.revoke(claims)

	return nil
}

// Resend mails a new confirmation link to an unconfirmed account. Unknown and
// already confirmed addresses are ignored so callers cannot probe for accounts.
func (s *AuthService) Resend(ctx context.Context, req domain.ResendRequest) (err error) {
	email := normalizeEmail(req.Email)
	log := s.Log.With(logging.Group("account", "email", email))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "resend confirmation failed", "error", err)
		}
	}()

	acc, err := s.AccountRepo.GetAccountByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		log.DebugContext(ctx, "resend for unknown account ignored")

		return nil
	} else if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if acc.Confirmed() {
		log.DebugContext(ctx, "resend for confirmed account ignored")

		return nil
	}

	now := s.now()
	if since := now.Sub(time.Unix(acc.ConfirmationSentAt, 0)); since < s.Config.ResendInterval {
		return fmt.Errorf("%w: retry in %s", domain.ErrRateLimited, (s.Config.ResendInterval - since).Round(time.Second))
	}

	token, err := encoding.NewToken(confirmationTokenBytes)
	if err != nil {
		return err
	}

	if err := s.AccountRepo.SetConfirmationToken(ctx, acc.ID, token, now.Unix()); err != nil {
		return fmt.Errorf("set confirmation token: %w", err)
	}

	if err := s.Mailer.SendConfirmation(ctx, email, s.confirmationLink(token, "")); err != nil {
		return fmt.Errorf("send confirmation: %w", err)
	}

	log.DebugContext(ctx, "confirmation resent")

	return nil
}

// Close releases resources held by the service, such as database connections.
func (s *AuthService) Close() error {
	if err := s.AccountRepo.Close(); err != nil {
		return fmt.Errorf("close account repo: %w", err)
	}

	return nil
}

func (s *AuthService) validate(token string) (*Claims, error) {
	claims, err := ValidateToken(token, &s.SigningKey.PublicKey, s.Config.Issuer, s.now())
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}

	if _, revoked := s.revoked.Load(claims.ID); revoked {
		return nil, fmt.Errorf("%w: revoked", domain.ErrInvalidAuthToken)
	}

	return claims, nil
}

func (s *AuthService) revoke(claims *Claims) {
	now := s.now().Unix()

	s.revoked.Range(func(id, exp any) bool {
		if exp.(int64) < now { //nolint:forcetypeassert
			s.revoked.Delete(id)
		}

		return true
	})

	s.revoked.Store(claims.ID, claims.ExpiresAt.Unix())
}

func (s *AuthService) issueSession(acc domain.Account, now time.Time) (domain.Session, error) {
	expiresAt := now.Add(s.Config.TokenDuration)

	claims := &Claims{
		Email: acc.Email,
		Role:  acc.Role,
		RegisteredClaims: jwt.RegisteredClaims{ //nolint:exhaustruct
			ID:        uuid.NewString(),
			Issuer:    s.Config.Issuer,
			Subject:   acc.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := SignToken(claims, s.SigningKey)
	if err != nil {
		return domain.Session{}, err //nolint:exhaustruct
	}

	return domain.Session{
		AccessToken: token,
		ExpiresAt:   expiresAt.Unix(),
		User:        acc.User(),
	}, nil
}

func (s *AuthService) roleFor(email string) string {
	if slices.ContainsFunc(s.Config.AdminEmails, func(admin string) bool {
		return normalizeEmail(admin) == email
	}) {
		return domain.RoleAdmin
	}

	return ""
}

func (s *AuthService) confirmationLink(token, redirectTo string) string {
	query := url.Values{"token": {token}}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	return strings.TrimSuffix(s.Config.SiteURL, "/") + "/auth/v1/verify?" + query.Encode()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
