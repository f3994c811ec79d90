package authsvc_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/svc/authsvc"
)

// mockAccountRepository implements account.Repository for testing.
type mockAccountRepository struct {
	accounts map[string]domain.Account
	err      error
	m        sync.Mutex
}

func newMockAccountRepo() *mockAccountRepository {
	return &mockAccountRepository{ //nolint:exhaustruct
		accounts: make(map[string]domain.Account),
	}
}

func (m *mockAccountRepository) CreateAccount(_ context.Context, account domain.Account) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	for _, existing := range m.accounts {
		if existing.Email == account.Email {
			return domain.ErrAccountAlreadyExists
		}
	}

	m.accounts[account.ID] = account

	return nil
}

func (m *mockAccountRepository) find(match func(domain.Account) bool) (domain.Account, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return domain.Account{}, m.err //nolint:exhaustruct
	}

	for _, account := range m.accounts {
		if match(account) {
			return account, nil
		}
	}

	return domain.Account{}, domain.ErrAccountNotFound //nolint:exhaustruct
}

func (m *mockAccountRepository) GetAccountByID(_ context.Context, id string) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.ID == id })
}

func (m *mockAccountRepository) GetAccountByEmail(_ context.Context, email string) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.Email == email })
}

func (m *mockAccountRepository) GetAccountByConfirmationToken(
	_ context.Context,
	token string,
) (domain.Account, error) {
	return m.find(func(a domain.Account) bool { return a.ConfirmationToken != "" && a.ConfirmationToken == token })
}

func (m *mockAccountRepository) update(id string, fn func(*domain.Account)) error {
	m.m.Lock()
	defer m.m.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}

	fn(&account)
	m.accounts[id] = account

	return nil
}

func (m *mockAccountRepository) SetConfirmationToken(_ context.Context, id, token string, sentAt int64) error {
	return m.update(id, func(a *domain.Account) {
		a.ConfirmationToken = token
		a.ConfirmationSentAt = sentAt
	})
}

func (m *mockAccountRepository) ConfirmEmail(_ context.Context, id string, confirmedAt int64) error {
	return m.update(id, func(a *domain.Account) {
		a.ConfirmationToken = ""
		a.EmailConfirmedAt = confirmedAt
	})
}

func (m *mockAccountRepository) SetRole(_ context.Context, id, role string) error {
	return m.update(id, func(a *domain.Account) { a.Role = role })
}

func (m *mockAccountRepository) Close() error {
	return nil
}

// recordingMailer remembers the last link sent per address.
type recordingMailer struct {
	links map[string]string
	m     sync.Mutex
}

func (r *recordingMailer) SendConfirmation(_ context.Context, email, link string) error {
	r.m.Lock()
	defer r.m.Unlock()

	r.links[email] = link

	return nil
}

func (r *recordingMailer) token(t *testing.T, email string) string {
	t.Helper()

	r.m.Lock()
	defer r.m.Unlock()

	link, ok := r.links[email]
	if !ok {
		t.Fatalf("no confirmation mail sent to %s", email)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}

	return u.Query().Get("token")
}

var ErrRepoError = errors.New("repository error")

type testClock struct {
	now time.Time
	m   sync.Mutex
}

func (c *testClock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()

	c.now = c.now.Add(d)
}

func setupTestService(t *testing.T) (*authsvc.AuthService, *mockAccountRepository, *recordingMailer, *testClock) {
	t.Helper()

	signingKey, err := authsvc.NewSigningKey()
	if err != nil {
		t.Fatalf("failed to generate signing key: %v", err)
	}

	mockRepo := newMockAccountRepo()
	mailer := &recordingMailer{links: make(map[string]string)} //nolint:exhaustruct
	clock := &testClock{now: time.Now()}                       //nolint:exhaustruct

	svc := &authsvc.AuthService{ //nolint:exhaustruct
		Config: authsvc.AuthConfig{ //nolint:exhaustruct
			Issuer:          "eventhub",
			TokenDuration:   time.Hour,
			ConfirmationTTL: 24 * time.Hour,
			ResendInterval:  time.Minute,
			BcryptCost:      bcrypt.MinCost,
			SiteURL:         "http://localhost:8080/",
			AdminEmails:     []string{"Admin@Example.com"},
		},
		AccountRepo: mockRepo,
		Mailer:      mailer,
		Log:         logging.NewNopLogger(),
		SigningKey:  signingKey,
		Now:         clock.Now,
	}

	return svc, mockRepo, mailer, clock
}

// signUpConfirmed registers and confirms an account, returning its session.
func signUpConfirmed(t *testing.T, svc *authsvc.AuthService, mailer *recordingMailer, email string) domain.Session {
	t.Helper()

	ctx := context.Background()

	if _, err := svc.SignUp(ctx, domain.SignUpRequest{Email: email, Password: "secret123"}); err != nil { //nolint:exhaustruct
		t.Fatalf("SignUp() error = %v", err)
	}

	session, err := svc.Verify(ctx, mailer.token(t, email))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	return session
}

//nolint:paralleltest
func TestAuthService_SignUp(t *testing.T) {
	svc, mockRepo, mailer, _ := setupTestService(t)

	tests := []struct {
		name     string
		email    string
		password string
		repoErr  error
		wantErr  error
	}{
		{"successful sign up", "maria@example.com", "secret123", nil, nil},
		{"duplicate email", "MARIA@example.com ", "secret123", nil, domain.ErrAccountAlreadyExists},
		{"short password", "joao@example.com", "12345", nil, domain.ErrWeakPassword},
		{"invalid email", "not-an-email", "secret123", nil, domain.ErrInvalidEmail},
		{"display name in address", "Maria <maria2@example.com>", "secret123", nil, domain.ErrInvalidEmail},
		{"repository error", "erro@example.com", "secret123", ErrRepoError, ErrRepoError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo.err = tt.repoErr

			user, err := svc.SignUp(context.Background(), domain.SignUpRequest{ //nolint:exhaustruct
				Email:    tt.email,
				Password: tt.password,
			})

			if (err != nil) != (tt.wantErr != nil) || (tt.wantErr != nil && !errors.Is(err, tt.wantErr)) {
				t.Fatalf("SignUp() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err == nil && user.EmailConfirmedAt != nil {
				t.Error("SignUp() user is already confirmed")
			}
		})
	}

	link := mailer.links["maria@example.com"]
	if !strings.HasPrefix(link, "http://localhost:8080/auth/v1/verify?token=") {
		t.Errorf("confirmation link = %q", link)
	}
}

func TestAuthService_SignUpAdmin(t *testing.T) {
	t.Parallel()

	svc, _, mailer, _ := setupTestService(t)

	session := signUpConfirmed(t, svc, mailer, "admin@example.com")
	if !session.User.IsAdmin() {
		t.Errorf("session.User.Role = %q, want %q", session.User.Role, domain.RoleAdmin)
	}
}

func TestAuthService_SignIn(t *testing.T) {
	t.Parallel()

	svc, mockRepo, mailer, _ := setupTestService(t)
	ctx := context.Background()

	signUpConfirmed(t, svc, mailer, "maria@example.com")

	if _, err := svc.SignUp(ctx, domain.SignUpRequest{Email: "joao@example.com", Password: "secret123"}); err != nil { //nolint:exhaustruct
		t.Fatalf("SignUp() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"successful sign in", "maria@example.com", "secret123", nil},
		{"email is case insensitive", " Maria@Example.com", "secret123", nil},
		{"wrong password", "maria@example.com", "wrongpass", domain.ErrInvalidCredentials},
		{"account not found", "nobody@example.com", "secret123", domain.ErrInvalidCredentials},
		{"email not confirmed", "joao@example.com", "secret123", domain.ErrEmailNotConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			session, err := svc.SignIn(ctx, domain.CredentialsRequest{Email: tt.email, Password: tt.password})

			if (err != nil) != (tt.wantErr != nil) || (tt.wantErr != nil && !errors.Is(err, tt.wantErr)) {
				t.Fatalf("SignIn() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err != nil {
				return
			}

			user, err := svc.Validate(ctx, session.AccessToken)
			if err != nil {
				t.Fatalf("SignIn() generated invalid token: %v", err)
			}

			if user.EmailConfirmedAt == nil || user.Email != "maria@example.com" {
				t.Errorf("Validate() = %+v", user)
			}
		})
	}

	if len(mockRepo.accounts) != 2 {
		t.Errorf("accounts = %d, want 2", len(mockRepo.accounts))
	}
}

func TestAuthService_Verify(t *testing.T) {
	t.Parallel()

	svc, _, mailer, clock := setupTestService(t)
	ctx := context.Background()

	for _, email := range []string{"maria@example.com", "joao@example.com"} {
		if _, err := svc.SignUp(ctx, domain.SignUpRequest{Email: email, Password: "secret123"}); err != nil { //nolint:exhaustruct
			t.Fatalf("SignUp() error = %v", err)
		}
	}

	token := mailer.token(t, "maria@example.com")

	session, err := svc.Verify(ctx, strings.ToUpper(token))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if session.User.EmailConfirmedAt == nil {
		t.Error("Verify() session user is not confirmed")
	}

	if _, err := svc.Verify(ctx, token); !errors.Is(err, domain.ErrInvalidConfirmationToken) {
		t.Errorf("Verify() reused token error = %v, want %v", err, domain.ErrInvalidConfirmationToken)
	}

	if _, err := svc.Verify(ctx, ""); !errors.Is(err, domain.ErrInvalidConfirmationToken) {
		t.Errorf("Verify() empty token error = %v, want %v", err, domain.ErrInvalidConfirmationToken)
	}

	clock.Advance(25 * time.Hour)

	if _, err := svc.Verify(ctx, mailer.token(t, "joao@example.com")); !errors.Is(err, domain.ErrInvalidConfirmationToken) {
		t.Errorf("Verify() expired token error = %v, want %v", err, domain.ErrInvalidConfirmationToken)
	}
}

func TestAuthService_Validate(t *testing.T) {
	t.Parallel()

	svc, _, mailer, clock := setupTestService(t)
	ctx := context.Background()

	session := signUpConfirmed(t, svc, mailer, "maria@example.com")

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid token", session.AccessToken, nil},
		{"invalid token format", "invalid-token", domain.ErrInvalidAuthToken},
		{"empty token", "", domain.ErrInvalidAuthToken},
		{"tampered token", session.AccessToken[:len(session.AccessToken)-4] + "AAAA", domain.ErrInvalidAuthToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Validate(ctx, tt.token)

			if (err != nil) != (tt.wantErr != nil) || (tt.wantErr != nil && !errors.Is(err, tt.wantErr)) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}

			if err == nil && user.ID != session.User.ID {
				t.Errorf("Validate() user = %v, want %v", user.ID, session.User.ID)
			}
		})
	}

	clock.Advance(2 * time.Hour)

	if _, err := svc.Validate(ctx, session.AccessToken); !errors.Is(err, domain.ErrInvalidAuthToken) {
		t.Errorf("Validate() expired token error = %v, want %v", err, domain.ErrInvalidAuthToken)
	}
}

func TestAuthService_RefreshLogout(t *testing.T) {
	t.Parallel()

	svc, _, mailer, clock := setupTestService(t)
	ctx := context.Background()

	session := signUpConfirmed(t, svc, mailer, "maria@example.com")

	clock.Advance(30 * time.Minute)

	refreshed, err := svc.Refresh(ctx, session.AccessToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if refreshed.ExpiresAt <= session.ExpiresAt {
		t.Errorf("Refresh() ExpiresAt = %d, want after %d", refreshed.ExpiresAt, session.ExpiresAt)
	}

	if _, err := svc.Validate(ctx, session.AccessToken); !errors.Is(err, domain.ErrInvalidAuthToken) {
		t.Errorf("Validate() of refreshed token error = %v, want %v", err, domain.ErrInvalidAuthToken)
	}

	if err := svc.Logout(ctx, refreshed.AccessToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := svc.Validate(ctx, refreshed.AccessToken); !errors.Is(err, domain.ErrInvalidAuthToken) {
		t.Errorf("Validate() after logout error = %v, want %v", err, domain.ErrInvalidAuthToken)
	}
}

func TestAuthService_Resend(t *testing.T) {
	t.Parallel()

	svc, _, mailer, clock := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, domain.SignUpRequest{Email: "maria@example.com", Password: "secret123"}); err != nil { //nolint:exhaustruct
		t.Fatalf("SignUp() error = %v", err)
	}

	first := mailer.token(t, "maria@example.com")

	if err := svc.Resend(ctx, domain.ResendRequest{Email: "maria@example.com"}); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("Resend() error = %v, want %v", err, domain.ErrRateLimited)
	}

	clock.Advance(2 * time.Minute)

	if err := svc.Resend(ctx, domain.ResendRequest{Email: "maria@example.com"}); err != nil {
		t.Fatalf("Resend() error = %v", err)
	}

	second := mailer.token(t, "maria@example.com")
	if second == first {
		t.Fatal("Resend() did not issue a new token")
	}

	if _, err := svc.Verify(ctx, first); !errors.Is(err, domain.ErrInvalidConfirmationToken) {
		t.Errorf("Verify() superseded token error = %v, want %v", err, domain.ErrInvalidConfirmationToken)
	}

	if _, err := svc.Verify(ctx, second); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	for _, email := range []string{"maria@example.com", "nobody@example.com"} {
		if err := svc.Resend(ctx, domain.ResendRequest{Email: email}); err != nil {
			t.Errorf("Resend(%s) error = %v, want nil", email, err)
		}
	}
}
