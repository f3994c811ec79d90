package backend_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/mkrupp/eventhub/internal/client/backend"
	"github.com/mkrupp/eventhub/internal/client/localstore"
	"github.com/mkrupp/eventhub/internal/domain"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
)

// fakeBackend answers the API calls of the client. Tokens are "token-<n>".
type fakeBackend struct {
	m        sync.Mutex
	issued   int
	revoked  map[string]bool
	profiles map[string]domain.Profile
	uploads  []string
}

func newFakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	fb := &fakeBackend{ //nolint:exhaustruct
		revoked:  make(map[string]bool),
		profiles: make(map[string]domain.Profile),
	}

	router := mux.NewRouter()
	router.HandleFunc("/auth/v1/token", fb.signIn).Methods(http.MethodPost)
	router.HandleFunc("/auth/v1/verify", fb.signIn).Methods(http.MethodPost)
	router.HandleFunc("/auth/v1/token/refresh", fb.refresh).Methods(http.MethodPost)
	router.HandleFunc("/auth/v1/logout", fb.logout).Methods(http.MethodPost)
	router.HandleFunc("/auth/v1/user", fb.user).Methods(http.MethodGet)
	router.HandleFunc("/rest/v1/profiles", fb.createProfile).Methods(http.MethodPost)
	router.HandleFunc("/rest/v1/cities", fb.cities).Methods(http.MethodGet)
	router.HandleFunc("/storage/v1/upload/{bucket}", fb.upload).Methods(http.MethodPost)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

func (fb *fakeBackend) session() domain.Session {
	fb.issued++

	confirmed := time.Now()

	return domain.Session{
		AccessToken: fmt.Sprintf("token-%d", fb.issued),
		ExpiresAt:   confirmed.Add(time.Hour).Unix(),
		User:        domain.User{ID: "user-1", Email: "maria@example.com", EmailConfirmedAt: &confirmed}, //nolint:exhaustruct
	}
}

func (fb *fakeBackend) token(r *http.Request) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get(http_.AuthorizationHeader), "Bearer ")
	switch {
	case !ok:
		return "", domain.ErrNoAuthToken
	case fb.revoked[token]:
		return "", domain.ErrInvalidAuthToken
	}

	return token, nil
}

func (fb *fakeBackend) signIn(w http.ResponseWriter, r *http.Request) {
	fb.m.Lock()
	defer fb.m.Unlock()

	var req domain.CredentialsRequest
	if err := http_.DecodeJSON(r, &req); err == nil && req.Password != "" && req.Password != "secret" {
		http_.WriteError(w, domain.ErrInvalidCredentials)

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, fb.session())
}

func (fb *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	fb.m.Lock()
	defer fb.m.Unlock()

	token, err := fb.token(r)
	if err != nil {
		http_.WriteError(w, err)

		return
	}

	fb.revoked[token] = true

	_ = http_.WriteJSON(w, http.StatusOK, fb.session())
}

func (fb *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	fb.m.Lock()
	defer fb.m.Unlock()

	token, err := fb.token(r)
	if err != nil {
		http_.WriteError(w, err)

		return
	}

	fb.revoked[token] = true

	w.WriteHeader(http.StatusNoContent)
}

func (fb *fakeBackend) user(w http.ResponseWriter, r *http.Request) {
	fb.m.Lock()
	defer fb.m.Unlock()

	if _, err := fb.token(r); err != nil {
		http_.WriteError(w, err)

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, domain.User{ID: "user-1", Email: "maria@example.com"}) //nolint:exhaustruct
}

func (fb *fakeBackend) createProfile(w http.ResponseWriter, r *http.Request) {
	fb.m.Lock()
	defer fb.m.Unlock()

	if _, err := fb.token(r); err != nil {
		http_.WriteError(w, err)

		return
	}

	var p domain.Profile
	if err := http_.DecodeJSON(r, &p); err != nil {
		http_.WriteError(w, err)

		return
	}

	if _, ok := fb.profiles[p.Name]; ok {
		http_.WriteError(w, fmt.Errorf("%w: %s", domain.ErrProfileNameTaken, p.Name))

		return
	}

	fb.profiles[p.Name] = p

	_ = http_.WriteJSON(w, http.StatusCreated, p)
}

func (fb *fakeBackend) cities(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("q") == "boom" {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, []domain.Municipality{
		{Code: 3162500, Name: "São João del-Rei", StateCode: 31, UF: "MG"},
	})
}

func (fb *fakeBackend) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http_.WriteError(w, errors.Join(http_.ErrBadRequest, err))

		return
	}

	prefix := r.FormValue("prefix")
	resps := make([]domain.UploadResponse, 0)

	fb.m.Lock()
	defer fb.m.Unlock()

	for _, fh := range r.MultipartForm.File["upload"] {
		fb.uploads = append(fb.uploads, fh.Filename)
		resps = append(resps, domain.UploadResponse{ //nolint:exhaustruct
			Bucket: mux.Vars(r)["bucket"],
			Path:   prefix + "/" + fh.Filename,
		})
	}

	_ = http_.WriteJSON(w, http.StatusOK, resps)
}

// eventRecorder collects the auth events of a client.
type eventRecorder struct {
	m      sync.Mutex
	events []domain.AuthEventKind
}

func (r *eventRecorder) notify(event domain.AuthEvent) {
	r.m.Lock()
	defer r.m.Unlock()

	r.events = append(r.events, event.Kind)
}

func (r *eventRecorder) kinds() []domain.AuthEventKind {
	r.m.Lock()
	defer r.m.Unlock()

	return append([]domain.AuthEventKind(nil), r.events...)
}

func newClient(t *testing.T, srv *httptest.Server, store localstore.Store) (*backend.Client, *eventRecorder) {
	t.Helper()

	rec := &eventRecorder{} //nolint:exhaustruct

	client := backend.NewClient(backend.Config{BaseURL: srv.URL}, store, srv.Client(), rec.notify) //nolint:exhaustruct

	return client, rec
}

func TestClientSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeBackend(t)
	store := localstore.NewMemoryStore()
	client, rec := newClient(t, srv, store)

	if _, err := client.User(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("User() before sign in error = %v, want %v", err, domain.ErrNoSession)
	}

	if _, err := client.SignIn(ctx, "maria@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("SignIn() error = %v, want %v", err, domain.ErrInvalidCredentials)
	}

	session, err := client.SignIn(ctx, "maria@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if _, ok, _ := store.Get(ctx, backend.TokenKey); !ok {
		t.Error("session not persisted")
	}

	// another instance of the same profile shares the session
	other, _ := newClient(t, srv, store)
	if got, err := other.Session(ctx); err != nil || got == nil || got.AccessToken != session.AccessToken {
		t.Errorf("other.Session() = %v, %v, want %s", got, err, session.AccessToken)
	}

	if user, err := client.User(ctx); err != nil || user.ID != "user-1" {
		t.Errorf("User() = %v, %v", user, err)
	}

	refreshed, err := client.Refresh(ctx)
	if err != nil || refreshed.AccessToken == session.AccessToken {
		t.Fatalf("Refresh() = %v, %v, want a new token", refreshed, err)
	}

	if err := client.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	if got, _ := client.Session(ctx); got != nil {
		t.Errorf("Session() after sign out = %v, want nil", got)
	}

	want := []domain.AuthEventKind{domain.AuthEventSignedIn, domain.AuthEventTokenRefreshed, domain.AuthEventSignedOut}
	if got := rec.kinds(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestClientRefreshRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeBackend(t)
	store := localstore.NewMemoryStore()
	a, _ := newClient(t, srv, store)
	b, rec := newClient(t, srv, store)

	if _, err := a.SignIn(ctx, "maria@example.com", "secret"); err != nil {
		t.Fatal(err)
	}

	// a rotates the token b still holds in memory
	if _, err := b.Session(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := a.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Refresh(ctx); !errors.Is(err, domain.ErrInvalidAuthToken) {
		t.Fatalf("Refresh() error = %v, want %v", err, domain.ErrInvalidAuthToken)
	}

	if got := rec.kinds(); len(got) != 1 || got[0] != domain.AuthEventSignedOut {
		t.Errorf("events = %v, want [SIGNED_OUT]", got)
	}

	if _, ok, _ := store.Get(ctx, backend.TokenKey); ok {
		t.Error("rejected session still persisted")
	}
}

func TestClientExpiredSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeBackend(t)
	client, _ := newClient(t, srv, localstore.NewMemoryStore())

	if _, err := client.SignIn(ctx, "maria@example.com", "secret"); err != nil {
		t.Fatal(err)
	}

	client.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if got, err := client.Session(ctx); got != nil || err != nil {
		t.Errorf("Session() = %v, %v, want nil", got, err)
	}
}

func TestClientData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeBackend(t)
	client, _ := newClient(t, srv, localstore.NewMemoryStore())

	profile := domain.Profile{ID: "user-1", Name: "Maria Silva", Kind: domain.AccountKindClient} //nolint:exhaustruct

	if _, err := client.CreateProfile(ctx, profile); !errors.Is(err, domain.ErrNoAuthToken) {
		t.Errorf("CreateProfile() signed out error = %v, want %v", err, domain.ErrNoAuthToken)
	}

	if _, err := client.SignIn(ctx, "maria@example.com", "secret"); err != nil {
		t.Fatal(err)
	}

	if _, err := client.CreateProfile(ctx, profile); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	_, err := client.CreateProfile(ctx, profile)

	var respErr *http_.ResponseError
	if !errors.As(err, &respErr) || respErr.Status != http.StatusConflict || !errors.Is(err, domain.ErrProfileNameTaken) {
		t.Errorf("CreateProfile() twice error = %v, want %v", err, domain.ErrProfileNameTaken)
	}

	if cities := client.SearchCities(ctx, "joão"); len(cities) != 1 || cities[0].UF != "MG" {
		t.Errorf("SearchCities() = %v", cities)
	}

	if cities := client.SearchCities(ctx, "boom"); cities == nil || len(cities) != 0 {
		t.Errorf("SearchCities() on failure = %v, want empty", cities)
	}
}

func TestClientUploadGallery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeBackend(t)
	client, _ := newClient(t, srv, localstore.NewMemoryStore())

	files := []backend.File{
		{Name: "a.jpg", Data: []byte("aaa")},
		{Name: "a.jpg", Data: []byte("bbb")}, // same name and size
		{Name: "a.jpg", Data: []byte("cccc")},
		{Name: "b.png", Data: []byte("aaa")},
	}

	resps, err := client.UploadGallery(ctx, domain.BucketEventImages, "event-1", files)
	if err != nil {
		t.Fatalf("UploadGallery() error = %v", err)
	}

	if len(resps) != 3 {
		t.Errorf("UploadGallery() uploaded %d files, want 3", len(resps))
	}

	if len(resps) > 0 && resps[0].Path != "event-1/a.jpg" {
		t.Errorf("UploadGallery() path = %s, want event-1/a.jpg", resps[0].Path)
	}

	tooMany := make([]backend.File, domain.MaxEventImages+1)
	for i := range tooMany {
		tooMany[i] = backend.File{Name: fmt.Sprintf("%d.jpg", i), Data: []byte("x")}
	}

	if _, err := client.UploadGallery(ctx, domain.BucketEventImages, "event-1", tooMany); !errors.Is(err, domain.ErrTooManyImages) {
		t.Errorf("UploadGallery() error = %v, want %v", err, domain.ErrTooManyImages)
	}
}

func TestDedupFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files []backend.File
		want  int
	}{
		{"empty", nil, 0},
		{"distinct", []backend.File{{Name: "a", Data: []byte("1")}, {Name: "b", Data: []byte("1")}}, 2},
		{"same name and size", []backend.File{{Name: "a", Data: []byte("1")}, {Name: "a", Data: []byte("2")}}, 1},
		{"same name other size", []backend.File{{Name: "a", Data: []byte("1")}, {Name: "a", Data: []byte("22")}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := backend.DedupFiles(tt.files); len(got) != tt.want {
				t.Errorf("DedupFiles() = %d files, want %d", len(got), tt.want)
			}
		})
	}
}
