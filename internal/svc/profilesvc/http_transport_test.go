package profilesvc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkrupp/eventhub/internal/domain"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
	"github.com/mkrupp/eventhub/internal/svc/profilesvc"
)

type stubAuthClient map[string]domain.User

func (c stubAuthClient) Validate(_ context.Context, token string) (domain.User, error) {
	if user, ok := c[token]; ok {
		return user, nil
	}

	return domain.User{}, domain.ErrInvalidAuthToken //nolint:exhaustruct
}

func doJSON(t *testing.T, handler http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set(http_.AuthorizationHeader, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return v
}

func TestHTTPTransport(t *testing.T) {
	t.Parallel()

	svc, _ := setupProfileService(t)
	handler := profilesvc.NewHTTPTransport(svc, stubAuthClient{
		"maria": {ID: "u1"}, //nolint:exhaustruct
		"joao":  {ID: "u2"}, //nolint:exhaustruct
	})

	rec := doJSON(t, handler, http.MethodPost, "/rest/v1/profiles", "maria", newProfile("Maria Silva"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodGet, "/rest/v1/profiles/available?name=maria+silva", "", nil)
	if got := decode[domain.NameAvailability](t, rec); rec.Code != http.StatusOK || got.Available {
		t.Errorf("available = %d %+v", rec.Code, got)
	}

	rec = doJSON(t, handler, http.MethodGet, "/rest/v1/profiles/by-name/Maria_Silva", "", nil)
	if got := decode[domain.Profile](t, rec); rec.Code != http.StatusOK || got.ID != "u1" {
		t.Errorf("by name = %d %+v", rec.Code, got)
	}

	update := domain.ProfileUpdate{Field: domain.ProfileFieldPhone, Value: "123"}

	rec = doJSON(t, handler, http.MethodPatch, "/rest/v1/profiles/me", "maria", update)
	if got := decode[domain.Profile](t, rec); rec.Code != http.StatusOK || got.Phone == nil || *got.Phone != "123" {
		t.Errorf("update = %d %+v", rec.Code, got)
	}

	tests := []struct {
		name       string
		method     string
		target     string
		token      string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"anonymous me", http.MethodGet, "/rest/v1/profiles/me", "", nil, http.StatusUnauthorized, "no_auth_token"},
		{"no profile yet", http.MethodGet, "/rest/v1/profiles/me", "joao", nil, http.StatusNotFound, "profile_not_found"},
		{"name taken", http.MethodPost, "/rest/v1/profiles", "joao", newProfile("maria silva"), http.StatusConflict, "profile_name_taken"},
		{"unknown field", http.MethodPatch, "/rest/v1/profiles/me", "maria", domain.ProfileUpdate{Field: "email"}, http.StatusBadRequest, "field_not_editable"}, //nolint:exhaustruct,lll
		{"missing name", http.MethodGet, "/rest/v1/profiles/available", "", nil, http.StatusBadRequest, "invalid_profile"},
		{"unknown profile", http.MethodGet, "/rest/v1/profiles/by-name/nobody", "", nil, http.StatusNotFound, "profile_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.target, tt.token, tt.body)
			if got := decode[http_.ErrorResponse](t, rec); rec.Code != tt.wantStatus || got.Code != tt.wantCode {
				t.Errorf("%s %s = %d %+v, want %d %s", tt.method, tt.target, rec.Code, got, tt.wantStatus, tt.wantCode)
			}
		})
	}

	if rec := doJSON(t, handler, http.MethodDelete, "/rest/v1/profiles/me", "maria", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d: %s", rec.Code, rec.Body)
	}
}
