package eventsvc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkrupp/eventhub/internal/domain"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
	"github.com/mkrupp/eventhub/internal/svc/eventsvc"
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

	handler := eventsvc.NewHTTPTransport(setupEventService(t), stubAuthClient{
		"maria": {ID: "organizer"},                     //nolint:exhaustruct
		"joao":  {ID: "attendee"},                      //nolint:exhaustruct
		"root":  {ID: "admin", Role: domain.RoleAdmin}, //nolint:exhaustruct
	})

	rec := doJSON(t, handler, http.MethodPost, "/rest/v1/events", "maria", newEvent("Festa junina", 10))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}

	e := decode[domain.Event](t, rec)
	eventURL := "/rest/v1/events/" + e.ID

	if rec := doJSON(t, handler, http.MethodGet, eventURL, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("anonymous get of pending event = %d", rec.Code)
	}

	if rec := doJSON(t, handler, http.MethodGet, eventURL, "maria", nil); rec.Code != http.StatusOK {
		t.Errorf("creator get of pending event = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodGet, "/rest/v1/admin/events/pending", "root", nil)
	if got := decode[[]domain.EventDetails](t, rec); rec.Code != http.StatusOK || len(got) != 1 {
		t.Errorf("pending = %d %+v", rec.Code, got)
	}

	if rec := doJSON(t, handler, http.MethodPost, "/rest/v1/admin/events/"+e.ID+"/approve", "root", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodGet, "/rest/v1/feed?name=festa&city=3162500&pageSize=5", "", nil)
	if got := decode[domain.FeedPage](t, rec); rec.Code != http.StatusOK || got.Total != 1 || got.Events[0].CreatorName != "Maria Silva" {
		t.Errorf("feed = %d %+v", rec.Code, got)
	}

	rec = doJSON(t, handler, http.MethodPost, eventURL+"/registrations", "joao", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body)
	}

	registration := decode[domain.Registration](t, rec)

	rec = doJSON(t, handler, http.MethodGet, eventURL+"/registrations", "maria", nil)
	if got := decode[[]domain.RegistrationWithUser](t, rec); rec.Code != http.StatusOK || len(got) != 1 {
		t.Errorf("registrations = %d %+v", rec.Code, got)
	}

	for _, step := range []struct{ method, target, token string }{
		{http.MethodPost, "/rest/v1/registrations/" + registration.ID + "/confirm", "maria"},
		{http.MethodPost, eventURL + "/held", "maria"},
	} {
		if rec := doJSON(t, handler, step.method, step.target, step.token, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("%s %s = %d: %s", step.method, step.target, rec.Code, rec.Body)
		}
	}

	rec = doJSON(t, handler, http.MethodPost, eventURL+"/reviews", "joao", domain.ReviewRequest{Rating: 4}) //nolint:exhaustruct
	if rec.Code != http.StatusCreated {
		t.Fatalf("review status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, handler, http.MethodGet, eventURL+"/reviews", "", nil)
	if got := decode[[]domain.ReviewWithUser](t, rec); rec.Code != http.StatusOK || len(got) != 1 || got[0].Rating != 4 {
		t.Errorf("reviews = %d %+v", rec.Code, got)
	}

	rec = doJSON(t, handler, http.MethodGet, "/rest/v1/registrations/mine", "joao", nil)
	if got := decode[[]domain.RegistrationWithEvent](t, rec); rec.Code != http.StatusOK || len(got) != 1 || !got[0].EventHeld {
		t.Errorf("my registrations = %d %+v", rec.Code, got)
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
		{"anonymous create", http.MethodPost, "/rest/v1/events", "", newEvent("x", 1), http.StatusUnauthorized, "no_auth_token"},
		{"bad token on get", http.MethodGet, eventURL, "nope", nil, http.StatusUnauthorized, "invalid_auth_token"},
		{"not admin", http.MethodGet, "/rest/v1/admin/events/pending", "maria", nil, http.StatusForbidden, "unauthorized"},
		{"foreign update", http.MethodPatch, eventURL, "joao", domain.EventUpdate{Field: domain.EventFieldName, Value: "x"}, http.StatusForbidden, "not_event_owner"}, //nolint:lll
		{"register after held", http.MethodPost, eventURL + "/registrations", "root", nil, http.StatusConflict, "event_closed"},
		{"review twice", http.MethodPost, eventURL + "/reviews", "joao", domain.ReviewRequest{Rating: 4}, http.StatusConflict, "already_reviewed"}, //nolint:exhaustruct
		{"bad page", http.MethodGet, "/rest/v1/feed?page=two", "", nil, http.StatusBadRequest, "bad_request"},
		{"unknown event", http.MethodGet, "/rest/v1/events/00000000-0000-0000-0000-000000000000", "", nil, http.StatusNotFound, "event_not_found"},
		{"too many images", http.MethodPost, eventURL + "/images", "maria", domain.EventImagesRequest{URLs: []string{
			"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11",
		}}, http.StatusBadRequest, "too_many_images"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.target, tt.token, tt.body)
			if got := decode[http_.ErrorResponse](t, rec); rec.Code != tt.wantStatus || got.Code != tt.wantCode {
				t.Errorf("%s %s = %d %+v, want %d %s", tt.method, tt.target, rec.Code, got, tt.wantStatus, tt.wantCode)
			}
		})
	}

	if rec := doJSON(t, handler, http.MethodDelete, eventURL, "maria", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d: %s", rec.Code, rec.Body)
	}
}
