package citysvc_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/repo/municipality"
	"github.com/mkrupp/eventhub/internal/svc/citysvc"
)

func setupCityService(t *testing.T) *citysvc.CityService {
	t.Helper()

	svc, err := citysvc.NewCityService(context.Background(),
		municipality.SQLiteMunicipalityRepositoryFactory(municipality.SQLiteMunicipalityRepositoryConfig{
			DatabasePath: ":memory:",
			SeedDir:      "",
		}))
	if err != nil {
		t.Fatalf("new city service: %v", err)
	}

	t.Cleanup(func() { _ = svc.Close() })

	return svc
}

func TestCityService_Search(t *testing.T) {
	t.Parallel()

	svc := setupCityService(t)

	tests := []struct {
		query     string
		wantCount int
		wantFirst string
	}{
		{"", 0, ""},
		{"s", 0, ""},
		{" ã ", 0, ""},
		{"são", 6, "São Bernardo do Campo"},
		{"  CAMPO ", 3, "Campo Grande"},
		{"an", domain.MaxCitySearchResults, ""},
		{"xyz", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()

			got, err := svc.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}

			if len(got) != tt.wantCount {
				t.Fatalf("Search(%q) returned %d cities, want %d", tt.query, len(got), tt.wantCount)
			}

			if tt.wantFirst != "" && got[0].Name != tt.wantFirst {
				t.Errorf("Search(%q)[0] = %q, want %q", tt.query, got[0].Name, tt.wantFirst)
			}
		})
	}
}

func TestCityService_Get(t *testing.T) {
	t.Parallel()

	svc := setupCityService(t)

	got, err := svc.Get(context.Background(), 3162500)
	if err != nil || got.Name != "São João del-Rei" || got.UF != "MG" {
		t.Errorf("Get() = %+v, %v", got, err)
	}

	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, domain.ErrMunicipalityNotFound) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrMunicipalityNotFound)
	}
}

func TestHTTPTransport(t *testing.T) {
	t.Parallel()

	handler := citysvc.NewHTTPTransport(setupCityService(t))

	tests := []struct {
		target     string
		wantStatus int
		check      func(body []byte) bool
	}{
		{"/rest/v1/cities?q=curi", http.StatusOK, func(body []byte) bool {
			var cities []domain.Municipality

			return json.Unmarshal(body, &cities) == nil && len(cities) == 1 && cities[0].Code == 4106902
		}},
		{"/rest/v1/cities?q=c", http.StatusOK, func(body []byte) bool { return string(body) == "[]\n" }},
		{"/rest/v1/cities/3550308", http.StatusOK, func(body []byte) bool {
			var city domain.Municipality

			return json.Unmarshal(body, &city) == nil && city.UF == "SP"
		}},
		{"/rest/v1/cities/1", http.StatusNotFound, nil},
		{"/rest/v1/cities/abc", http.StatusNotFound, nil},
		{"/rest/v1/states", http.StatusOK, func(body []byte) bool {
			var states []domain.State

			return json.Unmarshal(body, &states) == nil && len(states) == 27
		}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("GET %s status = %d, want %d", tt.target, rec.Code, tt.wantStatus)
			}

			if tt.check != nil && !tt.check(rec.Body.Bytes()) {
				t.Errorf("GET %s body = %s", tt.target, rec.Body)
			}
		})
	}
}
