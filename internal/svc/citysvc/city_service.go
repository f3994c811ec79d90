// Package citysvc looks up Brazilian municipalities by name or IBGE code.
package citysvc

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/repo/municipality"
)

// CityService answers municipality lookups from the reference data.
type CityService struct {
	repo municipality.Repository
	log  logging.Logger
}

// NewCityService creates a new CityService.
func NewCityService(ctx context.Context, repoFactory municipality.RepositoryFactory) (*CityService, error) {
	repo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new municipality repository: %w", err)
	}

	return &CityService{
		repo: repo,
		log:  logging.GetLogger("svc.citysvc.city_service"),
	}, nil
}

// Search returns up to domain.MaxCitySearchResults municipalities whose name
// contains query. Queries shorter than domain.MinCitySearchLength characters
// match nothing.
func (citySvc *CityService) Search(ctx context.Context, query string) (cities []domain.Municipality, err error) {
	query = strings.TrimSpace(query)
	log := citySvc.log.With(logging.Group("city", "query", query))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "city search failed", "error", err)
		} else {
			log.DebugContext(ctx, "city search done", "results", len(cities))
		}
	}()

	if utf8.RuneCountInString(query) < domain.MinCitySearchLength {
		return []domain.Municipality{}, nil
	}

	cities, err = citySvc.repo.Search(ctx, query, domain.MaxCitySearchResults)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return cities, nil
}

// Get returns the municipality with the IBGE code.
func (citySvc *CityService) Get(ctx context.Context, code int) (domain.Municipality, error) {
	city, err := citySvc.repo.Get(ctx, code)
	if err != nil {
		return domain.Municipality{}, fmt.Errorf("get city %d: %w", code, err)
	}

	return city, nil
}

// States returns every federative unit.
func (citySvc *CityService) States(ctx context.Context) ([]domain.State, error) {
	states, err := citySvc.repo.States(ctx)
	if err != nil {
		return nil, fmt.Errorf("states: %w", err)
	}

	return states, nil
}

// Close releases the municipality repository.
func (citySvc *CityService) Close() error {
	if err := citySvc.repo.Close(); err != nil {
		return fmt.Errorf("close municipality repository: %w", err)
	}

	return nil
}
