package eventsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/eventhub/internal/domain"
)

// maxLookups bounds the concurrent profile and city lookups of one request.
const maxLookups = 8

// details joins events with the names of their creators and their cities.
// Each distinct creator and city is looked up once. Deleted creators and
// unknown cities are left empty.
func (eventSvc *EventService) details(ctx context.Context, events []domain.Event) ([]domain.EventDetails, error) {
	var (
		m        sync.Mutex
		creators = make(map[string]string)
		cities   = make(map[int]*domain.Municipality)
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxLookups)

	for _, e := range events {
		m.Lock()
		_, seenCreator := creators[e.CreatorID]
		creators[e.CreatorID] = ""
		m.Unlock()

		if !seenCreator {
			group.Go(func() error {
				name, err := eventSvc.profileName(groupCtx, e.CreatorID)

				m.Lock()
				creators[e.CreatorID] = name
				m.Unlock()

				return err
			})
		}

		if e.CityID == nil {
			continue
		}

		code := *e.CityID

		m.Lock()
		_, seenCity := cities[code]
		cities[code] = nil
		m.Unlock()

		if !seenCity {
			group.Go(func() error {
				city, err := eventSvc.city(groupCtx, code)

				m.Lock()
				cities[code] = city
				m.Unlock()

				return err
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("lookup details: %w", err)
	}

	details := make([]domain.EventDetails, len(events))

	for i, e := range events {
		details[i] = domain.EventDetails{Event: e, CreatorName: creators[e.CreatorID]} //nolint:exhaustruct

		if e.CityID != nil {
			details[i].City = cities[*e.CityID]
		}
	}

	return details, nil
}

func (eventSvc *EventService) profileName(ctx context.Context, id string) (string, error) {
	p, err := eventSvc.profiles.Lookup(ctx, id)

	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("lookup profile %s: %w", id, err)
	}

	return p.Name, nil
}

func (eventSvc *EventService) city(ctx context.Context, code int) (*domain.Municipality, error) {
	city, err := eventSvc.cities.Get(ctx, code)

	switch {
	case errors.Is(err, domain.ErrMunicipalityNotFound):
		return nil, nil //nolint:nilnil
	case err != nil:
		return nil, fmt.Errorf("lookup city %d: %w", code, err)
	}

	return &city, nil
}
