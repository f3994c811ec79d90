// Package eventsvc publishes events, moderates them and manages the
// registrations and reviews of their attendees.
package eventsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/repo/event"
)

// ProfileLookup resolves account IDs to profiles.
type ProfileLookup interface {
	Lookup(ctx context.Context, id string) (domain.Profile, error)
}

// CityLookup resolves IBGE codes to municipalities.
type CityLookup interface {
	Get(ctx context.Context, code int) (domain.Municipality, error)
}

// EventService implements the event, moderation, registration and review
// operations. The acting user is taken from the context.
type EventService struct {
	eventRepo event.Repository
	profiles  ProfileLookup
	cities    CityLookup
	log       logging.Logger

	// Now returns the current time. It is replaced in tests.
	Now func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(
	ctx context.Context,
	repoFactory event.RepositoryFactory,
	profiles ProfileLookup,
	cities CityLookup,
) (*EventService, error) {
	eventRepo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new event repository: %w", err)
	}

	return &EventService{
		eventRepo: eventRepo,
		profiles:  profiles,
		cities:    cities,
		log:       logging.GetLogger("svc.eventsvc.event_service"),
		Now:       time.Now,
	}, nil
}

// Create publishes a new event of the signed-in user. It stays invisible to
// the feed until an admin approves it.
func (eventSvc *EventService) Create(ctx context.Context, e domain.Event) (_ domain.Event, err error) {
	log := eventSvc.log.With(logging.Group("event", "name", e.Name))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "event create failed", "error", err)
		} else {
			log.InfoContext(ctx, "event created", "id", e.ID)
		}
	}()

	user, err := currentUser(ctx)
	if err != nil {
		return domain.Event{}, err
	}

	images := e.ImageURLs
	e.ImageURLs = nil

	if err := e.AddImages(images...); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}

	e.ID = uuid.NewString()
	e.CreatorID = user.ID
	e.Approved = false
	e.Held = false
	e.Deleted = false
	e.CreatedAt = eventSvc.Now().UTC().Truncate(time.Millisecond)

	if err := e.Validate(); err != nil {
		return domain.Event{}, err
	}

	if err := eventSvc.eventRepo.CreateEvent(ctx, e); err != nil {
		return domain.Event{}, fmt.Errorf("create event: %w", err)
	}

	return e, nil
}

// Get returns an event with its creator and city. Events awaiting approval
// are only visible to their creator and to admins.
func (eventSvc *EventService) Get(ctx context.Context, id string) (domain.EventDetails, error) {
	e, err := eventSvc.eventRepo.GetEvent(ctx, id)
	if err != nil {
		return domain.EventDetails{}, fmt.Errorf("get event: %w", err)
	}

	if !e.Approved && !eventSvc.mayModify(ctx, e) {
		return domain.EventDetails{}, fmt.Errorf("%w: %s awaits approval", domain.ErrEventNotFound, id)
	}

	details, err := eventSvc.details(ctx, []domain.Event{e})
	if err != nil {
		return domain.EventDetails{}, err
	}

	return details[0], nil
}

// Update changes a single field of an event of the signed-in user.
func (eventSvc *EventService) Update(
	ctx context.Context,
	id string,
	update domain.EventUpdate,
) (_ domain.Event, err error) {
	log := eventSvc.log.With(logging.Group("event", "id", id, "field", update.Field))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "event update failed", "error", err)
		} else {
			log.DebugContext(ctx, "event updated")
		}
	}()

	e, err := eventSvc.ownEvent(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}

	if err := update.Field.Apply(&e, update.Value); err != nil {
		return domain.Event{}, fmt.Errorf("apply %s: %w", update.Field, err)
	}

	if err := eventSvc.eventRepo.UpdateEvent(ctx, e); err != nil {
		return domain.Event{}, fmt.Errorf("update event: %w", err)
	}

	return e, nil
}

// AddImages appends gallery images to an event of the signed-in user.
// URLs already in the gallery are skipped.
func (eventSvc *EventService) AddImages(ctx context.Context, id string, urls []string) (domain.Event, error) {
	e, err := eventSvc.ownEvent(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}

	if err := e.AddImages(urls...); err != nil {
		return domain.Event{}, fmt.Errorf("add images: %w", err)
	}

	if err := eventSvc.eventRepo.UpdateEvent(ctx, e); err != nil {
		return domain.Event{}, fmt.Errorf("update event: %w", err)
	}

	return e, nil
}

// Delete soft-deletes an event. Creators and admins may delete.
func (eventSvc *EventService) Delete(ctx context.Context, id string) (err error) {
	defer func() {
		if err != nil {
			eventSvc.log.ErrorContext(ctx, "event delete failed", "id", id, "error", err)
		} else {
			eventSvc.log.InfoContext(ctx, "event deleted", "id", id)
		}
	}()

	e, err := eventSvc.eventRepo.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	if !eventSvc.mayModify(ctx, e) {
		return domain.ErrNotEventOwner
	}

	if err := eventSvc.eventRepo.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	return nil
}

// MarkHeld records that an event of the signed-in user took place. Pending
// registrations expire and confirmed attendees may review it.
func (eventSvc *EventService) MarkHeld(ctx context.Context, id string) (err error) {
	defer func() {
		if err != nil {
			eventSvc.log.ErrorContext(ctx, "mark held failed", "id", id, "error", err)
		} else {
			eventSvc.log.InfoContext(ctx, "event held", "id", id)
		}
	}()

	if _, err := eventSvc.ownEvent(ctx, id); err != nil {
		return err
	}

	if err := eventSvc.eventRepo.MarkHeld(ctx, id); err != nil {
		return fmt.Errorf("mark held: %w", err)
	}

	return nil
}

// Mine returns the events created by the signed-in user, newest first.
func (eventSvc *EventService) Mine(ctx context.Context) ([]domain.Event, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	events, err := eventSvc.eventRepo.ListByCreator(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list by creator: %w", err)
	}

	return events, nil
}

// Feed returns one page of approved events that did not take place yet.
func (eventSvc *EventService) Feed(ctx context.Context, query domain.FeedQuery) (domain.FeedPage, error) {
	query = query.Normalize()

	events, total, err := eventSvc.eventRepo.ListFeed(ctx, query)
	if err != nil {
		return domain.FeedPage{}, fmt.Errorf("list feed: %w", err)
	}

	details, err := eventSvc.details(ctx, events)
	if err != nil {
		return domain.FeedPage{}, err
	}

	return domain.FeedPage{
		Events:     details,
		Page:       query.Page,
		TotalPages: domain.TotalPages(total, query.PageSize),
		Total:      total,
	}, nil
}

// Close releases the event repository.
func (eventSvc *EventService) Close() error {
	if err := eventSvc.eventRepo.Close(); err != nil {
		return fmt.Errorf("close event repository: %w", err)
	}

	return nil
}

// ownEvent returns the event if the signed-in user created it.
func (eventSvc *EventService) ownEvent(ctx context.Context, id string) (domain.Event, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return domain.Event{}, err
	}

	e, err := eventSvc.eventRepo.GetEvent(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}

	if e.CreatorID != user.ID {
		return domain.Event{}, fmt.Errorf("%w: %s", domain.ErrNotEventOwner, id)
	}

	return e, nil
}

// mayModify reports whether the user in ctx created e or is an admin.
func (eventSvc *EventService) mayModify(ctx context.Context, e domain.Event) bool {
	user, ok := context_.UserFromContext(ctx)

	return ok && (user.ID == e.CreatorID || user.IsAdmin())
}

func currentUser(ctx context.Context) (domain.User, error) {
	user, ok := context_.UserFromContext(ctx)
	if !ok || user.ID == "" {
		return domain.User{}, errors.Join(domain.ErrUnauthorized, domain.ErrNoSession)
	}

	return user, nil
}
