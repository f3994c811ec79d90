package eventsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// Register signs the user up for an approved event that did not take place
// yet. The registration is pending until the organizer confirms it.
func (eventSvc *EventService) Register(ctx context.Context, eventID string) (_ domain.Registration, err error) {
	log := eventSvc.log.With(logging.Group("registration", "event", eventID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register failed", "error", err)
		} else {
			log.InfoContext(ctx, "registered")
		}
	}()

	user, err := currentUser(ctx)
	if err != nil {
		return domain.Registration{}, err
	}

	e, err := eventSvc.eventRepo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("get event: %w", err)
	}

	if !e.Approved || e.Held {
		return domain.Registration{}, fmt.Errorf("%w: %s", domain.ErrEventClosed, eventID)
	}

	registration := domain.Registration{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    user.ID,
		Status:    domain.RegistrationPending,
		CreatedAt: eventSvc.Now().UTC().Truncate(time.Millisecond),
	}

	if err := eventSvc.eventRepo.CreateRegistration(ctx, registration); err != nil {
		return domain.Registration{}, fmt.Errorf("create registration: %w", err)
	}

	return registration, nil
}

// Registrations lists the registrations of an event of the signed-in user in
// the order they were made, with the registrants' names and images.
func (eventSvc *EventService) Registrations(ctx context.Context, eventID string) ([]domain.RegistrationWithUser, error) {
	if _, err := eventSvc.ownEvent(ctx, eventID); err != nil {
		return nil, err
	}

	registrations, err := eventSvc.eventRepo.ListRegistrationsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	result := make([]domain.RegistrationWithUser, 0, len(registrations))

	for _, registration := range registrations {
		withUser := domain.RegistrationWithUser{Registration: registration} //nolint:exhaustruct

		p, err := eventSvc.profiles.Lookup(ctx, registration.UserID)

		switch {
		case errors.Is(err, domain.ErrProfileNotFound):
		case err != nil:
			return nil, fmt.Errorf("lookup profile %s: %w", registration.UserID, err)
		default:
			withUser.UserName = p.Name
			withUser.UserImageURL = p.ImageURL
		}

		result = append(result, withUser)
	}

	return result, nil
}

// MyRegistrations lists the signed-in user's registrations, newest first.
// Registrations of deleted events are left out.
func (eventSvc *EventService) MyRegistrations(ctx context.Context) ([]domain.RegistrationWithEvent, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	registrations, err := eventSvc.eventRepo.ListRegistrationsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	result := make([]domain.RegistrationWithEvent, 0, len(registrations))

	for _, registration := range registrations {
		e, err := eventSvc.eventRepo.GetEvent(ctx, registration.EventID)

		switch {
		case errors.Is(err, domain.ErrEventNotFound):
			continue
		case err != nil:
			return nil, fmt.Errorf("get event %s: %w", registration.EventID, err)
		}

		result = append(result, domain.RegistrationWithEvent{
			Registration:  registration,
			EventName:     e.Name,
			EventStartsAt: e.StartsAt,
			EventHeld:     e.Held,
		})
	}

	return result, nil
}

// Confirm accepts a pending registration to an event of the signed-in user.
// It fails with domain.ErrEventFull once the confirmed registrations reach
// the event's capacity; the remaining pending ones form the waitlist.
func (eventSvc *EventService) Confirm(ctx context.Context, registrationID string) (err error) {
	log := eventSvc.log.With(logging.Group("registration", "id", registrationID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "confirm failed", "error", err)
		} else {
			log.InfoContext(ctx, "registration confirmed")
		}
	}()

	registration, err := eventSvc.eventRepo.GetRegistration(ctx, registrationID)
	if err != nil {
		return fmt.Errorf("get registration: %w", err)
	}

	e, err := eventSvc.ownEvent(ctx, registration.EventID)
	if err != nil {
		return err
	}

	if err := eventSvc.eventRepo.ConfirmRegistration(ctx, registrationID, e.Capacity); err != nil {
		return fmt.Errorf("confirm registration: %w", err)
	}

	return nil
}

// CancelRegistration removes a registration. Registrants cancel their own
// until it expires, organizers remove registrations to their events.
func (eventSvc *EventService) CancelRegistration(ctx context.Context, registrationID string) (err error) {
	log := eventSvc.log.With(logging.Group("registration", "id", registrationID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "cancel failed", "error", err)
		} else {
			log.InfoContext(ctx, "registration cancelled")
		}
	}()

	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	registration, err := eventSvc.eventRepo.GetRegistration(ctx, registrationID)
	if err != nil {
		return fmt.Errorf("get registration: %w", err)
	}

	switch {
	case registration.UserID != user.ID:
		if _, err := eventSvc.ownEvent(ctx, registration.EventID); err != nil {
			return err
		}
	case registration.Status == domain.RegistrationExpired:
		return fmt.Errorf("%w: registration expired", domain.ErrEventClosed)
	}

	if err := eventSvc.eventRepo.DeleteRegistration(ctx, registrationID); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}

	return nil
}
