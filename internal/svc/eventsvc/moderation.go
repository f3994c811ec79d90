package eventsvc

import (
	"context"
	"fmt"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Pending returns the events awaiting approval with their creators, oldest
// first. Admins only.
func (eventSvc *EventService) Pending(ctx context.Context) ([]domain.EventDetails, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	events, err := eventSvc.eventRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	return eventSvc.details(ctx, events)
}

// Approve publishes a pending event to the feed. Admins only.
func (eventSvc *EventService) Approve(ctx context.Context, id string) (err error) {
	defer func() {
		if err != nil {
			eventSvc.log.ErrorContext(ctx, "event approve failed", "id", id, "error", err)
		} else {
			eventSvc.log.InfoContext(ctx, "event approved", "id", id)
		}
	}()

	if err := requireAdmin(ctx); err != nil {
		return err
	}

	e, err := eventSvc.eventRepo.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}

	if e.Approved {
		return nil
	}

	e.Approved = true

	if err := eventSvc.eventRepo.UpdateEvent(ctx, e); err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	return nil
}

// Reject removes a pending event. Admins only.
func (eventSvc *EventService) Reject(ctx context.Context, id string) (err error) {
	defer func() {
		if err != nil {
			eventSvc.log.ErrorContext(ctx, "event reject failed", "id", id, "error", err)
		} else {
			eventSvc.log.InfoContext(ctx, "event rejected", "id", id)
		}
	}()

	if err := requireAdmin(ctx); err != nil {
		return err
	}

	if err := eventSvc.eventRepo.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	return nil
}

func requireAdmin(ctx context.Context) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if !user.IsAdmin() {
		return fmt.Errorf("%w: admin role required", domain.ErrUnauthorized)
	}

	return nil
}
