package event

import (
	"context"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Repository defines the interface for events, their registrations and reviews.
// Deleted events are invisible to every read.
type Repository interface {
	CreateEvent(ctx context.Context, event domain.Event) error
	// GetEvent returns the event or domain.ErrEventNotFound.
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	// UpdateEvent replaces every mutable column of the event.
	UpdateEvent(ctx context.Context, event domain.Event) error
	// DeleteEvent soft-deletes the event.
	DeleteEvent(ctx context.Context, id string) error
	// MarkHeld flags the event as held and expires its pending registrations.
	MarkHeld(ctx context.Context, id string) error

	// ListFeed returns one page of approved, not held events and the total
	// number of matching events.
	ListFeed(ctx context.Context, query domain.FeedQuery) ([]domain.Event, int, error)
	// ListPending returns events awaiting moderation, oldest first.
	ListPending(ctx context.Context) ([]domain.Event, error)
	// ListByCreator returns the events of an organizer, newest first.
	ListByCreator(ctx context.Context, creatorID string) ([]domain.Event, error)

	// CreateRegistration returns domain.ErrAlreadyRegistered for a second
	// registration of the same user.
	CreateRegistration(ctx context.Context, registration domain.Registration) error
	// GetRegistration returns the registration or domain.ErrRegistrationNotFound.
	GetRegistration(ctx context.Context, id string) (domain.Registration, error)
	// ListRegistrationsByEvent returns registrations in creation order.
	ListRegistrationsByEvent(ctx context.Context, eventID string) ([]domain.Registration, error)
	// ListRegistrationsByUser returns a user's registrations, newest first.
	ListRegistrationsByUser(ctx context.Context, userID string) ([]domain.Registration, error)
	// ConfirmRegistration confirms a pending registration unless capacity
	// confirmed registrations exist already (domain.ErrEventFull). A nil
	// capacity is unlimited.
	ConfirmRegistration(ctx context.Context, id string, capacity *int) error
	DeleteRegistration(ctx context.Context, id string) error

	// CreateReview returns domain.ErrAlreadyReviewed for a second review of
	// the same user.
	CreateReview(ctx context.Context, review domain.Review) error
	ListReviewsByEvent(ctx context.Context, eventID string) ([]domain.Review, error)
	ListReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)
