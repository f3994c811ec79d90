package eventsvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Review records the signed-in user's rating of a held event. Only attendees
// with a confirmed registration may review, once.
func (eventSvc *EventService) Review(
	ctx context.Context,
	eventID string,
	req domain.ReviewRequest,
) (_ domain.Review, err error) {
	defer func() {
		if err != nil {
			eventSvc.log.ErrorContext(ctx, "review failed", "event", eventID, "error", err)
		} else {
			eventSvc.log.InfoContext(ctx, "event reviewed", "event", eventID, "rating", req.Rating)
		}
	}()

	user, err := currentUser(ctx)
	if err != nil {
		return domain.Review{}, err
	}

	review := domain.Review{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    user.ID,
		Rating:    req.Rating,
		Comment:   trimmed(req.Comment),
		CreatedAt: eventSvc.Now().UTC().Truncate(time.Millisecond),
	}

	if err := review.Validate(); err != nil {
		return domain.Review{}, err
	}

	e, err := eventSvc.eventRepo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Review{}, fmt.Errorf("get event: %w", err)
	}

	if !e.Held {
		return domain.Review{}, fmt.Errorf("%w: event was not held yet", domain.ErrNotEligibleToReview)
	}

	if err := eventSvc.requireAttended(ctx, eventID, user.ID); err != nil {
		return domain.Review{}, err
	}

	if err := eventSvc.eventRepo.CreateReview(ctx, review); err != nil {
		return domain.Review{}, fmt.Errorf("create review: %w", err)
	}

	return review, nil
}

// Reviews lists the reviews of an event with their authors' names, newest first.
func (eventSvc *EventService) Reviews(ctx context.Context, eventID string) ([]domain.ReviewWithUser, error) {
	reviews, err := eventSvc.eventRepo.ListReviewsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	result := make([]domain.ReviewWithUser, 0, len(reviews))

	for _, review := range reviews {
		name, err := eventSvc.profileName(ctx, review.UserID)
		if err != nil {
			return nil, err
		}

		result = append(result, domain.ReviewWithUser{Review: review, UserName: name})
	}

	return result, nil
}

// MyReviews lists the reviews of the signed-in user, newest first.
func (eventSvc *EventService) MyReviews(ctx context.Context) ([]domain.Review, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	reviews, err := eventSvc.eventRepo.ListReviewsByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	return reviews, nil
}

func (eventSvc *EventService) requireAttended(ctx context.Context, eventID, userID string) error {
	registrations, err := eventSvc.eventRepo.ListRegistrationsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list registrations: %w", err)
	}

	for _, registration := range registrations {
		if registration.EventID == eventID && registration.Status == domain.RegistrationConfirmed {
			return nil
		}
	}

	return fmt.Errorf("%w: no confirmed registration", domain.ErrNotEligibleToReview)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}

	if t := strings.TrimSpace(*s); t != "" {
		return &t
	}

	return nil
}
