package domain

import (
	"errors"
	"time"
)

var (
	// ErrInvalidRating is returned for ratings outside MinRating..MaxRating.
	ErrInvalidRating = errors.New("invalid rating")
	// ErrAlreadyReviewed is returned when a user reviews an event twice.
	ErrAlreadyReviewed = errors.New("already reviewed")
	// ErrNotEligibleToReview is returned unless the user attended the held event.
	ErrNotEligibleToReview = errors.New("not eligible to review")
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a rating left by a confirmed attendee of a held event.
type Review struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the rating bounds.
func (r Review) Validate() error {
	if r.Rating < MinRating || r.Rating > MaxRating {
		return ErrInvalidRating
	}

	return nil
}

// ReviewWithUser is a review joined with its author's name.
type ReviewWithUser struct {
	Review
	UserName string `json:"userName"`
}

// ReviewRequest is the payload of a new review.
type ReviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty"`
}
