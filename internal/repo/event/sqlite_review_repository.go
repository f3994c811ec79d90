package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/database"
)

// CreateReview implements Repository.CreateReview using SQLite.
func (r *SQLiteEventRepository) CreateReview(ctx context.Context, review domain.Review) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (id, event_id, user_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		review.ID,
		review.EventID,
		review.UserID,
		review.Rating,
		review.Comment,
		review.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			err = errors.Join(domain.ErrAlreadyReviewed, err)
		}

		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

const selectReview = `
	SELECT id, event_id, user_id, rating, comment, created_at FROM reviews`

// ListReviewsByEvent implements Repository.ListReviewsByEvent using SQLite.
func (r *SQLiteEventRepository) ListReviewsByEvent(ctx context.Context, eventID string) ([]domain.Review, error) {
	return r.queryReviews(ctx, selectReview+" WHERE event_id = ? ORDER BY created_at DESC", eventID)
}

// ListReviewsByUser implements Repository.ListReviewsByUser using SQLite.
func (r *SQLiteEventRepository) ListReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	return r.queryReviews(ctx, selectReview+" WHERE user_id = ? ORDER BY created_at DESC", userID)
}

func (r *SQLiteEventRepository) queryReviews(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}

	for rows.Next() {
		var (
			review    domain.Review
			createdAt int64
		)

		if err := rows.Scan(
			&review.ID, &review.EventID, &review.UserID, &review.Rating, &review.Comment, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}

		review.CreatedAt = time.UnixMilli(createdAt).UTC()
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}
