package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/database"
)

// CreateRegistration implements Repository.CreateRegistration using SQLite.
func (r *SQLiteEventRepository) CreateRegistration(ctx context.Context, registration domain.Registration) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO registrations (id, event_id, user_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		registration.ID,
		registration.EventID,
		registration.UserID,
		string(registration.Status),
		registration.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			err = errors.Join(domain.ErrAlreadyRegistered, err)
		}

		return fmt.Errorf("insert registration: %w", err)
	}

	return nil
}

const selectRegistration = `
	SELECT id, event_id, user_id, status, created_at FROM registrations`

// GetRegistration implements Repository.GetRegistration using SQLite.
func (r *SQLiteEventRepository) GetRegistration(ctx context.Context, id string) (domain.Registration, error) {
	registrations, err := r.queryRegistrations(ctx, selectRegistration+" WHERE id = ?", id)
	if err != nil {
		return domain.Registration{}, err //nolint:exhaustruct
	}

	if len(registrations) == 0 {
		return domain.Registration{}, domain.ErrRegistrationNotFound //nolint:exhaustruct
	}

	return registrations[0], nil
}

// ListRegistrationsByEvent implements Repository.ListRegistrationsByEvent using SQLite.
func (r *SQLiteEventRepository) ListRegistrationsByEvent(
	ctx context.Context,
	eventID string,
) ([]domain.Registration, error) {
	return r.queryRegistrations(ctx,
		selectRegistration+" WHERE event_id = ? ORDER BY created_at, rowid", eventID)
}

// ListRegistrationsByUser implements Repository.ListRegistrationsByUser using SQLite.
func (r *SQLiteEventRepository) ListRegistrationsByUser(
	ctx context.Context,
	userID string,
) ([]domain.Registration, error) {
	return r.queryRegistrations(ctx,
		selectRegistration+" WHERE user_id = ? ORDER BY created_at DESC, rowid DESC", userID)
}

// ConfirmRegistration implements Repository.ConfirmRegistration using SQLite.
// The capacity check and the update run in one transaction.
func (r *SQLiteEventRepository) ConfirmRegistration(ctx context.Context, id string, capacity *int) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var eventID, status string
	if err := tx.QueryRowContext(ctx,
		"SELECT event_id, status FROM registrations WHERE id = ?", id,
	).Scan(&eventID, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrRegistrationNotFound, err)
		}

		return fmt.Errorf("query registration: %w", err)
	}

	switch domain.RegistrationStatus(status) {
	case domain.RegistrationConfirmed:
		return tx.Commit() //nolint:wrapcheck
	case domain.RegistrationPending, domain.RegistrationExpired:
	}

	if capacity != nil {
		var confirmed int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM registrations WHERE event_id = ? AND status = ?",
			eventID, string(domain.RegistrationConfirmed),
		).Scan(&confirmed); err != nil {
			return fmt.Errorf("count confirmed: %w", err)
		}

		if confirmed >= *capacity {
			return domain.ErrEventFull
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE registrations SET status = ? WHERE id = ?",
		string(domain.RegistrationConfirmed), id,
	); err != nil {
		return fmt.Errorf("update registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// DeleteRegistration implements Repository.DeleteRegistration using SQLite.
func (r *SQLiteEventRepository) DeleteRegistration(ctx context.Context, id string) error {
	return r.exec(ctx, domain.ErrRegistrationNotFound, "DELETE FROM registrations WHERE id = ?", id)
}

func (r *SQLiteEventRepository) queryRegistrations(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.Registration, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	registrations := []domain.Registration{}

	for rows.Next() {
		var (
			registration domain.Registration
			status       string
			createdAt    int64
		)

		if err := rows.Scan(
			&registration.ID, &registration.EventID, &registration.UserID, &status, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}

		registration.Status = domain.RegistrationStatus(status)
		registration.CreatedAt = time.UnixMilli(createdAt).UTC()
		registrations = append(registrations, registration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}

	return registrations, nil
}
