package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/database"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// SQLiteEventRepositoryConfig holds configuration for the SQLite event repository.
type SQLiteEventRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/events.db"`
}

// SQLiteEventRepository implements Repository using SQLite as the storage backend.
type SQLiteEventRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteEventRepository)(nil)

// SQLiteEventRepositoryFactory creates a factory function that returns a new SQLiteEventRepository.
func SQLiteEventRepositoryFactory(cfg SQLiteEventRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteEventRepository(ctx, cfg)
	}
}

// Timestamps are unix milliseconds.
var schema = []string{`
	CREATE TABLE IF NOT EXISTS events (
		id          TEXT    PRIMARY KEY,
		name        TEXT    NOT NULL,
		description TEXT    NOT NULL DEFAULT '',
		city_id     INTEGER,
		capacity    INTEGER,
		free        INTEGER NOT NULL DEFAULT 0,
		held        INTEGER NOT NULL DEFAULT 0,
		approved    INTEGER NOT NULL DEFAULT 0,
		deleted     INTEGER NOT NULL DEFAULT 0,
		starts_at   INTEGER NOT NULL,
		ends_at     INTEGER,
		banner_url  TEXT,
		image_urls  TEXT    NOT NULL DEFAULT '[]',
		creator_id  TEXT    NOT NULL,
		created_at  INTEGER NOT NULL
	)`, `
	CREATE INDEX IF NOT EXISTS events_feed ON events (approved, held, deleted, starts_at)`, `
	CREATE INDEX IF NOT EXISTS events_creator ON events (creator_id)`, `
	CREATE TABLE IF NOT EXISTS registrations (
		id         TEXT    PRIMARY KEY,
		event_id   TEXT    NOT NULL REFERENCES events (id),
		user_id    TEXT    NOT NULL,
		status     TEXT    NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (event_id, user_id)
	)`, `
	CREATE INDEX IF NOT EXISTS registrations_user ON registrations (user_id)`, `
	CREATE TABLE IF NOT EXISTS reviews (
		id         TEXT    PRIMARY KEY,
		event_id   TEXT    NOT NULL REFERENCES events (id),
		user_id    TEXT    NOT NULL,
		rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment    TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE (event_id, user_id)
	)`, `
	CREATE INDEX IF NOT EXISTS reviews_user ON reviews (user_id)`,
}

// NewSQLiteEventRepository creates a new SQLiteEventRepository with the given configuration.
func NewSQLiteEventRepository(
	ctx context.Context,
	cfg SQLiteEventRepositoryConfig,
) (*SQLiteEventRepository, error) {
	log := logging.GetLogger("repo.event.sqlite_event_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := database.OpenSQLite(ctx, cfg.DatabasePath, schema...)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	return &SQLiteEventRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

// CreateEvent implements Repository.CreateEvent using SQLite.
func (r *SQLiteEventRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	imageURLs, err := marshalURLs(event.ImageURLs)
	if err != nil {
		return err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (
			id, name, description, city_id, capacity, free, held, approved, deleted,
			starts_at, ends_at, banner_url, image_urls, creator_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Name,
		event.Description,
		event.CityID,
		event.Capacity,
		database.BoolInt(event.Free),
		database.BoolInt(event.Held),
		database.BoolInt(event.Approved),
		event.StartsAt.UnixMilli(),
		optionalMillis(event.EndsAt),
		event.BannerURL,
		imageURLs,
		event.CreatorID,
		event.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

const selectEvent = `
	SELECT id, name, description, city_id, capacity, free, held, approved, deleted,
	       starts_at, ends_at, banner_url, image_urls, creator_id, created_at
	FROM events`

// GetEvent implements Repository.GetEvent using SQLite.
func (r *SQLiteEventRepository) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	events, err := r.queryEvents(ctx, selectEvent+" WHERE id = ? AND deleted = 0", id)
	if err != nil {
		return domain.Event{}, err //nolint:exhaustruct
	}

	if len(events) == 0 {
		return domain.Event{}, domain.ErrEventNotFound //nolint:exhaustruct
	}

	return events[0], nil
}

// UpdateEvent implements Repository.UpdateEvent using SQLite.
func (r *SQLiteEventRepository) UpdateEvent(ctx context.Context, event domain.Event) error {
	imageURLs, err := marshalURLs(event.ImageURLs)
	if err != nil {
		return err
	}

	return r.exec(ctx, domain.ErrEventNotFound, `
		UPDATE events
		SET name = ?, description = ?, city_id = ?, capacity = ?, free = ?, held = ?, approved = ?,
		    starts_at = ?, ends_at = ?, banner_url = ?, image_urls = ?
		WHERE id = ? AND deleted = 0`,
		event.Name,
		event.Description,
		event.CityID,
		event.Capacity,
		database.BoolInt(event.Free),
		database.BoolInt(event.Held),
		database.BoolInt(event.Approved),
		event.StartsAt.UnixMilli(),
		optionalMillis(event.EndsAt),
		event.BannerURL,
		imageURLs,
		event.ID,
	)
}

// DeleteEvent implements Repository.DeleteEvent using SQLite.
func (r *SQLiteEventRepository) DeleteEvent(ctx context.Context, id string) error {
	return r.exec(ctx, domain.ErrEventNotFound,
		"UPDATE events SET deleted = 1 WHERE id = ? AND deleted = 0", id)
}

// MarkHeld implements Repository.MarkHeld using SQLite.
func (r *SQLiteEventRepository) MarkHeld(ctx context.Context, id string) (err error) {
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

	res, err := tx.ExecContext(ctx, "UPDATE events SET held = 1 WHERE id = ? AND deleted = 0", id)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	if err := requireRow(res, domain.ErrEventNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE registrations SET status = ? WHERE event_id = ? AND status = ?",
		string(domain.RegistrationExpired), id, string(domain.RegistrationPending),
	); err != nil {
		return fmt.Errorf("expire registrations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// ListFeed implements Repository.ListFeed using SQLite.
func (r *SQLiteEventRepository) ListFeed(
	ctx context.Context,
	query domain.FeedQuery,
) ([]domain.Event, int, error) {
	query = query.Normalize()

	where := " WHERE approved = 1 AND held = 0 AND deleted = 0"
	args := []any{}

	if query.Name != "" {
		where += ` AND name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(query.Name)+"%")
	}

	if query.CityID != nil {
		where += " AND city_id = ?"
		args = append(args, *query.CityID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	events, err := r.queryEvents(ctx,
		selectEvent+where+" ORDER BY starts_at, created_at LIMIT ? OFFSET ?",
		append(args, query.PageSize, query.Offset())...,
	)
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

// ListPending implements Repository.ListPending using SQLite.
func (r *SQLiteEventRepository) ListPending(ctx context.Context) ([]domain.Event, error) {
	return r.queryEvents(ctx,
		selectEvent+" WHERE approved = 0 AND held = 0 AND deleted = 0 ORDER BY created_at")
}

// ListByCreator implements Repository.ListByCreator using SQLite.
func (r *SQLiteEventRepository) ListByCreator(ctx context.Context, creatorID string) ([]domain.Event, error) {
	return r.queryEvents(ctx,
		selectEvent+" WHERE creator_id = ? AND deleted = 0 ORDER BY created_at DESC", creatorID)
}

func (r *SQLiteEventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}

	for rows.Next() {
		var (
			event     domain.Event
			cityID    sql.NullInt64
			capacity  sql.NullInt64
			startsAt  int64
			endsAt    sql.NullInt64
			imageURLs string
			createdAt int64
		)

		if err := rows.Scan(
			&event.ID, &event.Name, &event.Description, &cityID, &capacity,
			&event.Free, &event.Held, &event.Approved, &event.Deleted,
			&startsAt, &endsAt, &event.BannerURL, &imageURLs, &event.CreatorID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		event.CityID = optionalInt(cityID)
		event.Capacity = optionalInt(capacity)
		event.StartsAt = time.UnixMilli(startsAt).UTC()
		event.CreatedAt = time.UnixMilli(createdAt).UTC()

		if endsAt.Valid {
			t := time.UnixMilli(endsAt.Int64).UTC()
			event.EndsAt = &t
		}

		if err := json.Unmarshal([]byte(imageURLs), &event.ImageURLs); err != nil {
			return nil, fmt.Errorf("unmarshal image urls: %w", err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

func (r *SQLiteEventRepository) exec(ctx context.Context, notFound error, query string, args ...any) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	return requireRow(res, notFound)
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteEventRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func requireRow(res sql.Result, notFound error) error {
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return notFound
	}

	return nil
}

func marshalURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}

	data, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("marshal image urls: %w", err)
	}

	return string(data), nil
}

func optionalMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}

	ms := t.UnixMilli()

	return &ms
}

func optionalInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}

	n := int(v.Int64)

	return &n
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
