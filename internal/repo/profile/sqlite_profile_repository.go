package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/database"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/util/slug"
)

// SQLiteProfileRepositoryConfig holds configuration for the SQLite profile repository.
type SQLiteProfileRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/profiles.db"`
}

// SQLiteProfileRepository implements Repository using SQLite as the storage backend.
type SQLiteProfileRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteProfileRepository)(nil)

// SQLiteProfileRepositoryFactory creates a factory function that returns a new SQLiteProfileRepository.
func SQLiteProfileRepositoryFactory(cfg SQLiteProfileRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteProfileRepository(ctx, cfg)
	}
}

// name_key holds the normalized display name; deleted rows get a key derived
// from their id so the name can be reused.
const schema = `
	CREATE TABLE IF NOT EXISTS profiles (
		id         TEXT    PRIMARY KEY,
		name       TEXT    NOT NULL,
		name_key   TEXT    UNIQUE NOT NULL,
		phone      TEXT,
		birth_date TEXT,
		kind       TEXT    NOT NULL,
		city_id    INTEGER,
		image_url  TEXT,
		deleted    INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`

// NewSQLiteProfileRepository creates a new SQLiteProfileRepository with the given configuration.
func NewSQLiteProfileRepository(
	ctx context.Context,
	cfg SQLiteProfileRepositoryConfig,
) (*SQLiteProfileRepository, error) {
	log := logging.GetLogger("repo.profile.sqlite_profile_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := database.OpenSQLite(ctx, cfg.DatabasePath, schema)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	return &SQLiteProfileRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

// CreateProfile implements Repository.CreateProfile using SQLite.
func (r *SQLiteProfileRepository) CreateProfile(ctx context.Context, profile domain.Profile) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (
			id, name, name_key, phone, birth_date, kind, city_id, image_url, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.ID,
		profile.Name,
		slug.NormalizeName(profile.Name),
		profile.Phone,
		profile.BirthDate,
		string(profile.Kind),
		profile.CityID,
		profile.ImageURL,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", classify(err))
	}

	return nil
}

const selectProfile = `
	SELECT id, name, phone, birth_date, kind, city_id, image_url, deleted, created_at
	FROM profiles`

// GetProfile implements Repository.GetProfile using SQLite.
func (r *SQLiteProfileRepository) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	return r.queryProfile(ctx, selectProfile+" WHERE id = ? AND deleted = 0", id)
}

// GetProfileByName implements Repository.GetProfileByName using SQLite.
func (r *SQLiteProfileRepository) GetProfileByName(ctx context.Context, name string) (domain.Profile, error) {
	return r.queryProfile(ctx, selectProfile+" WHERE name_key = ? AND deleted = 0", slug.NormalizeName(name))
}

func (r *SQLiteProfileRepository) queryProfile(
	ctx context.Context,
	query string,
	args ...any,
) (domain.Profile, error) {
	var (
		profile   domain.Profile
		kind      string
		cityID    sql.NullInt64
		createdAt int64
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&profile.ID,
		&profile.Name,
		&profile.Phone,
		&profile.BirthDate,
		&kind,
		&cityID,
		&profile.ImageURL,
		&profile.Deleted,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrProfileNotFound, err)
		}

		return domain.Profile{}, fmt.Errorf("query profile: %w", err) //nolint:exhaustruct
	}

	profile.Kind = domain.AccountKind(kind)
	profile.CreatedAt = time.Unix(createdAt, 0).UTC()

	if cityID.Valid {
		code := int(cityID.Int64)
		profile.CityID = &code
	}

	return profile, nil
}

// NameAvailable implements Repository.NameAvailable using SQLite.
func (r *SQLiteProfileRepository) NameAvailable(ctx context.Context, name string) (bool, error) {
	var count int

	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM profiles WHERE name_key = ?",
		slug.NormalizeName(name),
	).Scan(&count); err != nil {
		return false, fmt.Errorf("count profiles: %w", err)
	}

	return count == 0, nil
}

// UpdateProfile implements Repository.UpdateProfile using SQLite.
func (r *SQLiteProfileRepository) UpdateProfile(ctx context.Context, profile domain.Profile) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET name = ?, name_key = ?, phone = ?, birth_date = ?, kind = ?, city_id = ?, image_url = ?
		WHERE id = ? AND deleted = 0`,
		profile.Name,
		slug.NormalizeName(profile.Name),
		profile.Phone,
		profile.BirthDate,
		string(profile.Kind),
		profile.CityID,
		profile.ImageURL,
		profile.ID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", classify(err))
	}

	return requireRow(res)
}

// DeleteProfile implements Repository.DeleteProfile using SQLite.
func (r *SQLiteProfileRepository) DeleteProfile(ctx context.Context, id string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx,
		"UPDATE profiles SET deleted = 1, name_key = 'deleted:' || id WHERE id = ? AND deleted = 0",
		id,
	)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	return requireRow(res)
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteProfileRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func classify(err error) error {
	switch {
	case database.IsPrimaryKeyViolation(err):
		return errors.Join(domain.ErrProfileAlreadyExists, err)
	case database.IsUniqueViolation(err):
		return errors.Join(domain.ErrProfileNameTaken, err)
	default:
		return err
	}
}

func requireRow(res sql.Result) error {
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrProfileNotFound
	}

	return nil
}
