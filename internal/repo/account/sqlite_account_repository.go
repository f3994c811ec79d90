package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/database"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// SQLiteAccountRepositoryConfig holds configuration for the SQLite account repository.
type SQLiteAccountRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/accounts.db"`
}

// SQLiteAccountRepository implements Repository using SQLite as the storage backend.
type SQLiteAccountRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteAccountRepository)(nil)

// SQLiteAccountRepositoryFactory creates a factory function that returns a new SQLiteAccountRepository.
func SQLiteAccountRepositoryFactory(cfg SQLiteAccountRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteAccountRepository(ctx, cfg)
	}
}

const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id                   TEXT    PRIMARY KEY,
		email                TEXT    UNIQUE NOT NULL,
		password_hash        BLOB    NOT NULL,
		role                 TEXT    NOT NULL DEFAULT '',
		confirmation_token   TEXT    NOT NULL DEFAULT '',
		confirmation_sent_at INTEGER NOT NULL DEFAULT 0,
		email_confirmed_at   INTEGER NOT NULL DEFAULT 0,
		created_at           INTEGER NOT NULL
	)`

const tokenIndex = `
	CREATE INDEX IF NOT EXISTS accounts_confirmation_token
	ON accounts (confirmation_token) WHERE confirmation_token != ''`

// NewSQLiteAccountRepository creates a new SQLiteAccountRepository with the given configuration.
// It initializes the database connection and creates the schema if needed.
func NewSQLiteAccountRepository(
	ctx context.Context,
	cfg SQLiteAccountRepositoryConfig,
) (*SQLiteAccountRepository, error) {
	log := logging.GetLogger("repo.account.sqlite_account_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := database.OpenSQLite(ctx, cfg.DatabasePath, schema, tokenIndex)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	return &SQLiteAccountRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

// CreateAccount implements Repository.CreateAccount using SQLite.
func (r *SQLiteAccountRepository) CreateAccount(ctx context.Context, account domain.Account) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, password_hash, role,
			confirmation_token, confirmation_sent_at, email_confirmed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		normalizeEmail(account.Email),
		account.PasswordHash,
		account.Role,
		account.ConfirmationToken,
		account.ConfirmationSentAt,
		account.EmailConfirmedAt,
		account.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) || database.IsPrimaryKeyViolation(err) {
			err = errors.Join(domain.ErrAccountAlreadyExists, err)
		}

		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

const selectAccount = `
	SELECT id, email, password_hash, role,
	       confirmation_token, confirmation_sent_at, email_confirmed_at, created_at
	FROM accounts`

// GetAccountByID implements Repository.GetAccountByID using SQLite.
func (r *SQLiteAccountRepository) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return r.queryAccount(ctx, selectAccount+" WHERE id = ?", id)
}

// GetAccountByEmail implements Repository.GetAccountByEmail using SQLite.
func (r *SQLiteAccountRepository) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.queryAccount(ctx, selectAccount+" WHERE email = ?", normalizeEmail(email))
}

// GetAccountByConfirmationToken implements Repository.GetAccountByConfirmationToken using SQLite.
func (r *SQLiteAccountRepository) GetAccountByConfirmationToken(
	ctx context.Context,
	token string,
) (domain.Account, error) {
	if token == "" {
		return domain.Account{}, domain.ErrAccountNotFound //nolint:exhaustruct
	}

	return r.queryAccount(ctx, selectAccount+" WHERE confirmation_token = ?", token)
}

func (r *SQLiteAccountRepository) queryAccount(
	ctx context.Context,
	query string,
	args ...any,
) (domain.Account, error) {
	var account domain.Account

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.ConfirmationToken,
		&account.ConfirmationSentAt,
		&account.EmailConfirmedAt,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrAccountNotFound, err)
		}

		return domain.Account{}, fmt.Errorf("query account: %w", err) //nolint:exhaustruct
	}

	return account, nil
}

// SetConfirmationToken implements Repository.SetConfirmationToken using SQLite.
func (r *SQLiteAccountRepository) SetConfirmationToken(ctx context.Context, id, token string, sentAt int64) error {
	return r.update(ctx,
		"UPDATE accounts SET confirmation_token = ?, confirmation_sent_at = ? WHERE id = ?",
		token, sentAt, id,
	)
}

// ConfirmEmail implements Repository.ConfirmEmail using SQLite.
func (r *SQLiteAccountRepository) ConfirmEmail(ctx context.Context, id string, confirmedAt int64) error {
	return r.update(ctx,
		"UPDATE accounts SET email_confirmed_at = ?, confirmation_token = '' WHERE id = ?",
		confirmedAt, id,
	)
}

// SetRole implements Repository.SetRole using SQLite.
func (r *SQLiteAccountRepository) SetRole(ctx context.Context, id, role string) error {
	return r.update(ctx, "UPDATE accounts SET role = ? WHERE id = ?", role, id)
}

func (r *SQLiteAccountRepository) update(ctx context.Context, query string, args ...any) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteAccountRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
