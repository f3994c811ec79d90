package municipality

import (
	"context"
	"database/sql"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/database"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/util/slug"
)

//go:embed seed/*.csv
var seedFS embed.FS

// SQLiteMunicipalityRepositoryConfig holds configuration for the SQLite municipality repository.
type SQLiteMunicipalityRepositoryConfig struct {
	// DatabasePath is the SQLite database the reference data is loaded into
	DatabasePath string `env:"DATABASE_PATH" default:":memory:"`

	// SeedDir optionally points to a directory holding states.csv and
	// municipalities.csv; the embedded dataset is used when empty
	SeedDir string `env:"SEED_DIR" default:""`
}

// SQLiteMunicipalityRepository implements Repository on top of SQLite. The
// tables are seeded on first open and are read-only afterwards.
type SQLiteMunicipalityRepository struct {
	db  *sql.DB
	log logging.Logger
}

var _ Repository = (*SQLiteMunicipalityRepository)(nil)

// SQLiteMunicipalityRepositoryFactory creates a factory function that returns a new SQLiteMunicipalityRepository.
func SQLiteMunicipalityRepositoryFactory(cfg SQLiteMunicipalityRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewSQLiteMunicipalityRepository(ctx, cfg)
	}
}

// name_search holds the case-folded name matched by Search.
//
//nolint:gochecknoglobals
var schema = []string{`
	CREATE TABLE IF NOT EXISTS states (
		code INTEGER PRIMARY KEY,
		uf   TEXT    UNIQUE NOT NULL,
		name TEXT    NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS municipalities (
		code        INTEGER PRIMARY KEY,
		name        TEXT    NOT NULL,
		name_search TEXT    NOT NULL,
		state_code  INTEGER NOT NULL REFERENCES states (code)
	)`,
	"CREATE INDEX IF NOT EXISTS municipalities_name ON municipalities (name)",
}

// NewSQLiteMunicipalityRepository opens the database and seeds it when empty.
func NewSQLiteMunicipalityRepository(
	ctx context.Context,
	cfg SQLiteMunicipalityRepositoryConfig,
) (*SQLiteMunicipalityRepository, error) {
	log := logging.GetLogger("repo.municipality.sqlite_municipality_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := database.OpenSQLite(ctx, cfg.DatabasePath, schema...)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	repo := &SQLiteMunicipalityRepository{db: db, log: log}

	seed := fs.FS(seedFS)
	if cfg.SeedDir != "" {
		seed = os.DirFS(cfg.SeedDir)
	} else if seed, err = fs.Sub(seedFS, "seed"); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("open embedded seed: %w", err)
	}

	if err := repo.seed(ctx, seed); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("seed: %w", err)
	}

	return repo, nil
}

func (r *SQLiteMunicipalityRepository) seed(ctx context.Context, seed fs.FS) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM states").Scan(&count); err != nil {
		return fmt.Errorf("count states: %w", err)
	}

	if count > 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	states, err := loadCSV(seed, "states.csv", func(rec []string) ([]any, error) {
		code, err := strconv.Atoi(rec[0])

		return []any{code, strings.ToUpper(rec[1]), rec[2]}, err
	})
	if err != nil {
		return err
	}

	for _, args := range states {
		if _, err := tx.ExecContext(ctx, "INSERT INTO states (code, uf, name) VALUES (?, ?, ?)", args...); err != nil {
			return fmt.Errorf("insert state: %w", err)
		}
	}

	municipalities, err := loadCSV(seed, "municipalities.csv", func(rec []string) ([]any, error) {
		code, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, err
		}

		stateCode, err := strconv.Atoi(rec[2])

		return []any{code, rec[1], slug.Fold(rec[1]), stateCode}, err
	})
	if err != nil {
		return err
	}

	for _, args := range municipalities {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO municipalities (code, name, name_search, state_code) VALUES (?, ?, ?, ?)",
			args...,
		); err != nil {
			return fmt.Errorf("insert municipality: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.log.Info("seeded reference data", "states", len(states), "municipalities", len(municipalities))

	return nil
}

// loadCSV reads a three-column CSV file with a header row.
func loadCSV(seed fs.FS, name string, row func([]string) ([]any, error)) ([][]any, error) {
	f, err := seed.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3
	reader.ReuseRecord = true

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}

	var rows [][]any

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		} else if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		args, err := row(rec)
		if err != nil {
			line, _ := reader.FieldPos(0)

			return nil, fmt.Errorf("parse %s line %d: %w", name, line, err)
		}

		rows = append(rows, args)
	}
}

const selectMunicipality = `
	SELECT m.code, m.name, m.state_code, s.uf
	FROM municipalities m JOIN states s ON s.code = m.state_code`

// Search implements Repository.Search using SQLite.
func (r *SQLiteMunicipalityRepository) Search(
	ctx context.Context,
	query string,
	limit int,
) ([]domain.Municipality, error) {
	rows, err := r.db.QueryContext(ctx,
		selectMunicipality+` WHERE instr(m.name_search, ?) > 0 ORDER BY m.name LIMIT ?`,
		slug.Fold(query),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query municipalities: %w", err)
	}
	defer rows.Close()

	var found []domain.Municipality

	for rows.Next() {
		var m domain.Municipality
		if err := rows.Scan(&m.Code, &m.Name, &m.StateCode, &m.UF); err != nil {
			return nil, fmt.Errorf("scan municipality: %w", err)
		}

		found = append(found, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate municipalities: %w", err)
	}

	return found, nil
}

// Get implements Repository.Get using SQLite.
func (r *SQLiteMunicipalityRepository) Get(ctx context.Context, code int) (domain.Municipality, error) {
	var m domain.Municipality

	err := r.db.QueryRowContext(ctx, selectMunicipality+" WHERE m.code = ?", code).
		Scan(&m.Code, &m.Name, &m.StateCode, &m.UF)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrMunicipalityNotFound, err)
		}

		return domain.Municipality{}, fmt.Errorf("query municipality: %w", err) //nolint:exhaustruct
	}

	return m, nil
}

// States implements Repository.States using SQLite.
func (r *SQLiteMunicipalityRepository) States(ctx context.Context) ([]domain.State, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT code, uf, name FROM states ORDER BY uf")
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	var states []domain.State

	for rows.Next() {
		var s domain.State
		if err := rows.Scan(&s.Code, &s.UF, &s.Name); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}

		states = append(states, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}

	return states, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteMunicipalityRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
