package profile_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mkrupp/eventhub/internal/domain"

	. "github.com/mkrupp/eventhub/internal/repo/profile"
)

func setupProfileTestRepo(t *testing.T) *SQLiteProfileRepository {
	t.Helper()

	repo, err := NewSQLiteProfileRepository(context.TODO(), SQLiteProfileRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "profiles.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func newProfile(id, name string) domain.Profile {
	city := 3550308

	return domain.Profile{ //nolint:exhaustruct
		ID:     id,
		Name:   name,
		Kind:   domain.AccountKindClient,
		CityID: &city,
	}
}

func TestSQLiteProfileRepository_Create(t *testing.T) {
	t.Parallel()

	repo := setupProfileTestRepo(t)
	ctx := context.TODO()

	if err := repo.CreateProfile(ctx, newProfile("u1", "Maria Silva")); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	tests := []struct {
		name    string
		profile domain.Profile
		wantErr error
	}{
		{"same account twice", newProfile("u1", "Another Name"), domain.ErrProfileAlreadyExists},
		{"same name differently spaced", newProfile("u2", "  maria   SILVA "), domain.ErrProfileNameTaken},
		{"new account and name", newProfile("u3", "João"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.CreateProfile(ctx, tt.profile)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("CreateProfile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := repo.GetProfileByName(ctx, "maria silva")
	if err != nil {
		t.Fatalf("GetProfileByName() error = %v", err)
	}

	if got.ID != "u1" || got.CityID == nil || *got.CityID != 3550308 || got.Phone != nil {
		t.Errorf("GetProfileByName() = %+v", got)
	}
}

func TestSQLiteProfileRepository_UpdateDelete(t *testing.T) {
	t.Parallel()

	repo := setupProfileTestRepo(t)
	ctx := context.TODO()

	if err := repo.CreateProfile(ctx, newProfile("u1", "Ana")); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	if err := repo.CreateProfile(ctx, newProfile("u2", "Bia")); err != nil {
		t.Fatalf("CreateProfile() error = %v", err)
	}

	renamed := newProfile("u2", "ana")
	if err := repo.UpdateProfile(ctx, renamed); !errors.Is(err, domain.ErrProfileNameTaken) {
		t.Errorf("UpdateProfile() error = %v, want %v", err, domain.ErrProfileNameTaken)
	}

	if err := repo.DeleteProfile(ctx, "u1"); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}

	if _, err := repo.GetProfile(ctx, "u1"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Errorf("GetProfile() after delete error = %v, want %v", err, domain.ErrProfileNotFound)
	}

	available, err := repo.NameAvailable(ctx, "Ana")
	if err != nil || !available {
		t.Errorf("NameAvailable() = %v, %v; want true", available, err)
	}

	if err := repo.UpdateProfile(ctx, renamed); err != nil {
		t.Errorf("UpdateProfile() after release error = %v", err)
	}
}
