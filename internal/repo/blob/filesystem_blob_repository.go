package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

const (
	shardWidth  = 2 // characters per directory level
	shardLevels = 2 // 32^2 entries per level for Crockford IDs

	lockRetryInterval = 10 * time.Millisecond
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem-based blob repository.
type FileSystemBlobRepositoryConfig struct {
	// Basedir is the root directory of the storage buckets.
	Basedir string `env:"BASEDIR" default:"var/storage/blob"`
}

// FileSystemBlobRepositoryFactory returns a RepositoryFactory creating one
// directory below cfg.Basedir per repository name.
func FileSystemBlobRepositoryFactory(cfg FileSystemBlobRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context, name, ext string) (Repository, error) {
		return NewFileSystemBlobRepository(ctx, name, ext, cfg)
	}
}

// FileSystemRepository implements Repository with one file per blob. Files
// are sharded into subdirectories by the leading characters of their ID and
// replaced atomically on store.
type FileSystemRepository struct {
	dir string
	ext string
	log logging.Logger
}

var _ Repository = (*FileSystemRepository)(nil)

// NewFileSystemBlobRepository creates the directory of the repository name
// and returns a repository storing files with extension ext in it.
func NewFileSystemBlobRepository(
	ctx context.Context,
	name, ext string,
	cfg FileSystemBlobRepositoryConfig,
) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		dir: filepath.Join(cfg.Basedir, name),
		ext: ext,
		log: logging.GetLogger("repo.blob.filesystem").With(logging.Group("repo", "dir", filepath.Join(cfg.Basedir, name))),
	}

	if err := os.MkdirAll(repo.dir, 0o755); err != nil {
		repo.log.ErrorContext(ctx, "create directory failed", "error", err)

		return nil, fmt.Errorf("mkdir: %w", err)
	}

	return repo, nil
}

// Path returns the file holding the blob id.
func (fsRepo *FileSystemRepository) Path(id domain.BlobID) string {
	name := strings.ReplaceAll(string(id), "/", "")

	parts := []string{fsRepo.dir}
	for level := 0; level < shardLevels && len(name) > (level+1)*shardWidth; level++ {
		parts = append(parts, name[level*shardWidth:(level+1)*shardWidth])
	}

	return filepath.Join(append(parts, name+"."+fsRepo.ext)...)
}

// Lock implements Repository.Lock with flock(2) on a sibling lock file. It
// waits for the lock until ctx is done.
func (fsRepo *FileSystemRepository) Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error) {
	lockfile := fsRepo.Path(id) + ".lock"

	mode := syscall.LOCK_SH
	if exclusive {
		mode = syscall.LOCK_EX
	}

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lockfile: %w", err)
	}

	if err := flockContext(ctx, file, mode); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock %s: %w", lockfile, err)
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
			_ = file.Close()
		})
	}, nil
}

// flockContext tries a non-blocking lock until it succeeds or ctx is done.
func flockContext(ctx context.Context, file *os.File, mode int) error {
	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		err := syscall.Flock(int(file.Fd()), mode|syscall.LOCK_NB)
		if err == nil {
			return nil
		} else if !errors.Is(err, syscall.EWOULDBLOCK) {
			return err //nolint:wrapcheck
		}

		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck
		case <-ticker.C:
		}
	}
}

func (fsRepo *FileSystemRepository) Exists(_ context.Context, id domain.BlobID) bool {
	_, err := os.Stat(fsRepo.Path(id))

	return err == nil
}

// Store writes the blob to a temporary file and renames it into place, so
// readers never observe partial content.
func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	filename := fsRepo.Path(blob.ID)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blob.ID))
		if err != nil {
			log.ErrorContext(ctx, "store failed", "error", err)
		} else {
			log.DebugContext(ctx, "stored", "size", blob.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(blob.Bytes()); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write: %w", err)
	}

	if err := errors.Join(tmp.Sync(), tmp.Close()); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error) {
	body, err := os.ReadFile(fsRepo.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("fetch %s: %w", id, errors.Join(domain.ErrMediaNotFound, err))
	} else if err != nil {
		fsRepo.log.ErrorContext(ctx, "fetch failed", "blob.id", id, "error", err)

		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}

	return domain.NewBlob(id, body), nil
}

func (fsRepo *FileSystemRepository) Delete(ctx context.Context, id domain.BlobID) error {
	err := os.Remove(fsRepo.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", id, errors.Join(domain.ErrMediaNotFound, err))
	} else if err != nil {
		fsRepo.log.ErrorContext(ctx, "delete failed", "blob.id", id, "error", err)

		return fmt.Errorf("delete %s: %w", id, err)
	}

	return nil
}

// DeleteAll removes the blobs whose ID is id followed by a suffix matching
// pattern. Derived blobs share the shard directory of id when id is longer
// than the shard prefix.
func (fsRepo *FileSystemRepository) DeleteAll(ctx context.Context, id domain.BlobID, pattern string) error {
	base := strings.TrimSuffix(fsRepo.Path(id), "."+fsRepo.ext)

	matches, err := filepath.Glob(base + pattern + "." + fsRepo.ext)
	if err != nil {
		return fmt.Errorf("glob: %w", err)
	}

	var errs []error

	for _, filename := range matches {
		if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		fsRepo.log.ErrorContext(ctx, "delete all failed", "blob.id", id, "pattern", pattern, "error", err)

		return fmt.Errorf("delete all %s%s: %w", id, pattern, err)
	}

	return nil
}
