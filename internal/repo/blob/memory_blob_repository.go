package blob

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/mkrupp/eventhub/internal/domain"
)

// MemoryRepository implements Repository in memory. Locks are process-local.
type MemoryRepository struct {
	m     sync.RWMutex
	blobs map[domain.BlobID][]byte
	locks sync.Map // domain.BlobID -> *sync.RWMutex
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{blobs: make(map[domain.BlobID][]byte)} //nolint:exhaustruct
}

// MemoryRepositoryFactory returns a factory handing out one repository per
// name and extension, mirroring the directories of the filesystem repository.
func MemoryRepositoryFactory() RepositoryFactory {
	var (
		m     sync.Mutex
		repos = make(map[string]*MemoryRepository)
	)

	return func(_ context.Context, name, ext string) (Repository, error) {
		m.Lock()
		defer m.Unlock()

		key := name + "." + ext
		if repo, ok := repos[key]; ok {
			return repo, nil
		}

		repo := NewMemoryRepository()
		repos[key] = repo

		return repo, nil
	}
}

func (r *MemoryRepository) Lock(_ context.Context, id domain.BlobID, exclusive bool) (func(), error) {
	value, _ := r.locks.LoadOrStore(id, new(sync.RWMutex))
	lock := value.(*sync.RWMutex) //nolint:forcetypeassert

	var once sync.Once

	if exclusive {
		lock.Lock()

		return func() { once.Do(lock.Unlock) }, nil
	}

	lock.RLock()

	return func() { once.Do(lock.RUnlock) }, nil
}

func (r *MemoryRepository) Exists(_ context.Context, id domain.BlobID) bool {
	r.m.RLock()
	defer r.m.RUnlock()

	_, ok := r.blobs[id]

	return ok
}

func (r *MemoryRepository) Store(_ context.Context, blob *domain.Blob) error {
	r.m.Lock()
	defer r.m.Unlock()

	r.blobs[blob.ID] = append([]byte(nil), blob.Bytes()...)

	return nil
}

func (r *MemoryRepository) Fetch(_ context.Context, id domain.BlobID) (*domain.Blob, error) {
	r.m.RLock()
	defer r.m.RUnlock()

	body, ok := r.blobs[id]
	if !ok {
		return nil, domain.ErrMediaNotFound
	}

	return domain.NewBlob(id, append([]byte(nil), body...)), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id domain.BlobID) error {
	r.m.Lock()
	defer r.m.Unlock()

	if _, ok := r.blobs[id]; !ok {
		return domain.ErrMediaNotFound
	}

	delete(r.blobs, id)

	return nil
}

// DeleteAll removes every blob whose ID is id followed by a suffix matching
// pattern.
func (r *MemoryRepository) DeleteAll(_ context.Context, id domain.BlobID, pattern string) error {
	r.m.Lock()
	defer r.m.Unlock()

	for key := range r.blobs {
		suffix, ok := strings.CutPrefix(string(key), string(id))
		if !ok {
			continue
		}

		if matched, err := path.Match(pattern, suffix); err == nil && matched {
			delete(r.blobs, key)
		}
	}

	return nil
}
