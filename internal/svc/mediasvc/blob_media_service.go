package mediasvc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/repo/blob"
)

// BlobMediaService implements MediaService on three blob repositories:
//
//   - objects holds the content, keyed by its hash
//   - meta holds one MediaMeta per bucket location, keyed by the object ID
//   - refs lists, per content hash, the object IDs sharing that content
//
// Content is deleted together with its last reference.
type BlobMediaService struct {
	objects blob.Repository
	meta    blob.Repository
	refs    blob.Repository
	cfg     MediaConfig
	log     logging.Logger
}

var _ MediaService = (*BlobMediaService)(nil)

// NewBlobMediaService creates a new BlobMediaService with repositories
// created by repoFactory.
func NewBlobMediaService(
	ctx context.Context,
	repoFactory blob.RepositoryFactory,
	cfg MediaConfig,
) (*BlobMediaService, error) {
	svc := &BlobMediaService{ //nolint:exhaustruct
		cfg: cfg,
		log: logging.GetLogger("svc.mediasvc.blob_media_service"),
	}

	for _, r := range []struct {
		repo      *blob.Repository
		name, ext string
	}{
		{&svc.objects, "objects", "bin"},
		{&svc.meta, "meta", "json"},
		{&svc.refs, "refs", "txt"},
	} {
		repo, err := repoFactory(ctx, r.name, r.ext)
		if err != nil {
			return nil, fmt.Errorf("new %s repository: %w", r.name, err)
		}

		*r.repo = repo
	}

	return svc, nil
}

// MaxSize implements MediaService.MaxSize.
func (mediaSvc BlobMediaService) MaxSize() int64 {
	return mediaSvc.cfg.MaxSize
}

// Lock implements MediaService.Lock.
func (mediaSvc BlobMediaService) Lock(ctx context.Context, mediaID domain.MediaID) (func(), error) {
	unlock, err := mediaSvc.meta.Lock(ctx, mediaID, false)
	if err != nil {
		mediaSvc.log.ErrorContext(ctx, "media lock failed", "media.id", mediaID, "error", err)

		return func() {}, fmt.Errorf("lock meta: %w", err)
	}

	return unlock, nil
}

// Store implements MediaService.Store.
func (mediaSvc BlobMediaService) Store(
	ctx context.Context,
	media domain.Media,
	upsert bool,
) (prunedID domain.BlobID, err error) {
	meta := media.Meta()
	log := mediaSvc.log.With(logging.Group("media",
		"id", media.ID(),
		"bucket", meta.Bucket,
		"path", meta.Path,
		"size", media.Size(),
	))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "media store failed", "error", err)
		} else {
			log.DebugContext(ctx, "media stored", "pruned", prunedID)
		}
	}()

	if err := checkLocation(meta.Bucket, meta.Path); err != nil {
		return "", err
	}

	if media.Size() > mediaSvc.cfg.MaxSize {
		return "", fmt.Errorf("%w: %d exceeds %d", domain.ErrMediaTooLarge, media.Size(), mediaSvc.cfg.MaxSize)
	}

	metaBlob, err := meta.AsBlob()
	if err != nil {
		return "", err
	}

	unlockMeta, err := mediaSvc.meta.Lock(ctx, metaBlob.ID, true)
	if err != nil {
		return "", fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	previous, err := mediaSvc.previous(ctx, meta, upsert)
	if err != nil {
		return "", err
	}

	content := media.AsBlob()

	unlockContent, err := mediaSvc.objects.Lock(ctx, content.ID, true)
	if err != nil {
		return "", fmt.Errorf("lock content: %w", err)
	}
	defer unlockContent()

	if !mediaSvc.objects.Exists(ctx, content.ID) {
		if err := mediaSvc.objects.Store(ctx, content); err != nil {
			return "", fmt.Errorf("store content: %w", err)
		}
	}

	if err := mediaSvc.meta.Store(ctx, metaBlob); err != nil {
		return "", fmt.Errorf("store meta: %w", err)
	}

	if previous != nil && previous.Hash == meta.Hash {
		return "", nil
	}

	if err := mediaSvc.link(ctx, content.ID, meta.ID); err != nil {
		return "", err
	}

	if previous == nil {
		return "", nil
	}

	previousID := domain.BlobID(previous.Hash)

	unlockPrevious, err := mediaSvc.objects.Lock(ctx, previousID, true)
	if err != nil {
		return "", fmt.Errorf("lock previous content: %w", err)
	}
	defer unlockPrevious()

	pruned, err := mediaSvc.unlink(ctx, *previous)
	if err != nil || !pruned {
		return "", err
	}

	return previousID, nil
}

// previous returns the metadata of the object meta replaces, or nil for a
// free location. The caller holds the meta lock.
func (mediaSvc BlobMediaService) previous(
	ctx context.Context,
	meta domain.MediaMeta,
	upsert bool,
) (*domain.MediaMeta, error) {
	if !mediaSvc.meta.Exists(ctx, meta.ID) {
		return nil, nil //nolint:nilnil
	}

	if !upsert {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrMediaAlreadyExists, meta.Bucket, meta.Path)
	}

	prev, err := mediaSvc.fetchMeta(ctx, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch previous meta: %w", err)
	}

	if prev.Owner != meta.Owner {
		return nil, fmt.Errorf("%w: user %q is not owner %q", domain.ErrUnauthorized, meta.Owner, prev.Owner)
	}

	return &prev, nil
}

// Delete implements MediaService.Delete.
func (mediaSvc BlobMediaService) Delete(
	ctx context.Context,
	mediaID domain.MediaID,
) (pruned bool, contentID domain.BlobID, err error) {
	log := mediaSvc.log.With(logging.Group("media", "id", mediaID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "media delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "media deleted", "pruned", pruned)
		}
	}()

	unlockMeta, err := mediaSvc.meta.Lock(ctx, mediaID, true)
	if err != nil {
		return false, "", fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	meta, err := mediaSvc.fetchMeta(ctx, mediaID)
	if err != nil {
		return false, "", err
	}

	if userID, ok := context_.UserIDFromContext(ctx); !ok || userID != meta.Owner {
		return false, "", fmt.Errorf("%w: user %q is not owner %q", domain.ErrUnauthorized, userID, meta.Owner)
	}

	contentID = domain.BlobID(meta.Hash)

	unlockContent, err := mediaSvc.objects.Lock(ctx, contentID, true)
	if err != nil {
		return false, contentID, fmt.Errorf("lock content: %w", err)
	}
	defer unlockContent()

	if pruned, err = mediaSvc.unlink(ctx, meta); err != nil {
		return false, contentID, err
	}

	if err := mediaSvc.meta.Delete(ctx, mediaID); err != nil {
		return pruned, contentID, fmt.Errorf("delete meta: %w", err)
	}

	return pruned, contentID, nil
}

// Fetch implements MediaService.Fetch.
func (mediaSvc BlobMediaService) Fetch(ctx context.Context, mediaID domain.MediaID) (domain.Media, error) {
	unlockMeta, err := mediaSvc.meta.Lock(ctx, mediaID, false)
	if err != nil {
		return domain.Media{}, fmt.Errorf("lock meta: %w", err)
	}
	defer unlockMeta()

	meta, err := mediaSvc.fetchMeta(ctx, mediaID)
	if err != nil {
		return domain.Media{}, err
	}

	contentID := domain.BlobID(meta.Hash)

	unlockContent, err := mediaSvc.objects.Lock(ctx, contentID, false)
	if err != nil {
		return domain.Media{}, fmt.Errorf("lock content: %w", err)
	}
	defer unlockContent()

	content, err := mediaSvc.objects.Fetch(ctx, contentID)
	if err != nil {
		mediaSvc.log.ErrorContext(ctx, "content of media missing", "media.id", mediaID, "media.hash", meta.Hash)

		return domain.Media{}, fmt.Errorf("fetch content: %w", err)
	}

	return domain.NewMedia(content.Bytes(), meta), nil
}

func checkLocation(bucket, path string) error {
	if !slices.Contains(domain.Buckets, bucket) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownBucket, bucket)
	}

	if path == "" {
		return domain.ErrNoMediaID
	}

	return nil
}

func (mediaSvc BlobMediaService) fetchMeta(ctx context.Context, mediaID domain.MediaID) (domain.MediaMeta, error) {
	metaBlob, err := mediaSvc.meta.Fetch(ctx, mediaID)
	if err != nil {
		return domain.MediaMeta{}, fmt.Errorf("fetch meta: %w", err)
	}

	return domain.NewMediaMetaFromBlob(metaBlob)
}

// references returns the object IDs sharing the content contentID.
func (mediaSvc BlobMediaService) references(ctx context.Context, contentID domain.BlobID) ([]domain.MediaID, error) {
	refs, err := mediaSvc.refs.Fetch(ctx, contentID)
	if errors.Is(err, domain.ErrMediaNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("fetch refs: %w", err)
	}

	var ids []domain.MediaID
	for _, id := range strings.Fields(string(refs.Bytes())) {
		ids = append(ids, domain.MediaID(id))
	}

	return ids, nil
}

func (mediaSvc BlobMediaService) storeReferences(
	ctx context.Context,
	contentID domain.BlobID,
	ids []domain.MediaID,
) error {
	lines := make([]string, len(ids))
	for i, id := range ids {
		lines[i] = id.String()
	}

	if err := mediaSvc.refs.Store(ctx, domain.NewBlob(contentID, []byte(strings.Join(lines, "\n")))); err != nil {
		return fmt.Errorf("store refs: %w", err)
	}

	return nil
}

// link records that mediaID uses the content contentID.
func (mediaSvc BlobMediaService) link(ctx context.Context, contentID domain.BlobID, mediaID domain.MediaID) error {
	ids, err := mediaSvc.references(ctx, contentID)
	if err != nil {
		return err
	}

	if slices.Contains(ids, mediaID) {
		return nil
	}

	return mediaSvc.storeReferences(ctx, contentID, append(ids, mediaID))
}

// unlink drops the reference of meta to its content and deletes the content
// once nothing references it. The caller holds the content lock.
func (mediaSvc BlobMediaService) unlink(ctx context.Context, meta domain.MediaMeta) (bool, error) {
	contentID := domain.BlobID(meta.Hash)

	ids, err := mediaSvc.references(ctx, contentID)
	if err != nil {
		return false, err
	}

	ids = slices.DeleteFunc(ids, func(id domain.MediaID) bool { return id == meta.ID })

	if len(ids) > 0 {
		return false, mediaSvc.storeReferences(ctx, contentID, ids)
	}

	for _, repo := range []blob.Repository{mediaSvc.objects, mediaSvc.refs} {
		if err := repo.Delete(ctx, contentID); err != nil && !errors.Is(err, domain.ErrMediaNotFound) {
			return false, fmt.Errorf("prune content: %w", err)
		}
	}

	mediaSvc.log.DebugContext(ctx, "content pruned", "media.hash", meta.Hash)

	return true, nil
}
