package imagesvc

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/mkrupp/eventhub/internal/domain"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	"github.com/mkrupp/eventhub/internal/repo/blob"
	"github.com/mkrupp/eventhub/internal/svc/mediasvc"
)

// BlobImageService implements ImageService on a MediaService. Resized copies
// are cached per content hash and width in a separate blob repository and
// dropped when their content is pruned.
type BlobImageService struct {
	media  mediasvc.MediaService
	cache  blob.Repository
	scaler scaler
	cfg    ImageConfig
	log    logging.Logger
}

var _ ImageService = (*BlobImageService)(nil)

func NewBlobImageService(
	ctx context.Context,
	repoFactory blob.RepositoryFactory,
	mediaSvc mediasvc.MediaService,
	cfg ImageConfig,
) (*BlobImageService, error) {
	s, err := newScaler(cfg.Interpolator)
	if err != nil {
		return nil, err
	}

	cache, err := repoFactory(ctx, "cache", "bin")
	if err != nil {
		return nil, fmt.Errorf("new cache repository: %w", err)
	}

	return &BlobImageService{
		media:  mediaSvc,
		cache:  cache,
		scaler: s,
		cfg:    cfg,
		log:    logging.GetLogger("svc.imagesvc"),
	}, nil
}

// Lock implements ImageService.Lock.
func (imageSvc BlobImageService) Lock(ctx context.Context, imageID domain.MediaID) (func(), error) {
	return imageSvc.media.Lock(ctx, imageID) //nolint:wrapcheck
}

// MaxSize implements ImageService.MaxSize.
func (imageSvc BlobImageService) MaxSize() int64 {
	return imageSvc.media.MaxSize()
}

// Store implements ImageService.Store. The content must match the type named
// by the path extension.
func (imageSvc BlobImageService) Store(ctx context.Context, image domain.Media, upsert bool) error {
	meta := image.Meta()

	mimeType, err := imageSvc.CheckUploadConstraints(meta.Path, image.Size(), image.Bytes())
	if err != nil {
		return err
	}

	meta.MIMEType = mimeType

	prunedID, err := imageSvc.media.Store(ctx, domain.NewMedia(image.Bytes(), meta), upsert)
	if err != nil {
		return fmt.Errorf("store media: %w", err)
	}

	return imageSvc.dropResized(ctx, prunedID)
}

// Delete implements ImageService.Delete.
func (imageSvc BlobImageService) Delete(ctx context.Context, imageID domain.MediaID) error {
	pruned, contentID, err := imageSvc.media.Delete(ctx, imageID)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}

	if !pruned {
		return nil
	}

	return imageSvc.dropResized(ctx, contentID)
}

// Fetch implements ImageService.Fetch. Width 0 returns the stored image.
func (imageSvc BlobImageService) Fetch(
	ctx context.Context,
	imageID domain.MediaID,
	width int,
) (image domain.Media, err error) {
	log := imageSvc.log.With(logging.Group("image", "id", imageID, "width", width))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "image fetch failed", "error", err)
		}
	}()

	if width < 0 || width > imageSvc.cfg.MaxWidth {
		return domain.Media{}, fmt.Errorf("%w: %d", domain.ErrInvalidImageWidth, width)
	}

	image, err = imageSvc.media.Fetch(ctx, imageID)
	if err != nil || width == 0 {
		return image, err //nolint:wrapcheck
	}

	return imageSvc.resized(ctx, image, width)
}

// resized returns image scaled to width, from the cache when possible.
func (imageSvc BlobImageService) resized(ctx context.Context, image domain.Media, width int) (domain.Media, error) {
	cacheID := resizedID(domain.BlobID(image.Hash()), width)

	unlock, err := imageSvc.cache.Lock(ctx, cacheID, true)
	if err != nil {
		return domain.Media{}, fmt.Errorf("lock cache: %w", err)
	}
	defer unlock()

	meta := image.Meta()
	_, meta.MIMEType = getEncoderByType(meta.MIMEType)

	if cached, err := imageSvc.cache.Fetch(ctx, cacheID); err == nil {
		return domain.NewMedia(cached.Bytes(), meta), nil
	}

	data, mimeType, err := imageSvc.scaler.scale(image.Bytes(), image.MIMEType(), width)
	if err != nil {
		return domain.Media{}, fmt.Errorf("resize: %w", err)
	}

	meta.MIMEType = mimeType

	if err := imageSvc.cache.Store(ctx, domain.NewBlob(cacheID, data)); err != nil {
		return domain.Media{}, fmt.Errorf("store cache: %w", err)
	}

	imageSvc.log.DebugContext(ctx, "image resized", "image.hash", image.Hash(), "image.width", width)

	return domain.NewMedia(data, meta), nil
}

// dropResized removes the cached copies of the content contentID.
func (imageSvc BlobImageService) dropResized(ctx context.Context, contentID domain.BlobID) error {
	if contentID == "" {
		return nil
	}

	unlock, err := imageSvc.cache.Lock(ctx, contentID, true)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	defer unlock()

	if err := imageSvc.cache.DeleteAll(ctx, contentID, "_*"); err != nil {
		return fmt.Errorf("drop resized: %w", err)
	}

	return nil
}

func resizedID(contentID domain.BlobID, width int) domain.BlobID {
	return contentID + "_" + domain.BlobID(strconv.Itoa(width))
}

// CheckUploadConstraints implements ImageService.CheckUploadConstraints.
func (imageSvc BlobImageService) CheckUploadConstraints(filename string, size int64, image []byte) (string, error) {
	if limit := imageSvc.MaxSize(); size > limit {
		return "", fmt.Errorf("%w: %d exceeds %d", domain.ErrImageTooLarge, size, limit)
	}

	ext := strings.ToLower(path.Ext(filename))

	mimeType, ok := imageExtTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, ext)
	}

	switch {
	case image == nil:
		return "", nil
	case !matchesType(image, mimeType):
		return "", fmt.Errorf("%w: %q", domain.ErrImageTypeMismatch, ext)
	default:
		return mimeType, nil
	}
}
