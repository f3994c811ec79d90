package imagesvc_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/repo/blob"
	"github.com/mkrupp/eventhub/internal/svc/imagesvc"
	"github.com/mkrupp/eventhub/internal/svc/mediasvc"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		img.Set(x, x%height, color.RGBA{R: 200, G: uint8(x), B: 10, A: 255}) //nolint:gosec
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func setupImageService(t *testing.T) (*imagesvc.BlobImageService, blob.RepositoryFactory) {
	t.Helper()

	ctx := context.Background()
	factory := blob.MemoryRepositoryFactory()

	mediaSvc, err := mediasvc.NewBlobMediaService(ctx, factory, mediasvc.MediaConfig{MaxSize: 1024 * 1024})
	if err != nil {
		t.Fatalf("new media service: %v", err)
	}

	imageSvc, err := imagesvc.NewBlobImageService(ctx, factory, mediaSvc, imagesvc.ImageConfig{
		Interpolator: "bilinear",
		MaxWidth:     512,
	})
	if err != nil {
		t.Fatalf("new image service: %v", err)
	}

	return imageSvc, factory
}

func newImage(data []byte, bucket, path, owner string) domain.Media {
	return domain.NewMedia(data, domain.MediaMeta{Bucket: bucket, Path: path, Owner: owner}) //nolint:exhaustruct
}

func asUser(id string) context.Context {
	return context_.WithUser(context.Background(), domain.User{ID: id}) //nolint:exhaustruct
}

func TestNewBlobImageService_UnknownInterpolator(t *testing.T) {
	t.Parallel()

	factory := blob.MemoryRepositoryFactory()

	mediaSvc, err := mediasvc.NewBlobMediaService(context.Background(), factory, mediasvc.MediaConfig{MaxSize: 1024})
	if err != nil {
		t.Fatal(err)
	}

	_, err = imagesvc.NewBlobImageService(context.Background(), factory, mediaSvc, imagesvc.ImageConfig{
		Interpolator: "sharpest",
		MaxWidth:     512,
	})
	if !errors.Is(err, imagesvc.ErrUnknownInterpolator) {
		t.Errorf("NewBlobImageService() error = %v, want %v", err, imagesvc.ErrUnknownInterpolator)
	}
}

func TestBlobImageService_CheckUploadConstraints(t *testing.T) {
	t.Parallel()

	svc, _ := setupImageService(t)
	pngData := encodePNG(t, 4, 4)

	tests := []struct {
		name     string
		filename string
		size     int64
		data     []byte
		wantType string
		wantErr  error
	}{
		{"png", "a.png", int64(len(pngData)), pngData, imagesvc.MIMETypePNG, nil},
		{"upper case ext", "A.PNG", int64(len(pngData)), pngData, imagesvc.MIMETypePNG, nil},
		{"header only", "a.jpg", 10, nil, "", nil},
		{"jpeg", "a.jpeg", 3, []byte("\xFF\xD8\xFF"), imagesvc.MIMETypeJPEG, nil},
		{"tiff big endian", "a.tif", 4, []byte("\x4D\x4D\x00\x2A"), imagesvc.MIMETypeTIFF, nil},
		{"webp", "a.webp", 12, []byte("RIFF\x00\x00\x00\x00WEBP"), imagesvc.MIMETypeWebP, nil},
		{"riff without webp", "a.webp", 12, []byte("RIFF\x00\x00\x00\x00WAVE"), "", domain.ErrImageTypeMismatch},
		{"mismatch", "a.jpg", int64(len(pngData)), pngData, "", domain.ErrImageTypeMismatch},
		{"unsupported", "a.gif", 6, []byte("GIF89a"), "", domain.ErrImageTypeNotSupported},
		{"no ext", "a", 6, nil, "", domain.ErrImageTypeNotSupported},
		{"too large", "a.png", 2 * 1024 * 1024, nil, "", domain.ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := svc.CheckUploadConstraints(tt.filename, tt.size, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckUploadConstraints() error = %v, want %v", err, tt.wantErr)
			}

			if got != tt.wantType {
				t.Errorf("CheckUploadConstraints() = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestBlobImageService_StoreFetch(t *testing.T) {
	t.Parallel()

	svc, _ := setupImageService(t)
	ctx := asUser("u1")

	original := newImage(encodePNG(t, 100, 50), domain.BucketEventBanners, "e1/banner.png", "u1")
	if err := svc.Store(ctx, original, false); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// anonymous readers may fetch
	got, err := svc.Fetch(context.Background(), original.ID(), 0)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !bytes.Equal(got.Bytes(), original.Bytes()) || got.MIMEType() != imagesvc.MIMETypePNG {
		t.Errorf("Fetch() = %d bytes of %q", got.Size(), got.MIMEType())
	}

	for range 2 { // second round is served from the cache
		resized, err := svc.Fetch(context.Background(), original.ID(), 20)
		if err != nil {
			t.Fatalf("Fetch() resized error = %v", err)
		}

		img, err := png.Decode(resized.Read())
		if err != nil {
			t.Fatalf("decode resized: %v", err)
		}

		if bounds := img.Bounds(); bounds.Dx() != 20 || bounds.Dy() != 10 {
			t.Errorf("resized bounds = %v, want 20x10", bounds)
		}

		if resized.ID() != original.ID() {
			t.Errorf("resized ID = %q, want %q", resized.ID(), original.ID())
		}
	}

	for _, width := range []int{-1, 513} {
		if _, err := svc.Fetch(context.Background(), original.ID(), width); !errors.Is(err, domain.ErrInvalidImageWidth) {
			t.Errorf("Fetch(width=%d) error = %v, want %v", width, err, domain.ErrInvalidImageWidth)
		}
	}

	mismatch := newImage(encodePNG(t, 2, 2), domain.BucketEventBanners, "e1/banner.jpg", "u1")
	if err := svc.Store(ctx, mismatch, false); !errors.Is(err, domain.ErrImageTypeMismatch) {
		t.Errorf("Store() mismatch error = %v, want %v", err, domain.ErrImageTypeMismatch)
	}
}

func TestBlobImageService_UpsertDropsCache(t *testing.T) {
	t.Parallel()

	svc, factory := setupImageService(t)
	ctx := asUser("u1")

	cacheRepo, err := factory(context.Background(), "cache", "bin")
	if err != nil {
		t.Fatal(err)
	}

	first := newImage(encodePNG(t, 40, 40), domain.BucketProfileImages, "private/maria.png", "u1")
	if err := svc.Store(ctx, first, false); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if _, err := svc.Fetch(ctx, first.ID(), 10); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	cacheID := domain.BlobID(first.Hash() + "_10")
	if !cacheRepo.Exists(ctx, cacheID) {
		t.Fatal("resized image was not cached")
	}

	second := newImage(encodePNG(t, 30, 30), domain.BucketProfileImages, "private/maria.png", "u1")
	if err := svc.Store(ctx, second, true); err != nil {
		t.Fatalf("Store() upsert error = %v", err)
	}

	if cacheRepo.Exists(ctx, cacheID) {
		t.Error("cache of replaced image was not dropped")
	}

	got, err := svc.Fetch(ctx, first.ID(), 0)
	if err != nil || got.Hash() != second.Hash() {
		t.Errorf("Fetch() after upsert = %q, %v", got.Hash(), err)
	}
}

func TestBlobImageService_Delete(t *testing.T) {
	t.Parallel()

	svc, factory := setupImageService(t)

	cacheRepo, err := factory(context.Background(), "cache", "bin")
	if err != nil {
		t.Fatal(err)
	}

	img := newImage(encodePNG(t, 16, 16), domain.BucketEventImages, "e1/1.png", "u1")
	if err := svc.Store(asUser("u1"), img, false); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if _, err := svc.Fetch(context.Background(), img.ID(), 8); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if err := svc.Delete(asUser("u2"), img.ID()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Delete() by other user error = %v, want %v", err, domain.ErrUnauthorized)
	}

	if err := svc.Delete(asUser("u1"), img.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if cacheRepo.Exists(context.Background(), domain.BlobID(img.Hash()+"_8")) {
		t.Error("cache of deleted image was not dropped")
	}

	if _, err := svc.Fetch(context.Background(), img.ID(), 0); !errors.Is(err, domain.ErrMediaNotFound) {
		t.Errorf("Fetch() after delete error = %v, want %v", err, domain.ErrMediaNotFound)
	}
}
