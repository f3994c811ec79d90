package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/mkrupp/eventhub/internal/domain"
)

// Storage API details shared with the image service.
const (
	upsertHeader        = "X-Upsert"
	multipartFileName   = "upload"
	multipartPrefixName = "prefix"
)

// File is a named file selected for upload.
type File struct {
	Name string
	Data []byte
}

func (f File) key() string {
	return f.Name + "/" + strconv.Itoa(len(f.Data))
}

// DedupFiles drops files whose name and size equal an earlier file.
func DedupFiles(files []File) []File {
	seen := make(map[string]bool, len(files))
	unique := make([]File, 0, len(files))

	for _, file := range files {
		if seen[file.key()] {
			continue
		}

		seen[file.key()] = true
		unique = append(unique, file)
	}

	return unique
}

// Upload stores data as bucket/objectPath. With upsert an existing object is
// replaced.
func (c *Client) Upload(
	ctx context.Context,
	bucket, objectPath string,
	data []byte,
	upsert bool,
) (domain.UploadResponse, error) {
	var resp domain.UploadResponse

	header := http.Header{upsertHeader: {strconv.FormatBool(upsert)}}
	p := "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapePath(objectPath)

	if err := c.do(ctx, http.MethodPost, p, contentType(objectPath), bytes.NewReader(data), header, &resp); err != nil {
		return domain.UploadResponse{}, fmt.Errorf("upload %s/%s: %w", bucket, objectPath, err) //nolint:exhaustruct
	}

	return resp, nil
}

// SetProfileImage uploads the avatar of the signed-in user and returns the
// updated profile.
func (c *Client) SetProfileImage(ctx context.Context, filename string, data []byte) (domain.Profile, error) {
	var profile domain.Profile

	p := "/rest/v1/profiles/me/image?" + url.Values{"filename": {filename}}.Encode()
	if err := c.do(ctx, http.MethodPost, p, contentType(filename), bytes.NewReader(data), nil, &profile); err != nil {
		return domain.Profile{}, fmt.Errorf("set profile image: %w", err) //nolint:exhaustruct
	}

	return profile, nil
}

// UploadGallery stores files below prefix in one multipart request. Files
// repeating the name and size of an earlier one are skipped. At most
// domain.MaxEventImages files remain after deduplication.
func (c *Client) UploadGallery(
	ctx context.Context,
	bucket, prefix string,
	files []File,
) ([]domain.UploadResponse, error) {
	files = DedupFiles(files)

	switch {
	case len(files) == 0:
		return []domain.UploadResponse{}, nil
	case len(files) > domain.MaxEventImages:
		return nil, fmt.Errorf("%w: %d exceeds %d", domain.ErrTooManyImages, len(files), domain.MaxEventImages)
	}

	var body bytes.Buffer

	form := multipart.NewWriter(&body)

	if err := form.WriteField(multipartPrefixName, prefix); err != nil {
		return nil, fmt.Errorf("write prefix: %w", err)
	}

	for _, file := range files {
		part, err := form.CreateFormFile(multipartFileName, file.Name)
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", file.Name, err)
		}

		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("write part %s: %w", file.Name, err)
		}
	}

	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	var resps []domain.UploadResponse

	p := "/storage/v1/upload/" + url.PathEscape(bucket)
	if err := c.do(ctx, http.MethodPost, p, form.FormDataContentType(), &body, nil, &resps); err != nil {
		return nil, fmt.Errorf("upload gallery: %w", err)
	}

	return resps, nil
}

func escapePath(objectPath string) string {
	segments := strings.Split(strings.Trim(objectPath, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}

func contentType(filename string) string {
	if mimeType := mime.TypeByExtension(path.Ext(filename)); mimeType != "" {
		return mimeType
	}

	return "application/octet-stream"
}
