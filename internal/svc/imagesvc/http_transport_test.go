package imagesvc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkrupp/eventhub/internal/domain"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
	"github.com/mkrupp/eventhub/internal/svc/imagesvc"
)

type stubAuthClient map[string]domain.User

func (c stubAuthClient) Validate(_ context.Context, token string) (domain.User, error) {
	user, ok := c[token]
	if !ok {
		return domain.User{}, domain.ErrInvalidAuthToken //nolint:exhaustruct
	}

	return user, nil
}

func setupTransport(t *testing.T) *imagesvc.HTTPTransport {
	t.Helper()

	svc, _ := setupImageService(t)

	return imagesvc.NewHTTPTransport(svc, stubAuthClient{
		"maria": {ID: "u1"}, //nolint:exhaustruct
		"joao":  {ID: "u2"}, //nolint:exhaustruct
	}, imagesvc.HTTPTransportConfig{
		PublicBaseURL:          "https://cdn.example.com/",
		MultipartFileName:      "upload",
		MultipartPrefixName:    "prefix",
		URLFileDownloadParam:   "download",
		URLWidthParam:          "width",
		MultipartFormMaxMemory: 1024 * 1024,
		UploadConcurrency:      2,
	})
}

func do(t *testing.T, handler http.Handler, method, target, token string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for key, values := range header {
		req.Header[key] = values
	}

	if token != "" {
		req.Header.Set(http_.AuthorizationHeader, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp http_.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}

	return resp.Code
}

func TestHTTPTransport_Object(t *testing.T) {
	t.Parallel()

	ht := setupTransport(t)
	data := encodePNG(t, 64, 32)
	objectURL := "/storage/v1/object/profile-images/private/maria-1700000000.png"
	publicURL := "/storage/v1/object/public/profile-images/private/maria-1700000000.png"

	rec := do(t, ht, http.MethodPost, objectURL, "", data, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous upload status = %d", rec.Code)
	}

	rec = do(t, ht, http.MethodPost, objectURL, "maria", data, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body)
	}

	var uploaded domain.UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&uploaded); err != nil {
		t.Fatal(err)
	}

	wantResp := domain.UploadResponse{
		Bucket:    domain.BucketProfileImages,
		Path:      "private/maria-1700000000.png",
		ID:        domain.ObjectID(domain.BucketProfileImages, "private/maria-1700000000.png"),
		PublicURL: "https://cdn.example.com" + publicURL,
	}
	if uploaded != wantResp {
		t.Errorf("upload response = %+v, want %+v", uploaded, wantResp)
	}

	rec = do(t, ht, http.MethodPost, objectURL, "maria", data, nil)
	if code := errorCode(t, rec); rec.Code != http.StatusConflict || code != "media_already_exists" {
		t.Errorf("repeated upload = %d %s", rec.Code, code)
	}

	upsert := http.Header{imagesvc.UpsertHeader: {"true"}}
	if rec = do(t, ht, http.MethodPost, objectURL, "maria", encodePNG(t, 32, 32), upsert); rec.Code != http.StatusOK {
		t.Errorf("upsert status = %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, ht, http.MethodGet, publicURL+"?width=16&download=true", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d: %s", rec.Code, rec.Body)
	}

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="maria-1700000000.png"` {
		t.Errorf("Content-Disposition = %q", got)
	}

	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode download: %v", err)
	}

	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Errorf("download bounds = %v, want 16x16", img.Bounds())
	}

	tests := []struct {
		name       string
		method     string
		target     string
		token      string
		body       []byte
		wantStatus int
		wantCode   string
	}{
		{"bad width", http.MethodGet, publicURL + "?width=big", "", nil, http.StatusBadRequest, "invalid_image_width"},
		{"too wide", http.MethodGet, publicURL + "?width=4096", "", nil, http.StatusBadRequest, "invalid_image_width"},
		{"missing", http.MethodGet, "/storage/v1/object/public/event-images/nope.png", "", nil, http.StatusNotFound, "media_not_found"},
		{"unknown bucket", http.MethodPost, "/storage/v1/object/avatars/a.png", "maria", data, http.StatusNotFound, "unknown_bucket"},
		{"unsupported type", http.MethodPost, "/storage/v1/object/event-images/a.gif", "maria", data, http.StatusUnsupportedMediaType, "image_type_not_supported"},
		{"mismatch", http.MethodPost, "/storage/v1/object/event-images/a.jpg", "maria", data, http.StatusUnsupportedMediaType, "image_type_mismatch"},
		{"delete foreign", http.MethodDelete, objectURL, "joao", nil, http.StatusForbidden, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, ht, tt.method, tt.target, tt.token, tt.body, nil)
			if code := errorCode(t, rec); rec.Code != tt.wantStatus || code != tt.wantCode {
				t.Errorf("%s %s = %d %q, want %d %q", tt.method, tt.target, rec.Code, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestHTTPTransport_Delete(t *testing.T) {
	t.Parallel()

	ht := setupTransport(t)
	objectURL := "/storage/v1/object/event-banners/e1/banner.png"

	if rec := do(t, ht, http.MethodPost, objectURL, "maria", encodePNG(t, 8, 8), nil); rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body)
	}

	if rec := do(t, ht, http.MethodDelete, objectURL, "maria", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body)
	}

	if rec := do(t, ht, http.MethodGet, "/storage/v1/object/public/event-banners/e1/banner.png", "", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("download after delete status = %d", rec.Code)
	}
}

func multipartBody(t *testing.T, prefix string, files map[string][]byte) ([]byte, string) {
	t.Helper()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("prefix", prefix); err != nil {
		t.Fatal(err)
	}

	for name, data := range files {
		part, err := writer.CreateFormFile("upload", name)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes(), writer.FormDataContentType()
}

func TestHTTPTransport_MultipartUpload(t *testing.T) {
	t.Parallel()

	ht := setupTransport(t)

	files := map[string][]byte{
		"1.png": encodePNG(t, 4, 4),
		"2.png": encodePNG(t, 5, 5),
		"3.png": encodePNG(t, 6, 6),
	}

	body, contentType := multipartBody(t, "/e1/", files)

	rec := do(t, ht, http.MethodPost, "/storage/v1/upload/event-images", "maria", body,
		http.Header{"Content-Type": {contentType}})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body)
	}

	var resps []domain.UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resps); err != nil {
		t.Fatal(err)
	}

	if len(resps) != len(files) {
		t.Fatalf("got %d responses, want %d", len(resps), len(files))
	}

	for _, resp := range resps {
		if resp.Bucket != domain.BucketEventImages || resp.ID != domain.ObjectID(resp.Bucket, resp.Path) {
			t.Errorf("unexpected response %+v", resp)
		}

		if rec := do(t, ht, http.MethodGet, "/storage/v1/object/public/event-images/"+resp.Path, "", nil, nil); rec.Code != http.StatusOK {
			t.Errorf("download %s status = %d", resp.Path, rec.Code)
		}
	}

	tooMany := make(map[string][]byte, domain.MaxEventImages+1)
	for i := range domain.MaxEventImages + 1 {
		tooMany[fmt.Sprintf("%d.png", i)] = files["1.png"]
	}

	body, contentType = multipartBody(t, "e2", tooMany)

	rec = do(t, ht, http.MethodPost, "/storage/v1/upload/event-images", "maria", body,
		http.Header{"Content-Type": {contentType}})
	if code := errorCode(t, rec); rec.Code != http.StatusBadRequest || code != "too_many_images" {
		t.Errorf("too many images = %d %q", rec.Code, code)
	}

	body, contentType = multipartBody(t, "e3", map[string][]byte{"x.gif": []byte("GIF89a")})

	rec = do(t, ht, http.MethodPost, "/storage/v1/upload/event-images", "maria", body,
		http.Header{"Content-Type": {contentType}})
	if code := errorCode(t, rec); rec.Code != http.StatusUnsupportedMediaType || code != "image_type_not_supported" {
		t.Errorf("unsupported upload = %d %q", rec.Code, code)
	}
}
