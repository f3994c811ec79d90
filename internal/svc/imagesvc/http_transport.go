package imagesvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/logging"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
	"github.com/mkrupp/eventhub/internal/svc/authsvc/authclient"
)

// UpsertHeader requests replacing an object already stored at the location.
const UpsertHeader = "X-Upsert"

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	// PublicBaseURL prefixes the public URLs returned after uploads.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	// MultipartFileName is the form field name for file uploads.
	// Default is "upload".
	MultipartFileName string `env:"MULTIPART_FILE_NAME" default:"upload"`

	// MultipartPrefixName is the form field holding the path prefix of the uploaded files.
	MultipartPrefixName string `env:"MULTIPART_PREFIX_NAME" default:"prefix"`

	// URLFileDownloadParam is the URL parameter for triggering downloads.
	// Default is "download".
	URLFileDownloadParam string `env:"URL_FILE_DOWNLOAD_PARAM" default:"download"`

	// URLWidthParam is the URL parameter for specifying image resize width.
	// Default is "width".
	URLWidthParam string `env:"URL_WIDTH_PARAM" default:"width"`

	// MultipartFormMaxMemory is the maximum allowed memory for multipart form uploads.
	// Default is 10MB.
	MultipartFormMaxMemory int64 `env:"MULTIPART_FORM_MAX_SIZE" default:"10485760"`

	// UploadConcurrency bounds the files of one request stored in parallel.
	UploadConcurrency int `env:"UPLOAD_CONCURRENCY" default:"4"`
}

var ErrNoMultipartFiles = errors.New("no multipart files")

// HTTPTransport handles HTTP requests for the image service.
// It provides endpoints for uploading, downloading and deleting images.
type HTTPTransport struct {
	imageSvc   ImageService
	authClient authclient.AuthClient
	log        logging.Logger
	cfg        HTTPTransportConfig
	router     *mux.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// It requires an ImageService for handling business logic and an AuthClient for authentication.
func NewHTTPTransport(
	imageSvc ImageService,
	authClient authclient.AuthClient,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		imageSvc:   imageSvc,
		authClient: authClient,
		log:        logging.GetLogger("svc.imagesvc.http_transport"),
		cfg:        cfg,
		router:     mux.NewRouter(),
	}

	ht.Register(ht.router)

	return ht
}

// Register adds the storage routes to router:
//   - GET /storage/v1/object/public/{bucket}/{path}: download, optionally resized
//   - POST /storage/v1/object/{bucket}/{path}: upload the request body
//   - DELETE /storage/v1/object/{bucket}/{path}: delete an own object
//   - POST /storage/v1/upload/{bucket}: upload multipart files below a prefix
//
// Uploads and deletes require authentication.
func (ht *HTTPTransport) Register(router *mux.Router) {
	r := router.PathPrefix("/storage/v1").Subrouter()
	r.HandleFunc("/object/public/{bucket}/{path:.+}", ht.HandleDownload).Methods(http.MethodGet)

	private := r.NewRoute().Subrouter()
	private.Use(http_.Authorizing(ht.authClient, ht.log))
	private.HandleFunc("/object/{bucket}/{path:.+}", ht.HandleUpload).Methods(http.MethodPost)
	private.HandleFunc("/object/{bucket}/{path:.+}", ht.HandleDelete).Methods(http.MethodDelete)
	private.HandleFunc("/upload/{bucket}", ht.HandleMultipartUpload).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// PublicURL returns the download URL of the object at bucket/objectPath
// served below baseURL.
func PublicURL(baseURL, bucket, objectPath string) string {
	return strings.TrimSuffix(baseURL, "/") + "/storage/v1/object/public/" + bucket + "/" + objectPath
}

// HandleUpload stores the request body at the location named by the URL.
// Set the X-Upsert header to "true" to replace an existing object.
// Returns a domain.UploadResponse.
func (ht *HTTPTransport) HandleUpload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleUpload(w, r)
}

func (ht *HTTPTransport) handleUpload(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "upload") }(r.Context())

	bucket, objectPath := location(r)

	// Check upload constraints before reading the image to buffer
	if _, err := ht.imageSvc.CheckUploadConstraints(objectPath, r.ContentLength, nil); err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("upload not allowed: %w", err)
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, ht.imageSvc.MaxSize()))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			err = errors.Join(domain.ErrImageTooLarge, err)
		}

		http_.WriteError(w, err)

		return fmt.Errorf("read body: %w", err)
	}

	upsert, _ := strconv.ParseBool(r.Header.Get(UpsertHeader))

	resp, err := ht.store(r.Context(), bucket, objectPath, data, upsert)
	if err != nil {
		http_.WriteError(w, err)

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, resp)
}

// HandleMultipartUpload stores every file of a multipart form below the
// prefix form value. Returns the []domain.UploadResponse in form order.
func (ht *HTTPTransport) HandleMultipartUpload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleMultipartUpload(w, r)
}

func (ht *HTTPTransport) handleMultipartUpload(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) {
		http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "multipart upload")
	}(r.Context())

	if err := r.ParseMultipartForm(ht.cfg.MultipartFormMaxMemory); err != nil {
		err = errors.Join(http_.ErrBadRequest, err)
		http_.WriteError(w, err)

		return fmt.Errorf("parse multipart form: %w", err)
	}

	files := r.MultipartForm.File[ht.cfg.MultipartFileName]

	switch {
	case len(files) == 0:
		err = errors.Join(http_.ErrBadRequest, ErrNoMultipartFiles)
	case len(files) > domain.MaxEventImages:
		err = fmt.Errorf("%w: %d exceeds %d", domain.ErrTooManyImages, len(files), domain.MaxEventImages)
	}

	if err != nil {
		http_.WriteError(w, err)

		return err
	}

	// Check upload constraints before reading any file
	for _, fileHeader := range files {
		if _, err := ht.imageSvc.CheckUploadConstraints(fileHeader.Filename, fileHeader.Size, nil); err != nil {
			http_.WriteError(w, err)

			return fmt.Errorf("upload not allowed: %s: %w", fileHeader.Filename, err)
		}
	}

	bucket := mux.Vars(r)["bucket"]
	prefix := strings.Trim(r.FormValue(ht.cfg.MultipartPrefixName), "/")
	resps := make([]domain.UploadResponse, len(files))

	group, ctx := errgroup.WithContext(r.Context())
	group.SetLimit(max(1, ht.cfg.UploadConcurrency))

	for i, fileHeader := range files {
		group.Go(func() error {
			resp, err := ht.storeFile(ctx, bucket, prefix, fileHeader)
			resps[i] = resp

			return err
		})
	}

	if err := group.Wait(); err != nil {
		http_.WriteError(w, err)

		return err
	}

	return http_.WriteJSON(w, http.StatusOK, resps)
}

func (ht *HTTPTransport) storeFile(
	ctx context.Context,
	bucket, prefix string,
	fileHeader *multipart.FileHeader,
) (domain.UploadResponse, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("open %s: %w", fileHeader.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.UploadResponse{}, fmt.Errorf("read %s: %w", fileHeader.Filename, err)
	}

	objectPath := path.Base(fileHeader.Filename)
	if prefix != "" {
		objectPath = prefix + "/" + objectPath
	}

	return ht.store(ctx, bucket, objectPath, data, false)
}

func (ht *HTTPTransport) store(
	ctx context.Context,
	bucket, objectPath string,
	data []byte,
	upsert bool,
) (domain.UploadResponse, error) {
	owner, _ := context_.UserIDFromContext(ctx)
	image := domain.NewMedia(data, domain.MediaMeta{ //nolint:exhaustruct
		Bucket: bucket,
		Path:   objectPath,
		Owner:  owner,
	})

	if err := ht.imageSvc.Store(ctx, image, upsert); err != nil {
		return domain.UploadResponse{}, fmt.Errorf("store %s/%s: %w", bucket, objectPath, err)
	}

	return domain.UploadResponse{
		Bucket:    bucket,
		Path:      objectPath,
		ID:        image.ID(),
		PublicURL: PublicURL(ht.cfg.PublicBaseURL, bucket, objectPath),
	}, nil
}

// HandleDelete removes the object at the location named by the URL.
// Only the uploader may delete an object.
func (ht *HTTPTransport) HandleDelete(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDelete(w, r)
}

func (ht *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "delete") }(r.Context())

	if err := ht.imageSvc.Delete(r.Context(), domain.ObjectID(location(r))); err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("delete: %w", err)
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

// HandleDownload serves the object at the location named by the URL.
// The optional width parameter requests a resized copy.
func (ht *HTTPTransport) HandleDownload(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDownload(w, r)
}

func (ht *HTTPTransport) handleDownload(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "download") }(r.Context())

	var width int

	if widthStr := r.URL.Query().Get(ht.cfg.URLWidthParam); widthStr != "" {
		width, err = strconv.Atoi(widthStr)
		if err != nil {
			err = errors.Join(domain.ErrInvalidImageWidth, err)
			http_.WriteError(w, err)

			return fmt.Errorf("parse width: %w", err)
		}
	}

	bucket, objectPath := location(r)

	image, err := ht.imageSvc.Fetch(r.Context(), domain.ObjectID(bucket, objectPath), width)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("fetch: %w", err)
	}

	if download, _ := strconv.ParseBool(r.URL.Query().Get(ht.cfg.URLFileDownloadParam)); download {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(objectPath)))
	}

	w.Header().Set("Content-Type", image.MIMEType())
	w.Header().Set("Content-Length", strconv.FormatInt(image.Size(), 10))
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := image.WriteTo(w); err != nil {
		return fmt.Errorf("write to: %w", err)
	}

	return nil
}

// location returns the bucket and the cleaned object path of the request.
func location(r *http.Request) (string, string) {
	vars := mux.Vars(r)

	return vars["bucket"], strings.TrimPrefix(path.Clean("/"+vars["path"]), "/")
}
