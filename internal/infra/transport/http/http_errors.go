package http

import (
	"errors"
	"net/http"
	"os"

	"github.com/mkrupp/eventhub/internal/domain"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is ordered: the first sentinel matched by errors.Is wins.
//
//nolint:gochecknoglobals
var errorMappings = []errorMapping{
	{domain.ErrNoAuthToken, http.StatusUnauthorized, "no_auth_token"},
	{domain.ErrInvalidAuthToken, http.StatusUnauthorized, "invalid_auth_token"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrEmailNotConfirmed, http.StatusForbidden, "email_not_confirmed"},
	{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{domain.ErrNotEventOwner, http.StatusForbidden, "not_event_owner"},
	{domain.ErrNotEligibleToReview, http.StatusForbidden, "not_eligible_to_review"},
	{domain.ErrAccountAlreadyExists, http.StatusConflict, "account_already_exists"},
	{domain.ErrProfileAlreadyExists, http.StatusConflict, "profile_already_exists"},
	{domain.ErrProfileNameTaken, http.StatusConflict, "profile_name_taken"},
	{domain.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
	{domain.ErrAlreadyReviewed, http.StatusConflict, "already_reviewed"},
	{domain.ErrEventFull, http.StatusConflict, "event_full"},
	{domain.ErrMediaAlreadyExists, http.StatusConflict, "media_already_exists"},
	{domain.ErrEventClosed, http.StatusConflict, "event_closed"},
	{domain.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{domain.ErrProfileNotFound, http.StatusNotFound, "profile_not_found"},
	{domain.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
	{domain.ErrRegistrationNotFound, http.StatusNotFound, "registration_not_found"},
	{domain.ErrMunicipalityNotFound, http.StatusNotFound, "municipality_not_found"},
	{domain.ErrMediaNotFound, http.StatusNotFound, "media_not_found"},
	{domain.ErrUnknownBucket, http.StatusNotFound, "unknown_bucket"},
	{os.ErrNotExist, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidConfirmationToken, http.StatusBadRequest, "invalid_confirmation_token"},
	{domain.ErrWeakPassword, http.StatusBadRequest, "weak_password"},
	{domain.ErrInvalidEmail, http.StatusBadRequest, "invalid_email"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrInvalidProfile, http.StatusBadRequest, "invalid_profile"},
	{domain.ErrFieldNotEditable, http.StatusBadRequest, "field_not_editable"},
	{domain.ErrInvalidEvent, http.StatusBadRequest, "invalid_event"},
	{domain.ErrInvalidRating, http.StatusBadRequest, "invalid_rating"},
	{domain.ErrTooManyImages, http.StatusBadRequest, "too_many_images"},
	{domain.ErrNoMediaID, http.StatusBadRequest, "no_media_id"},
	{domain.ErrInvalidImageWidth, http.StatusBadRequest, "invalid_image_width"},
	{domain.ErrImageTypeNotSupported, http.StatusUnsupportedMediaType, "image_type_not_supported"},
	{domain.ErrImageTypeMismatch, http.StatusUnsupportedMediaType, "image_type_mismatch"},
	{domain.ErrImageTooLarge, http.StatusRequestEntityTooLarge, "image_too_large"},
	{domain.ErrMediaTooLarge, http.StatusRequestEntityTooLarge, "media_too_large"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
}

// ErrBadRequest marks malformed requests.
var ErrBadRequest = errors.New("bad request")

// StatusOf returns the HTTP status and error code for err.
func StatusOf(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}

	return http.StatusInternalServerError, "internal"
}

// WriteError writes err as an ErrorResponse. Internal errors are not exposed.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusOf(err)

	message := http.StatusText(status)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}

	_ = WriteJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// ErrorFromResponse turns a decoded ErrorResponse back into an error wrapping
// the matching sentinel.
func ErrorFromResponse(status int, resp ErrorResponse) error {
	for _, m := range errorMappings {
		if m.code == resp.Code {
			return &ResponseError{Status: status, Code: resp.Code, Message: resp.Message, sentinel: m.err}
		}
	}

	return &ResponseError{Status: status, Code: resp.Code, Message: resp.Message, sentinel: nil}
}

// ResponseError is a failed API call as seen by a client.
type ResponseError struct {
	Status   int
	Code     string
	Message  string
	sentinel error
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return http.StatusText(e.Status)
}

// Unwrap returns the sentinel matching the error code, if known.
func (e *ResponseError) Unwrap() error {
	return e.sentinel
}
