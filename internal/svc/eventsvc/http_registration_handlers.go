package eventsvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mkrupp/eventhub/internal/domain"
	http_ "github.com/mkrupp/eventhub/internal/infra/transport/http"
)

// HandleRegister registers the caller to the event in the URL.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "register") }(r.Context())

	registration, err := ht.eventSvc.Register(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("register: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, registration)
}

// HandleRegistrations lists the registrations of the caller's event in the URL.
func (ht *HTTPTransport) HandleRegistrations(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegistrations(w, r)
}

func (ht *HTTPTransport) handleRegistrations(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "registrations") }(r.Context())

	registrations, err := ht.eventSvc.Registrations(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("registrations: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, registrations)
}

// HandleMyRegistrations lists the caller's registrations.
func (ht *HTTPTransport) HandleMyRegistrations(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleMyRegistrations(w, r)
}

func (ht *HTTPTransport) handleMyRegistrations(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) {
		http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "my registrations")
	}(r.Context())

	registrations, err := ht.eventSvc.MyRegistrations(r.Context())
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("my registrations: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, registrations)
}

// HandleConfirm confirms the registration in the URL.
func (ht *HTTPTransport) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleConfirm(w, r)
}

func (ht *HTTPTransport) handleConfirm(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "confirm") }(r.Context())

	return ht.noContent(w, ht.eventSvc.Confirm(r.Context(), mux.Vars(r)["id"]))
}

// HandleCancel removes the registration in the URL.
func (ht *HTTPTransport) HandleCancel(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleCancel(w, r)
}

func (ht *HTTPTransport) handleCancel(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "cancel") }(r.Context())

	return ht.noContent(w, ht.eventSvc.CancelRegistration(r.Context(), mux.Vars(r)["id"]))
}

// HandleReview records a JSON domain.ReviewRequest for the event in the URL.
func (ht *HTTPTransport) HandleReview(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleReview(w, r)
}

func (ht *HTTPTransport) handleReview(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "review") }(r.Context())

	var req domain.ReviewRequest
	if err := http_.DecodeJSON(r, &req); err != nil {
		http_.WriteError(w, err)

		return err
	}

	review, err := ht.eventSvc.Review(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("review: %w", err)
	}

	return http_.WriteJSON(w, http.StatusCreated, review)
}

// HandleReviews lists the reviews of the event in the URL.
func (ht *HTTPTransport) HandleReviews(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleReviews(w, r)
}

func (ht *HTTPTransport) handleReviews(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "reviews") }(r.Context())

	reviews, err := ht.eventSvc.Reviews(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("reviews: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, reviews)
}

// HandleMyReviews lists the caller's reviews.
func (ht *HTTPTransport) HandleMyReviews(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleMyReviews(w, r)
}

func (ht *HTTPTransport) handleMyReviews(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "my reviews") }(r.Context())

	reviews, err := ht.eventSvc.MyReviews(r.Context())
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("my reviews: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, reviews)
}

// HandlePending lists the events awaiting approval.
func (ht *HTTPTransport) HandlePending(w http.ResponseWriter, r *http.Request) {
	_ = ht.handlePending(w, r)
}

func (ht *HTTPTransport) handlePending(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "pending events") }(r.Context())

	events, err := ht.eventSvc.Pending(r.Context())
	if err != nil {
		http_.WriteError(w, err)

		return fmt.Errorf("pending: %w", err)
	}

	return http_.WriteJSON(w, http.StatusOK, events)
}

// HandleApprove publishes the event in the URL.
func (ht *HTTPTransport) HandleApprove(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleApprove(w, r)
}

func (ht *HTTPTransport) handleApprove(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "approve") }(r.Context())

	return ht.noContent(w, ht.eventSvc.Approve(r.Context(), mux.Vars(r)["id"]))
}

// HandleReject removes the event in the URL.
func (ht *HTTPTransport) HandleReject(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleReject(w, r)
}

func (ht *HTTPTransport) handleReject(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) { http_.LogResult(ctx, http_.RequestLogger(ht.log, r), err, "reject") }(r.Context())

	return ht.noContent(w, ht.eventSvc.Reject(r.Context(), mux.Vars(r)["id"]))
}
