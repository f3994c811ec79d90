package eventsvc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkrupp/eventhub/internal/domain"
	context_ "github.com/mkrupp/eventhub/internal/infra/context"
	"github.com/mkrupp/eventhub/internal/infra/database"
	"github.com/mkrupp/eventhub/internal/repo/event"
	"github.com/mkrupp/eventhub/internal/svc/eventsvc"
)

//nolint:gochecknoglobals
var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

type fakeProfiles map[string]domain.Profile

func (f fakeProfiles) Lookup(_ context.Context, id string) (domain.Profile, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}

	return domain.Profile{}, domain.ErrProfileNotFound //nolint:exhaustruct
}

type fakeCities map[int]domain.Municipality

func (f fakeCities) Get(_ context.Context, code int) (domain.Municipality, error) {
	if m, ok := f[code]; ok {
		return m, nil
	}

	return domain.Municipality{}, domain.ErrMunicipalityNotFound //nolint:exhaustruct
}

func setupEventService(t *testing.T) *eventsvc.EventService {
	t.Helper()

	svc, err := eventsvc.NewEventService(context.Background(),
		event.SQLiteEventRepositoryFactory(event.SQLiteEventRepositoryConfig{DatabasePath: database.MemoryPath}),
		fakeProfiles{
			"organizer": {ID: "organizer", Name: "Maria Silva"}, //nolint:exhaustruct
			"attendee":  {ID: "attendee", Name: "João Souza"},   //nolint:exhaustruct
		},
		fakeCities{
			3162500: {Code: 3162500, Name: "São João del-Rei", StateCode: 31, UF: "MG"},
		},
	)
	if err != nil {
		t.Fatalf("new event service: %v", err)
	}

	svc.Now = func() time.Time { return testNow }

	t.Cleanup(func() { _ = svc.Close() })

	return svc
}

func asUser(id string) context.Context {
	return context_.WithUser(context.Background(), domain.User{ID: id}) //nolint:exhaustruct
}

func asAdmin() context.Context {
	return context_.WithUser(context.Background(), domain.User{ID: "admin", Role: domain.RoleAdmin}) //nolint:exhaustruct
}

func newEvent(name string, capacity int) domain.Event {
	city := 3162500

	return domain.Event{ //nolint:exhaustruct
		Name:      name,
		CityID:    &city,
		Capacity:  &capacity,
		StartsAt:  testNow.Add(7 * 24 * time.Hour),
		ImageURLs: []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg", " "},
	}
}

// createApproved publishes an event of organizer and approves it.
func createApproved(t *testing.T, svc *eventsvc.EventService, name string, capacity int) domain.Event {
	t.Helper()

	e, err := svc.Create(asUser("organizer"), newEvent(name, capacity))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Approve(asAdmin(), e.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	return e
}

func TestEventService_CreateAndModerate(t *testing.T) {
	t.Parallel()

	svc := setupEventService(t)

	if _, err := svc.Create(context.Background(), newEvent("Festa", 10)); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("anonymous Create() error = %v, want %v", err, domain.ErrUnauthorized)
	}

	if _, err := svc.Create(asUser("organizer"), newEvent("", 10)); !errors.Is(err, domain.ErrInvalidEvent) {
		t.Errorf("Create() without name error = %v, want %v", err, domain.ErrInvalidEvent)
	}

	e, err := svc.Create(asUser("organizer"), newEvent("Festa junina", 10))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if e.Approved || e.CreatorID != "organizer" || len(e.ImageURLs) != 1 {
		t.Errorf("Create() = %+v", e)
	}

	if _, err := svc.Get(context.Background(), e.ID); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("anonymous Get() of pending event error = %v, want %v", err, domain.ErrEventNotFound)
	}

	details, err := svc.Get(asUser("organizer"), e.ID)
	if err != nil {
		t.Fatalf("creator Get() error = %v", err)
	}

	if details.CreatorName != "Maria Silva" || details.City == nil || details.City.UF != "MG" {
		t.Errorf("Get() details = %+v", details)
	}

	if _, err := svc.Pending(asUser("organizer")); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-admin Pending() error = %v, want %v", err, domain.ErrUnauthorized)
	}

	pending, err := svc.Pending(asAdmin())
	if err != nil || len(pending) != 1 || pending[0].ID != e.ID {
		t.Fatalf("Pending() = %+v, %v", pending, err)
	}

	if err := svc.Approve(asAdmin(), e.ID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	if _, err := svc.Get(context.Background(), e.ID); err != nil {
		t.Errorf("anonymous Get() of approved event error = %v", err)
	}

	rejected, err := svc.Create(asUser("organizer"), newEvent("Spam", 1))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Reject(asAdmin(), rejected.ID); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	if _, err := svc.Get(asAdmin(), rejected.ID); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("Get() of rejected event error = %v, want %v", err, domain.ErrEventNotFound)
	}
}

func TestEventService_UpdateAndDelete(t *testing.T) {
	t.Parallel()

	svc := setupEventService(t)
	e := createApproved(t, svc, "Festa", 10)

	update := domain.EventUpdate{Field: domain.EventFieldDescription, Value: "  quadrilha  "}

	if _, err := svc.Update(asUser("attendee"), e.ID, update); !errors.Is(err, domain.ErrNotEventOwner) {
		t.Errorf("foreign Update() error = %v, want %v", err, domain.ErrNotEventOwner)
	}

	updated, err := svc.Update(asUser("organizer"), e.ID, update)
	if err != nil || updated.Description != "quadrilha" {
		t.Errorf("Update() = %+v, %v", updated, err)
	}

	_, err = svc.Update(asUser("organizer"), e.ID, domain.EventUpdate{Field: "creatorId", Value: "x"})
	if !errors.Is(err, domain.ErrFieldNotEditable) {
		t.Errorf("Update() of creator error = %v, want %v", err, domain.ErrFieldNotEditable)
	}

	withImages, err := svc.AddImages(asUser("organizer"), e.ID, []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/b.jpg",
	})
	if err != nil || len(withImages.ImageURLs) != 2 {
		t.Errorf("AddImages() = %v, %v", withImages.ImageURLs, err)
	}

	mine, err := svc.Mine(asUser("organizer"))
	if err != nil || len(mine) != 1 {
		t.Errorf("Mine() = %+v, %v", mine, err)
	}

	if err := svc.Delete(asUser("attendee"), e.ID); !errors.Is(err, domain.ErrNotEventOwner) {
		t.Errorf("foreign Delete() error = %v, want %v", err, domain.ErrNotEventOwner)
	}

	if err := svc.Delete(asAdmin(), e.ID); err != nil {
		t.Fatalf("admin Delete() error = %v", err)
	}

	page, err := svc.Feed(context.Background(), domain.FeedQuery{}) //nolint:exhaustruct
	if err != nil || page.Total != 0 {
		t.Errorf("Feed() after delete = %+v, %v", page, err)
	}
}

func TestEventService_Feed(t *testing.T) {
	t.Parallel()

	svc := setupEventService(t)

	for _, name := range []string{"Festa junina", "Festa do peão", "Show de rock"} {
		createApproved(t, svc, name, 10)
	}

	if _, err := svc.Create(asUser("organizer"), newEvent("Festa pendente", 10)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	page, err := svc.Feed(context.Background(), domain.FeedQuery{Name: " festa ", PageSize: 1}) //nolint:exhaustruct
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}

	if page.Total != 2 || page.TotalPages != 2 || page.Page != 1 || len(page.Events) != 1 {
		t.Errorf("Feed() = %+v", page)
	}

	if page.Events[0].CreatorName != "Maria Silva" || page.Events[0].City == nil {
		t.Errorf("Feed() details = %+v", page.Events[0])
	}
}

func TestEventService_Registrations(t *testing.T) {
	t.Parallel()

	svc := setupEventService(t)
	e := createApproved(t, svc, "Festa", 1)

	first, err := svc.Register(asUser("attendee"), e.ID)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if first.Status != domain.RegistrationPending {
		t.Errorf("Register() status = %s, want %s", first.Status, domain.RegistrationPending)
	}

	if _, err := svc.Register(asUser("attendee"), e.ID); !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Errorf("second Register() error = %v, want %v", err, domain.ErrAlreadyRegistered)
	}

	second, err := svc.Register(asUser("ghost"), e.ID)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Registrations(asUser("attendee"), e.ID); !errors.Is(err, domain.ErrNotEventOwner) {
		t.Errorf("foreign Registrations() error = %v, want %v", err, domain.ErrNotEventOwner)
	}

	registrations, err := svc.Registrations(asUser("organizer"), e.ID)
	if err != nil || len(registrations) != 2 {
		t.Fatalf("Registrations() = %+v, %v", registrations, err)
	}

	if registrations[0].UserName != "João Souza" || registrations[1].UserName != "" {
		t.Errorf("Registrations() names = %q, %q", registrations[0].UserName, registrations[1].UserName)
	}

	if err := svc.Confirm(asUser("attendee"), first.ID); !errors.Is(err, domain.ErrNotEventOwner) {
		t.Errorf("attendee Confirm() error = %v, want %v", err, domain.ErrNotEventOwner)
	}

	if err := svc.Confirm(asUser("organizer"), first.ID); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	if err := svc.Confirm(asUser("organizer"), second.ID); !errors.Is(err, domain.ErrEventFull) {
		t.Errorf("Confirm() beyond capacity error = %v, want %v", err, domain.ErrEventFull)
	}

	mine, err := svc.MyRegistrations(asUser("attendee"))
	if err != nil || len(mine) != 1 || mine[0].EventName != "Festa" || mine[0].Status != domain.RegistrationConfirmed {
		t.Errorf("MyRegistrations() = %+v, %v", mine, err)
	}

	if err := svc.CancelRegistration(asUser("attendee"), second.ID); !errors.Is(err, domain.ErrNotEventOwner) {
		t.Errorf("foreign CancelRegistration() error = %v, want %v", err, domain.ErrNotEventOwner)
	}

	if err := svc.CancelRegistration(asUser("organizer"), second.ID); err != nil {
		t.Errorf("organizer CancelRegistration() error = %v", err)
	}

	if err := svc.MarkHeld(asUser("organizer"), e.ID); err != nil {
		t.Fatalf("MarkHeld() error = %v", err)
	}

	if _, err := svc.Register(asUser("late"), e.ID); !errors.Is(err, domain.ErrEventClosed) {
		t.Errorf("Register() after held error = %v, want %v", err, domain.ErrEventClosed)
	}
}

func TestEventService_CancelExpiredRegistration(t *testing.T) {
	t.Parallel()

	svc := setupEventService(t)
	e := createApproved(t, svc, "Festa", 10)

	registration, err := svc.Register(asUser("attendee"), e.ID)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.MarkHeld(asUser("organizer"), e.ID); err != nil {
		t.Fatalf("MarkHeld() error = %v", err)
	}

	if err := svc.CancelRegistration(asUser("attendee"), registration.ID); !errors.Is(err, domain.ErrEventClosed) {
		t.Errorf("expired CancelRegistration() error = %v, want %v", err, domain.ErrEventClosed)
	}

	if err := svc.CancelRegistration(asUser("organizer"), registration.ID); err != nil {
		t.Errorf("organizer CancelRegistration() error = %v", err)
	}
}

func TestEventService_Reviews(t *testing.T) {
	t.Parallel()

	svc := setupEventService(t)
	e := createApproved(t, svc, "Festa", 10)

	registration, err := svc.Register(asUser("attendee"), e.ID)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := svc.Register(asUser("pending"), e.ID); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.Confirm(asUser("organizer"), registration.ID); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	comment := "  ótima festa "
	req := domain.ReviewRequest{Rating: 5, Comment: &comment}

	if _, err := svc.Review(asUser("attendee"), e.ID, req); !errors.Is(err, domain.ErrNotEligibleToReview) {
		t.Errorf("Review() before held error = %v, want %v", err, domain.ErrNotEligibleToReview)
	}

	if err := svc.MarkHeld(asUser("organizer"), e.ID); err != nil {
		t.Fatalf("MarkHeld() error = %v", err)
	}

	tests := []struct {
		name    string
		user    string
		req     domain.ReviewRequest
		wantErr error
	}{
		{"rating too low", "attendee", domain.ReviewRequest{Rating: 0}, domain.ErrInvalidRating},            //nolint:exhaustruct
		{"rating too high", "attendee", domain.ReviewRequest{Rating: 6}, domain.ErrInvalidRating},           //nolint:exhaustruct
		{"expired registration", "pending", domain.ReviewRequest{Rating: 3}, domain.ErrNotEligibleToReview}, //nolint:exhaustruct
		{"not registered", "stranger", domain.ReviewRequest{Rating: 3}, domain.ErrNotEligibleToReview},      //nolint:exhaustruct
		{"attended", "attendee", req, nil},
		{"twice", "attendee", req, domain.ErrAlreadyReviewed},
	}

	for _, tt := range tests {
		if _, err := svc.Review(asUser(tt.user), e.ID, tt.req); !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: Review() error = %v, want %v", tt.name, err, tt.wantErr)
		}
	}

	reviews, err := svc.Reviews(context.Background(), e.ID)
	if err != nil || len(reviews) != 1 {
		t.Fatalf("Reviews() = %+v, %v", reviews, err)
	}

	if reviews[0].UserName != "João Souza" || reviews[0].Comment == nil || *reviews[0].Comment != "ótima festa" {
		t.Errorf("Reviews()[0] = %+v", reviews[0])
	}

	mine, err := svc.MyReviews(asUser("attendee"))
	if err != nil || len(mine) != 1 || mine[0].Rating != 5 {
		t.Errorf("MyReviews() = %+v, %v", mine, err)
	}
}
