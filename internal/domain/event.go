package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrEventNotFound is returned when no (non-deleted) event has the given ID.
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidEvent is returned when an event attribute fails validation.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrNotEventOwner is returned when a non-creator modifies an event.
	ErrNotEventOwner = errors.New("not event owner")
)

// Feed paging defaults.
const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// Event is an occurrence users can register to. Capacity nil means unlimited.
type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CityID      *int       `json:"cityId"`
	Capacity    *int       `json:"capacity"`
	Free        bool       `json:"free"`
	Held        bool       `json:"held"`
	Approved    bool       `json:"approved"`
	Deleted     bool       `json:"deleted,omitempty"`
	StartsAt    time.Time  `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
	BannerURL   *string    `json:"bannerUrl"`
	ImageURLs   []string   `json:"imageUrls"`
	CreatorID   string     `json:"creatorId"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Validate checks the attributes required to publish an event.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}

	if e.StartsAt.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidEvent)
	}

	if e.EndsAt != nil && e.EndsAt.Before(e.StartsAt) {
		return fmt.Errorf("%w: ends before it starts", ErrInvalidEvent)
	}

	if e.Capacity != nil && *e.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidEvent)
	}

	if len(e.ImageURLs) > MaxEventImages {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, ErrTooManyImages)
	}

	return nil
}

// Pending reports whether the event awaits moderation.
func (e Event) Pending() bool {
	return !e.Approved && !e.Held && !e.Deleted
}

// EventDetails is an event joined with its creator and city.
type EventDetails struct {
	Event
	CreatorName string        `json:"creatorName"`
	City        *Municipality `json:"city,omitempty"`
}

// EventField names an event attribute that can be edited on its own.
type EventField string

const (
	EventFieldName        EventField = "name"
	EventFieldDescription EventField = "description"
	EventFieldCity        EventField = "cityId"
	EventFieldCapacity    EventField = "capacity"
	EventFieldFree        EventField = "free"
	EventFieldStartsAt    EventField = "startsAt"
	EventFieldEndsAt      EventField = "endsAt"
	EventFieldBannerURL   EventField = "bannerUrl"
)

// Apply parses value and stores it in the field of e. Times use RFC 3339.
func (f EventField) Apply(e *Event, value string) error {
	value = strings.TrimSpace(value)

	switch f {
	case EventFieldName:
		e.Name = value
	case EventFieldDescription:
		e.Description = value
	case EventFieldCity:
		code, err := optionalInt(value)
		if err != nil {
			return fmt.Errorf("%w: city: %w", ErrInvalidEvent, err)
		}

		e.CityID = code
	case EventFieldCapacity:
		capacity, err := optionalInt(value)
		if err != nil {
			return fmt.Errorf("%w: capacity: %w", ErrInvalidEvent, err)
		}

		e.Capacity = capacity
	case EventFieldFree:
		free, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: free: %w", ErrInvalidEvent, err)
		}

		e.Free = free
	case EventFieldStartsAt:
		startsAt, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("%w: start: %w", ErrInvalidEvent, err)
		}

		e.StartsAt = startsAt
	case EventFieldEndsAt:
		if value == "" {
			e.EndsAt = nil

			break
		}

		endsAt, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("%w: end: %w", ErrInvalidEvent, err)
		}

		e.EndsAt = &endsAt
	case EventFieldBannerURL:
		e.BannerURL = optional(value)
	default:
		return fmt.Errorf("%w: %q", ErrFieldNotEditable, f)
	}

	return e.Validate()
}

// EventUpdate is the payload of a single-field event edit.
type EventUpdate struct {
	Field EventField `json:"field"`
	Value string     `json:"value"`
}

// FeedQuery filters the public event feed.
type FeedQuery struct {
	Name     string `json:"name,omitempty"`
	CityID   *int   `json:"cityId,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// Normalize clamps paging to sane values.
func (q FeedQuery) Normalize() FeedQuery {
	q.Name = strings.TrimSpace(q.Name)

	if q.Page < 1 {
		q.Page = 1
	}

	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}

	q.PageSize = min(q.PageSize, MaxPageSize)
	// keeps Offset within int
	q.Page = min(q.Page, math.MaxInt/q.PageSize)

	return q
}

// Offset returns the number of rows preceding the page.
func (q FeedQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// FeedPage is one page of the public feed.
type FeedPage struct {
	Events     []EventDetails `json:"events"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	Total      int            `json:"total"`
}

// TotalPages returns the number of pages needed for total rows.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 {
		return 0
	}

	return (total + pageSize - 1) / pageSize
}

func optionalInt(value string) (*int, error) {
	if value == "" {
		return nil, nil //nolint:nilnil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("parse int: %w", err)
	}

	return &n, nil
}

// EventImagesRequest adds gallery images to an event.
type EventImagesRequest struct {
	URLs []string `json:"urls"`
}

// AddImages appends the URLs not yet in the gallery of e, keeping order.
func (e *Event) AddImages(urls ...string) error {
	seen := make(map[string]bool, len(e.ImageURLs))
	for _, url := range e.ImageURLs {
		seen[url] = true
	}

	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" || seen[url] {
			continue
		}

		seen[url] = true
		e.ImageURLs = append(e.ImageURLs, url)
	}

	if len(e.ImageURLs) > MaxEventImages {
		return fmt.Errorf("%w: %d exceeds %d", ErrTooManyImages, len(e.ImageURLs), MaxEventImages)
	}

	return nil
}
