package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mkrupp/eventhub/internal/domain"
)

// CreateProfile inserts the profile of the signed-in account.
func (c *Client) CreateProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	var created domain.Profile
	if err := c.doJSON(ctx, http.MethodPost, "/rest/v1/profiles", profile, &created); err != nil {
		return domain.Profile{}, fmt.Errorf("create profile: %w", err) //nolint:exhaustruct
	}

	return created, nil
}

// Profile returns the profile of the signed-in account.
func (c *Client) Profile(ctx context.Context) (domain.Profile, error) {
	var profile domain.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/rest/v1/profiles/me", nil, &profile); err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err) //nolint:exhaustruct
	}

	return profile, nil
}

// UpdateProfile changes a single field of the signed-in account's profile.
func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.Profile, error) {
	var profile domain.Profile
	if err := c.doJSON(ctx, http.MethodPatch, "/rest/v1/profiles/me", update, &profile); err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err) //nolint:exhaustruct
	}

	return profile, nil
}

// NameAvailable reports whether name can still be chosen as display name.
func (c *Client) NameAvailable(ctx context.Context, name string) (bool, error) {
	var availability domain.NameAvailability

	path := "/rest/v1/profiles/available?" + url.Values{"name": {name}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &availability); err != nil {
		return false, fmt.Errorf("check name: %w", err)
	}

	return availability.Available, nil
}

// SearchCities returns the municipalities matching query. Lookup failures
// degrade to no results.
func (c *Client) SearchCities(ctx context.Context, query string) []domain.Municipality {
	var cities []domain.Municipality

	path := "/rest/v1/cities?" + url.Values{"q": {query}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &cities); err != nil {
		c.log.WarnContext(ctx, "city search failed", "query", query, "error", err)

		return []domain.Municipality{}
	}

	return cities
}

// Feed returns a page of approved upcoming events.
func (c *Client) Feed(ctx context.Context, query domain.FeedQuery) (domain.FeedPage, error) {
	values := url.Values{}

	if query.Name != "" {
		values.Set("name", query.Name)
	}

	if query.CityID != nil {
		values.Set("city", strconv.Itoa(*query.CityID))
	}

	if query.Page > 0 {
		values.Set("page", strconv.Itoa(query.Page))
	}

	if query.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(query.PageSize))
	}

	path := "/rest/v1/feed"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var page domain.FeedPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return domain.FeedPage{}, fmt.Errorf("get feed: %w", err) //nolint:exhaustruct
	}

	return page, nil
}

// Event returns the event with the given ID.
func (c *Client) Event(ctx context.Context, id string) (domain.EventDetails, error) {
	var details domain.EventDetails
	if err := c.doJSON(ctx, http.MethodGet, "/rest/v1/events/"+url.PathEscape(id), nil, &details); err != nil {
		return domain.EventDetails{}, fmt.Errorf("get event %s: %w", id, err) //nolint:exhaustruct
	}

	return details, nil
}

// CreateEvent submits an event for moderation.
func (c *Client) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	var created domain.Event
	if err := c.doJSON(ctx, http.MethodPost, "/rest/v1/events", event, &created); err != nil {
		return domain.Event{}, fmt.Errorf("create event: %w", err) //nolint:exhaustruct
	}

	return created, nil
}

// AddEventImages appends gallery image URLs to an event of the signed-in user.
func (c *Client) AddEventImages(ctx context.Context, id string, urls []string) (domain.Event, error) {
	var event domain.Event

	path := "/rest/v1/events/" + url.PathEscape(id) + "/images"
	if err := c.doJSON(ctx, http.MethodPost, path, domain.EventImagesRequest{URLs: urls}, &event); err != nil {
		return domain.Event{}, fmt.Errorf("add images to %s: %w", id, err) //nolint:exhaustruct
	}

	return event, nil
}

// Register signs the signed-in user up for an event.
func (c *Client) Register(ctx context.Context, eventID string) (domain.Registration, error) {
	var registration domain.Registration

	path := "/rest/v1/events/" + url.PathEscape(eventID) + "/registrations"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &registration); err != nil {
		return domain.Registration{}, fmt.Errorf("register to %s: %w", eventID, err) //nolint:exhaustruct
	}

	return registration, nil
}
