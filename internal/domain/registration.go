package domain

import (
	"errors"
	"time"
)

var (
	// ErrRegistrationNotFound is returned when no registration has the given ID.
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrAlreadyRegistered is returned when a user registers twice to the same event.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrEventFull is returned when confirming beyond the event's capacity.
	ErrEventFull = errors.New("event full")
	// ErrEventClosed is returned for registrations to held, unapproved or deleted events.
	ErrEventClosed = errors.New("event closed")
)

// RegistrationStatus is the state of a registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pendente"
	RegistrationConfirmed RegistrationStatus = "confirmada"
	RegistrationExpired   RegistrationStatus = "expirada"
)

// Registration is a user's request to attend an event. Pending registrations
// of a full event form its waitlist in creation order.
type Registration struct {
	ID        string             `json:"id"`
	EventID   string             `json:"eventId"`
	UserID    string             `json:"userId"`
	Status    RegistrationStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
}

// RegistrationWithUser is shown to organizers.
type RegistrationWithUser struct {
	Registration
	UserName     string  `json:"userName"`
	UserImageURL *string `json:"userImageUrl"`
}

// RegistrationWithEvent is shown to attendees.
type RegistrationWithEvent struct {
	Registration
	EventName     string    `json:"eventName"`
	EventStartsAt time.Time `json:"eventStartsAt"`
	EventHeld     bool      `json:"eventHeld"`
}
