package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrProfileNotFound is returned when no profile exists for an account or name.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileAlreadyExists is returned when a profile row for the account already exists.
	ErrProfileAlreadyExists = errors.New("profile already exists")
	// ErrProfileNameTaken is returned when another profile uses the same display name.
	ErrProfileNameTaken = errors.New("profile name taken")
	// ErrInvalidProfile is returned when a profile field fails validation.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrFieldNotEditable is returned for updates of unknown or read-only fields.
	ErrFieldNotEditable = errors.New("field not editable")
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// AccountKind distinguishes attendees from organizers.
type AccountKind string

const (
	AccountKindClient    AccountKind = "cliente"
	AccountKindOrganizer AccountKind = "organizador"
)

// Valid reports whether k is a known account kind.
func (k AccountKind) Valid() bool {
	return k == AccountKindClient || k == AccountKindOrganizer
}

// Profile is the application-level user record keyed by the account ID.
type Profile struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Phone     *string     `json:"phone"`
	BirthDate *string     `json:"birthDate"` // DateLayout
	Kind      AccountKind `json:"kind"`
	CityID    *int        `json:"cityId"` // IBGE municipality code
	ImageURL  *string     `json:"imageUrl"`
	Deleted   bool        `json:"deleted,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Validate checks the attributes every profile needs.
func (p Profile) Validate(now time.Time) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidProfile, p.Kind)
	}

	if p.BirthDate != nil {
		if err := ValidateBirthDate(*p.BirthDate, now); err != nil {
			return err
		}
	}

	return nil
}

// ProfileField names a profile attribute that can be edited on its own.
type ProfileField string

const (
	ProfileFieldName      ProfileField = "name"
	ProfileFieldPhone     ProfileField = "phone"
	ProfileFieldBirthDate ProfileField = "birthDate"
	ProfileFieldKind      ProfileField = "kind"
	ProfileFieldCity      ProfileField = "cityId"
	ProfileFieldImageURL  ProfileField = "imageUrl"
)

// Apply parses value and stores it in the field of p. An empty value clears
// nullable fields.
func (f ProfileField) Apply(p *Profile, value string, now time.Time) error {
	value = strings.TrimSpace(value)

	switch f {
	case ProfileFieldName:
		if value == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidProfile)
		}

		p.Name = value
	case ProfileFieldPhone:
		p.Phone = optional(value)
	case ProfileFieldBirthDate:
		if value != "" {
			if err := ValidateBirthDate(value, now); err != nil {
				return err
			}
		}

		p.BirthDate = optional(value)
	case ProfileFieldKind:
		if !AccountKind(value).Valid() {
			return fmt.Errorf("%w: unknown kind %q", ErrInvalidProfile, value)
		}

		p.Kind = AccountKind(value)
	case ProfileFieldCity:
		if value == "" {
			p.CityID = nil

			return nil
		}

		code, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: city: %w", ErrInvalidProfile, err)
		}

		p.CityID = &code
	case ProfileFieldImageURL:
		p.ImageURL = optional(value)
	default:
		return fmt.Errorf("%w: %q", ErrFieldNotEditable, f)
	}

	return nil
}

// ProfileUpdate is the payload of a single-field profile edit.
type ProfileUpdate struct {
	Field ProfileField `json:"field"`
	Value string       `json:"value"`
}

// Age limits of registered users.
const (
	MinAge = 18
	MaxAge = 120
)

// ValidateBirthDate checks that date is a past date of someone between MinAge
// and MaxAge years old.
func ValidateBirthDate(date string, now time.Time) error {
	born, err := time.Parse(DateLayout, date)
	if err != nil {
		return fmt.Errorf("%w: birth date: %w", ErrInvalidProfile, err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch age := yearsBetween(born, today); {
	case born.After(today):
		return fmt.Errorf("%w: birth date is in the future", ErrInvalidProfile)
	case age > MaxAge:
		return fmt.Errorf("%w: birth date is more than %d years ago", ErrInvalidProfile, MaxAge)
	case age < MinAge:
		return fmt.Errorf("%w: must be at least %d years old", ErrInvalidProfile, MinAge)
	}

	return nil
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}

	return years
}

func optional(value string) *string {
	if value == "" {
		return nil
	}

	return &value
}

// NameAvailability answers whether a display name can still be chosen.
type NameAvailability struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}
