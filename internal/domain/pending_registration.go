package domain

import (
	"fmt"
	"strings"
	"time"
)

// PendingRegistration holds the profile attributes collected at signup until
// the account's email address is confirmed. It never contains the password.
type PendingRegistration struct {
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Phone     string      `json:"phone,omitempty"`
	BirthDate string      `json:"birthDate,omitempty"` // DateLayout
	Kind      AccountKind `json:"kind"`
	CityID    *int        `json:"cityId,omitempty"`
}

// Validate checks the attributes the way the signup form does.
func (p PendingRegistration) Validate(now time.Time) error {
	if strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidProfile)
	}

	return p.Profile("").Validate(now)
}

// Profile returns the profile row to create for the confirmed account.
func (p PendingRegistration) Profile(accountID string) Profile {
	return Profile{
		ID:        accountID,
		Name:      strings.TrimSpace(p.Name),
		Phone:     optional(strings.TrimSpace(p.Phone)),
		BirthDate: optional(p.BirthDate),
		Kind:      p.Kind,
		CityID:    p.CityID,
	}
}
