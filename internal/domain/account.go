package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountAlreadyExists is returned when signing up with an email that is already registered.
	ErrAccountAlreadyExists = errors.New("account already exists")
	// ErrAccountNotFound is returned when looking up a non-existent account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned when the email/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotConfirmed is returned when signing in before the email address was confirmed.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrInvalidConfirmationToken is returned for unknown or expired confirmation tokens.
	ErrInvalidConfirmationToken = errors.New("invalid confirmation token")
	// ErrWeakPassword is returned when the password does not meet the minimum length.
	ErrWeakPassword = errors.New("weak password")
	// ErrInvalidEmail is returned for malformed email addresses.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrRateLimited is returned when an action is repeated too quickly.
	ErrRateLimited = errors.New("rate limited")
)

// MinPasswordLength is the minimum number of characters of an account password.
const MinPasswordLength = 6

// RoleAdmin marks accounts allowed to approve events.
const RoleAdmin = "admin"

// Account is an authentication identity. Its ID is shared with the profile row
// created once the email is confirmed.
type Account struct {
	ID                 string // UUID
	Email              string
	PasswordHash       []byte // bcrypt
	Role               string // app metadata role, "" or RoleAdmin
	ConfirmationToken  string // empty once confirmed
	ConfirmationSentAt int64  // Unix timestamp of the last confirmation mail
	EmailConfirmedAt   int64  // Unix timestamp, 0 while unconfirmed
	CreatedAt          int64  // Unix timestamp
}

// Confirmed reports whether the account's email address was verified.
func (a Account) Confirmed() bool {
	return a.EmailConfirmedAt != 0
}

// User returns the public view of the account.
func (a Account) User() User {
	user := User{
		ID:        a.ID,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: time.Unix(a.CreatedAt, 0).UTC(),
	}

	if a.Confirmed() {
		confirmedAt := time.Unix(a.EmailConfirmedAt, 0).UTC()
		user.EmailConfirmedAt = &confirmedAt
	}

	return user
}
