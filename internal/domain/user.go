package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// MaskedActivationCode replaces the stored code on every read path; the real
// code only ever travels in the activation or renewal email.
const MaskedActivationCode = "XXXXX"

// NeverInvited is the sentinel returned by the invite store when no prior
// invitation exists for an address.
const NeverInvited = -1

type User struct {
	Email           string `json:"email"`
	ActivationCode  string `json:"activation_code"`
	IsActivated     bool   `json:"is_activated"`
	IsRegisteredSip bool   `json:"is_registered_sip"`
}

type Invite struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidActivationCode  = errors.New("invalid activation code")
	ErrUserNotFound           = errors.New("user not found")
	ErrInvitationLimit        = errors.New("invitation limit not exceeded")
	ErrNotificationFailed     = errors.New("notification delivery failed")

	// ErrUserAlreadyActivated reports the password-refresh self-loop: the
	// account was already active and only its SIP password was updated.
	// It is informational, not a failure.
	ErrUserAlreadyActivated = errors.New("user already activated")
)

// IsValidEmail accepts an address iff it parses and splits into exactly two
// non-empty parts around a single '@'.
func IsValidEmail(address string) bool {
	if address == "" {
		return false
	}
	if _, err := mail.ParseAddress(address); err != nil {
		return false
	}
	parts := strings.Split(address, "@")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// NormalizeEmail lower-cases an address; emails are stored and compared
// case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
