package domain

import (
	"errors"
	"net/http"
)

// Status is the public result code surfaced by the API layer.
type Status string

const (
	StatusOkay                       Status = "OKAY"
	StatusInvalidEmail               Status = "INVALID_EMAIL"
	StatusEmailAlreadyRegistered     Status = "EMAIL_ALREADY_REGISTERED"
	StatusInvalidActivationCode      Status = "INVALID_ACTIVATION_CODE"
	StatusUserAlreadyActivated       Status = "USER_ALREADY_ACTIVATED"
	StatusUserNotFound               Status = "USER_NOT_FOUND"
	StatusInvitationLimitNotExceeded Status = "INVITATION_LIMIT_NOT_EXCEEDED"
	StatusInternalDatabaseError      Status = "INTERNAL_DATABASE_ERROR"
	StatusInternalSMTPError          Status = "INTERNAL_SMTP_ERROR"
	StatusInternalApplicationError   Status = "INTERNAL_APPLICATION_ERROR"
)

// StatusFromError maps service errors onto the closed set of public result
// codes. Unknown errors are store failures by construction: everything else
// the service returns is one of the sentinels below.
func StatusFromError(err error) Status {
	switch {
	case err == nil:
		return StatusOkay
	case errors.Is(err, ErrInvalidEmail):
		return StatusInvalidEmail
	case errors.Is(err, ErrEmailAlreadyRegistered):
		return StatusEmailAlreadyRegistered
	case errors.Is(err, ErrInvalidActivationCode):
		return StatusInvalidActivationCode
	case errors.Is(err, ErrUserAlreadyActivated):
		return StatusUserAlreadyActivated
	case errors.Is(err, ErrUserNotFound):
		return StatusUserNotFound
	case errors.Is(err, ErrInvitationLimit):
		return StatusInvitationLimitNotExceeded
	case errors.Is(err, ErrNotificationFailed):
		return StatusInternalSMTPError
	default:
		return StatusInternalDatabaseError
	}
}

// HTTPStatus picks the transport status for a result code.
// USER_ALREADY_ACTIVATED is a successful, informational outcome.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusOkay, StatusUserAlreadyActivated:
		return http.StatusOK
	case StatusInvalidEmail, StatusInvalidActivationCode:
		return http.StatusBadRequest
	case StatusUserNotFound:
		return http.StatusNotFound
	case StatusEmailAlreadyRegistered:
		return http.StatusConflict
	case StatusInvitationLimitNotExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
