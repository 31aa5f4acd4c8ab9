package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsValidEmail(t *testing.T) {
	invalid := []string{
		"",
		"plainaddress",
		"@no-local-part.com",
		"no-domain@",
		"@",
		"two@at@signs.com",
		"spaces in@address.com",
	}
	for _, addr := range invalid {
		if IsValidEmail(addr) {
			t.Errorf("expected %q to be invalid", addr)
		}
	}

	valid := []string{
		"alice@example.com",
		"bob.smith+tag@sub.example.org",
		"UPPER@EXAMPLE.COM",
	}
	for _, addr := range valid {
		if !IsValidEmail(addr) {
			t.Errorf("expected %q to be valid", addr)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("unexpected normalized email: %q", got)
	}
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want Status
	}{
		{nil, StatusOkay},
		{ErrInvalidEmail, StatusInvalidEmail},
		{ErrEmailAlreadyRegistered, StatusEmailAlreadyRegistered},
		{ErrInvalidActivationCode, StatusInvalidActivationCode},
		{ErrUserAlreadyActivated, StatusUserAlreadyActivated},
		{ErrUserNotFound, StatusUserNotFound},
		{ErrInvitationLimit, StatusInvitationLimitNotExceeded},
		{fmt.Errorf("%w: connection refused", ErrNotificationFailed), StatusInternalSMTPError},
		{fmt.Errorf("find user: %w", errors.New("connection reset")), StatusInternalDatabaseError},
	}

	for _, tc := range cases {
		if got := StatusFromError(tc.err); got != tc.want {
			t.Errorf("StatusFromError(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestStatusHTTPMapping(t *testing.T) {
	if got := StatusUserAlreadyActivated.HTTPStatus(); got != http.StatusOK {
		t.Fatalf("USER_ALREADY_ACTIVATED must be reported as success, got %d", got)
	}
	if got := StatusEmailAlreadyRegistered.HTTPStatus(); got != http.StatusConflict {
		t.Fatalf("unexpected status for EMAIL_ALREADY_REGISTERED: %d", got)
	}
	if got := StatusInvitationLimitNotExceeded.HTTPStatus(); got != http.StatusTooManyRequests {
		t.Fatalf("unexpected status for INVITATION_LIMIT_NOT_EXCEEDED: %d", got)
	}
}
