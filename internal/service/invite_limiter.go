package service

import (
	"context"

	"github.com/ringring/ringring-server/internal/domain"
	"github.com/ringring/ringring-server/internal/repository"
)

// InviteLimiter throttles invitations per recipient address.
type InviteLimiter struct {
	invites repository.InviteRepository
}

func NewInviteLimiter(invites repository.InviteRepository) *InviteLimiter {
	return &InviteLimiter{invites: invites}
}

// Allow reports whether a new invitation to toEmail may be sent: either no
// prior invite exists, or the most recent one is at least limitMinutes old.
func (l *InviteLimiter) Allow(ctx context.Context, toEmail string, limitMinutes int) (bool, error) {
	minutes, err := l.invites.MinutesSinceLast(ctx, toEmail)
	if err != nil {
		return false, err
	}
	return minutes == domain.NeverInvited || minutes >= limitMinutes, nil
}
