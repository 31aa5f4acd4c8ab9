package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ringring/ringring-server/internal/domain"
)

type InviteRepository interface {
	// MinutesSinceLast returns whole minutes since the most recent invite
	// to the address, or domain.NeverInvited when none exists.
	MinutesSinceLast(ctx context.Context, toEmail string) (int, error)
	Create(ctx context.Context, fromEmail, toEmail string) error
}

type inviteRepository struct {
	pool *pgxpool.Pool
}

func NewInviteRepository(pool *pgxpool.Pool) InviteRepository {
	return &inviteRepository{pool: pool}
}

func (r *inviteRepository) MinutesSinceLast(ctx context.Context, toEmail string) (int, error) {
	const q = `
		SELECT coalesce(
			floor(extract(epoch from (current_timestamp - max(created_at))) / 60),
			-1
		)::int
		FROM ringring_invites
		WHERE invite_to = lower($1)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var minutes int
	if err := r.pool.QueryRow(ctx, q, toEmail).Scan(&minutes); err != nil {
		return domain.NeverInvited, err
	}
	return minutes, nil
}

func (r *inviteRepository) Create(ctx context.Context, fromEmail, toEmail string) error {
	const q = `INSERT INTO ringring_invites (invite_from, invite_to) VALUES (lower($1), lower($2))`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, fromEmail, toEmail)
	return err
}
