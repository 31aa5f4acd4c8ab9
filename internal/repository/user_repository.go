package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ringring/ringring-server/internal/domain"
)

type UserRepository interface {
	// Create inserts a new user row with a freshly generated activation
	// code. Uniqueness is enforced by the store: a duplicate email fails
	// with domain.ErrEmailAlreadyRegistered, never by pre-checking.
	Create(ctx context.Context, email string, codeLength int) error
	FindByEmail(ctx context.Context, email string, onlyActivated bool) (*domain.User, error)
	FindByEmails(ctx context.Context, emails []string, onlyActivated bool) ([]domain.User, error)
	GetActivationCode(ctx context.Context, email string) (string, error)
	UpdateActivationState(ctx context.Context, user *domain.User) error
	// RenewActivationCode replaces the stored code with a new random one.
	// Updating a non-existent email is a silent no-op.
	RenewActivationCode(ctx context.Context, email string, codeLength int) error
	ResetUsers(ctx context.Context) error
	ResetInvites(ctx context.Context) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// userCols joins against the live SIP registrations so is_registered_sip
// reflects whether the endpoint is currently reachable. The activation code
// is masked on every read path.
const userCols = `
	zu.email,
	'` + domain.MaskedActivationCode + `' AS activation_code,
	zu.is_activated,
	CASE WHEN r.reg_user IS NULL THEN false ELSE true END AS is_registered_sip
FROM ringring_users zu
LEFT JOIN directory d ON d.ringring_user_id = zu.id
LEFT JOIN registrations r ON r.reg_user = d.username`

func (r *userRepository) Create(ctx context.Context, email string, codeLength int) error {
	const q = `
		INSERT INTO ringring_users (email, activation_code, is_activated)
		VALUES (lower($1), substring(md5(random()::text) from 1 for $2), false)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, email, codeLength)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrEmailAlreadyRegistered
		}
		return err
	}

	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string, onlyActivated bool) (*domain.User, error) {
	q := `SELECT ` + userCols + ` WHERE zu.email = lower($1)`
	if onlyActivated {
		q += ` AND zu.is_activated = true`
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&u.Email, &u.ActivationCode, &u.IsActivated, &u.IsRegisteredSip,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByEmails(ctx context.Context, emails []string, onlyActivated bool) ([]domain.User, error) {
	if len(emails) == 0 {
		return []domain.User{}, nil
	}

	lowered := make([]string, len(emails))
	for i, email := range emails {
		lowered[i] = domain.NormalizeEmail(email)
	}

	q := `SELECT ` + userCols + ` WHERE zu.email = ANY($1)`
	if onlyActivated {
		q += ` AND zu.is_activated = true`
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, lowered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Email, &u.ActivationCode, &u.IsActivated, &u.IsRegisteredSip); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (r *userRepository) GetActivationCode(ctx context.Context, email string) (string, error) {
	const q = `SELECT activation_code FROM ringring_users WHERE email = lower($1)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var code string
	err := r.pool.QueryRow(ctx, q, email).Scan(&code)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return code, err
}

func (r *userRepository) UpdateActivationState(ctx context.Context, user *domain.User) error {
	const q = `UPDATE ringring_users SET activation_code = $1, is_activated = $2 WHERE email = lower($3)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, user.ActivationCode, user.IsActivated, user.Email)
	return err
}

func (r *userRepository) RenewActivationCode(ctx context.Context, email string, codeLength int) error {
	const q = `
		UPDATE ringring_users
		SET activation_code = substring(md5(random()::text) from 1 for $1)
		WHERE email = lower($2)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, codeLength, email)
	return err
}

func (r *userRepository) ResetUsers(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// One statement: directory references ringring_users, so the tables
	// must be truncated together.
	const q = `
		TRUNCATE TABLE
			ringring_users,
			directory,
			directory_vars,
			directory_params,
			dialplan_extension,
			dialplan_condition,
			dialplan_actions`

	_, err := r.pool.Exec(ctx, q)
	return err
}

func (r *userRepository) ResetInvites(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `TRUNCATE TABLE ringring_invites`)
	return err
}
