package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ringring/ringring-server/internal/domain"
)

type ProvisionRepository interface {
	// Activate flips is_activated and creates every routing record the
	// plan describes, all in one transaction. A dialable endpoint needs
	// the full directory + dialplan chain, so either everything becomes
	// visible together or nothing does. Returns
	// domain.ErrInvalidActivationCode when email and code do not match.
	Activate(ctx context.Context, email, activationCode string, plan domain.ProvisioningPlan) error

	// UpdateSipPassword refreshes the directory password of an already
	// activated account. The supplied code must match the stored one;
	// zero updated rows fail with domain.ErrInvalidActivationCode.
	UpdateSipPassword(ctx context.Context, email, activationCode string) error
}

type provisionRepository struct {
	pool *pgxpool.Pool
}

func NewProvisionRepository(pool *pgxpool.Pool) ProvisionRepository {
	return &provisionRepository{pool: pool}
}

func (r *provisionRepository) Activate(ctx context.Context, email, activationCode string, plan domain.ProvisioningPlan) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const flip = `UPDATE ringring_users SET is_activated = true WHERE email = lower($1) AND activation_code = $2`
	tag, err := tx.Exec(ctx, flip, email, activationCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidActivationCode
	}

	const insertDirectory = `
		INSERT INTO directory (ringring_user_id, username, domain, domain_id)
		VALUES (
			(SELECT id FROM ringring_users WHERE email = lower($1)),
			$2, '',
			(SELECT id FROM directory_domains WHERE domain_name = $3)
		)`
	if _, err := tx.Exec(ctx, insertDirectory, email, plan.Directory.Username, plan.Directory.Domain); err != nil {
		return err
	}

	const insertVar = `
		INSERT INTO directory_vars (directory_id, var_name, var_value)
		VALUES ((SELECT id FROM directory WHERE username = $1), $2, $3)`
	for _, v := range plan.Vars {
		if _, err := tx.Exec(ctx, insertVar, plan.Directory.Username, v.Name, v.Value); err != nil {
			return err
		}
	}

	const insertParam = `
		INSERT INTO directory_params (directory_id, param_name, param_value)
		VALUES ((SELECT id FROM directory WHERE username = $1), $2, $3)`
	for _, p := range plan.Params {
		if _, err := tx.Exec(ctx, insertParam, plan.Directory.Username, p.Name, p.Value); err != nil {
			return err
		}
	}

	const insertExtension = `
		INSERT INTO dialplan_extension (context_id, name, continue, weight)
		VALUES ((SELECT context_id FROM dialplan_context WHERE context = $1), lower($2), '', $3)`
	if _, err := tx.Exec(ctx, insertExtension, plan.Extension.Context, plan.Extension.Name, plan.Extension.Weight); err != nil {
		return err
	}

	const insertCondition = `
		INSERT INTO dialplan_condition (extension_id, field, expression, weight)
		VALUES ((SELECT extension_id FROM dialplan_extension WHERE name = lower($1)), $2, $3, $4)`
	if _, err := tx.Exec(ctx, insertCondition, plan.Extension.Name, plan.Condition.Field, plan.Condition.Expression, plan.Condition.Weight); err != nil {
		return err
	}

	// Actions execute in weight order on the switch; rows are inserted in
	// the same order for readability of the resulting dialplan.
	const insertAction = `
		INSERT INTO dialplan_actions (condition_id, application, data, type, weight)
		VALUES (
			(SELECT condition_id FROM dialplan_condition WHERE extension_id =
				(SELECT extension_id FROM dialplan_extension WHERE name = lower($1))),
			$2, $3, 'action', $4
		)`
	for _, a := range plan.Actions {
		if _, err := tx.Exec(ctx, insertAction, plan.Extension.Name, a.Application, a.Data, a.Weight); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *provisionRepository) UpdateSipPassword(ctx context.Context, email, activationCode string) error {
	// The match key is the stored code itself: refreshing the password
	// requires already knowing the current one.
	const q = `
		UPDATE directory_params
		SET param_value = $1
		WHERE directory_id = (
			SELECT id FROM directory WHERE ringring_user_id = (
				SELECT id FROM ringring_users WHERE activation_code = $2 AND email = lower($3)
			)
		)
		AND param_name = 'password'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, activationCode, activationCode, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidActivationCode
	}
	return nil
}
