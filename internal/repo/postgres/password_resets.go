package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/observability"
)

// PasswordResetsRepo stores at most one outstanding reset per user, by token digest only.
type PasswordResetsRepo struct {
	base
}

func NewPasswordResetsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PasswordResetsRepo {
	return &PasswordResetsRepo{base{pool: pool, prom: prom}}
}

func (r *PasswordResetsRepo) Put(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	return r.observe("password_resets.put", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO password_resets (user_id, token_hash, expires_at) VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at`,
			userID, tokenHash, expiresAt,
		)
		return err
	})
}

// Lookup returns the user owning an unexpired token.
func (r *PasswordResetsRepo) Lookup(ctx context.Context, tokenHash string) (int64, error) {
	var userID int64

	err := r.observe("password_resets.lookup", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT user_id FROM password_resets WHERE token_hash = $1 AND expires_at > now()`, tokenHash,
		).Scan(&userID)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, user.ErrInvalidResetToken
	}

	return userID, err
}

// Consume deletes the token and sets the new password hash atomically.
func (r *PasswordResetsRepo) Consume(ctx context.Context, tokenHash, passwordHash string) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var userID int64

	err = r.observe("password_resets.consume.delete", func() error {
		return tx.QueryRow(ctx,
			`DELETE FROM password_resets WHERE token_hash = $1 AND expires_at > now() RETURNING user_id`, tokenHash,
		).Scan(&userID)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = user.ErrInvalidResetToken
		return
	}

	if err != nil {
		return
	}

	err = r.observe("password_resets.consume.update_user", func() error {
		_, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
		return err
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

// PurgeExpired deletes reset tokens past their expiry.
func (r *PasswordResetsRepo) PurgeExpired(ctx context.Context) (int, error) {
	var n int64

	err := r.observe("password_resets.purge_expired", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= now()`)
		n = tag.RowsAffected()
		return err
	})

	return int(n), err
}
