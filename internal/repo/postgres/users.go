package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/observability"
)

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{base{pool: pool, prom: prom}}
}

const userColumns = `id, name, email, phone, address, governorate, city, postal_code, photo, role, password_hash, created_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.Address,
		&u.Governorate,
		&u.City,
		&u.PostalCode,
		&u.Photo,
		&u.Role,
		&u.PasswordHash,
		&u.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (name, email, role, password_hash)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			u.Name, u.Email, u.Role, u.PasswordHash,
		).Scan(&u.ID, &u.CreatedAt)
	})

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	return u, err
}

// GetClient only returns users with the client role.
func (r *UsersRepo) GetClient(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.observe("users.get_client", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 AND role = 'client'`, id))
		return err
	})

	return u, err
}

func (r *UsersRepo) UpdateCoreFields(ctx context.Context, id int64, f user.CoreFields) error {
	return r.observe("users.update_core", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users
			SET name = $2, phone = $3, address = $4, governorate = $5, city = $6, postal_code = $7
			WHERE id = $1`,
			id, f.Name, f.Phone, f.Address, f.Governorate, f.City, f.PostalCode,
		)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

func (r *UsersRepo) GetPasswordHash(ctx context.Context, id int64) (string, error) {
	var hash string

	err := r.observe("users.get_password_hash", func() error {
		return r.pool.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return "", user.ErrNotFound
	}

	return hash, err
}

func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return r.observe("users.update_password_hash", func() error {
		tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

// UpdatePhoto sets the photo reference and returns the one it replaced.
func (r *UsersRepo) UpdatePhoto(ctx context.Context, id int64, ref string) (*string, error) {
	var prev *string

	err := r.observe("users.update_photo", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE users AS u SET photo = $2
			FROM users AS old
			WHERE u.id = $1 AND old.id = u.id
			RETURNING old.photo`,
			id, ref,
		).Scan(&prev)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}

	return prev, err
}

// UpdateAccount changes the name and email used by the admin settings page.
func (r *UsersRepo) UpdateAccount(ctx context.Context, id int64, name, email string) error {
	return r.observe("users.update_account", func() error {
		tag, err := r.pool.Exec(ctx, `UPDATE users SET name = $2, email = $3 WHERE id = $1`, id, name, email)

		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailTaken
			}

			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

func (r *UsersRepo) ListByRole(ctx context.Context, role user.Role) ([]user.Summary, error) {
	out := make([]user.Summary, 0)

	err := r.observe("users.list_by_role", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT u.id, u.name, u.email, u.phone, u.governorate,
				CASE WHEN u.role = 'artisan' THEN
					(SELECT COALESCE(AVG(rv.rating), 0)::float8 FROM reviews rv JOIN artisans a ON a.id = rv.artisan_id WHERE a.user_id = u.id)
				END
			FROM users u
			WHERE u.role = $1
			ORDER BY u.created_at DESC, u.id DESC`,
			role,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var s user.Summary

			if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Governorate, &s.Rating); err != nil {
				return err
			}

			out = append(out, s)
		}

		return rows.Err()
	})

	return out, err
}

func (r *UsersRepo) DeleteClient(ctx context.Context, id int64) error {
	return r.observe("users.delete_client", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1 AND role = 'client'`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return nil
	})
}

func (r *UsersRepo) CountByRole(ctx context.Context, role user.Role) (int, error) {
	var n int

	err := r.observe("users.count_by_role", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n)
	})

	return n, err
}
