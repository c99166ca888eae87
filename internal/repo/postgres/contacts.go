package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/domain/contact"
	"github.com/tnm3allim/marketplace/internal/observability"
)

type ContactsRepo struct {
	base
}

func NewContactsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ContactsRepo {
	return &ContactsRepo{base{pool: pool, prom: prom}}
}

func (r *ContactsRepo) Create(ctx context.Context, req contact.CreateMessageRequest) (contact.Message, error) {
	m := contact.Message{Name: req.Name, Email: req.Email, Subject: req.Subject, Body: req.Body}

	err := r.observe("contacts.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO contacts (name, email, subject, message) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
			req.Name, req.Email, req.Subject, req.Body,
		).Scan(&m.ID, &m.CreatedAt)
	})

	if err != nil {
		return contact.Message{}, err
	}

	return m, nil
}

// List returns every message newest first.
func (r *ContactsRepo) List(ctx context.Context) ([]contact.Message, error) {
	out := make([]contact.Message, 0)

	err := r.observe("contacts.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, name, email, subject, message, created_at FROM contacts ORDER BY created_at DESC, id DESC`)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var m contact.Message

			if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Body, &m.CreatedAt); err != nil {
				return err
			}

			out = append(out, m)
		}

		return rows.Err()
	})

	return out, err
}

func (r *ContactsRepo) Delete(ctx context.Context, id int64) error {
	return r.observe("contacts.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return contact.ErrNotFound
		}

		return nil
	})
}

func (r *ContactsRepo) Count(ctx context.Context) (int, error) {
	var n int

	err := r.observe("contacts.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n)
	})

	return n, err
}
