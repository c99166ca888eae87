package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/user"
	"github.com/tnm3allim/marketplace/internal/observability"
)

type ArtisansRepo struct {
	base
}

func NewArtisansRepo(pool *pgxpool.Pool, prom *observability.Prom) *ArtisansRepo {
	return &ArtisansRepo{base{pool: pool, prom: prom}}
}

// UpsertForUser creates or updates the profile of an artisan-role user in one
// statement keyed on artisans.user_id. Nil fields leave the stored column alone.
// Users with another role get user.ErrNotFound.
func (r *ArtisansRepo) UpsertForUser(ctx context.Context, userID int64, f artisan.Fields) (int64, error) {
	var id int64

	err := r.observe("artisans.upsert_for_user", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO artisans (user_id, specialization, experience, locality, hourly_rate, description)
			SELECT u.id, COALESCE($2::text, ''), COALESCE($3::integer, 0), COALESCE($4::text, ''),
				COALESCE($5::double precision, 0), COALESCE($6::text, '')
			FROM users u WHERE u.id = $1 AND u.role = 'artisan'
			ON CONFLICT (user_id) DO UPDATE SET
				specialization = COALESCE($2::text, artisans.specialization),
				experience = COALESCE($3::integer, artisans.experience),
				locality = COALESCE($4::text, artisans.locality),
				hourly_rate = COALESCE($5::double precision, artisans.hourly_rate),
				description = COALESCE($6::text, artisans.description)
			RETURNING id`,
			userID, f.Specialization, f.Experience, f.Locality, f.HourlyRate, f.Description,
		).Scan(&id)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, user.ErrNotFound
	}

	return id, err
}

// EnsureForUser returns the artisan id for userID, creating an empty profile if needed.
// A concurrent insert committed after the statement snapshot is invisible to both
// branches, so an empty result is retried once before it means "not an artisan".
func (r *ArtisansRepo) EnsureForUser(ctx context.Context, userID int64) (int64, error) {
	id, err := r.ensureOnce(ctx, userID)

	if errors.Is(err, pgx.ErrNoRows) {
		id, err = r.ensureOnce(ctx, userID)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, user.ErrNotFound
	}

	return id, err
}

func (r *ArtisansRepo) ensureOnce(ctx context.Context, userID int64) (int64, error) {
	var id int64

	err := r.observe("artisans.ensure_for_user", func() error {
		return r.pool.QueryRow(ctx,
			`WITH ins AS (
				INSERT INTO artisans (user_id)
				SELECT u.id FROM users u WHERE u.id = $1 AND u.role = 'artisan'
				ON CONFLICT (user_id) DO NOTHING
				RETURNING id
			)
			SELECT id FROM ins
			UNION ALL
			SELECT id FROM artisans WHERE user_id = $1
			LIMIT 1`,
			userID,
		).Scan(&id)
	})

	return id, err
}

func (r *ArtisansRepo) GetByUserID(ctx context.Context, userID int64) (artisan.Profile, error) {
	var p artisan.Profile

	err := r.observe("artisans.get_by_user", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, user_id, specialization, experience, locality, hourly_rate, description, rating, available
			FROM artisans WHERE user_id = $1`,
			userID,
		).Scan(&p.ID, &p.UserID, &p.Specialization, &p.Experience, &p.Locality, &p.HourlyRate, &p.Description, &p.Rating, &p.Available)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return artisan.Profile{}, artisan.ErrNotFound
	}

	return p, err
}

const listingQuery = `SELECT a.id, a.user_id, a.specialization, a.experience, a.locality, a.hourly_rate, a.description,
	COALESCE(AVG(r.rating), 0)::float8, a.available, u.name, u.email, u.photo, COUNT(r.id)
FROM artisans a
JOIN users u ON u.id = a.user_id
LEFT JOIN reviews r ON r.artisan_id = a.id`

func scanListing(row pgx.Row) (artisan.Listing, error) {
	var l artisan.Listing

	err := row.Scan(
		&l.ID, &l.UserID, &l.Specialization, &l.Experience, &l.Locality, &l.HourlyRate, &l.Description,
		&l.Rating, &l.Available, &l.Name, &l.Email, &l.Photo, &l.ReviewCount,
	)

	return l, err
}

// List returns every artisan with live rating aggregates, best rated first.
func (r *ArtisansRepo) List(ctx context.Context) ([]artisan.Listing, error) {
	out := make([]artisan.Listing, 0)

	err := r.observe("artisans.list", func() error {
		rows, err := r.pool.Query(ctx, listingQuery+`
			GROUP BY a.id, u.id
			ORDER BY 8 DESC, a.id ASC`)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			l, err := scanListing(rows)

			if err != nil {
				return err
			}

			out = append(out, l)
		}

		return rows.Err()
	})

	return out, err
}

func (r *ArtisansRepo) GetListing(ctx context.Context, id int64) (artisan.Listing, error) {
	var l artisan.Listing

	err := r.observe("artisans.get_listing", func() error {
		var err error
		l, err = scanListing(r.pool.QueryRow(ctx, listingQuery+`
			WHERE a.id = $1
			GROUP BY a.id, u.id`, id))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return artisan.Listing{}, artisan.ErrNotFound
	}

	return l, err
}

func (r *ArtisansRepo) Stats(ctx context.Context) (artisan.Stats, error) {
	var s artisan.Stats

	err := r.observe("artisans.stats", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8 FROM artisans`,
		).Scan(&s.Total, &s.AvgRating)
	})

	return s, err
}
