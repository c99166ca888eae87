package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/review"
	"github.com/tnm3allim/marketplace/internal/observability"
)

type ReviewsRepo struct {
	base
}

func NewReviewsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ReviewsRepo {
	return &ReviewsRepo{base{pool: pool, prom: prom}}
}

// Create inserts the review and recomputes the artisan's average rating in the
// same transaction.
func (r *ReviewsRepo) Create(ctx context.Context, userID int64, req review.CreateReviewRequest) (rv review.Review, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return review.Review{}, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = r.observe("reviews.create.lock_artisan", func() error {
		var id int64
		return tx.QueryRow(ctx, `SELECT id FROM artisans WHERE id = $1 FOR UPDATE`, req.ArtisanID).Scan(&id)
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = artisan.ErrNotFound
		return
	}

	if err != nil {
		return
	}

	rv = review.Review{UserID: userID, ArtisanID: req.ArtisanID, Rating: req.Rating, Comment: req.Comment}

	err = r.observe("reviews.create.insert", func() error {
		return tx.QueryRow(ctx,
			`INSERT INTO reviews (user_id, artisan_id, rating, comment) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
			userID, req.ArtisanID, req.Rating, req.Comment,
		).Scan(&rv.ID, &rv.CreatedAt)
	})

	if err != nil {
		return
	}

	err = r.observe("reviews.create.recompute_rating", func() error {
		_, err := tx.Exec(ctx,
			`UPDATE artisans SET rating = (SELECT AVG(rating)::float8 FROM reviews WHERE artisan_id = $1) WHERE id = $1`,
			req.ArtisanID,
		)
		return err
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)

	return
}

// ListByArtisan returns reviews newest first with the reviewer's name and photo.
func (r *ReviewsRepo) ListByArtisan(ctx context.Context, artisanID int64) ([]review.Review, error) {
	out := make([]review.Review, 0)

	err := r.observe("reviews.list_by_artisan", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT rv.id, rv.user_id, rv.artisan_id, rv.rating, rv.comment, u.name, u.photo, rv.created_at
			FROM reviews rv
			JOIN users u ON u.id = rv.user_id
			WHERE rv.artisan_id = $1
			ORDER BY rv.created_at DESC, rv.id DESC`,
			artisanID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var rv review.Review

			err := rows.Scan(&rv.ID, &rv.UserID, &rv.ArtisanID, &rv.Rating, &rv.Comment, &rv.ReviewerName, &rv.ReviewerPhoto, &rv.CreatedAt)

			if err != nil {
				return err
			}

			out = append(out, rv)
		}

		return rows.Err()
	})

	return out, err
}
