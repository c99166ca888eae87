package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/observability"
)

type GalleryRepo struct {
	base
}

func NewGalleryRepo(pool *pgxpool.Pool, prom *observability.Prom) *GalleryRepo {
	return &GalleryRepo{base{pool: pool, prom: prom}}
}

// Add appends one asset row. Rows are never updated in place.
func (r *GalleryRepo) Add(ctx context.Context, artisanID int64, ref string) (artisan.GalleryAsset, error) {
	a := artisan.GalleryAsset{ArtisanID: artisanID, Path: ref}

	err := r.observe("gallery.add", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO gallery (artisan_id, image_path) VALUES ($1, $2) RETURNING id, created_at`,
			artisanID, ref,
		).Scan(&a.ID, &a.CreatedAt)
	})

	if err != nil {
		if isForeignKeyViolation(err) {
			return artisan.GalleryAsset{}, artisan.ErrNotFound
		}

		return artisan.GalleryAsset{}, err
	}

	return a, nil
}

func (r *GalleryRepo) ListByArtisan(ctx context.Context, artisanID int64) ([]artisan.GalleryAsset, error) {
	out := make([]artisan.GalleryAsset, 0)

	err := r.observe("gallery.list_by_artisan", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, artisan_id, image_path, created_at FROM gallery WHERE artisan_id = $1 ORDER BY id DESC`,
			artisanID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var a artisan.GalleryAsset

			if err := rows.Scan(&a.ID, &a.ArtisanID, &a.Path, &a.CreatedAt); err != nil {
				return err
			}

			out = append(out, a)
		}

		return rows.Err()
	})

	return out, err
}
