package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/observability"
)

type ReportsRepo struct {
	base
}

func NewReportsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ReportsRepo {
	return &ReportsRepo{base{pool: pool, prom: prom}}
}

func (r *ReportsRepo) Create(ctx context.Context, rep artisan.Report) (artisan.Report, error) {
	err := r.observe("reports.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO reports (artisan_id, navigation, design, comments) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
			rep.ArtisanID, rep.Navigation, rep.Design, rep.Comments,
		).Scan(&rep.ID, &rep.CreatedAt)
	})

	if err != nil {
		if isForeignKeyViolation(err) {
			return artisan.Report{}, artisan.ErrNotFound
		}

		return artisan.Report{}, err
	}

	return rep, nil
}
