package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/observability"
)

// base is shared by every repo: the pool plus optional metrics.
type base struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func (b base) observe(op string, fn func() error) error {
	return b.prom.ObserveDB(op, fn)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
