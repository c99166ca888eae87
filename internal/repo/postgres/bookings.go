package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tnm3allim/marketplace/internal/domain/artisan"
	"github.com/tnm3allim/marketplace/internal/domain/booking"
	"github.com/tnm3allim/marketplace/internal/observability"
)

type BookingsRepo struct {
	base
}

func NewBookingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *BookingsRepo {
	return &BookingsRepo{base{pool: pool, prom: prom}}
}

func (r *BookingsRepo) Create(ctx context.Context, userID int64, req booking.CreateBookingRequest) (booking.Booking, error) {
	b := booking.Booking{
		UserID:    userID,
		ArtisanID: req.ArtisanID,
		Date:      req.Date,
		Time:      req.Time,
		Notes:     req.Notes,
		Status:    booking.StatusPending,
	}

	err := r.observe("bookings.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO bookings (user_id, artisan_id, booking_date, booking_time, notes, status)
			VALUES ($1, $2, $3::date, $4::time, $5, $6)
			RETURNING id, created_at`,
			userID, req.ArtisanID, req.Date, req.Time, req.Notes, b.Status,
		).Scan(&b.ID, &b.CreatedAt)
	})

	if err != nil {
		if isForeignKeyViolation(err) {
			return booking.Booking{}, artisan.ErrNotFound
		}

		return booking.Booking{}, err
	}

	return b, nil
}

func (r *BookingsRepo) Count(ctx context.Context) (int, error) {
	var n int

	err := r.observe("bookings.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&n)
	})

	return n, err
}
