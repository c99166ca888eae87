package booking

import "time"

const StatusPending = "pending"

type Booking struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	ArtisanID int64     `json:"artisanId"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Notes     string    `json:"notes,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateBookingRequest struct {
	ArtisanID int64  `json:"artisanId" binding:"required,min=1"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	Time      string `json:"time" binding:"required,datetime=15:04"`
	Notes     string `json:"notes" binding:"omitempty,max=1000"`
}
