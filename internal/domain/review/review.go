package review

import "time"

type Review struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	ArtisanID     int64     `json:"artisanId"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	ReviewerName  string    `json:"reviewerName"`
	ReviewerPhoto *string   `json:"reviewerPhoto,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CreateReviewRequest struct {
	ArtisanID int64  `json:"artisanId" binding:"required,min=1"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"review" binding:"omitempty,max=2000"`
}
