package artisan

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("artisan not found")

// Profile is the specialization record attached 1:1 to an artisan-role user.
type Profile struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"userId"`
	Specialization string  `json:"specialization"`
	Experience     int     `json:"experience"`
	Locality       string  `json:"locality"`
	HourlyRate     float64 `json:"hourlyRate"`
	Description    string  `json:"description"`
	Rating         float64 `json:"rating"`
	Available      bool    `json:"available"`
}

// Fields are the mutable specialization columns written by the profile upsert.
// A nil field keeps the stored value; a new profile starts from the column default.
type Fields struct {
	Specialization *string
	Experience     *int
	Locality       *string
	HourlyRate     *float64
	Description    *string
}

// Listing is a profile joined with its user row plus live review aggregates.
type Listing struct {
	Profile
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Photo       *string `json:"photo,omitempty"`
	ReviewCount int     `json:"reviewCount"`
}

type GalleryAsset struct {
	ID        int64     `json:"id"`
	ArtisanID int64     `json:"artisanId"`
	Path      string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
}

type Report struct {
	ID         int64     `json:"id"`
	ArtisanID  int64     `json:"artisanId"`
	Navigation string    `json:"navigation"`
	Design     string    `json:"design"`
	Comments   string    `json:"comments"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Stats struct {
	Total     int     `json:"totalArtisans"`
	AvgRating float64 `json:"avgRating"`
}
