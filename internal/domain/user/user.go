package user

import (
	"errors"
	"time"
)

type Role string

const (
	RoleClient  Role = "client"
	RoleArtisan Role = "artisan"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleArtisan, RoleAdmin:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound          = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already in use")
	ErrInvalidResetToken = errors.New("reset token invalid or expired")
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	Governorate  string    `json:"governorate"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postalCode"`
	Photo        *string   `json:"photo,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
}

// CoreFields are the user columns a profile update may touch.
// Email, role and password hash are never part of it.
type CoreFields struct {
	Name        string
	Phone       string
	Address     string
	Governorate string
	City        string
	PostalCode  string
}

// Summary is the row shape used by admin listings.
type Summary struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Governorate string   `json:"governorate"`
	Rating      *float64 `json:"rating,omitempty"`
}
