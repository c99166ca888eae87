package contact

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("message not found")

type Message struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateMessageRequest struct {
	Name    string `json:"name" binding:"required,max=120"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"omitempty,max=200"`
	Body    string `json:"message" binding:"required,max=5000"`
}
