package notifications

import "context"

type PasswordResetInput struct {
	Email     string
	Name      string
	ResetLink string
}

type Notifier interface {
	SendPasswordReset(ctx context.Context, in PasswordResetInput) error
}
