package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes outgoing messages to the log instead of delivering them.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, in PasswordResetInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.password_reset",
		"email", in.Email,
		"name", in.Name,
		"link", in.ResetLink,
	)

	return nil
}
