package service

import (
	"context"

	"englearn/internal/models"
)

// Notifier hands single-use tokens to whatever delivers them to the user.
// The HTTP layer never echoes these tokens back.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, user models.User, token string) error
	SendPasswordResetEmail(ctx context.Context, user models.User, token string) error
}
