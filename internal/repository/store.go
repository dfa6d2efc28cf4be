package repository

import (
	"context"
	"errors"
	"time"

	"englearn/internal/models"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPreferencesNotFound = errors.New("user preferences not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrPreferencesExist    = errors.New("user preferences already exist")
)

// Store is the identity store used by the auth service. Lookups return
// ErrUserNotFound / ErrPreferencesNotFound when nothing matches.
type Store interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByResetToken(ctx context.Context, token string) (models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (models.User, error)

	// InsertUser assigns ID and timestamps when empty. A duplicate email
	// yields ErrEmailTaken.
	InsertUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error

	InsertPreferences(ctx context.Context, prefs *models.Preferences) error
	FindPreferences(ctx context.Context, userID string) (models.Preferences, error)
	UpdatePreferences(ctx context.Context, prefs *models.Preferences) error

	// ClearExpiredResetTokens drops reset tokens whose expiry is at or before now.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)

	// WithTx runs fn against a transactional view of the store: everything fn
	// writes becomes visible together or not at all.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
