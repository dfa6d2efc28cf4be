package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"englearn/internal/models"
)

const preferenceColumns = `
	id, user_id, language_interface, theme, daily_goal, reminder_enabled, reminder_time,
	offline_content_enabled, auto_play_audio, show_translations,
	email_notifications, push_notifications, created_at, updated_at
`

func (r *PostgresStore) InsertPreferences(ctx context.Context, prefs *models.Preferences) error {
	const query = `
		INSERT INTO user_preferences (
			id, user_id, language_interface, theme, daily_goal, reminder_enabled, reminder_time,
			offline_content_enabled, auto_play_audio, show_translations,
			email_notifications, push_notifications, created_at, updated_at
		) VALUES (
			COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2::uuid, $3, $4, $5, $6, $7,
			$8, $9, $10,
			$11, $12, NOW(), NOW()
		)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		prefs.ID,
		prefs.UserID,
		string(prefs.LanguageInterface),
		string(prefs.Theme),
		prefs.DailyGoal,
		prefs.ReminderEnabled,
		prefs.ReminderTime,
		prefs.OfflineContentEnabled,
		prefs.AutoPlayAudio,
		prefs.ShowTranslations,
		prefs.EmailNotifications,
		prefs.PushNotifications,
	).Scan(&prefs.ID, &prefs.CreatedAt, &prefs.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "user_preferences_user_id_key") {
			return ErrPreferencesExist
		}
		return err
	}
	return nil
}

func (r *PostgresStore) FindPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	query := `SELECT ` + preferenceColumns + ` FROM user_preferences WHERE user_id = $1` + r.lockClause()

	var (
		prefs    models.Preferences
		language string
		theme    string
	)
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&prefs.ID,
		&prefs.UserID,
		&language,
		&theme,
		&prefs.DailyGoal,
		&prefs.ReminderEnabled,
		&prefs.ReminderTime,
		&prefs.OfflineContentEnabled,
		&prefs.AutoPlayAudio,
		&prefs.ShowTranslations,
		&prefs.EmailNotifications,
		&prefs.PushNotifications,
		&prefs.CreatedAt,
		&prefs.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Preferences{}, ErrPreferencesNotFound
		}
		return models.Preferences{}, err
	}
	prefs.LanguageInterface = models.InterfaceLanguage(language)
	prefs.Theme = models.Theme(theme)
	return prefs, nil
}

func (r *PostgresStore) UpdatePreferences(ctx context.Context, prefs *models.Preferences) error {
	const query = `
		UPDATE user_preferences SET
			language_interface = $2,
			theme = $3,
			daily_goal = $4,
			reminder_enabled = $5,
			reminder_time = $6,
			offline_content_enabled = $7,
			auto_play_audio = $8,
			show_translations = $9,
			email_notifications = $10,
			push_notifications = $11,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		prefs.UserID,
		string(prefs.LanguageInterface),
		string(prefs.Theme),
		prefs.DailyGoal,
		prefs.ReminderEnabled,
		prefs.ReminderTime,
		prefs.OfflineContentEnabled,
		prefs.AutoPlayAudio,
		prefs.ShowTranslations,
		prefs.EmailNotifications,
		prefs.PushNotifications,
	).Scan(&prefs.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPreferencesNotFound
		}
		return err
	}
	return nil
}
