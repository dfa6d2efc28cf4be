package handlers

import (
	"time"

	"englearn/internal/models"
)

type userView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	CurrentLevel  string    `json:"current_level"`
	LearningGoals []string  `json:"learning_goals"`
	AvatarURL     *string   `json:"avatar_url"`
	IsActive      bool      `json:"is_active"`
	IsVerified    bool      `json:"is_verified"`
	IsPremium     bool      `json:"is_premium"`
	IsStaff       bool      `json:"is_staff"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// newUserView never exposes the password hash or pending single-use tokens.
func newUserView(u models.User) userView {
	goals := u.LearningGoals
	if goals == nil {
		goals = []string{}
	}
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		CurrentLevel:  string(u.CurrentLevel),
		LearningGoals: goals,
		AvatarURL:     u.AvatarURL,
		IsActive:      u.IsActive,
		IsVerified:    u.IsVerified,
		IsPremium:     u.IsPremium,
		IsStaff:       u.IsStaff,
		IsAdmin:       u.IsAdmin,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

type preferencesView struct {
	UserID                string    `json:"user_id"`
	LanguageInterface     string    `json:"language_interface"`
	Theme                 string    `json:"theme"`
	DailyGoal             int       `json:"daily_goal"`
	ReminderEnabled       bool      `json:"reminder_enabled"`
	ReminderTime          string    `json:"reminder_time"`
	OfflineContentEnabled bool      `json:"offline_content_enabled"`
	AutoPlayAudio         bool      `json:"auto_play_audio"`
	ShowTranslations      bool      `json:"show_translations"`
	EmailNotifications    bool      `json:"email_notifications"`
	PushNotifications     bool      `json:"push_notifications"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func newPreferencesView(p models.Preferences) preferencesView {
	return preferencesView{
		UserID:                p.UserID,
		LanguageInterface:     string(p.LanguageInterface),
		Theme:                 string(p.Theme),
		DailyGoal:             p.DailyGoal,
		ReminderEnabled:       p.ReminderEnabled,
		ReminderTime:          p.ReminderTime,
		OfflineContentEnabled: p.OfflineContentEnabled,
		AutoPlayAudio:         p.AutoPlayAudio,
		ShowTranslations:      p.ShowTranslations,
		EmailNotifications:    p.EmailNotifications,
		PushNotifications:     p.PushNotifications,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}
