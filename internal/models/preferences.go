package models

import "time"

type InterfaceLanguage string

const (
	LanguageIndonesian InterfaceLanguage = "id"
	LanguageEnglish    InterfaceLanguage = "en"
)

func (l InterfaceLanguage) Valid() bool {
	return l == LanguageIndonesian || l == LanguageEnglish
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeAuto
}

const (
	MinDailyGoal = 1
	MaxDailyGoal = 50
)

type Preferences struct {
	ID                    string
	UserID                string
	LanguageInterface     InterfaceLanguage
	Theme                 Theme
	DailyGoal             int
	ReminderEnabled       bool
	ReminderTime          string
	OfflineContentEnabled bool
	AutoPlayAudio         bool
	ShowTranslations      bool
	EmailNotifications    bool
	PushNotifications     bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DefaultPreferences are the settings every account starts with.
func DefaultPreferences(id, userID string) Preferences {
	return Preferences{
		ID:                    id,
		UserID:                userID,
		LanguageInterface:     LanguageIndonesian,
		Theme:                 ThemeLight,
		DailyGoal:             3,
		ReminderEnabled:       true,
		ReminderTime:          "19:00",
		OfflineContentEnabled: false,
		AutoPlayAudio:         true,
		ShowTranslations:      true,
		EmailNotifications:    true,
		PushNotifications:     true,
	}
}
