package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"englearn/internal/models"
	"englearn/internal/service"
)

func (h HandlerSet) Me(c *gin.Context) {
	c.JSON(http.StatusOK, newUserView(principal(c).User))
}

type updateProfileRequest struct {
	FullName      *string   `json:"full_name"`
	CurrentLevel  *string   `json:"current_level"`
	LearningGoals *[]string `json:"learning_goals"`
}

func (h HandlerSet) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if !h.bindJSON(c, &req) {
		return
	}

	update := service.ProfileUpdate{
		FullName:      req.FullName,
		LearningGoals: req.LearningGoals,
	}
	if req.CurrentLevel != nil {
		level := models.CEFRLevel(*req.CurrentLevel)
		update.CurrentLevel = &level
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), principal(c).User.ID, update)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}

func (h HandlerSet) Preferences(c *gin.Context) {
	prefs, err := h.authService.GetPreferences(c.Request.Context(), principal(c).User.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPreferencesView(prefs))
}

type updatePreferencesRequest struct {
	LanguageInterface     *models.InterfaceLanguage `json:"language_interface"`
	Theme                 *models.Theme             `json:"theme"`
	DailyGoal             *int                      `json:"daily_goal"`
	ReminderEnabled       *bool                     `json:"reminder_enabled"`
	ReminderTime          *string                   `json:"reminder_time"`
	OfflineContentEnabled *bool                     `json:"offline_content_enabled"`
	AutoPlayAudio         *bool                     `json:"auto_play_audio"`
	ShowTranslations      *bool                     `json:"show_translations"`
	EmailNotifications    *bool                     `json:"email_notifications"`
	PushNotifications     *bool                     `json:"push_notifications"`
}

func (h HandlerSet) UpdatePreferences(c *gin.Context) {
	var req updatePreferencesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	prefs, err := h.authService.UpdatePreferences(c.Request.Context(), principal(c).User.ID, service.PreferencesUpdate(req))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPreferencesView(prefs))
}
