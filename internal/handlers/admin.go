package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func (h HandlerSet) AdminGetUser(c *gin.Context) {
	user, err := h.authService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}

type statusRequest struct {
	IsActive *bool `json:"is_active"`
}

// AdminSetStatus reads is_active from the JSON body or the query string.
func (h HandlerSet) AdminSetStatus(c *gin.Context) {
	var req statusRequest
	if c.Request.ContentLength != 0 {
		if !h.bindJSON(c, &req) {
			return
		}
	}
	if req.IsActive == nil {
		if raw, ok := c.GetQuery("is_active"); ok {
			if v, err := strconv.ParseBool(raw); err == nil {
				req.IsActive = &v
			}
		}
	}
	if req.IsActive == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "validation_error",
			"detail": "is_active is required",
		})
		return
	}

	user, err := h.authService.SetUserStatus(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		h.writeError(c, err)
		return
	}

	action := "deactivated"
	if user.IsActive {
		action = "activated"
	}
	zerolog.Ctx(c.Request.Context()).Info().
		Str("admin_id", principal(c).User.ID).
		Str("user_id", user.ID).
		Msg("user " + action)
	c.JSON(http.StatusOK, gin.H{"message": "User " + action + " successfully"})
}
