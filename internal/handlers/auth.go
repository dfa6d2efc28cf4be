package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"englearn/internal/middleware"
	"englearn/internal/models"
	"englearn/internal/service"
)

type registerRequest struct {
	Email           string   `json:"email" binding:"required,email"`
	Password        string   `json:"password" binding:"required"`
	ConfirmPassword string   `json:"confirm_password" binding:"required"`
	FullName        string   `json:"full_name" binding:"required"`
	CurrentLevel    string   `json:"current_level"`
	LearningGoals   []string `json:"learning_goals"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
		CurrentLevel:    models.CEFRLevel(req.CurrentLevel),
		LearningGoals:   req.LearningGoals,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	// The verification token only leaves the process by mail.
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully. Please check your email for verification.",
		"user":    newUserView(result.User),
		"tokens":  result.Tokens,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    newUserView(result.User),
		"tokens":  result.Tokens,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh accepts the token in a JSON body or as a refresh_token query
// parameter.
func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if !h.bindJSON(c, &req) {
			return
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Query("refresh_token")
	}
	if req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "validation_error",
			"detail": "refresh_token is required",
		})
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h HandlerSet) Logout(c *gin.Context) {
	h.authService.Logout(c.Request.Context(), principal(c).User)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h HandlerSet) ValidateToken(c *gin.Context) {
	claims, _ := middleware.TokenClaims(c)
	scopes := claims.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"user_id": claims.UserID(),
		"email":   claims.Email,
		"scopes":  scopes,
	})
}

// WhoAmI serves anonymous and authenticated callers alike.
func (h HandlerSet) WhoAmI(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          newUserView(p.User),
		"scopes":        p.Claims.Scopes,
	})
}
