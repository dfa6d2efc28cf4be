package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"englearn/internal/config"
	"englearn/internal/middleware"
	"englearn/internal/security"
	"englearn/internal/service"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Log     zerolog.Logger
	Config  *config.AppConfig
	Auth    *service.AuthService
	Avatars *service.AvatarService
	Users   middleware.UserFinder
	Tokens  *security.TokenCodec
	// Cache backs rate limiting and the cache health probe. Nil disables both.
	Cache    *redis.Client
	Database Pinger
	Storage  Pinger
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	avatars     *service.AvatarService
	users       middleware.UserFinder
	tokens      *security.TokenCodec
	cache       *redis.Client
	db          Pinger
	store       Pinger
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:         deps.Log,
		cfg:         deps.Config,
		authService: deps.Auth,
		avatars:     deps.Avatars,
		users:       deps.Users,
		tokens:      deps.Tokens,
		cache:       deps.Cache,
		db:          deps.Database,
		store:       deps.Storage,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/", h.Root)
	router.GET("/healthz", h.Health)

	authenticated := middleware.Authenticate(h.tokens, h.users)
	limited := middleware.RateLimit(h.cache, "auth", h.cfg.RateLimit.PerMinute, h.cfg.RateLimit.Burst, h.log)

	v1 := router.Group("/v1")
	v1.GET("/avatars/authorize", h.AuthorizeAvatar)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", limited, h.RegisterUser)
		auth.POST("/login", limited, h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/password/reset/request", limited, h.RequestPasswordReset)
		auth.POST("/password/reset/confirm", h.ConfirmPasswordReset)
		auth.POST("/email/verify", h.VerifyEmail)
		auth.GET("/whoami", middleware.OptionalAuth(h.tokens, h.users), h.WhoAmI)
		auth.GET("/validate-token", middleware.RequireToken(h.tokens), h.ValidateToken)
	}

	protected := v1.Group("/auth")
	protected.Use(authenticated)
	{
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
		protected.PUT("/me", h.UpdateMe)
		protected.PUT("/me/avatar", middleware.RequireVerified(), h.UploadAvatar)
		protected.GET("/me/preferences", h.Preferences)
		protected.PUT("/me/preferences", h.UpdatePreferences)
		protected.POST("/password/change", middleware.RequireVerified(), h.ChangePassword)
		protected.POST("/email/resend-verification", h.ResendVerification)
	}

	admin := v1.Group("/auth/users")
	admin.Use(authenticated, middleware.RequireRole(security.ScopeAdmin))
	{
		admin.GET("/:id", h.AdminGetUser)
		admin.PUT("/:id/status", h.AdminSetStatus)
	}
}

func (h HandlerSet) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "englearn",
		"environment": h.cfg.Environment,
		"docs":        "/api/v1/auth",
	})
}

// writeError maps service errors onto HTTP statuses. Duplicate emails answer
// 400 rather than 409 to keep the public contract.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_server_error"
	switch {
	case errors.Is(err, service.ErrConflict):
		status, code = http.StatusBadRequest, "conflict"
	case errors.Is(err, service.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
		c.Header("WWW-Authenticate", "Bearer")
	case errors.Is(err, service.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBadRequest):
		status, code = http.StatusBadRequest, "bad_request"
	}

	detail := "Internal server error"
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		detail = svcErr.Msg
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
	}

	c.AbortWithStatusJSON(status, gin.H{"error": code, "detail": detail})
}

func (h HandlerSet) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "validation_error",
			"detail": err.Error(),
		})
		return false
	}
	return true
}

// principal is only called behind Authenticate, which guarantees one exists.
func principal(c *gin.Context) middleware.Principal {
	p, _ := middleware.CurrentPrincipal(c)
	return p
}
