package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"englearn/internal/models"
	"englearn/internal/security"
)

const (
	principalKey = "principal"
	claimsKey    = "token_claims"
)

// UserFinder is the slice of the identity store the authorizer reads.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Principal is the resolved caller of an authenticated request.
type Principal struct {
	User   models.User
	Claims security.Claims
}

// Authenticate resolves the bearer token to an active user or aborts with 401.
// Every failure uses the same message.
func Authenticate(codec *security.TokenCodec, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := resolve(c, codec, users)
		if !ok {
			abortUnauthorized(c)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// OptionalAuth attaches a principal when the request carries a valid token
// for an active user and lets everything else through anonymously.
func OptionalAuth(codec *security.TokenCodec, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal, ok := resolve(c, codec, users); ok {
			c.Set(principalKey, principal)
		}
		c.Next()
	}
}

// RequireToken accepts any valid access token without loading its user, so a
// token for a deactivated or deleted account still passes.
func RequireToken(codec *security.TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}
		claims, err := codec.Verify(token, security.TokenTypeAccess)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		c.Set(claimsKey, *claims)
		c.Next()
	}
}

// TokenClaims returns the claims set by RequireToken.
func TokenClaims(c *gin.Context) (security.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return security.Claims{}, false
	}
	claims, ok := v.(security.Claims)
	return claims, ok
}

// CurrentPrincipal returns the caller set by Authenticate or OptionalAuth.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func resolve(c *gin.Context, codec *security.TokenCodec, users UserFinder) (Principal, bool) {
	token, ok := BearerToken(c.GetHeader("Authorization"))
	if !ok {
		return Principal{}, false
	}

	claims, err := codec.Verify(token, security.TokenTypeAccess)
	if err != nil {
		return Principal{}, false
	}

	user, err := users.FindByID(c.Request.Context(), claims.UserID())
	if err != nil || !user.IsActive {
		return Principal{}, false
	}

	return Principal{User: user, Claims: *claims}, true
}

// BearerToken extracts the credential from an Authorization header. The scheme
// is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}

func abortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":  "unauthorized",
		"detail": "Could not validate credentials",
	})
}

func abortForbidden(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error":  "forbidden",
		"detail": detail,
	})
}
