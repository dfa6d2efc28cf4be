package middleware

import (
	"github.com/gin-gonic/gin"

	"englearn/internal/security"
)

// The guards below run after Authenticate. Without a principal they answer 401.

func RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := verifiedPrincipal(c); !ok {
			return
		}
		c.Next()
	}
}

// RequirePremium implies RequireVerified.
func RequirePremium() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := verifiedPrincipal(c)
		if !ok {
			return
		}
		if !p.User.IsPremium {
			abortForbidden(c, "Premium subscription required")
			return
		}
		c.Next()
	}
}

// RequireRole checks the scopes carried by the access token against the
// hierarchy in security.HasRequired.
func RequireRole(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		if !security.HasRequired(p.Claims.Scopes, scope) {
			abortForbidden(c, "Insufficient permissions")
			return
		}
		c.Next()
	}
}

func verifiedPrincipal(c *gin.Context) (Principal, bool) {
	p, ok := CurrentPrincipal(c)
	if !ok {
		abortUnauthorized(c)
		return Principal{}, false
	}
	if !p.User.IsVerified {
		abortForbidden(c, "Email verification required")
		return Principal{}, false
	}
	return p, true
}
