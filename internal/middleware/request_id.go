package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"englearn/internal/ids"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags the request with an id and puts a logger carrying it on the
// request context, where services and handlers pick it up with zerolog.Ctx.
func RequestID(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = ids.RequestID()
		}

		c.Set(requestIDHeader, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		reqLog := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))

		c.Next()
	}
}
