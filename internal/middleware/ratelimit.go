package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimit allows perMinute+burst requests per client IP in each one minute
// window, counted in redis. A nil client disables the limiter, and redis
// errors let the request through.
func RateLimit(client *redis.Client, prefix string, perMinute, burst int, log zerolog.Logger) gin.HandlerFunc {
	if client == nil || perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limit := int64(perMinute + burst)

	return func(c *gin.Context) {
		window := time.Now().Unix() / 60
		key := fmt.Sprintf("ratelimit:%s:%s:%d", prefix, c.ClientIP(), window)

		pipe := client.TxPipeline()
		incr := pipe.Incr(c, key)
		pipe.Expire(c, key, time.Minute)
		if _, err := pipe.Exec(c); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
			c.Next()
			return
		}

		count := incr.Val()
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			retry := 60 - time.Now().Unix()%60
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":  "rate_limited",
				"detail": "Too many requests",
			})
			return
		}

		c.Next()
	}
}
