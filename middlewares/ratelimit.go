package middlewares

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"direct-chat/metrics"
	"direct-chat/services"
)

// SendRateLimit throttles the authenticated caller. A nil limiter
// disables the check; limiter faults let the request through.
func SendRateLimit(limiter services.SendLimiter, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		res, err := limiter.Allow(c.Request.Context(), CurrentUserID(c))
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			metrics.RateLimitHits.Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many messages, slow down"})
			return
		}
		c.Next()
	}
}
