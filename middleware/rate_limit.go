package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/cache"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit allows maxRequests per client IP in each window. Without
// Redis, or when Redis fails, requests pass through.
func RateLimit(store *cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.Enabled() || maxRequests <= 0 {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		key := "rate_limit:" + c.FullPath() + ":" + clientIP

		count, err := store.IncrementCounter(c.Request.Context(), key, window)
		if err != nil {
			utils.Logger.Error("rate_limit_error", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, maxRequests-int(count))))

		if count > int64(maxRequests) {
			utils.Logger.Warn("rate_limit_exceeded",
				zap.String("ip", clientIP),
				zap.Int64("count", count),
			)
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			abort(c, http.StatusTooManyRequests, apperr.KindValidation, "too many requests, try again later")
			return
		}

		c.Next()
	}
}
