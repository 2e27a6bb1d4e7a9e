package middleware

import (
	"net/http"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				utils.Logger.Error("panic_recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(RequestIDKey)),
				)
				utils.ErrorCount.WithLabelValues(c.FullPath(), "panic").Inc()
				abort(c, http.StatusInternalServerError, apperr.KindInternal, "internal server error")
			}
		}()
		c.Next()
	}
}

// abort writes the API error body and stops the chain.
func abort(c *gin.Context, status int, kind apperr.Kind, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": kind})
}
