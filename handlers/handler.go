// Package handlers exposes the gamification, agent, calendar and auth
// operations over HTTP.
package handlers

import (
	"net/http"

	"github.com/Bekzhanizb/LifeQuestBackend/agent"
	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/auth"
	"github.com/Bekzhanizb/LifeQuestBackend/cache"
	"github.com/Bekzhanizb/LifeQuestBackend/calendar"
	"github.com/Bekzhanizb/LifeQuestBackend/chat"
	"github.com/Bekzhanizb/LifeQuestBackend/middleware"
	"github.com/Bekzhanizb/LifeQuestBackend/services"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler carries the services the endpoints call into.
type Handler struct {
	Game      *services.GamificationService
	Router    *agent.Router
	Chat      *chat.Service
	Calendars calendar.Provider
	Auth      *auth.GoogleAuth
	Cache     *cache.Store
	UploadDir string
}

// respondError writes {"error", "code"}. Internal causes are logged and
// never sent to the client.
func respondError(c *gin.Context, handler string, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	utils.ErrorCount.WithLabelValues(handler, string(kind)).Inc()
	fields := []zap.Field{
		zap.String("handler", handler),
		zap.String("code", string(kind)),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		utils.Logger.Error("request_failed", fields...)
	} else {
		utils.Logger.Info("request_rejected", fields...)
	}

	c.JSON(status, gin.H{"error": apperr.Message(err), "code": kind})
}

// bind decodes the JSON body and runs the validate tags.
func bind(c *gin.Context, op string, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, "invalid JSON body", err)
	}
	if err := middleware.ValidateStruct(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, op, middleware.ValidationMessage(err), err)
	}
	return nil
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
