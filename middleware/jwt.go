package middleware

import (
	"net/http"
	"strings"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserIDKey holds the authenticated user id in the gin context.
const UserIDKey = "auth_user_id"

// Identity reads a bearer session token. With required=false a missing
// token is allowed, but a present one must still be valid.
func Identity(signer *utils.Signer, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				abort(c, http.StatusUnauthorized, apperr.KindAuth, "missing token")
				return
			}
			c.Next()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			abort(c, http.StatusUnauthorized, apperr.KindAuth, "invalid authorization header")
			return
		}

		userID, err := signer.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.Logger.Debug("token_rejected", zap.Error(err))
			abort(c, http.StatusUnauthorized, apperr.KindAuth, "invalid token")
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// SameUser rejects requests whose :user_id differs from the authenticated
// user. Anonymous requests pass when Identity allowed them through.
func SameUser(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActingAs(c, c.Param(param)) {
			return
		}
		c.Next()
	}
}

// ActingAs checks a user id taken from the path or body against the
// authenticated user and aborts with 403 on a mismatch.
func ActingAs(c *gin.Context, target string) bool {
	authID := c.GetString(UserIDKey)
	if authID == "" || target == "" || target == authID {
		return true
	}
	utils.Logger.Warn("user_mismatch",
		zap.String("auth_user_id", authID),
		zap.String("target_user_id", target),
	)
	abort(c, http.StatusForbidden, apperr.KindAuth, "forbidden")
	return false
}
