package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GoogleLogin(c *gin.Context) {
	login, err := h.Auth.LoginURL()
	if err != nil {
		respondError(c, "google_login", err)
		return
	}
	c.JSON(http.StatusOK, login)
}

func (h *Handler) GoogleCallback(c *gin.Context) {
	session, err := h.Auth.Callback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		respondError(c, "google_callback", err)
		return
	}
	c.JSON(http.StatusOK, session)
}
