package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Bekzhanizb/LifeQuestBackend/agent"
	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/calendar"
	"github.com/Bekzhanizb/LifeQuestBackend/middleware"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxSyllabusBytes = 10 << 20

type chatRequest struct {
	UserID  string `json:"user_id" validate:"required,max=128"`
	Message string `json:"message" validate:"required,max=4000"`
}

func (h *Handler) AgentChat(c *gin.Context) {
	var req chatRequest
	if err := bind(c, "handlers.agent_chat", &req); err != nil {
		respondError(c, "agent_chat", err)
		return
	}
	if !middleware.ActingAs(c, req.UserID) {
		return
	}

	reply, err := h.Router.Route(c.Request.Context(), agent.Request{UserID: req.UserID, Message: req.Message})
	if err != nil {
		respondError(c, "agent_chat", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply.Text, "intent": reply.Intent})
}

// AgentSyllabus stores the uploaded PDF, routes it with the optional
// message and removes it afterwards.
func (h *Handler) AgentSyllabus(c *gin.Context) {
	const op = "handlers.agent_syllabus"

	userID := strings.TrimSpace(c.PostForm("user_id"))
	if userID == "" {
		respondError(c, "agent_syllabus", apperr.Validation(op, "user_id is required"))
		return
	}
	if !middleware.ActingAs(c, userID) {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, "agent_syllabus", apperr.Validation(op, "file is required"))
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		respondError(c, "agent_syllabus", apperr.Validation(op, "only PDF files are supported"))
		return
	}
	if file.Size > MaxSyllabusBytes {
		respondError(c, "agent_syllabus", apperr.Validation(op, "file is larger than 10MB"))
		return
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		respondError(c, "agent_syllabus", apperr.Wrap(apperr.KindInternal, op, "", err))
		return
	}
	path := filepath.Join(h.UploadDir, uuid.NewString()+".pdf")
	if err := c.SaveUploadedFile(file, path); err != nil {
		respondError(c, "agent_syllabus", apperr.Wrap(apperr.KindInternal, op, "", err))
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			utils.Logger.Warn("upload_cleanup_failed", zap.String("path", path), zap.Error(err))
		}
	}()

	message := c.PostForm("message")
	if strings.TrimSpace(message) == "" {
		message = "Extract the assignments and due dates from this syllabus."
	}

	reply, err := h.Router.Route(c.Request.Context(), agent.Request{UserID: userID, Message: message, FilePath: path})
	if err != nil {
		respondError(c, "agent_syllabus", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply.Text, "intent": reply.Intent})
}

// Bootstrap lists the user's upcoming events and asks the model for a
// routine built around them.
func (h *Handler) Bootstrap(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("user_id")

	gw, err := h.Calendars.ForUser(ctx, userID)
	if err != nil {
		respondError(c, "bootstrap", err)
		return
	}
	events, err := gw.ListUpcoming(ctx, calendar.DefaultMaxResults)
	if err != nil {
		respondError(c, "bootstrap", err)
		return
	}

	proposal, err := h.Chat.ProposeRoutine(ctx, events)
	if err != nil {
		respondError(c, "bootstrap", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "proposal": proposal})
}
