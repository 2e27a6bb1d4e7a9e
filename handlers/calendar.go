package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/calendar"
	"github.com/gin-gonic/gin"
)

type createEventRequest struct {
	Summary string    `json:"summary" validate:"required,max=1024"`
	Start   time.Time `json:"start" validate:"required"`
	End     time.Time `json:"end" validate:"required"`
}

type updateEventRequest struct {
	Summary     *string    `json:"summary" validate:"omitempty,max=1024"`
	Description *string    `json:"description" validate:"omitempty,max=8192"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
}

func (h *Handler) gateway(c *gin.Context, handler string) (calendar.Gateway, bool) {
	gw, err := h.Calendars.ForUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, handler, err)
		return nil, false
	}
	return gw, true
}

func (h *Handler) ListEvents(c *gin.Context) {
	maxResults := 0
	if raw := c.Query("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, "list_events", apperr.Validation("handlers.list_events", "max_results must be a number"))
			return
		}
		maxResults = n
	}

	gw, ok := h.gateway(c, "list_events")
	if !ok {
		return
	}
	events, err := gw.ListUpcoming(c.Request.Context(), maxResults)
	if err != nil {
		respondError(c, "list_events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := bind(c, "handlers.create_event", &req); err != nil {
		respondError(c, "create_event", err)
		return
	}

	gw, ok := h.gateway(c, "create_event")
	if !ok {
		return
	}
	ref, err := gw.CreateEvent(c.Request.Context(), req.Summary, req.Start, req.End)
	if err != nil {
		respondError(c, "create_event", err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	var req updateEventRequest
	if err := bind(c, "handlers.update_event", &req); err != nil {
		respondError(c, "update_event", err)
		return
	}

	gw, ok := h.gateway(c, "update_event")
	if !ok {
		return
	}
	ev, err := gw.UpdateEvent(c.Request.Context(), c.Param("event_id"), calendar.EventPatch{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
	})
	if err != nil {
		respondError(c, "update_event", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	gw, ok := h.gateway(c, "delete_event")
	if !ok {
		return
	}
	if err := gw.DeleteEvent(c.Request.Context(), c.Param("event_id")); err != nil {
		respondError(c, "delete_event", err)
		return
	}
	c.Status(http.StatusNoContent)
}
