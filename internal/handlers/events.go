package handlers

import (
	"errors"
	"io"
	"net/http"

	"smarthub/internal/models"

	"github.com/gin-gonic/gin"
)

// ListEvents - GET /api/events?query=
func (h *Handlers) ListEvents(c *gin.Context) {
	events, err := h.services.Events.List(c.Request.Context(), c.Query("query"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ListEventsResponse(events))
}

// GetEvent - GET /api/events/:id
func (h *Handlers) GetEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	event, err := h.services.Events.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// RegisterEvent - POST /api/events/:id/register
// An empty body registers a single ticket.
func (h *Handlers) RegisterEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.RegisterEventRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	reg, err := h.services.Events.Register(c.Request.Context(), currentUserID(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewRegistrationResponse(reg))
}

// MyRegistrations - GET /api/me/registrations
func (h *Handlers) MyRegistrations(c *gin.Context) {
	regs, err := h.services.Events.ListRegistrations(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]models.RegistrationResponse, len(regs))
	for i := range regs {
		resp[i] = models.NewRegistrationResponse(&regs[i])
	}
	c.JSON(http.StatusOK, resp)
}
