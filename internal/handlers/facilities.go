package handlers

import (
	"net/http"

	"smarthub/internal/models"

	"github.com/gin-gonic/gin"
)

// ListFacilities - GET /api/facilities
func (h *Handlers) ListFacilities(c *gin.Context) {
	facilities, err := h.services.Facilities.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, facilities)
}

// GetFacility - GET /api/facilities/:id
func (h *Handlers) GetFacility(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	facility, err := h.services.Facilities.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, facility)
}

// ListTimeSlots - GET /api/facilities/slots
func (h *Handlers) ListTimeSlots(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Facilities.TimeSlots())
}

// BookFacility - POST /api/facilities/:id/book
func (h *Handlers) BookFacility(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.BookFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	booking, err := h.services.Facilities.Book(c.Request.Context(), currentUserID(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// MyBookings - GET /api/me/bookings
func (h *Handlers) MyBookings(c *gin.Context) {
	bookings, err := h.services.Facilities.ListBookings(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}
