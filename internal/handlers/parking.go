package handlers

import (
	"net/http"

	"smarthub/internal/models"

	"github.com/gin-gonic/gin"
)

// ListParkingLots - GET /api/parking
func (h *Handlers) ListParkingLots(c *gin.Context) {
	lots, err := h.services.Parking.ListLots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lots)
}

// BookParking - POST /api/parking/:id/book
func (h *Handlers) BookParking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.BookParkingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	booking, err := h.services.Parking.Book(c.Request.Context(), currentUserID(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// CompleteParking - PATCH /api/parking/bookings/:id/complete
func (h *Handlers) CompleteParking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.services.Parking.Complete(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// MyParking - GET /api/me/parking
func (h *Handlers) MyParking(c *gin.Context) {
	bookings, err := h.services.Parking.ListBookings(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}
