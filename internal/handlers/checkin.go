package handlers

import (
	"io"
	"net/http"

	"smarthub/internal/models"

	"github.com/gin-gonic/gin"
)

const maxScanBytes = 5 << 20

// CheckIn - POST /api/checkin
// Body: {"registration_id": "<domain>:<id>"}
func (h *Handlers) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "registration_id is required")
		return
	}

	resp, err := h.services.CheckIn.CheckIn(c.Request.Context(), req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CheckInScan - POST /api/checkin/scan
// Multipart upload of a photographed credential in the "credential" field.
func (h *Handlers) CheckInScan(c *gin.Context) {
	fh, err := c.FormFile("credential")
	if err != nil {
		badRequest(c, "credential image is required")
		return
	}
	if fh.Size > maxScanBytes {
		badRequest(c, "credential image is too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, "credential image is unreadable")
		return
	}
	defer f.Close()

	img, err := io.ReadAll(io.LimitReader(f, maxScanBytes))
	if err != nil {
		badRequest(c, "credential image is unreadable")
		return
	}

	resp, err := h.services.CheckIn.CheckInImage(c.Request.Context(), img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
