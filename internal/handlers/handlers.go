package handlers

import (
	"net/http"
	"strconv"

	apperrors "smarthub/internal/errors"
	"smarthub/internal/logger"
	"smarthub/internal/middleware"
	"smarthub/internal/models"
	"smarthub/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// respondError writes the JSON error envelope with the status derived from
// the error kind. Unclassified errors are logged and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("Request failed",
			"path", c.Request.URL.Path,
			"status_code", status,
			"error", err,
		)
	}
	_ = c.Error(err)
	c.JSON(status, models.ErrorResponse{Error: apperrors.Public(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
}

// pathID parses a positive int64 route parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(middleware.UserIDKey)
}
