package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/middleware"
	"github.com/staycare/booking-backend/internal/services"
	"github.com/staycare/booking-backend/internal/utils"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// MessageResponse is returned by endpoints that only acknowledge an action
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError maps service and repository errors onto HTTP responses
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
			Code:    "NOT_FOUND",
		})
	case errors.Is(err, services.ErrInvalidStatusChange):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    "INVALID_STATUS_CHANGE",
		})
	case errors.Is(err, services.ErrLogResolved):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    "AMENDMENT_RESOLVED",
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}

func respondValidation(c *gin.Context, message string, err error) {
	resp := ErrorResponse{Error: "validation_error", Message: message}
	if err != nil {
		resp.Message = message + ": " + err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

// idParam parses a positive integer path parameter
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid " + name,
			Code:    "INVALID_ID",
		})
		return 0, false
	}
	return id, true
}

// actorFromContext describes the caller for audit and amendment records
func actorFromContext(c *gin.Context) services.Actor {
	actor := services.Actor{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
	if userCtx, ok := middleware.GetUserContext(c); ok {
		userID := userCtx.UserID
		actor.UserID = &userID
		actor.Name = userCtx.DisplayName()
	}
	return actor
}
