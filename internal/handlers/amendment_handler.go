package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/staycare/booking-backend/internal/services"
)

// AmendmentReviewer resolves pending amendment logs
type AmendmentReviewer interface {
	Review(ctx context.Context, logID int64, req models.ReviewAmendmentRequest, actor services.Actor) (*models.Log, error)
}

// AmendmentHandler handles staff review of amendment logs
type AmendmentHandler struct {
	reviewer AmendmentReviewer
}

// NewAmendmentHandler creates a new AmendmentHandler
func NewAmendmentHandler(reviewer AmendmentReviewer) *AmendmentHandler {
	return &AmendmentHandler{reviewer: reviewer}
}

// ReviewAmendment handles POST /api/v1/amendments/:id
func (h *AmendmentHandler) ReviewAmendment(c *gin.Context) {
	logID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req models.ReviewAmendmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}

	if _, err := h.reviewer.Review(c.Request.Context(), logID, req, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	message := "Amendment rejected"
	if *req.Approved {
		message = "Amendment approved"
	}
	c.JSON(http.StatusOK, MessageResponse{Message: message})
}
