package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/middleware"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/staycare/booking-backend/internal/services"
)

// BookingService is the booking lifecycle API used by BookingHandler
type BookingService interface {
	GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error)
	GetBookingByUUID(ctx context.Context, bookingUUID string) (*models.Booking, error)
	ReconcileSubmission(ctx context.Context, bookingID int64, req models.SaveQaPairsRequest, actor services.Actor) (*services.SubmissionResult, error)
	ChangeStatus(ctx context.Context, bookingID int64, req models.StatusChangeRequest, actor services.Actor) (*models.Booking, error)
}

// AmendmentLister lists amendment logs of a booking
type AmendmentLister interface {
	ListForBooking(ctx context.Context, bookingID int64, pendingOnly bool) ([]*models.Log, error)
}

// EquipmentLister lists the equipment linked to a booking
type EquipmentLister interface {
	ListForBooking(ctx context.Context, bookingID int64) ([]models.BookingEquipment, error)
}

// BookingHandler handles booking status and questionnaire endpoints
type BookingHandler struct {
	bookings   BookingService
	amendments AmendmentLister
	equipment  EquipmentLister
	logger     *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(bookings BookingService, amendments AmendmentLister, equipment EquipmentLister, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookings:   bookings,
		amendments: amendments,
		equipment:  equipment,
		logger:     logger,
	}
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetBookingByUUID handles GET /api/v1/bookings/uuid/:uuid
func (h *BookingHandler) GetBookingByUUID(c *gin.Context) {
	bookingUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid uuid",
			Code:    "INVALID_ID",
		})
		return
	}

	booking, err := h.bookings.GetBookingByUUID(c.Request.Context(), bookingUUID.String())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListEquipment handles GET /api/v1/bookings/:id/equipment
func (h *BookingHandler) ListEquipment(c *gin.Context) {
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.bookings.GetBooking(c.Request.Context(), bookingID); err != nil {
		respondError(c, err)
		return
	}

	links, err := h.equipment.ListForBooking(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"equipment": links,
		"count":     len(links),
	})
}

// ChangeStatus handles POST /api/v1/bookings/:id/status
func (h *BookingHandler) ChangeStatus(c *gin.Context) {
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req models.StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}

	if _, err := h.bookings.ChangeStatus(c.Request.Context(), bookingID, req, actorFromContext(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// SaveQaPairs handles POST /api/v1/bookings/:id/qa-pairs.
// Only staff may submit with the admin origin; anyone else is treated as the guest.
func (h *BookingHandler) SaveQaPairs(c *gin.Context) {
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req models.SaveQaPairsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}

	userCtx, _ := middleware.GetUserContext(c)
	if req.Flags.IsAdmin() && !userCtx.IsStaff() {
		h.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"user_id":    userCtx.UserID,
		}).Warn("Admin origin requested without staff role, treating as guest")
		req.Flags.Origin = models.OriginGuest
	}

	result, err := h.bookings.ReconcileSubmission(c.Request.Context(), bookingID, req, actorFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SaveQaPairsResponse{
		Success:        true,
		BookingAmended: result.Amended,
	})
}

// ListAmendments handles GET /api/v1/bookings/:id/amendments?pending=true
func (h *BookingHandler) ListAmendments(c *gin.Context) {
	bookingID, ok := idParam(c, "id")
	if !ok {
		return
	}

	pendingOnly := false
	if raw := c.Query("pending"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondValidation(c, "pending must be a boolean", nil)
			return
		}
		pendingOnly = parsed
	}

	logs, err := h.amendments.ListForBooking(c.Request.Context(), bookingID, pendingOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	if logs == nil {
		logs = []*models.Log{}
	}

	c.JSON(http.StatusOK, gin.H{
		"amendments": logs,
		"count":      len(logs),
	})
}
