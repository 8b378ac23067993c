package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/models"
)

// BookingOwnerLookup resolves the guest that owns a booking
type BookingOwnerLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetGuest(ctx context.Context, guestID int64) (*models.Guest, error)
}

// RequireBookingAccess lets staff through and otherwise only the guest owning
// the booking in the :id route parameter, matched by email.
// Must be used after AuthMiddleware to have userCtx available
func RequireBookingAccess(owners BookingOwnerLookup, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found. Auth middleware may not be applied.",
				"code":    "MISSING_USER_CONTEXT",
			})
			return
		}
		if userCtx.IsStaff() {
			c.Next()
			return
		}

		bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || bookingID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "Invalid id",
				"code":    "INVALID_ID",
			})
			return
		}

		guest, err := bookingGuest(c.Request.Context(), owners, bookingID)
		if errors.Is(err, database.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Booking not found",
				"code":    "NOT_FOUND",
			})
			return
		}
		if err != nil {
			logger.WithError(err).WithField("booking_id", bookingID).Error("Failed to resolve booking owner")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to verify booking access",
			})
			return
		}

		if userCtx.Email == "" || !strings.EqualFold(strings.TrimSpace(guest.Email), userCtx.Email) {
			logger.WithFields(logrus.Fields{
				"booking_id": bookingID,
				"user_id":    userCtx.UserID,
			}).Warn("Booking access denied to non-owner")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "You can only modify your own booking",
				"code":    "NOT_BOOKING_OWNER",
			})
			return
		}

		c.Next()
	}
}

func bookingGuest(ctx context.Context, owners BookingOwnerLookup, bookingID int64) (*models.Guest, error) {
	booking, err := owners.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return owners.GetGuest(ctx, booking.GuestID)
}
