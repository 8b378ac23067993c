package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/staycare/booking-backend/pkg/validator"
)

// SettingRepository is the settings storage used by SystemSettingHandler
type SettingRepository interface {
	GetAll(ctx context.Context) ([]models.SystemSetting, error)
	GetByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	Update(ctx context.Context, key string, value string) error
}

// CacheInvalidator drops a cached copy of a setting
type CacheInvalidator interface {
	Invalidate()
}

type SystemSettingHandler struct {
	settingRepo SettingRepository
	recipients  CacheInvalidator
	emails      *validator.EmailValidator
}

func NewSystemSettingHandler(settingRepo SettingRepository, recipients CacheInvalidator) *SystemSettingHandler {
	return &SystemSettingHandler{
		settingRepo: settingRepo,
		recipients:  recipients,
		emails:      validator.NewEmailValidator(),
	}
}

// GetAllSettings retrieves all system settings
// GET /api/v1/system-settings
func (h *SystemSettingHandler) GetAllSettings(c *gin.Context) {
	settings, err := h.settingRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

// GetSettingByKey retrieves a specific system setting by key
// GET /api/v1/system-settings/:key
func (h *SystemSettingHandler) GetSettingByKey(c *gin.Context) {
	setting, err := h.settingRepo.GetByKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, setting)
}

// UpdateSetting updates a system setting's value
// PUT /api/v1/system-settings/:key
func (h *SystemSettingHandler) UpdateSetting(c *gin.Context) {
	key := c.Param("key")

	var req models.UpdateSystemSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err)
		return
	}

	if key == models.SettingNotificationRecipients {
		if _, invalid := h.emails.ValidateList(req.SettingValue); len(invalid) > 0 {
			rejected := lo.Keys(invalid)
			sort.Strings(rejected)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "Invalid notification recipients: " + strings.Join(rejected, ", "),
				Code:    "INVALID_RECIPIENTS",
			})
			return
		}
	}

	ctx := c.Request.Context()
	if _, err := h.settingRepo.GetByKey(ctx, key); err != nil {
		respondError(c, err)
		return
	}

	if err := h.settingRepo.Update(ctx, key, req.SettingValue); err != nil {
		respondError(c, err)
		return
	}

	if key == models.SettingNotificationRecipients && h.recipients != nil {
		h.recipients.Invalidate()
	}

	updated, err := h.settingRepo.GetByKey(ctx, key)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}
