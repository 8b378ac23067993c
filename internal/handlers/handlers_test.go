package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staycare/booking-backend/internal/database"
	"github.com/staycare/booking-backend/internal/middleware"
	"github.com/staycare/booking-backend/internal/models"
	"github.com/staycare/booking-backend/internal/services"
	"github.com/staycare/booking-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookingService struct {
	booking   *models.Booking
	result    *services.SubmissionResult
	err       error
	gotID     int64
	gotUUID   string
	gotSubmit models.SaveQaPairsRequest
	gotStatus models.StatusChangeRequest
	gotActor  services.Actor
}

func (f *fakeBookingService) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	f.gotID = bookingID
	return f.booking, f.err
}

func (f *fakeBookingService) GetBookingByUUID(ctx context.Context, bookingUUID string) (*models.Booking, error) {
	f.gotUUID = bookingUUID
	return f.booking, f.err
}

func (f *fakeBookingService) ReconcileSubmission(ctx context.Context, bookingID int64, req models.SaveQaPairsRequest, actor services.Actor) (*services.SubmissionResult, error) {
	f.gotID, f.gotSubmit, f.gotActor = bookingID, req, actor
	return f.result, f.err
}

func (f *fakeBookingService) ChangeStatus(ctx context.Context, bookingID int64, req models.StatusChangeRequest, actor services.Actor) (*models.Booking, error) {
	f.gotID, f.gotStatus, f.gotActor = bookingID, req, actor
	return f.booking, f.err
}

type fakeAmendments struct {
	logs       []*models.Log
	err        error
	gotPending bool
	gotReview  models.ReviewAmendmentRequest
	gotActor   services.Actor
}

func (f *fakeAmendments) ListForBooking(ctx context.Context, bookingID int64, pendingOnly bool) ([]*models.Log, error) {
	f.gotPending = pendingOnly
	return f.logs, f.err
}

func (f *fakeAmendments) Review(ctx context.Context, logID int64, req models.ReviewAmendmentRequest, actor services.Actor) (*models.Log, error) {
	f.gotReview, f.gotActor = req, actor
	if f.err != nil {
		return nil, f.err
	}
	return &models.Log{ID: logID}, nil
}

type fakeEquipment struct {
	links []models.BookingEquipment
	err   error
}

func (f *fakeEquipment) ListForBooking(ctx context.Context, bookingID int64) ([]models.BookingEquipment, error) {
	return f.links, f.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// withUser stands in for AuthMiddleware
func withUser(user *middleware.UserContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.UserContextKey, *user)
		}
		c.Next()
	}
}

var staffUser = &middleware.UserContext{
	UserID: uuid.MustParse("6f1c1d2e-0d4b-4f63-9a43-1f2a4c6b8e01"),
	Name:   "Grace",
	Roles:  []string{jwt.RoleStaff},
}

func setupBookingRouter(user *middleware.UserContext, bookings *fakeBookingService, amendments *fakeAmendments) *gin.Engine {
	return setupBookingRouterWithEquipment(user, bookings, amendments, &fakeEquipment{})
}

func setupBookingRouterWithEquipment(user *middleware.UserContext, bookings *fakeBookingService, amendments *fakeAmendments, equipment *fakeEquipment) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	bookingHandler := NewBookingHandler(bookings, amendments, equipment, testLogger())
	amendmentHandler := NewAmendmentHandler(amendments)

	v1 := router.Group("/api/v1", withUser(user))
	v1.GET("/bookings/:id", bookingHandler.GetBooking)
	v1.GET("/bookings/uuid/:uuid", bookingHandler.GetBookingByUUID)
	v1.GET("/bookings/:id/equipment", bookingHandler.ListEquipment)
	v1.POST("/bookings/:id/status", bookingHandler.ChangeStatus)
	v1.POST("/bookings/:id/qa-pairs", bookingHandler.SaveQaPairs)
	v1.GET("/bookings/:id/amendments", bookingHandler.ListAmendments)
	v1.POST("/amendments/:id", amendmentHandler.ReviewAmendment)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewBuffer(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Real-IP", "203.0.113.7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBookingHandler_ChangeStatus(t *testing.T) {
	t.Run("success returns empty object", func(t *testing.T) {
		bookings := &fakeBookingService{booking: &models.Booking{ID: 12}}
		router := setupBookingRouter(staffUser, bookings, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/12/status", `{"status":{"name":"on_hold","label":"On Hold","color":"orange"}}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, w.Body.String())
		assert.Equal(t, int64(12), bookings.gotID)
		require.NotNil(t, bookings.gotStatus.Status)
		assert.Equal(t, models.StatusOnHold, bookings.gotStatus.Status.Name)
		assert.Equal(t, "Grace", bookings.gotActor.Name)
		assert.Equal(t, "203.0.113.7", bookings.gotActor.IPAddress)
		require.NotNil(t, bookings.gotActor.UserID)
		assert.Equal(t, staffUser.UserID, *bookings.gotActor.UserID)
	})

	t.Run("invalid change is a bad request", func(t *testing.T) {
		bookings := &fakeBookingService{err: fmt.Errorf("%w: unknown booking status %q", services.ErrInvalidStatusChange, "nope")}
		router := setupBookingRouter(staffUser, bookings, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/12/status", `{"status":{"name":"nope"}}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_STATUS_CHANGE", decodeError(t, w).Code)
	})

	t.Run("missing booking", func(t *testing.T) {
		bookings := &fakeBookingService{err: fmt.Errorf("booking 99: %w", database.ErrNotFound)}
		router := setupBookingRouter(staffUser, bookings, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/99/status", `{"eligibility":{"name":"eligible"}}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeError(t, w).Error)
	})

	t.Run("bad id", func(t *testing.T) {
		router := setupBookingRouter(staffUser, &fakeBookingService{}, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/abc/status", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ID", decodeError(t, w).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		router := setupBookingRouter(staffUser, &fakeBookingService{}, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/12/status", `{"status":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeError(t, w).Error)
	})
}

func TestBookingHandler_SaveQaPairs(t *testing.T) {
	body := `{
		"qa_pairs": [{"id": 501, "section_id": 10, "question": "Dietary Requirements", "answer": "Vegan", "oldAnswer": "None", "question_type": "text", "dirty": true}],
		"flags": {"origin": "admin"}
	}`

	t.Run("staff keeps admin origin", func(t *testing.T) {
		bookings := &fakeBookingService{result: &services.SubmissionResult{Amended: true, Complete: true}}
		router := setupBookingRouter(staffUser, bookings, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/12/qa-pairs", body)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"bookingAmended":true}`, w.Body.String())
		assert.Equal(t, models.OriginAdmin, bookings.gotSubmit.Flags.Origin)
		require.Len(t, bookings.gotSubmit.QaPairs, 1)
		assert.Equal(t, "Dietary Requirements", bookings.gotSubmit.QaPairs[0].Question)
	})

	t.Run("non-staff is downgraded to guest", func(t *testing.T) {
		bookings := &fakeBookingService{result: &services.SubmissionResult{}}
		guest := &middleware.UserContext{UserID: uuid.New(), Name: "Ada", Roles: []string{"guest"}}
		router := setupBookingRouter(guest, bookings, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/12/qa-pairs", body)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"bookingAmended":false}`, w.Body.String())
		assert.Equal(t, models.OriginGuest, bookings.gotSubmit.Flags.Origin)
	})

	t.Run("batch failure is a server error", func(t *testing.T) {
		bookings := &fakeBookingService{err: fmt.Errorf("failed to save answers: %w", assert.AnError)}
		router := setupBookingRouter(staffUser, bookings, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/12/qa-pairs", body)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, decodeError(t, w).Message, "failed to save answers")
	})

	t.Run("missing required fields", func(t *testing.T) {
		router := setupBookingRouter(staffUser, &fakeBookingService{}, &fakeAmendments{})

		w := doJSON(t, router, "POST", "/api/v1/bookings/12/qa-pairs", `{"qa_pairs":[{"answer":"x"}]}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBookingHandler_GetBooking(t *testing.T) {
	booking := &models.Booking{ID: 12, ReferenceID: "BK-0012", StatusName: models.StatusBookingConfirmed}
	bookings := &fakeBookingService{booking: booking}
	router := setupBookingRouter(staffUser, bookings, &fakeAmendments{})

	w := doJSON(t, router, "GET", "/api/v1/bookings/12", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reference_id":"BK-0012"`)
	assert.Equal(t, int64(12), bookings.gotID)
}

func TestBookingHandler_GetBookingByUUID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		bookings := &fakeBookingService{booking: &models.Booking{ID: 12, UUID: "8c7d3a2e-0d5b-4a35-b6c9-1f0e2d3c4b5a"}}
		router := setupBookingRouter(staffUser, bookings, &fakeAmendments{})

		w := doJSON(t, router, "GET", "/api/v1/bookings/uuid/8C7D3A2E-0D5B-4A35-B6C9-1F0E2D3C4B5A", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "8c7d3a2e-0d5b-4a35-b6c9-1f0e2d3c4b5a", bookings.gotUUID)
	})

	t.Run("malformed uuid", func(t *testing.T) {
		router := setupBookingRouter(staffUser, &fakeBookingService{}, &fakeAmendments{})

		w := doJSON(t, router, "GET", "/api/v1/bookings/uuid/not-a-uuid", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ID", decodeError(t, w).Code)
	})

	t.Run("unknown booking", func(t *testing.T) {
		bookings := &fakeBookingService{err: fmt.Errorf("booking: %w", database.ErrNotFound)}
		router := setupBookingRouter(staffUser, bookings, &fakeAmendments{})

		w := doJSON(t, router, "GET", "/api/v1/bookings/uuid/8c7d3a2e-0d5b-4a35-b6c9-1f0e2d3c4b5a", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBookingHandler_ListEquipment(t *testing.T) {
	t.Run("lists links", func(t *testing.T) {
		equipment := &fakeEquipment{links: []models.BookingEquipment{
			{BookingID: 12, EquipmentID: 3, Question: "Mobility Aid"},
		}}
		router := setupBookingRouterWithEquipment(staffUser, &fakeBookingService{booking: &models.Booking{ID: 12}}, &fakeAmendments{}, equipment)

		w := doJSON(t, router, "GET", "/api/v1/bookings/12/equipment", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Equipment []models.BookingEquipment `json:"equipment"`
			Count     int                       `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "Mobility Aid", resp.Equipment[0].Question)
	})

	t.Run("unknown booking", func(t *testing.T) {
		bookings := &fakeBookingService{err: fmt.Errorf("booking: %w", database.ErrNotFound)}
		router := setupBookingRouterWithEquipment(staffUser, bookings, &fakeAmendments{}, &fakeEquipment{})

		w := doJSON(t, router, "GET", "/api/v1/bookings/12/equipment", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBookingHandler_ListAmendments(t *testing.T) {
	t.Run("pending filter", func(t *testing.T) {
		amendments := &fakeAmendments{logs: []*models.Log{{
			ID:         3,
			Type:       models.LogTypeQaPair,
			LoggableID: 12,
			Data:       &models.QaPairLogData{QaPair: models.QaPairSnapshot{Question: "Dietary Requirements"}},
		}}}
		router := setupBookingRouter(staffUser, &fakeBookingService{}, amendments)

		w := doJSON(t, router, "GET", "/api/v1/bookings/12/amendments?pending=true", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, amendments.gotPending)
		assert.Contains(t, w.Body.String(), `"count":1`)
		assert.Contains(t, w.Body.String(), "Dietary Requirements")
	})

	t.Run("empty list", func(t *testing.T) {
		amendments := &fakeAmendments{}
		router := setupBookingRouter(staffUser, &fakeBookingService{}, amendments)

		w := doJSON(t, router, "GET", "/api/v1/bookings/12/amendments", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, amendments.gotPending)
		assert.JSONEq(t, `{"amendments":[],"count":0}`, w.Body.String())
	})

	t.Run("bad pending flag", func(t *testing.T) {
		router := setupBookingRouter(staffUser, &fakeBookingService{}, &fakeAmendments{})

		w := doJSON(t, router, "GET", "/api/v1/bookings/12/amendments?pending=maybe", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAmendmentHandler_ReviewAmendment(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		err             error
		expectedStatus  int
		expectedMessage string
		expectedCode    string
	}{
		{
			name:            "approve",
			body:            `{"approved": true, "note": "checked with guest"}`,
			expectedStatus:  http.StatusOK,
			expectedMessage: "Amendment approved",
		},
		{
			name:            "reject",
			body:            `{"approved": false}`,
			expectedStatus:  http.StatusOK,
			expectedMessage: "Amendment rejected",
		},
		{
			name:           "unknown log",
			body:           `{"approved": true}`,
			err:            fmt.Errorf("amendment log 7: %w", database.ErrNotFound),
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
		{
			name:           "already resolved",
			body:           `{"approved": false}`,
			err:            services.ErrLogResolved,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "AMENDMENT_RESOLVED",
		},
		{
			name:           "missing decision",
			body:           `{"note": "?"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amendments := &fakeAmendments{err: tt.err}
			router := setupBookingRouter(staffUser, &fakeBookingService{}, amendments)

			w := doJSON(t, router, "POST", "/api/v1/amendments/7", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedMessage != "" {
				assert.JSONEq(t, fmt.Sprintf(`{"message":%q}`, tt.expectedMessage), w.Body.String())
				assert.Equal(t, "Grace", amendments.gotActor.Name)
			}
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Code)
			}
		})
	}
}
