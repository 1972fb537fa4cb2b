package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBookingService struct {
	createdParams service.CreateBookingParams
	createErr     error
	statusID      string
	status        domain.BookingStatus
	statusErr     error
	coachLists    int
	clientLists   int
}

func (s *stubBookingService) CreateBooking(_ context.Context, p service.CreateBookingParams) (string, error) {
	s.createdParams = p
	if s.createErr != nil {
		return "", s.createErr
	}
	return "bk-1", nil
}

func (s *stubBookingService) UpdateStatus(_ context.Context, id string, status domain.BookingStatus) error {
	s.statusID = id
	s.status = status
	return s.statusErr
}

func (s *stubBookingService) UpdatePaymentStatus(_ context.Context, _ string, _ domain.PaymentStatus) error {
	return s.statusErr
}

func (s *stubBookingService) ListForCoach(_ context.Context, _ string) ([]domain.Booking, error) {
	s.coachLists++
	return []domain.Booking{{ID: "bk-1"}}, nil
}

func (s *stubBookingService) ListForClient(_ context.Context, _ string) ([]domain.Booking, error) {
	s.clientLists++
	return nil, nil
}

func bookingRouter(stub *stubBookingService, userID string, role domain.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserIDKey, userID)
		c.Set(ContextUserRoleKey, role)
	})
	h := NewBookingHandler(stub)
	r.POST("/bookings", h.CreateBooking)
	r.PATCH("/bookings/:id/status", h.UpdateStatus)
	r.GET("/bookings", h.ListBookings)
	return r
}

func TestCreateBookingForcesRequestedAndCallerIdentity(t *testing.T) {
	stub := &stubBookingService{}
	r := bookingRouter(stub, "u1", domain.RoleClient)

	body := `{"coachId":"c1","start":"2026-03-05T10:00:00Z","end":"2026-03-05T11:00:00Z","rate":60}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bk-1", resp["id"])

	// The caller cannot spoof client identity or initial status.
	assert.Equal(t, "u1", stub.createdParams.ClientID)
	assert.Equal(t, domain.StatusRequested, stub.createdParams.Status)
	assert.Equal(t, "c1", stub.createdParams.CoachID)
}

func TestCreateBookingRejectsBadTimeRange(t *testing.T) {
	stub := &stubBookingService{createErr: service.ErrInvalidTimeRange}
	r := bookingRouter(stub, "u1", domain.RoleClient)

	body := `{"coachId":"c1","start":"2026-03-05T11:00:00Z","end":"2026-03-05T10:00:00Z"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatusParsesAndRoutes(t *testing.T) {
	stub := &stubBookingService{}
	r := bookingRouter(stub, "c1", domain.RoleCoach)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/bookings/bk-9/status", bytes.NewBufferString(`{"status":"confirmed"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bk-9", stub.statusID)
	assert.Equal(t, domain.StatusConfirmed, stub.status)
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	stub := &stubBookingService{}
	r := bookingRouter(stub, "c1", domain.RoleCoach)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/bookings/bk-9/status", bytes.NewBufferString(`{"status":"tentative"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, stub.statusID)
}

func TestUpdateStatusNotFound(t *testing.T) {
	stub := &stubBookingService{statusErr: service.ErrBookingNotFound}
	r := bookingRouter(stub, "c1", domain.RoleCoach)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/bookings/nope/status", bytes.NewBufferString(`{"status":"confirmed"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBookingsRoutesByRole(t *testing.T) {
	stub := &stubBookingService{}
	r := bookingRouter(stub, "c1", domain.RoleCoach)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.coachLists)
	assert.Zero(t, stub.clientLists)

	stub = &stubBookingService{}
	r = bookingRouter(stub, "u1", domain.RoleClient)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, stub.clientLists)
	assert.Zero(t, stub.coachLists)
}
