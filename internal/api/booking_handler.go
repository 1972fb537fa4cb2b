package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

// BookingHandler holds the booking service dependency.
type BookingHandler struct {
	bookingService service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// --- Request Structs ---

type CreateBookingRequest struct {
	CoachID  string    `json:"coachId" binding:"required"`
	Start    time.Time `json:"start" binding:"required"`
	End      time.Time `json:"end" binding:"required"`
	Location string    `json:"location"`
	Notes    string    `json:"notes"`
	Rate     float64   `json:"rate"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// --- Handler Methods ---

// CreateBooking creates a booking request from the authenticated
// client to a coach. New bookings always start in the requested state.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	id, err := h.bookingService.CreateBooking(c.Request.Context(), service.CreateBookingParams{
		CoachID:  req.CoachID,
		ClientID: userID,
		Start:    req.Start,
		End:      req.End,
		Status:   domain.StatusRequested,
		Location: req.Location,
		Notes:    req.Notes,
		Rate:     req.Rate,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidTimeRange) || errors.Is(err, service.ErrMissingParticipants) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to create booking")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// UpdateStatus propagates a status change across all booking copies.
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	status, err := domain.ParseBookingStatus(req.Status)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.bookingService.UpdateStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to update booking status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": status})
}

// UpdatePaymentStatus propagates a payment-status change.
func (h *BookingHandler) UpdatePaymentStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	status, err := domain.ParsePaymentStatus(req.Status)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.bookingService.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to update payment status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "paymentStatus": status})
}

// ListBookings reads the caller's mirror collection.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}
	role, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user role from token")
		return
	}

	var bookings []domain.Booking
	if role == domain.RoleCoach {
		bookings, err = h.bookingService.ListForCoach(c.Request.Context(), userID)
	} else {
		bookings, err = h.bookingService.ListForClient(c.Request.Context(), userID)
	}
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list bookings")
		return
	}

	c.JSON(http.StatusOK, bookings)
}
