package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/calendar"
	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"github.com/google/uuid"
)

// --- Error Definitions ---
var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInvalidTimeRange    = errors.New("booking start must be before end")
	ErrMissingParticipants = errors.New("coach and client ids are required")
)

// CreateBookingParams carries everything needed to create a booking.
type CreateBookingParams struct {
	CoachID       string
	ClientID      string
	Start         time.Time
	End           time.Time
	Status        domain.BookingStatus
	PaymentStatus domain.PaymentStatus
	Location      string
	Notes         string
	Rate          float64
}

// BookingService owns every booking mutation. A booking lives in three
// places (root, coach mirror, client mirror) and all three are written
// or updated in one atomic batch; nothing else in the engine writes
// booking documents.
type BookingService interface {
	CreateBooking(ctx context.Context, p CreateBookingParams) (string, error)
	UpdateStatus(ctx context.Context, bookingID string, status domain.BookingStatus) error
	UpdatePaymentStatus(ctx context.Context, bookingID string, status domain.PaymentStatus) error
	ListForCoach(ctx context.Context, coachID string) ([]domain.Booking, error)
	ListForClient(ctx context.Context, clientID string) ([]domain.Booking, error)
}

type bookingService struct {
	store        store.Store
	notifier     *Notifier
	calendar     calendar.Sync
	calendarSync bool
}

// NewBookingService creates a new instance of bookingService.
// calendarSync opts status updates into the device-calendar side
// effect.
func NewBookingService(st store.Store, notifier *Notifier, cal calendar.Sync, calendarSync bool) BookingService {
	return &bookingService{
		store:        st,
		notifier:     notifier,
		calendar:     cal,
		calendarSync: calendarSync,
	}
}

// CreateBooking writes the booking to the root collection, both
// mirrors and the coach's summary cache in one atomic batch: either
// all four land or none do.
func (s *bookingService) CreateBooking(ctx context.Context, p CreateBookingParams) (string, error) {
	if p.CoachID == "" || p.ClientID == "" {
		return "", ErrMissingParticipants
	}
	if !p.Start.Before(p.End) {
		return "", ErrInvalidTimeRange
	}
	if p.Status == "" {
		p.Status = domain.StatusRequested
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = domain.PaymentUnpaid
	}

	// Best-effort name lookups; a missing profile never fails the create.
	coachName := s.lookupCoachName(ctx, p.CoachID)
	clientName := s.lookupClientName(ctx, p.ClientID)

	now := time.Now().UTC()
	booking := domain.Booking{
		ID:            uuid.NewString(),
		CoachID:       p.CoachID,
		ClientID:      p.ClientID,
		CoachName:     coachName,
		Start:         p.Start.UTC(),
		End:           p.End.UTC(),
		Location:      p.Location,
		Notes:         p.Notes,
		Status:        p.Status,
		PaymentStatus: p.PaymentStatus,
		Rate:          p.Rate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	summary := domain.BookingSummary{
		BookingID:  booking.ID,
		ClientName: clientName,
		Start:      booking.Start,
		End:        booking.End,
		Status:     booking.Status,
	}

	batch := store.NewBatch().
		Set(store.Bookings, booking.ID, booking).
		Set(store.CoachBookings, booking.ID, booking).
		Set(store.ClientBookings, booking.ID, booking).
		AddToSet(store.Coaches, p.CoachID, "bookingSummaries", summary)

	if err := s.store.Commit(ctx, batch); err != nil {
		return "", err
	}

	// Diagnostics only: the batch's atomicity is the correctness
	// guarantee, a read-back miss does not revert anything.
	s.verifyMirrors(ctx, booking)

	if booking.Status == domain.StatusRequested {
		s.notifier.Queue(p.CoachID,
			"New booking request",
			fmt.Sprintf("%s requested a session on %s", fallbackName(clientName, p.ClientID), booking.Start.Format("Jan 2 15:04")),
			map[string]string{"bookingId": booking.ID})
	}

	return booking.ID, nil
}

// UpdateStatus propagates a status change across the root copy and
// every mirror whose owner id can be resolved, in one atomic batch.
func (s *bookingService) UpdateStatus(ctx context.Context, bookingID string, status domain.BookingStatus) error {
	if err := s.updateField(ctx, bookingID, "status", status); err != nil {
		return err
	}
	if (status == domain.StatusConfirmed || status == domain.StatusAccepted) && s.calendarSync {
		// Out-of-band side effect: never blocks or fails the write path.
		s.syncCalendar(ctx, bookingID)
	}
	return nil
}

// UpdatePaymentStatus propagates a payment-status change the same way.
func (s *bookingService) UpdatePaymentStatus(ctx context.Context, bookingID string, status domain.PaymentStatus) error {
	return s.updateField(ctx, bookingID, "paymentStatus", status)
}

func (s *bookingService) updateField(ctx context.Context, bookingID, field string, value any) error {
	var booking domain.Booking
	if err := s.store.Get(ctx, store.Bookings, bookingID, &booking); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBookingNotFound
		}
		return err
	}

	fields := map[string]any{field: value, "updatedAt": time.Now().UTC()}
	batch := store.NewBatch().Update(store.Bookings, bookingID, fields)

	// A mirror whose owner id cannot be normalized is skipped: stale
	// but safe, and the skip is visible in the log.
	if coachID := domain.NormalizeOwnerRef(booking.CoachID); coachID != "" {
		batch.Update(store.CoachBookings, bookingID, fields)
	} else {
		log.Printf("WARN: booking %s: coach mirror skipped, owner ref %q unresolvable", bookingID, booking.CoachID)
	}
	if clientID := domain.NormalizeOwnerRef(booking.ClientID); clientID != "" {
		batch.Update(store.ClientBookings, bookingID, fields)
	} else {
		log.Printf("WARN: booking %s: client mirror skipped, owner ref %q unresolvable", bookingID, booking.ClientID)
	}

	return s.store.Commit(ctx, batch)
}

// syncCalendar adds the booking to the device calendar once. The
// stored event id is the idempotency guard: the read-then-write here
// is not transactional with the status update and may run again after
// a retry, but a booking that already carries an event id is done.
func (s *bookingService) syncCalendar(ctx context.Context, bookingID string) {
	var booking domain.Booking
	if err := s.store.Get(ctx, store.Bookings, bookingID, &booking); err != nil {
		log.Printf("ERROR: calendar sync: re-read booking %s: %v", bookingID, err)
		return
	}
	if booking.CalendarEventID != "" {
		return
	}

	eventID, err := s.calendar.AddEvent(ctx, calendar.Event{
		Title:    fmt.Sprintf("Session with %s", fallbackName(booking.CoachName, booking.CoachID)),
		Start:    booking.Start,
		End:      booking.End,
		Location: booking.Location,
		Notes:    booking.Notes,
	})
	if err != nil {
		log.Printf("ERROR: calendar sync: add event for booking %s: %v", bookingID, err)
		return
	}

	fields := map[string]any{"calendarEventId": eventID}
	batch := store.NewBatch().Update(store.Bookings, bookingID, fields)
	if domain.NormalizeOwnerRef(booking.CoachID) != "" {
		batch.Update(store.CoachBookings, bookingID, fields)
	}
	if domain.NormalizeOwnerRef(booking.ClientID) != "" {
		batch.Update(store.ClientBookings, bookingID, fields)
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		log.Printf("ERROR: calendar sync: store event id for booking %s: %v", bookingID, err)
	}
}

// ListForCoach reads the coach's mirror collection.
func (s *bookingService) ListForCoach(ctx context.Context, coachID string) ([]domain.Booking, error) {
	var out []domain.Booking
	q := store.NewQuery().Where("coachId", store.OpEq, coachID).OrderBy("start", false)
	if err := s.store.Find(ctx, store.CoachBookings, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListForClient reads the client's mirror collection.
func (s *bookingService) ListForClient(ctx context.Context, clientID string) ([]domain.Booking, error) {
	var out []domain.Booking
	q := store.NewQuery().Where("clientId", store.OpEq, clientID).OrderBy("start", false)
	if err := s.store.Find(ctx, store.ClientBookings, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *bookingService) lookupCoachName(ctx context.Context, coachID string) string {
	var coach domain.Coach
	if err := s.store.Get(ctx, store.Coaches, coachID, &coach); err != nil {
		return ""
	}
	return coach.DisplayName
}

func (s *bookingService) lookupClientName(ctx context.Context, clientID string) string {
	var client domain.Client
	if err := s.store.Get(ctx, store.Clients, clientID, &client); err != nil {
		return ""
	}
	return client.DisplayName
}

func (s *bookingService) verifyMirrors(ctx context.Context, expected domain.Booking) {
	for _, collection := range []string{store.CoachBookings, store.ClientBookings} {
		var mirror domain.Booking
		if err := s.store.Get(ctx, collection, expected.ID, &mirror); err != nil {
			log.Printf("WARN: booking %s: read-back of %s failed: %v", expected.ID, collection, err)
			continue
		}
		if mirror.Status != expected.Status || !mirror.Start.Equal(expected.Start) || !mirror.End.Equal(expected.End) {
			log.Printf("WARN: booking %s: %s copy diverges from canonical", expected.ID, collection)
		}
	}
}

func fallbackName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
