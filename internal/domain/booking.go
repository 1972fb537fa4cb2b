package domain

import (
	"fmt"
	"strings"
	"time"
)

// BookingStatus is the closed set of states a booking can be in.
// The store holds plain strings; ParseBookingStatus is the single
// place those strings are admitted into the type.
type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusAccepted  BookingStatus = "accepted"
	StatusConfirmed BookingStatus = "confirmed"
	StatusDeclined  BookingStatus = "declined"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// ParseBookingStatus maps a stored string onto the variant set.
// Unrecognized values are rejected rather than propagated.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch st := BookingStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusRequested, StatusAccepted, StatusConfirmed, StatusDeclined, StatusCancelled, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unrecognized booking status %q", s)
	}
}

// PaymentStatus gets the same closed-variant treatment as BookingStatus.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentInvoiced PaymentStatus = "invoiced"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch ps := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); ps {
	case PaymentUnpaid, PaymentInvoiced, PaymentPaid, PaymentRefunded:
		return ps, nil
	default:
		return "", fmt.Errorf("unrecognized payment status %q", s)
	}
}

// Booking is the canonical booking document. The same document is
// mirrored under the coach's and the client's booking collections;
// every successful write keeps all three copies identical.
type Booking struct {
	ID              string        `bson:"_id" json:"id"`
	CoachID         string        `bson:"coachId" json:"coachId"`
	ClientID        string        `bson:"clientId" json:"clientId"`
	CoachName       string        `bson:"coachName,omitempty" json:"coachName,omitempty"`
	Start           time.Time     `bson:"start" json:"start"`
	End             time.Time     `bson:"end" json:"end"`
	Location        string        `bson:"location,omitempty" json:"location,omitempty"`
	Notes           string        `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          BookingStatus `bson:"status" json:"status"`
	PaymentStatus   PaymentStatus `bson:"paymentStatus" json:"paymentStatus"`
	Rate            float64       `bson:"rate,omitempty" json:"rate,omitempty"`
	CalendarEventID string        `bson:"calendarEventId,omitempty" json:"calendarEventId,omitempty"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// BookingSummary is the compact row appended onto the coach document
// for fast calendar rendering. It is a cache, deduplicated by value:
// it may drift from the canonical copies after later status changes
// and must never be read as a source of truth.
type BookingSummary struct {
	BookingID  string        `bson:"bookingId" json:"bookingId"`
	ClientName string        `bson:"clientName,omitempty" json:"clientName,omitempty"`
	Start      time.Time     `bson:"start" json:"start"`
	End        time.Time     `bson:"end" json:"end"`
	Status     BookingStatus `bson:"status" json:"status"`
}

// NormalizeOwnerRef reduces an owner reference to a bare id. Older
// documents stored coach/client ids as "coaches/abc" style paths (or
// with a leading slash); newer ones store the bare id. Returns "" when
// nothing usable remains.
func NormalizeOwnerRef(ref string) string {
	ref = strings.TrimSpace(strings.Trim(ref, "/"))
	if ref == "" {
		return ""
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}
