package calendar

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event is a device-calendar entry derived from a confirmed booking.
type Event struct {
	Title    string
	Start    time.Time
	End      time.Time
	Location string
	Notes    string
}

// Sync is the external device-calendar capability the status
// propagator calls after a booking lands in a confirmed state. AddEvent
// returns the external event identifier; callers persist it on the
// booking and check it before calling again, which is what keeps the
// side effect idempotent across retries.
type Sync interface {
	AddEvent(ctx context.Context, e Event) (string, error)
}

// logSync is the default implementation: it records the event in the
// log and fabricates an identifier. Real device integration plugs in
// behind the same interface.
type logSync struct{}

func NewLogSync() Sync { return logSync{} }

func (logSync) AddEvent(_ context.Context, e Event) (string, error) {
	eventID := uuid.NewString()
	log.Printf("INFO: calendar event %s: %q %s - %s", eventID, e.Title, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
	return eventID, nil
}
