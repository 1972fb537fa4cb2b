package domain

import "time"

// PendingNotification is the write-only side channel consumed by the
// external delivery pipeline. This engine always writes Delivered as
// false and never flips it; failures to write one are logged and
// swallowed, never surfaced to the triggering operation.
type PendingNotification struct {
	ID          string            `bson:"_id" json:"id"`
	RecipientID string            `bson:"recipientId" json:"recipientId"`
	Title       string            `bson:"title" json:"title"`
	Body        string            `bson:"body" json:"body"`
	Payload     map[string]string `bson:"payload,omitempty" json:"payload,omitempty"`
	Delivered   bool              `bson:"delivered" json:"delivered"`
	CreatedAt   time.Time         `bson:"createdAt" json:"createdAt"`
}
