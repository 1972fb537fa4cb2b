package service

import (
	"context"
	"log"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"github.com/google/uuid"
)

// Notifier writes PendingNotification documents for the external
// delivery pipeline. Every queue is fire-and-forget: it never blocks
// the triggering operation, and a failed write is logged, not retried.
type Notifier struct {
	store store.Store
}

func NewNotifier(st store.Store) *Notifier {
	return &Notifier{store: st}
}

// Queue enqueues a notification for the recipient. Returns
// immediately; the write happens in the background with Delivered
// always false (the delivery worker flips it, never this engine).
func (n *Notifier) Queue(recipientID, title, body string, payload map[string]string) {
	notif := domain.PendingNotification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
		Payload:     payload,
		Delivered:   false,
		CreatedAt:   time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		batch := store.NewBatch().Set(store.Notifications, notif.ID, notif)
		if err := n.store.Commit(ctx, batch); err != nil {
			log.Printf("ERROR: queue notification for %s: %v", recipientID, err)
		}
	}()
}
