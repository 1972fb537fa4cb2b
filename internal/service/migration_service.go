package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"
)

// MigrationReport summarizes one migrator run. FirstErr holds the
// first per-conversation failure; later pages still run.
type MigrationReport struct {
	Scanned  int
	Migrated int
	Skipped  int
	Pages    int
	FirstErr error
}

// Migrator converts conversations still on the legacy raw-id
// participant list to the normalized reference schema. Idempotent and
// non-destructive: already-migrated documents are skipped, the legacy
// field is preserved, and each participant additionally gets a pointer
// document under its own namespace.
type Migrator struct {
	store     store.Store
	pageSize  int
	pageDelay time.Duration
}

func NewMigrator(st store.Store, pageSize int, pageDelay time.Duration) *Migrator {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Migrator{store: st, pageSize: pageSize, pageDelay: pageDelay}
}

// Run pages over every conversation in id order. The inter-page delay
// bounds backend load; cancelling the context stops between pages.
func (m *Migrator) Run(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport
	cursor := ""

	for {
		q := store.NewQuery().
			Where("_id", store.OpGt, cursor).
			OrderBy("_id", false).
			Limit(int64(m.pageSize))
		var page []domain.Conversation
		if err := m.store.Find(ctx, store.Conversations, q, &page); err != nil {
			return report, err
		}
		if len(page) == 0 {
			return report, nil
		}
		report.Pages++

		for i := range page {
			conv := &page[i]
			report.Scanned++
			if conv.Migrated() || len(conv.ParticipantIDs) == 0 {
				report.Skipped++
				continue
			}
			if err := m.migrateOne(ctx, conv); err != nil {
				log.Printf("ERROR: migrate conversation %s: %v", conv.ID, err)
				if report.FirstErr == nil {
					report.FirstErr = err
				}
				continue
			}
			report.Migrated++
		}

		cursor = page[len(page)-1].ID
		if len(page) < m.pageSize {
			return report, nil
		}
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-time.After(m.pageDelay):
		}
	}
}

// migrateOne writes the normalized refs and the per-participant
// pointer documents in one batch, leaving the legacy list in place.
func (m *Migrator) migrateOne(ctx context.Context, conv *domain.Conversation) error {
	refs := make([]domain.ParticipantRef, 0, len(conv.ParticipantIDs))
	for _, raw := range conv.ParticipantIDs {
		id := domain.NormalizeOwnerRef(raw)
		if id == "" {
			continue
		}
		refs = append(refs, domain.ParticipantRef{ID: id, Role: m.resolveRole(ctx, id)})
	}

	// Coach-first ordering convention, stable within each role.
	ordered := make([]domain.ParticipantRef, 0, len(refs))
	for _, r := range refs {
		if r.Role == domain.RoleCoach {
			ordered = append(ordered, r)
		}
	}
	for _, r := range refs {
		if r.Role != domain.RoleCoach {
			ordered = append(ordered, r)
		}
	}

	batch := store.NewBatch().Update(store.Conversations, conv.ID, map[string]any{
		"participants": ordered,
	})
	for _, r := range ordered {
		batch.Set(store.ParticipantConversations, store.MirrorID(r.ID, conv.ID), domain.ConversationPointer{
			UserID:         r.ID,
			ConversationID: conv.ID,
		})
	}
	return m.store.Commit(ctx, batch)
}

// resolveRole looks the id up as a coach first, with an existence
// check against clients as the fallback. An id found in neither keeps
// the client role: the pointer document must still be written, and
// clients are the open-ended population.
func (m *Migrator) resolveRole(ctx context.Context, id string) domain.Role {
	var coach domain.Coach
	err := m.store.Get(ctx, store.Coaches, id, &coach)
	if err == nil {
		return domain.RoleCoach
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("WARN: resolve role for %s: coach lookup: %v", id, err)
	}

	var client domain.Client
	if err := m.store.Get(ctx, store.Clients, id, &client); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("WARN: resolve role for %s: client lookup: %v", id, err)
	}
	return domain.RoleClient
}
