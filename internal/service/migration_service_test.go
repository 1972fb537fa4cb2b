package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"
	"github.com/zihernwong/AthleteBridge-sub000/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLegacyConversation(ms *testutil.MemStore, id string, rawIDs ...string) {
	ms.Put(store.Conversations, id, domain.Conversation{
		ID:             id,
		ParticipantIDs: rawIDs,
	})
}

func TestMigratorNormalizesLegacyConversations(t *testing.T) {
	ms := testutil.NewMemStore()
	ms.Put(store.Coaches, "c1", domain.Coach{ID: "c1", DisplayName: "Coach One"})
	ms.Put(store.Clients, "u1", domain.Client{ID: "u1", DisplayName: "Client One"})
	// Legacy document: client listed first, path-style refs.
	seedLegacyConversation(ms, "conv-1", "/clients/u1", "coaches/c1")

	report, err := NewMigrator(ms, 10, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Migrated)
	assert.Zero(t, report.Skipped)
	require.NoError(t, report.FirstErr)

	var conv domain.Conversation
	require.NoError(t, ms.Get(context.Background(), store.Conversations, "conv-1", &conv))
	require.Len(t, conv.Participants, 2)
	// Normalized to bare ids, coach first.
	assert.Equal(t, domain.ParticipantRef{ID: "c1", Role: domain.RoleCoach}, conv.Participants[0])
	assert.Equal(t, domain.ParticipantRef{ID: "u1", Role: domain.RoleClient}, conv.Participants[1])
	// The legacy field stays for old readers.
	assert.Equal(t, []string{"/clients/u1", "coaches/c1"}, conv.ParticipantIDs)

	// One pointer document per participant.
	var ptr domain.ConversationPointer
	require.NoError(t, ms.Get(context.Background(), store.ParticipantConversations, store.MirrorID("c1", "conv-1"), &ptr))
	assert.Equal(t, "conv-1", ptr.ConversationID)
	require.NoError(t, ms.Get(context.Background(), store.ParticipantConversations, store.MirrorID("u1", "conv-1"), &ptr))
	assert.Equal(t, "u1", ptr.UserID)
}

func TestMigratorSecondRunWritesNothing(t *testing.T) {
	ms := testutil.NewMemStore()
	ms.Put(store.Clients, "u1", domain.Client{ID: "u1"})
	ms.Put(store.Clients, "u2", domain.Client{ID: "u2"})
	seedLegacyConversation(ms, "conv-1", "u1", "u2")

	m := NewMigrator(ms, 10, 0)
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	before := ms.CommitCount()
	report, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, ms.CommitCount())
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Migrated)
}

func TestMigratorSkipsEmptyParticipantList(t *testing.T) {
	ms := testutil.NewMemStore()
	seedLegacyConversation(ms, "conv-1")

	report, err := NewMigrator(ms, 10, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Migrated)
	assert.Zero(t, ms.Count(store.ParticipantConversations))
}

func TestMigratorPagesInIDOrder(t *testing.T) {
	ms := testutil.NewMemStore()
	ms.Put(store.Clients, "u1", domain.Client{ID: "u1"})
	ms.Put(store.Clients, "u2", domain.Client{ID: "u2"})
	for i := 0; i < 7; i++ {
		seedLegacyConversation(ms, fmt.Sprintf("conv-%d", i), "u1", "u2")
	}

	report, err := NewMigrator(ms, 3, time.Millisecond).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, report.Scanned)
	assert.Equal(t, 7, report.Migrated)
	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, 14, ms.Count(store.ParticipantConversations))
}

func TestMigratorRecordsFirstErrorAndContinues(t *testing.T) {
	ms := testutil.NewMemStore()
	ms.Put(store.Clients, "u1", domain.Client{ID: "u1"})
	ms.Put(store.Clients, "u2", domain.Client{ID: "u2"})
	seedLegacyConversation(ms, "conv-a", "u1", "u2")
	seedLegacyConversation(ms, "conv-b", "u1", "u2")

	ms.FailNextCommit(assert.AnError)
	report, err := NewMigrator(ms, 10, 0).Run(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, report.FirstErr, assert.AnError)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 2, report.Scanned)

	// The failed conversation kept its legacy shape and can be retried.
	var failed domain.Conversation
	require.NoError(t, ms.Get(context.Background(), store.Conversations, "conv-a", &failed))
	assert.False(t, failed.Migrated())

	retry, err := NewMigrator(ms, 10, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Migrated)
	assert.Equal(t, 1, retry.Skipped)
}

func TestMigratorStopsBetweenPagesOnCancel(t *testing.T) {
	ms := testutil.NewMemStore()
	ms.Put(store.Clients, "u1", domain.Client{ID: "u1"})
	ms.Put(store.Clients, "u2", domain.Client{ID: "u2"})
	for i := 0; i < 6; i++ {
		seedLegacyConversation(ms, fmt.Sprintf("conv-%d", i), "u1", "u2")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := NewMigrator(ms, 3, time.Hour).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	// The first page completed before the cancellation was observed.
	assert.Equal(t, 3, report.Migrated)
	assert.Equal(t, 1, report.Pages)
}

func TestMigratorUnknownIDDefaultsToClientRole(t *testing.T) {
	ms := testutil.NewMemStore()
	seedLegacyConversation(ms, "conv-1", "mystery", "/")

	report, err := NewMigrator(ms, 10, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)

	var conv domain.Conversation
	require.NoError(t, ms.Get(context.Background(), store.Conversations, "conv-1", &conv))
	// The unusable "/" ref is dropped, the unknown id keeps client role.
	require.Len(t, conv.Participants, 1)
	assert.Equal(t, domain.ParticipantRef{ID: "mystery", Role: domain.RoleClient}, conv.Participants[0])
}
