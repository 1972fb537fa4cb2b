package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationIDForIsDeterministic(t *testing.T) {
	assert.Equal(t, "alice_bob", ConversationIDFor("bob", "alice"))
	assert.Equal(t, "alice_bob", ConversationIDFor("alice", "bob"))
	// Both parties derive the same id regardless of who writes first.
	assert.Equal(t, ConversationIDFor("c1", "u1"), ConversationIDFor("u1", "c1"))
}

func TestOtherParticipantIDs(t *testing.T) {
	conv := Conversation{
		ID:             "a_b",
		ParticipantIDs: []string{"a", "b"},
	}
	assert.Equal(t, []string{"b"}, conv.OtherParticipantIDs("a"))

	// Normalized refs take precedence over the legacy list.
	conv.Participants = []ParticipantRef{
		{ID: "coach1", Role: RoleCoach},
		{ID: "a", Role: RoleClient},
	}
	assert.Equal(t, []string{"coach1"}, conv.OtherParticipantIDs("a"))
}

func TestMigrated(t *testing.T) {
	conv := Conversation{ParticipantIDs: []string{"a", "b"}}
	assert.False(t, conv.Migrated())
	conv.Participants = []ParticipantRef{{ID: "a", Role: RoleClient}}
	assert.True(t, conv.Migrated())
}
