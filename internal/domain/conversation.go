package domain

import (
	"sort"
	"strings"
	"time"
)

// ParticipantRef is the normalized participant entry on a
// conversation: the bare user id plus which collection it lives in.
type ParticipantRef struct {
	ID   string `bson:"id" json:"id"`
	Role Role   `bson:"role" json:"role"`
}

// Conversation is a two-party message thread. It is created lazily on
// first contact and never deleted.
//
// ParticipantIDs is the legacy raw-id list; it is kept alongside the
// normalized Participants field (the migrator writes the latter
// without removing the former) and remains the field conversation
// queries are scoped by.
type Conversation struct {
	ID              string           `bson:"_id" json:"id"`
	Participants    []ParticipantRef `bson:"participants,omitempty" json:"participants,omitempty"`
	ParticipantIDs  []string         `bson:"participantIds" json:"participantIds"`
	LastMessageText string           `bson:"lastMessageText,omitempty" json:"lastMessageText,omitempty"`
	LastMessageAt   time.Time        `bson:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
}

// ConversationPointer is the migrator's per-participant mirror: a
// small document under the participant's own namespace pointing back
// at the conversation.
type ConversationPointer struct {
	UserID         string `bson:"userId" json:"userId"`
	ConversationID string `bson:"conversationId" json:"conversationId"`
}

// ConversationIDFor builds the deterministic id of a two-party
// conversation: the two participant ids sorted lexicographically and
// joined. Both parties derive the same id independently, which is what
// makes lazy creation race-free at the document level.
func ConversationIDFor(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// OtherParticipantIDs returns every participant id except the given
// one, drawing from the normalized refs when present and falling back
// to the legacy list.
func (c *Conversation) OtherParticipantIDs(selfID string) []string {
	var out []string
	if len(c.Participants) > 0 {
		for _, p := range c.Participants {
			if p.ID != selfID {
				out = append(out, p.ID)
			}
		}
		return out
	}
	for _, id := range c.ParticipantIDs {
		if id != selfID {
			out = append(out, id)
		}
	}
	return out
}

// Migrated reports whether the normalized participant refs are present.
func (c *Conversation) Migrated() bool {
	return len(c.Participants) > 0
}
