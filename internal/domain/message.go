package domain

import "time"

// Message is a single chat message. CreatedAt is stamped by the
// sending service with the same value written into the conversation's
// lastMessageAt, so previews and message ordering share one clock.
//
// ReadBy maps reader id to the moment they read the message. The
// sender is never inserted into its own message's read set; unread
// derivation relies on that.
type Message struct {
	ID             string               `bson:"_id" json:"id"`
	ConversationID string               `bson:"conversationId" json:"conversationId"`
	SenderID       string               `bson:"senderId" json:"senderId"`
	Text           string               `bson:"text" json:"text"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	ReadBy         map[string]time.Time `bson:"readBy,omitempty" json:"readBy,omitempty"`
}

// ReadByUser reports whether the given user appears in the read set.
func (m *Message) ReadByUser(userID string) bool {
	if m.ReadBy == nil {
		return false
	}
	_, ok := m.ReadBy[userID]
	return ok
}
