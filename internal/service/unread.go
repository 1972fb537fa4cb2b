package service

import "github.com/zihernwong/AthleteBridge-sub000/internal/domain"

// UnreadConversation derives a conversation's unread state from its
// latest message. Recomputed on every preview update, never stored.
//
// Rules: a message you sent is read; a message whose read-receipt map
// contains you is read; a nil map, a map missing your key, or an
// undetermined user identity all mean unread (conservative default).
// A conversation with no messages has nothing to be unread about.
func UnreadConversation(latest *domain.Message, userID string) bool {
	if latest == nil {
		return false
	}
	if userID == "" {
		return true
	}
	if latest.SenderID == userID {
		return false
	}
	return !latest.ReadByUser(userID)
}
