package service

import (
	"testing"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestUnreadConversation(t *testing.T) {
	now := time.Now().UTC()

	t.Run("no messages means nothing unread", func(t *testing.T) {
		assert.False(t, UnreadConversation(nil, "me"))
	})

	t.Run("own message is read", func(t *testing.T) {
		msg := &domain.Message{SenderID: "me"}
		assert.False(t, UnreadConversation(msg, "me"))
	})

	t.Run("foreign message with no read map is unread", func(t *testing.T) {
		msg := &domain.Message{SenderID: "them"}
		assert.True(t, UnreadConversation(msg, "me"))
	})

	t.Run("foreign message missing my key is unread", func(t *testing.T) {
		msg := &domain.Message{SenderID: "them", ReadBy: map[string]time.Time{"other": now}}
		assert.True(t, UnreadConversation(msg, "me"))
	})

	t.Run("foreign message with my key is read", func(t *testing.T) {
		msg := &domain.Message{SenderID: "them", ReadBy: map[string]time.Time{"me": now}}
		assert.False(t, UnreadConversation(msg, "me"))
	})

	t.Run("unknown identity defaults to unread", func(t *testing.T) {
		msg := &domain.Message{SenderID: "them", ReadBy: map[string]time.Time{"me": now}}
		assert.True(t, UnreadConversation(msg, ""))
	})
}

func TestUnreadTransitionIsMonotonic(t *testing.T) {
	// Once read via the receipt map, later recomputations stay read.
	msg := &domain.Message{SenderID: "them"}
	assert.True(t, UnreadConversation(msg, "me"))

	msg.ReadBy = map[string]time.Time{"me": time.Now().UTC()}
	for i := 0; i < 3; i++ {
		assert.False(t, UnreadConversation(msg, "me"))
	}
}
