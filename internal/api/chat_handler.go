package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves the conversation/message surface on top of the
// per-user chat engines.
type ChatHandler struct {
	hub *ChatHub
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(hub *ChatHub) *ChatHandler {
	return &ChatHandler{hub: hub}
}

func (h *ChatHandler) engine(c *gin.Context) (*service.ChatService, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return nil, false
	}
	role, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user role from token")
		return nil, false
	}
	return h.hub.For(userID, role), true
}

// --- Request Structs ---

type CreateConversationRequest struct {
	OtherID   string      `json:"otherId" binding:"required"`
	OtherRole domain.Role `json:"otherRole" binding:"required,oneof=coach client"`
}

type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// --- Handler Methods ---

// Subscribe starts the caller's conversation-list subscription.
// Idempotent: repeated calls keep the single live subscription.
func (h *ChatHandler) Subscribe(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	if err := engine.SubscribeConversations(); err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to subscribe")
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": true})
}

// Unsubscribe tears down every live subscription for the caller.
func (h *ChatHandler) Unsubscribe(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	engine.UnsubscribeAll()
	c.JSON(http.StatusOK, gin.H{"subscribed": false})
}

// Conversations returns the caller's published conversation snapshot
// with the resolved participant names alongside.
func (h *ChatHandler) Conversations(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	snap := engine.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"conversations": snap.Conversations,
		"unread":        snap.UnreadIDs(),
		"participants":  engine.ParticipantNames(),
	})
}

// CreateConversation creates (or returns) the conversation with the
// other party.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	conv, err := engine.CreateOrGetConversation(c.Request.Context(), req.OtherID, req.OtherRole)
	if err != nil {
		if errors.Is(err, service.ErrSelfConversation) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	c.JSON(http.StatusOK, conv)
}

// OpenConversation subscribes to the message stream and marks the
// latest message read, mirroring what opening a thread does in the
// client.
func (h *ChatHandler) OpenConversation(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	conversationID := c.Param("id")

	if err := engine.SubscribeMessages(conversationID); err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to subscribe to messages")
		return
	}
	if err := engine.MarkConversationRead(c.Request.Context(), conversationID); err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to mark conversation read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": true})
}

// CloseConversation tears down the message stream.
func (h *ChatHandler) CloseConversation(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	engine.UnsubscribeMessages(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"open": false})
}

// Messages returns the materialized message list of an open
// conversation from the published snapshot.
func (h *ChatHandler) Messages(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}
	snap := engine.Snapshot()
	msgs, ok := snap.Messages[c.Param("id")]
	if !ok {
		msgs = []domain.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// SendMessage appends a message to the conversation.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	engine, ok := h.engine(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	id, err := engine.SendMessage(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		if errors.Is(err, service.ErrEmptyMessage) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}
