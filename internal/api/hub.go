package api

import (
	"sync"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/service"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"
)

// ChatHub hands out the per-user chat engine. Each authenticated user
// gets exactly one ChatService instance for the process lifetime;
// construction is lazy on first use.
type ChatHub struct {
	store    store.Store
	resolver *service.Resolver
	notifier *service.Notifier

	mu       sync.Mutex
	services map[string]*service.ChatService
}

func NewChatHub(st store.Store, resolver *service.Resolver, notifier *service.Notifier) *ChatHub {
	return &ChatHub{
		store:    st,
		resolver: resolver,
		notifier: notifier,
		services: make(map[string]*service.ChatService),
	}
}

// For returns the chat engine for the given user, creating it on
// first call.
func (h *ChatHub) For(userID string, role domain.Role) *service.ChatService {
	h.mu.Lock()
	defer h.mu.Unlock()
	if svc, ok := h.services[userID]; ok {
		return svc
	}
	svc := service.NewChatService(h.store, h.resolver, h.notifier, userID, role)
	h.services[userID] = svc
	return svc
}

// Close tears down every live engine.
func (h *ChatHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, svc := range h.services {
		svc.Close()
		delete(h.services, id)
	}
}
