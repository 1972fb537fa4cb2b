package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zihernwong/AthleteBridge-sub000/internal/domain"
	"github.com/zihernwong/AthleteBridge-sub000/internal/store"

	"github.com/google/uuid"
)

// --- Error Definitions ---
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message text is required")
	ErrSelfConversation     = errors.New("cannot open a conversation with yourself")
	ErrChatClosed           = errors.New("chat service is closed")
)

// Subscription keys. At most one live subscription exists per key.
const keyConversations = "conversations"

func keyMessages(conversationID string) string { return "messages/" + conversationID }
func keyPreview(conversationID string) string  { return "preview/" + conversationID }

// ChatSnapshot is the read-only state published to the presentation
// layer. Every field is a fresh copy; consumers must never mutate it.
type ChatSnapshot struct {
	Conversations []domain.Conversation
	Messages      map[string][]domain.Message
	Previews      map[string]domain.Message
	Unread        map[string]bool
}

// UnreadIDs returns the ids of every unread conversation.
func (s *ChatSnapshot) UnreadIDs() []string {
	var out []string
	for id, unread := range s.Unread {
		if unread {
			out = append(out, id)
		}
	}
	return out
}

// chatState is the coordinator-owned mutable state behind the
// published snapshots.
type chatState struct {
	conversations []domain.Conversation
	messages      map[string][]domain.Message
	previews      map[string]domain.Message
	unread        map[string]bool
}

// ChatService owns the live conversation state for one authenticated
// user: the conversation-list subscription, per-conversation message
// and preview subscriptions, unread derivation and the send path.
//
// A single coordinator goroutine is the only writer of the in-memory
// state; watch consumers hand it closures over a channel, which
// serializes every mutation without a lock around the state itself.
// After each applied closure the coordinator publishes an immutable
// snapshot.
type ChatService struct {
	store    store.Store
	resolver *Resolver
	notifier *Notifier
	userID   string
	userRole domain.Role

	baseCtx context.Context
	stop    context.CancelFunc

	mu   sync.Mutex // guards subs
	subs map[string]*store.Subscription

	apply    chan func(*chatState)
	snapshot atomic.Pointer[ChatSnapshot]

	closed atomic.Bool
}

// NewChatService constructs the per-user chat engine and starts its
// coordinator. Callers must Close it when the user goes away.
func NewChatService(st store.Store, resolver *Resolver, notifier *Notifier, userID string, userRole domain.Role) *ChatService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ChatService{
		store:    st,
		resolver: resolver,
		notifier: notifier,
		userID:   userID,
		userRole: userRole,
		baseCtx:  ctx,
		stop:     cancel,
		subs:     make(map[string]*store.Subscription),
		apply:    make(chan func(*chatState), 64),
	}
	s.snapshot.Store(&ChatSnapshot{
		Messages: map[string][]domain.Message{},
		Previews: map[string]domain.Message{},
		Unread:   map[string]bool{},
	})
	go s.run()
	return s
}

// run is the coordinator loop: apply one mutation, publish a snapshot.
func (s *ChatService) run() {
	state := &chatState{
		messages: make(map[string][]domain.Message),
		previews: make(map[string]domain.Message),
		unread:   make(map[string]bool),
	}
	for {
		select {
		case f := <-s.apply:
			f(state)
			s.publish(state)
		case <-s.baseCtx.Done():
			return
		}
	}
}

func (s *ChatService) post(f func(*chatState)) {
	select {
	case s.apply <- f:
	case <-s.baseCtx.Done():
	}
}

func (s *ChatService) publish(state *chatState) {
	snap := &ChatSnapshot{
		Conversations: append([]domain.Conversation(nil), state.conversations...),
		Messages:      make(map[string][]domain.Message, len(state.messages)),
		Previews:      make(map[string]domain.Message, len(state.previews)),
		Unread:        make(map[string]bool, len(state.unread)),
	}
	for id, msgs := range state.messages {
		snap.Messages[id] = append([]domain.Message(nil), msgs...)
	}
	for id, msg := range state.previews {
		snap.Previews[id] = msg
	}
	for id, unread := range state.unread {
		snap.Unread[id] = unread
	}
	s.snapshot.Store(snap)
}

// Snapshot returns the latest published state.
func (s *ChatService) Snapshot() *ChatSnapshot {
	return s.snapshot.Load()
}

// ParticipantNames exposes the resolver cache alongside the snapshot.
func (s *ChatService) ParticipantNames() map[string]domain.Participant {
	return s.resolver.Names()
}

// SubscribeConversations starts the conversation-list subscription for
// this user. Idempotent: a second call while one is live is a no-op.
func (s *ChatService) SubscribeConversations() error {
	if s.closed.Load() {
		return ErrChatClosed
	}
	s.mu.Lock()
	if _, ok := s.subs[keyConversations]; ok {
		s.mu.Unlock()
		return nil
	}
	q := store.NewQuery().
		Where("participantIds", store.OpArrayContains, s.userID).
		OrderBy("lastMessageAt", true)
	sub, err := s.store.Watch(s.baseCtx, store.Conversations, q)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.subs[keyConversations] = sub
	s.mu.Unlock()

	go s.consumeConversations(sub)
	return nil
}

func (s *ChatService) consumeConversations(sub *store.Subscription) {
	for batch := range sub.Updates {
		convs, err := store.DecodeAll[domain.Conversation](batch)
		if err != nil {
			log.Printf("ERROR: decode conversation batch: %v", err)
			continue
		}
		s.post(func(state *chatState) { s.applyConversations(state, convs) })
	}
}

// applyConversations runs on the coordinator: replaces the list,
// dispatches unresolved participant ids to the resolver and reconciles
// the per-conversation preview subscriptions against the new list.
func (s *ChatService) applyConversations(state *chatState, convs []domain.Conversation) {
	state.conversations = convs

	var unresolved []string
	live := make(map[string]bool, len(convs))
	for _, c := range convs {
		live[c.ID] = true
		for _, id := range c.ParticipantIDs {
			if _, ok := s.resolver.Lookup(id); !ok {
				unresolved = append(unresolved, id)
			}
		}
	}
	if len(unresolved) > 0 {
		// The resolver filters duplicates and in-flight ids itself.
		go s.resolver.EnsureNames(s.baseCtx, unresolved)
	}

	for id := range live {
		s.subscribePreview(id)
	}
	s.mu.Lock()
	var gone []string
	for key, sub := range s.subs {
		convID, isPreview := strings.CutPrefix(key, "preview/")
		if !isPreview || live[convID] {
			continue
		}
		sub.Cancel()
		delete(s.subs, key)
		gone = append(gone, convID)
	}
	s.mu.Unlock()
	for _, convID := range gone {
		delete(state.previews, convID)
		delete(state.unread, convID)
	}
}

// subscribePreview opens the latest-message query for one
// conversation. Same idempotence contract as every other key.
func (s *ChatService) subscribePreview(conversationID string) {
	s.mu.Lock()
	if _, ok := s.subs[keyPreview(conversationID)]; ok {
		s.mu.Unlock()
		return
	}
	q := store.NewQuery().
		Where("conversationId", store.OpEq, conversationID).
		OrderBy("createdAt", true).
		Limit(1)
	sub, err := s.store.Watch(s.baseCtx, store.Messages, q)
	if err != nil {
		s.mu.Unlock()
		log.Printf("ERROR: subscribe preview %s: %v", conversationID, err)
		return
	}
	s.subs[keyPreview(conversationID)] = sub
	s.mu.Unlock()

	go s.consumePreview(conversationID, sub)
}

func (s *ChatService) consumePreview(conversationID string, sub *store.Subscription) {
	for batch := range sub.Updates {
		msgs, err := store.DecodeAll[domain.Message](batch)
		if err != nil {
			log.Printf("ERROR: decode preview batch for %s: %v", conversationID, err)
			continue
		}
		s.post(func(state *chatState) {
			if len(msgs) == 0 {
				delete(state.previews, conversationID)
				state.unread[conversationID] = false
				return
			}
			latest := msgs[0]
			state.previews[conversationID] = latest
			state.unread[conversationID] = UnreadConversation(&latest, s.userID)
		})
	}
}

// SubscribeMessages streams the full message list of an open
// conversation, ascending by creation time; each batch replaces the
// materialized list wholesale. Idempotent per conversation.
func (s *ChatService) SubscribeMessages(conversationID string) error {
	if s.closed.Load() {
		return ErrChatClosed
	}
	s.mu.Lock()
	if _, ok := s.subs[keyMessages(conversationID)]; ok {
		s.mu.Unlock()
		return nil
	}
	q := store.NewQuery().
		Where("conversationId", store.OpEq, conversationID).
		OrderBy("createdAt", false)
	sub, err := s.store.Watch(s.baseCtx, store.Messages, q)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.subs[keyMessages(conversationID)] = sub
	s.mu.Unlock()

	go func() {
		for batch := range sub.Updates {
			msgs, err := store.DecodeAll[domain.Message](batch)
			if err != nil {
				log.Printf("ERROR: decode message batch for %s: %v", conversationID, err)
				continue
			}
			s.post(func(state *chatState) { state.messages[conversationID] = msgs })
		}
	}()
	return nil
}

// UnsubscribeMessages tears down the message stream for one
// conversation and drops its materialized list.
func (s *ChatService) UnsubscribeMessages(conversationID string) {
	s.cancelKey(keyMessages(conversationID))
	s.post(func(state *chatState) { delete(state.messages, conversationID) })
}

// UnsubscribeAll tears down every live subscription (conversation
// list, message streams, previews) and resets the published state.
func (s *ChatService) UnsubscribeAll() {
	s.mu.Lock()
	for key, sub := range s.subs {
		sub.Cancel()
		delete(s.subs, key)
	}
	s.mu.Unlock()

	s.post(func(state *chatState) {
		state.conversations = nil
		state.messages = make(map[string][]domain.Message)
		state.previews = make(map[string]domain.Message)
		state.unread = make(map[string]bool)
	})
}

func (s *ChatService) cancelKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[key]; ok {
		sub.Cancel()
		delete(s.subs, key)
	}
}

// CreateOrGetConversation returns the conversation between this user
// and the other party, creating it lazily on first contact. The id is
// deterministic, so both parties converge on the same document.
func (s *ChatService) CreateOrGetConversation(ctx context.Context, otherID string, otherRole domain.Role) (*domain.Conversation, error) {
	if otherID == "" || otherID == s.userID {
		return nil, ErrSelfConversation
	}

	id := domain.ConversationIDFor(s.userID, otherID)
	var existing domain.Conversation
	err := s.store.Get(ctx, store.Conversations, id, &existing)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	conv := domain.Conversation{
		ID:             id,
		Participants:   orderedRefs(s.userID, s.userRole, otherID, otherRole),
		ParticipantIDs: []string{s.userID, otherID},
	}
	batch := store.NewBatch().Set(store.Conversations, id, conv)
	if err := s.store.Commit(ctx, batch); err != nil {
		return nil, err
	}
	return &conv, nil
}

// orderedRefs builds the participant list coach-first by convention.
func orderedRefs(aID string, aRole domain.Role, bID string, bRole domain.Role) []domain.ParticipantRef {
	a := domain.ParticipantRef{ID: aID, Role: aRole}
	b := domain.ParticipantRef{ID: bID, Role: bRole}
	if bRole == domain.RoleCoach && aRole != domain.RoleCoach {
		return []domain.ParticipantRef{b, a}
	}
	return []domain.ParticipantRef{a, b}
}

// SendMessage inserts the message and bumps the conversation's
// last-message preview fields in one atomic batch, then queues
// notifications for the other participants. The sender is never put in
// its own read set.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, text string) (string, error) {
	if text == "" {
		return "", ErrEmptyMessage
	}
	var conv domain.Conversation
	if err := s.store.Get(ctx, store.Conversations, conversationID, &conv); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrConversationNotFound
		}
		return "", err
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       s.userID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	batch := store.NewBatch().
		Set(store.Messages, msg.ID, msg).
		Update(store.Conversations, conversationID, map[string]any{
			"lastMessageText": text,
			"lastMessageAt":   msg.CreatedAt,
		})
	if err := s.store.Commit(ctx, batch); err != nil {
		return "", err
	}

	sender := s.resolver.DisplayName(s.userID)
	for _, recipient := range conv.OtherParticipantIDs(s.userID) {
		s.notifier.Queue(recipient, sender, previewText(text), map[string]string{
			"conversationId": conversationID,
			"messageId":      msg.ID,
		})
	}
	return msg.ID, nil
}

// MarkConversationRead adds this user to the read set of the
// conversation's latest foreign message. No-op when the latest message
// is the user's own or already read.
func (s *ChatService) MarkConversationRead(ctx context.Context, conversationID string) error {
	var latest []domain.Message
	q := store.NewQuery().
		Where("conversationId", store.OpEq, conversationID).
		OrderBy("createdAt", true).
		Limit(1)
	if err := s.store.Find(ctx, store.Messages, q, &latest); err != nil {
		return err
	}
	if len(latest) == 0 {
		return nil
	}
	msg := latest[0]
	if msg.SenderID == s.userID || msg.ReadByUser(s.userID) {
		return nil
	}

	batch := store.NewBatch().Update(store.Messages, msg.ID, map[string]any{
		"readBy." + s.userID: time.Now().UTC(),
	})
	return s.store.Commit(ctx, batch)
}

// Close tears down subscriptions and stops the coordinator.
func (s *ChatService) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.UnsubscribeAll()
	s.stop()
}

func previewText(text string) string {
	const max = 80
	if len(text) <= max {
		return text
	}
	return text[:max-1] + "…"
}
