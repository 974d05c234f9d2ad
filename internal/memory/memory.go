// Package memory keeps bounded per-conversation message history.
//
// Conversations are created lazily on first append, capped per
// conversation (FIFO drop) and globally (LRU eviction by last activity).
// All reads return snapshots so callers never observe torn histories.
package memory

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"convoke/internal/logging"
)

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a conversation.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	PersonaID string            `json:"personaId,omitempty"`
	ChannelID string            `json:"channelId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type conversation struct {
	mu             sync.Mutex
	id             string
	createdAt      time.Time
	lastActivityAt time.Time
	messages       []Message
}

// Summary holds counts and timestamps for telemetry.
type Summary struct {
	Conversations  int       `json:"conversations"`
	TotalMessages  int       `json:"totalMessages"`
	OldestActivity time.Time `json:"oldestActivity,omitempty"`
	NewestActivity time.Time `json:"newestActivity,omitempty"`
}

// ConversationSummary describes one conversation without its messages.
type ConversationSummary struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	MessageCount   int       `json:"messageCount"`
}

// Store is the conversation memory.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*conversation

	maxConversations int
	maxMessages      int

	log *zap.Logger
	now func() time.Time
}

// NewStore builds a store with the given caps. Caps below 1 get sane
// minimums.
func NewStore(maxConversations, maxMessagesPerConversation int) *Store {
	if maxConversations < 1 {
		maxConversations = 100
	}
	if maxMessagesPerConversation < 1 {
		maxMessagesPerConversation = 50
	}
	return &Store{
		conversations:    make(map[string]*conversation),
		maxConversations: maxConversations,
		maxMessages:      maxMessagesPerConversation,
		log:              logging.Named("memory"),
		now:              time.Now,
	}
}

// Append adds a message, creating the conversation when needed. The
// oldest message is dropped when the per-conversation cap is exceeded;
// the least-recently-active conversation is evicted when the global cap
// is exceeded.
func (s *Store) Append(conversationID string, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = &conversation{
			id:        conversationID,
			createdAt: s.now(),
		}
		s.conversations[conversationID] = conv
		s.evictLocked()
	}
	s.mu.Unlock()

	conv.mu.Lock()
	conv.messages = append(conv.messages, msg)
	if len(conv.messages) > s.maxMessages {
		conv.messages = conv.messages[len(conv.messages)-s.maxMessages:]
	}
	conv.lastActivityAt = msg.Timestamp
	conv.mu.Unlock()
}

// evictLocked removes least-recently-active conversations until the
// global cap holds. Caller holds s.mu.
func (s *Store) evictLocked() {
	for len(s.conversations) > s.maxConversations {
		var oldestID string
		var oldestAt time.Time
		first := true
		for id, c := range s.conversations {
			c.mu.Lock()
			at := c.lastActivityAt
			if at.IsZero() {
				at = c.createdAt
			}
			c.mu.Unlock()
			if first || at.Before(oldestAt) {
				oldestID, oldestAt, first = id, at, false
			}
		}
		delete(s.conversations, oldestID)
		s.log.Debug("evicted conversation", zap.String("id", oldestID))
	}
}

// Recent returns the last n messages of a conversation, in order.
func (s *Store) Recent(conversationID string, n int) []Message {
	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	s.mu.Unlock()
	if !ok || n <= 0 {
		return nil
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	start := len(conv.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(conv.messages)-start)
	copy(out, conv.messages[start:])
	return out
}

// ContextFor returns the trailing messages of a conversation trimmed
// from the front until both maxMessages and maxChars hold. Messages are
// never split.
func (s *Store) ContextFor(conversationID string, maxMessages, maxChars int) []Message {
	msgs := s.Recent(conversationID, maxMessages)
	if maxChars <= 0 {
		return msgs
	}
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	for len(msgs) > 0 && total > maxChars {
		total -= len(msgs[0].Content)
		msgs = msgs[1:]
	}
	return msgs
}

// Clear removes a conversation. Returns false when it did not exist.
func (s *Store) Clear(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return false
	}
	delete(s.conversations, conversationID)
	return true
}

// Summary returns global counters.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	convs := make([]*conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		convs = append(convs, c)
	}
	s.mu.Unlock()

	out := Summary{Conversations: len(convs)}
	for _, c := range convs {
		c.mu.Lock()
		out.TotalMessages += len(c.messages)
		at := c.lastActivityAt
		c.mu.Unlock()
		if out.OldestActivity.IsZero() || at.Before(out.OldestActivity) {
			out.OldestActivity = at
		}
		if at.After(out.NewestActivity) {
			out.NewestActivity = at
		}
	}
	return out
}

// Summaries lists per-conversation summaries, most recently active first.
func (s *Store) Summaries() []ConversationSummary {
	s.mu.Lock()
	convs := make([]*conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		convs = append(convs, c)
	}
	s.mu.Unlock()

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		c.mu.Lock()
		out = append(out, ConversationSummary{
			ID:             c.id,
			CreatedAt:      c.createdAt,
			LastActivityAt: c.lastActivityAt,
			MessageCount:   len(c.messages),
		})
		c.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.After(out[j].LastActivityAt) })
	return out
}
