package store

import (
	"sync"

	"conversation-feed-service/internal/models"
)

type chatKey struct {
	senderID  string
	timestamp int64
}

// ChatLog is the append-only list of chat messages for one room. Message
// identity is the (senderID, timestamp) pair, assumed unique by the chat
// channel; violations are rejected at the boundary.
type ChatLog struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
	seen     map[chatKey]struct{}
}

// NewChatLog creates an empty chat log.
func NewChatLog() *ChatLog {
	return &ChatLog{
		seen: make(map[chatKey]struct{}),
	}
}

// Append adds a message in channel order. Returns false if the
// (senderID, timestamp) pair was already seen.
func (l *ChatLog) Append(msg models.ChatMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := chatKey{senderID: msg.SenderID, timestamp: msg.Timestamp}
	if _, dup := l.seen[k]; dup {
		return false
	}
	l.seen[k] = struct{}{}
	l.messages = append(l.messages, msg)
	return true
}

// Snapshot returns a copy of all messages in channel order.
func (l *ChatLog) Snapshot() []models.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of accepted messages.
func (l *ChatLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
