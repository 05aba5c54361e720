// Package models defines the event and feed data structures shared across
// the conversation engine.
package models

// Segment is the current state of one evolving speech-to-text utterance.
// A segment is identified by (SourceID, ID); re-observing the same ID
// revises Text/Final in place and never creates a second segment.
type Segment struct {
	ID          string `json:"id"`
	SourceID    string `json:"sourceId"`
	Text        string `json:"text"`
	Final       bool   `json:"final"`
	FirstSeenAt int64  `json:"firstSeenAt"` // unix millis, captured on first observation, never revised
}

// ChatMessage is a discrete message delivered by the chat channel.
// Timestamp is authoritative and assigned by the channel; (SenderID,
// Timestamp) is assumed unique upstream.
type ChatMessage struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// FeedEntry is the unified, renderable projection of either a segment or a
// chat message.
type FeedEntry struct {
	DisplayName string `json:"name"`
	Text        string `json:"message"`
	IsSelf      bool   `json:"isSelf"`
	Timestamp   int64  `json:"timestamp"`
	SourceID    string `json:"sourceId,omitempty"`
}

// Equal reports structural equality with another entry.
func (e FeedEntry) Equal(o FeedEntry) bool {
	return e == o
}

// FeedEqual reports structural equality of two feeds.
func FeedEqual(a, b []FeedEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Event type discriminators for the inbound websocket stream.
const (
	EventSegment    = "segment"
	EventChat       = "chat"
	EventMembership = "membership"
)

// Membership actions.
const (
	MembershipJoined = "joined"
	MembershipLeft   = "left"
)

// SegmentEvent is one revision of a transcription segment pushed by a
// source feed.
type SegmentEvent struct {
	SegmentID           string `json:"segmentId"`
	Text                string `json:"text"`
	Final               bool   `json:"final"`
	ParticipantIdentity string `json:"participantIdentity"`
}

// ChatEvent is a message pushed by the chat channel.
type ChatEvent struct {
	SenderIdentity string `json:"senderIdentity"`
	SenderName     string `json:"senderName,omitempty"`
	Text           string `json:"text"`
	Timestamp      int64  `json:"timestamp"`
}

// MembershipEvent is a source add/remove pushed by the membership feed.
type MembershipEvent struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	Action   string `json:"action"`
	HasAudio bool   `json:"hasAudio"`
}

// InboundEvent is the envelope for all events arriving on a room's event
// stream.
type InboundEvent struct {
	Type       string           `json:"type"`
	Segment    *SegmentEvent    `json:"segment,omitempty"`
	Chat       *ChatEvent       `json:"chat,omitempty"`
	Membership *MembershipEvent `json:"membership,omitempty"`
}

// FeedEntryEvent is the Kafka payload emitted when a feed entry becomes
// immutable (segment finalized, or chat message accepted).
type FeedEntryEvent struct {
	EventType string    `json:"eventType"`
	Room      string    `json:"room"`
	Entry     FeedEntry `json:"entry"`
	Timestamp int64     `json:"timestamp"`
}

// FeedUpdateEvent is the Kafka payload emitted whenever a room's feed
// changes shape.
type FeedUpdateEvent struct {
	EventType string `json:"eventType"`
	Room      string `json:"room"`
	Revision  uint64 `json:"revision"`
	Entries   int    `json:"entries"`
	Timestamp int64  `json:"timestamp"`
}
