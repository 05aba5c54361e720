// Package room ties one conversation's segment store, source registry,
// chat log and aggregator together and applies boundary events to them.
package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"conversation-feed-service/internal/events"
	"conversation-feed-service/internal/feed/aggregator"
	"conversation-feed-service/internal/feed/names"
	"conversation-feed-service/internal/feed/registry"
	"conversation-feed-service/internal/feed/store"
	"conversation-feed-service/internal/models"
	"conversation-feed-service/internal/observability/logging"
	"conversation-feed-service/internal/observability/metrics"
)

// Policy decides what happens to a source's in-flight segments when the
// source departs mid-conversation.
type Policy string

const (
	// PolicyFreeze retains departed sources' segments, frozen at their
	// last text. Default: losing a participant's words on a membership
	// race is the worse failure mode.
	PolicyFreeze Policy = "freeze"
	// PolicyDrop removes departed sources' segments from the feed.
	PolicyDrop Policy = "drop"
)

// ParsePolicy parses a policy string, defaulting to freeze.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyDrop {
		return PolicyDrop
	}
	return PolicyFreeze
}

// Boundary errors surfaced to the renderer, never into aggregation state.
var (
	ErrEmptyMessage     = errors.New("chat message is empty")
	ErrDuplicateMessage = errors.New("duplicate (senderId, timestamp) chat message")
	ErrRoomClosed       = errors.New("room is closed")
)

// Config holds per-room settings.
type Config struct {
	Name          string
	LocalIdentity string
	AgentIdentity string
	Departed      Policy
}

// Room owns the engine state for one conversation. Event application is
// serialized per room; each Apply runs to completion in one turn, refreshes
// the aggregation and fans the feed out to subscribers when it changed.
type Room struct {
	name     string
	resolver *names.Resolver

	applyMu  sync.Mutex
	store    *store.Store
	chat     *store.ChatLog
	registry *registry.Registry
	agg      *aggregator.Aggregator
	policy   Policy
	closed   bool

	subMu sync.Mutex
	subs  map[uuid.UUID]chan []models.FeedEntry

	activityMu   sync.RWMutex
	lastActivity time.Time

	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() int64
}

// New creates a room with freshly owned engine state.
func New(cfg Config, publisher *events.Publisher) *Room {
	resolver := names.NewResolver(cfg.LocalIdentity, cfg.AgentIdentity)
	st := store.New()
	chat := store.NewChatLog()
	reg := registry.New()

	r := &Room{
		name:         cfg.Name,
		resolver:     resolver,
		store:        st,
		chat:         chat,
		registry:     reg,
		agg:          aggregator.New(st, chat, reg, resolver),
		policy:       ParsePolicy(string(cfg.Departed)),
		subs:         make(map[uuid.UUID]chan []models.FeedEntry),
		lastActivity: time.Now(),
		publisher:    publisher,
		metrics:      metrics.DefaultMetrics,
		logger:       logging.WithRoom(cfg.Name),
		now:          func() int64 { return time.Now().UnixMilli() },
	}

	r.logger.Info().
		Str("localIdentity", cfg.LocalIdentity).
		Str("policy", string(r.policy)).
		Msg("Room created")
	return r
}

// Name returns the room name.
func (r *Room) Name() string {
	return r.name
}

// SetPolicy swaps the departed-source policy. Applies to future departures
// only; already-applied departures are never revisited.
func (r *Room) SetPolicy(p Policy) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	if r.policy == p {
		return
	}
	r.logger.Info().
		Str("from", string(r.policy)).
		Str("to", string(p)).
		Msg("Departed-source policy changed")
	r.policy = p
}

// ApplySegment applies one transcription segment revision. Segments from
// sources unknown to the registry are still stored; the name fallback chain
// covers them at projection time.
func (r *Room) ApplySegment(ev models.SegmentEvent) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	if r.closed {
		return
	}
	r.touch()

	outcome, seg := r.store.Upsert(ev.ParticipantIdentity, ev)
	r.logger.Debug().
		Str("sourceId", ev.ParticipantIdentity).
		Str("segmentId", ev.SegmentID).
		Str("outcome", outcome.String()).
		Bool("final", seg.Final).
		Msg("Segment applied")

	if !outcome.Changed() {
		return
	}
	r.agg.MarkDirty()
	if seg.Final {
		r.publishEntry(models.FeedEntry{
			DisplayName: r.resolver.Resolve(seg.SourceID, r.registry.PublishedName(seg.SourceID)),
			Text:        seg.Text,
			IsSelf:      r.resolver.IsSelf(seg.SourceID),
			Timestamp:   seg.FirstSeenAt,
			SourceID:    seg.SourceID,
		})
	}
	r.afterChange()
}

// ApplyChat appends one chat message delivered by the chat channel. The
// channel's timestamp is authoritative; a missing timestamp is coerced to
// now and counted as an anomaly. Duplicate (senderId, timestamp) pairs are
// a boundary error and do not touch aggregation state.
func (r *Room) ApplyChat(ev models.ChatEvent) error {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	r.touch()

	ts := ev.Timestamp
	if ts <= 0 {
		ts = r.now()
		r.metrics.RecordTimestampAnomaly()
		r.logger.Warn().
			Str("senderId", ev.SenderIdentity).
			Msg("Chat message without timestamp, coerced to now")
	}

	msg := models.ChatMessage{
		SenderID:   ev.SenderIdentity,
		SenderName: ev.SenderName,
		Text:       ev.Text,
		Timestamp:  ts,
	}
	if !r.chat.Append(msg) {
		r.metrics.RecordChatDuplicate()
		r.logger.Warn().
			Str("senderId", msg.SenderID).
			Int64("timestamp", msg.Timestamp).
			Msg("Duplicate chat message rejected")
		return ErrDuplicateMessage
	}

	r.metrics.RecordChatMessage()
	r.agg.MarkDirty()
	r.publishEntry(models.FeedEntry{
		DisplayName: r.resolveSender(msg),
		Text:        msg.Text,
		IsSelf:      r.resolver.IsSelf(msg.SenderID),
		Timestamp:   msg.Timestamp,
		SourceID:    msg.SenderID,
	})
	r.afterChange()
	return nil
}

// SendChat is the renderer's outgoing-message sink. The room acts as the
// chat channel here, so it assigns the authoritative timestamp.
func (r *Room) SendChat(senderIdentity, text string) (models.ChatMessage, error) {
	if text == "" {
		r.metrics.ChatSendFailures.Inc()
		return models.ChatMessage{}, ErrEmptyMessage
	}
	ev := models.ChatEvent{
		SenderIdentity: senderIdentity,
		SenderName:     r.registry.PublishedName(senderIdentity),
		Text:           text,
		Timestamp:      r.now(),
	}
	if err := r.ApplyChat(ev); err != nil {
		r.metrics.ChatSendFailures.Inc()
		return models.ChatMessage{}, err
	}
	return models.ChatMessage{
		SenderID:   ev.SenderIdentity,
		SenderName: ev.SenderName,
		Text:       ev.Text,
		Timestamp:  ev.Timestamp,
	}, nil
}

// ApplyMembership applies a source add/remove from the membership feed.
// Both directions are idempotent.
func (r *Room) ApplyMembership(ev models.MembershipEvent) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()
	if r.closed {
		return
	}
	r.touch()

	switch ev.Action {
	case models.MembershipJoined:
		changed := r.registry.Register(registry.Source{
			Identity: ev.Identity,
			Name:     ev.Name,
			HasAudio: ev.HasAudio,
		})
		r.logger.Info().
			Str("identity", ev.Identity).
			Str("name", ev.Name).
			Bool("changed", changed).
			Msg("Source registered")
		if !changed {
			return
		}

	case models.MembershipLeft:
		changed := r.registry.Deregister(ev.Identity)
		affected := 0
		if changed {
			switch r.policy {
			case PolicyDrop:
				affected = r.store.DropSource(ev.Identity)
			default:
				affected = r.store.FreezeSource(ev.Identity)
			}
			r.metrics.RecordSourceDeparture(string(r.policy))
		}
		r.logger.Info().
			Str("identity", ev.Identity).
			Str("policy", string(r.policy)).
			Int("segmentsAffected", affected).
			Bool("changed", changed).
			Msg("Source deregistered")
		if !changed {
			return
		}

	default:
		r.logger.Warn().
			Str("action", ev.Action).
			Str("identity", ev.Identity).
			Msg("Unknown membership action ignored")
		return
	}

	r.agg.MarkDirty()
	r.afterChange()
}

// Feed returns the latest merged feed, recomputing if any input changed.
func (r *Room) Feed() []models.FeedEntry {
	return r.agg.Feed()
}

// Revision returns the feed emission revision.
func (r *Room) Revision() uint64 {
	return r.agg.Revision()
}

// SubscribeFeed registers a feed-changed subscriber. The channel carries
// the full feed on every emission; a slow subscriber only ever misses
// intermediate states, never the latest one.
func (r *Room) SubscribeFeed() (uuid.UUID, <-chan []models.FeedEntry) {
	ch := make(chan []models.FeedEntry, 1)
	id := uuid.New()

	r.subMu.Lock()
	r.subs[id] = ch
	r.subMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber. Unsubscribing an absent or already
// removed handle is a no-op.
func (r *Room) Unsubscribe(id uuid.UUID) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if ch, ok := r.subs[id]; ok {
		delete(r.subs, id)
		close(ch)
	}
}

// LastActivity returns the time of the most recent applied event.
func (r *Room) LastActivity() time.Time {
	r.activityMu.RLock()
	defer r.activityMu.RUnlock()
	return r.lastActivity
}

// Close tears the room down and closes all subscriber channels.
func (r *Room) Close() {
	r.applyMu.Lock()
	r.closed = true
	r.applyMu.Unlock()

	r.subMu.Lock()
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
	r.subMu.Unlock()

	r.logger.Info().
		Int("segments", r.store.Len()).
		Int("chatMessages", r.chat.Len()).
		Msg("Room closed")
}

// afterChange refreshes the aggregation and fans out when the feed changed.
// Called with applyMu held.
func (r *Room) afterChange() {
	feed, changed := r.agg.Refresh()
	if !changed {
		return
	}
	r.metrics.RecordFeedSize(r.name, len(feed))
	r.notify(feed)
	r.publishUpdate(len(feed))
}

// notify pushes the feed to every subscriber, replacing any stale pending
// notification so each subscriber always sees the latest emitted feed.
func (r *Room) notify(feed []models.FeedEntry) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- feed:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- feed:
			default:
			}
		}
	}
}

func (r *Room) resolveSender(msg models.ChatMessage) string {
	published := msg.SenderName
	if published == "" {
		published = r.registry.PublishedName(msg.SenderID)
	}
	return r.resolver.Resolve(msg.SenderID, published)
}

func (r *Room) publishEntry(entry models.FeedEntry) {
	ev := models.FeedEntryEvent{
		EventType: "conversation.feed.entry",
		Room:      r.name,
		Entry:     entry,
		Timestamp: r.now(),
	}
	if err := r.publisher.PublishEntry(context.Background(), r.name, ev); err != nil {
		r.logger.Error().Err(err).Msg("Failed to publish feed entry")
	}
}

func (r *Room) publishUpdate(entries int) {
	ev := models.FeedUpdateEvent{
		EventType: "conversation.feed.update",
		Room:      r.name,
		Revision:  r.agg.Revision(),
		Entries:   entries,
		Timestamp: r.now(),
	}
	if err := r.publisher.PublishUpdate(context.Background(), r.name, ev); err != nil {
		r.logger.Error().Err(err).Msg("Failed to publish feed update")
	}
}

func (r *Room) touch() {
	r.activityMu.Lock()
	r.lastActivity = time.Now()
	r.activityMu.Unlock()
}
