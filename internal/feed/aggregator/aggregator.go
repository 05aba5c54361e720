// Package aggregator merges all sources' transcription segments with the
// chat stream into one chronologically ordered conversation feed.
package aggregator

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"conversation-feed-service/internal/feed/names"
	"conversation-feed-service/internal/feed/registry"
	"conversation-feed-service/internal/feed/store"
	"conversation-feed-service/internal/models"
	"conversation-feed-service/internal/observability/logging"
	"conversation-feed-service/internal/observability/metrics"
)

// Aggregator is the sole owner of the merged feed. The segment store and
// chat log are read-only inputs; any writer to them marks the aggregator
// dirty and the next Refresh recomputes the merge. Emissions are gated on
// structural change, so redundant recomputes never fan out downstream.
type Aggregator struct {
	store    *store.Store
	chat     *store.ChatLog
	registry *registry.Registry
	resolver *names.Resolver

	mu       sync.Mutex
	dirty    bool
	lastRev  uint64 // registry revision folded into the last merge
	lastFeed []models.FeedEntry
	revision uint64 // bumped on every emitted (structurally new) feed

	now     func() int64
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an aggregator over injected, externally owned inputs.
func New(st *store.Store, chat *store.ChatLog, reg *registry.Registry, resolver *names.Resolver) *Aggregator {
	return &Aggregator{
		store:    st,
		chat:     chat,
		registry: reg,
		resolver: resolver,
		dirty:    true,
		now:      func() int64 { return time.Now().UnixMilli() },
		metrics:  metrics.DefaultMetrics,
		logger:   logging.WithComponent("aggregator"),
	}
}

// MarkDirty records that an input changed. The next Refresh recomputes.
func (a *Aggregator) MarkDirty() {
	a.mu.Lock()
	a.dirty = true
	a.mu.Unlock()
}

// Feed returns the latest merged feed, recomputing first if any input
// changed since the last call.
func (a *Aggregator) Feed() []models.FeedEntry {
	feed, _ := a.Refresh()
	return feed
}

// Refresh recomputes the merge when dirty (or when membership changed
// underneath) and reports whether a structurally new feed was emitted.
// A clean refresh returns the previous feed unchanged.
func (a *Aggregator) Refresh() ([]models.FeedEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rev := a.registry.Revision()
	if !a.dirty && rev == a.lastRev {
		return copyFeed(a.lastFeed), false
	}
	a.dirty = false
	a.lastRev = rev

	merged := a.merge()
	changed := !models.FeedEqual(merged, a.lastFeed)
	a.metrics.RecordRecompute(changed)
	if !changed {
		return copyFeed(a.lastFeed), false
	}

	a.lastFeed = merged
	a.revision++
	return copyFeed(merged), true
}

// Revision returns the emission revision, bumped once per emitted feed.
func (a *Aggregator) Revision() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revision
}

// merge projects both inputs and imposes the display order: ascending by
// timestamp, ties broken by projection order (segments in first-seen order,
// then chat in channel order).
func (a *Aggregator) merge() []models.FeedEntry {
	segments := a.store.Snapshot()
	messages := a.chat.Snapshot()

	entries := make([]models.FeedEntry, 0, len(segments)+len(messages))
	for _, seg := range segments {
		entries = append(entries, a.projectSegment(seg))
	}
	for _, msg := range messages {
		entries = append(entries, a.projectChat(msg))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries
}

func (a *Aggregator) projectSegment(seg models.Segment) models.FeedEntry {
	text := seg.Text
	if !seg.Final {
		text += " ..."
	}
	ts := seg.FirstSeenAt
	if ts <= 0 {
		ts = a.now()
		a.metrics.RecordTimestampAnomaly()
		a.logger.Warn().
			Str("segmentId", seg.ID).
			Str("sourceId", seg.SourceID).
			Msg("Segment without first-seen timestamp, merged as now")
	}
	return models.FeedEntry{
		DisplayName: a.resolver.Resolve(seg.SourceID, a.registry.PublishedName(seg.SourceID)),
		Text:        text,
		IsSelf:      a.resolver.IsSelf(seg.SourceID),
		Timestamp:   ts,
		SourceID:    seg.SourceID,
	}
}

func (a *Aggregator) projectChat(msg models.ChatMessage) models.FeedEntry {
	published := msg.SenderName
	if published == "" {
		published = a.registry.PublishedName(msg.SenderID)
	}
	ts := msg.Timestamp
	if ts <= 0 {
		ts = a.now()
		a.metrics.RecordTimestampAnomaly()
		a.logger.Warn().
			Str("senderId", msg.SenderID).
			Msg("Chat message without timestamp, merged as now")
	}
	return models.FeedEntry{
		DisplayName: a.resolver.Resolve(msg.SenderID, published),
		Text:        msg.Text,
		IsSelf:      a.resolver.IsSelf(msg.SenderID),
		Timestamp:   ts,
		SourceID:    msg.SenderID,
	}
}

func copyFeed(feed []models.FeedEntry) []models.FeedEntry {
	out := make([]models.FeedEntry, len(feed))
	copy(out, feed)
	return out
}
