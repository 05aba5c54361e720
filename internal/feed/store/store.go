// Package store maintains the per-source state of every in-flight or
// completed speech segment, plus the room's chat log.
package store

import (
	"fmt"
	"sync"
	"time"

	"conversation-feed-service/internal/models"
	"conversation-feed-service/internal/observability/metrics"
)

// Outcome describes the observable effect of an upsert.
type Outcome int

const (
	// OutcomeInserted - first observation of this (source, segment) pair.
	OutcomeInserted Outcome = iota
	// OutcomeUpdated - text or finality revised in place.
	OutcomeUpdated
	// OutcomeUnchanged - identical replay, no effect.
	OutcomeUnchanged
	// OutcomeRejectedFinal - segment already final, revision ignored.
	OutcomeRejectedFinal
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "INSERTED"
	case OutcomeUpdated:
		return "UPDATED"
	case OutcomeUnchanged:
		return "UNCHANGED"
	case OutcomeRejectedFinal:
		return "REJECTED_FINAL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", o)
	}
}

// Changed reports whether the upsert altered stored state.
func (o Outcome) Changed() bool {
	return o == OutcomeInserted || o == OutcomeUpdated
}

type key struct {
	sourceID  string
	segmentID string
}

// Store holds the latest known state of every segment across all sources.
// Segments are kept in first-observation order so that timestamp ties in
// the merged feed break deterministically. Thread-safe.
//
// Segment state machine, per (sourceID, segmentID):
//
//	pending ── Upsert(text, final=false) ──→ pending   (any number of times)
//	pending ── Upsert(text, final=true)  ──→ final
//	final   ── Upsert(...)               ──→ final     (no-op, never un-finalizes)
type Store struct {
	mu       sync.RWMutex
	segments map[key]*models.Segment
	order    []key
	now      func() int64
	metrics  *metrics.Metrics
}

// New creates an empty store using wall-clock first-seen timestamps.
func New() *Store {
	return NewWithClock(func() int64 { return time.Now().UnixMilli() })
}

// NewWithClock creates an empty store with an injected millisecond clock.
func NewWithClock(now func() int64) *Store {
	return &Store{
		segments: make(map[key]*models.Segment),
		now:      now,
		metrics:  metrics.DefaultMetrics,
	}
}

// Upsert applies one segment revision. A new (sourceID, segmentID) pair is
// inserted with FirstSeenAt captured now; a known pair is revised in place
// with FirstSeenAt preserved. Revisions after finalization are ignored.
// Returns the outcome and the post-upsert segment state.
func (s *Store) Upsert(sourceID string, ev models.SegmentEvent) (Outcome, models.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{sourceID: sourceID, segmentID: ev.SegmentID}
	cur, ok := s.segments[k]
	if !ok {
		seg := &models.Segment{
			ID:          ev.SegmentID,
			SourceID:    sourceID,
			Text:        ev.Text,
			Final:       ev.Final,
			FirstSeenAt: s.now(),
		}
		s.segments[k] = seg
		s.order = append(s.order, k)
		s.metrics.RecordUpsert(true, ev.Final)
		return OutcomeInserted, *seg
	}

	if cur.Final {
		if ev.Text == cur.Text && ev.Final {
			s.metrics.RecordUpsertIgnored("duplicate_final")
		} else {
			s.metrics.RecordUpsertIgnored("after_final")
		}
		return OutcomeRejectedFinal, *cur
	}

	if cur.Text == ev.Text && cur.Final == ev.Final {
		s.metrics.RecordUpsertIgnored("unchanged")
		return OutcomeUnchanged, *cur
	}

	cur.Text = ev.Text
	cur.Final = ev.Final
	s.metrics.RecordUpsert(false, ev.Final)
	return OutcomeUpdated, *cur
}

// Snapshot returns a copy of all known segments in first-observation order.
func (s *Store) Snapshot() []models.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Segment, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.segments[k])
	}
	return out
}

// DropSource removes every segment belonging to sourceID. Segments of other
// sources keep their relative order. Returns the number removed.
func (s *Store) DropSource(sourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := s.order[:0]
	for _, k := range s.order {
		if k.sourceID == sourceID {
			delete(s.segments, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	s.order = kept
	return removed
}

// FreezeSource finalizes every non-final segment belonging to sourceID at
// its last known text. Returns the number frozen.
func (s *Store) FreezeSource(sourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	frozen := 0
	for k, seg := range s.segments {
		if k.sourceID == sourceID && !seg.Final {
			seg.Final = true
			frozen++
		}
	}
	return frozen
}

// Len returns the number of live segments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}
