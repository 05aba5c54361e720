package store

import (
	"testing"

	"conversation-feed-service/internal/models"
)

// fakeClock returns a clock that hands out the given timestamps in order,
// then keeps returning the last one.
func fakeClock(times ...int64) func() int64 {
	i := 0
	return func() int64 {
		if i >= len(times) {
			return times[len(times)-1]
		}
		t := times[i]
		i++
		return t
	}
}

func TestStore_InsertCapturesFirstSeen(t *testing.T) {
	s := NewWithClock(fakeClock(100))

	outcome, seg := s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "hello"})

	if outcome != OutcomeInserted {
		t.Errorf("expected OutcomeInserted, got %v", outcome)
	}
	if seg.FirstSeenAt != 100 {
		t.Errorf("expected firstSeenAt 100, got %d", seg.FirstSeenAt)
	}
	if seg.Final {
		t.Error("expected non-final segment")
	}
}

func TestStore_UpdatePreservesFirstSeen(t *testing.T) {
	s := NewWithClock(fakeClock(100, 200))

	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "hello"})
	outcome, seg := s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "hello world"})

	if outcome != OutcomeUpdated {
		t.Errorf("expected OutcomeUpdated, got %v", outcome)
	}
	if seg.FirstSeenAt != 100 {
		t.Errorf("expected firstSeenAt to stay 100, got %d", seg.FirstSeenAt)
	}
	if seg.Text != "hello world" {
		t.Errorf("expected revised text, got %q", seg.Text)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 segment, got %d", s.Len())
	}
}

func TestStore_IdempotentUpsert(t *testing.T) {
	s := NewWithClock(fakeClock(100))

	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "hello"})
	for i := 0; i < 5; i++ {
		outcome, _ := s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "hello"})
		if outcome != OutcomeUnchanged {
			t.Errorf("replay %d: expected OutcomeUnchanged, got %v", i, outcome)
		}
	}

	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 segment after replays, got %d", len(snap))
	}
}

func TestStore_MonotonicFinalization(t *testing.T) {
	s := NewWithClock(fakeClock(100))

	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "hello", Final: true})

	tests := []struct {
		name string
		ev   models.SegmentEvent
	}{
		{"revise text", models.SegmentEvent{SegmentID: "s1", Text: "goodbye", Final: true}},
		{"unfinalize", models.SegmentEvent{SegmentID: "s1", Text: "hello", Final: false}},
		{"identical replay", models.SegmentEvent{SegmentID: "s1", Text: "hello", Final: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, seg := s.Upsert("src-a", tt.ev)
			if outcome != OutcomeRejectedFinal {
				t.Errorf("expected OutcomeRejectedFinal, got %v", outcome)
			}
			if seg.Text != "hello" {
				t.Errorf("expected text frozen at %q, got %q", "hello", seg.Text)
			}
			if !seg.Final {
				t.Error("expected segment to stay final")
			}
		})
	}
}

func TestStore_SameIDDifferentSources(t *testing.T) {
	s := NewWithClock(fakeClock(100, 200))

	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "from a"})
	outcome, _ := s.Upsert("src-b", models.SegmentEvent{SegmentID: "s1", Text: "from b"})

	if outcome != OutcomeInserted {
		t.Errorf("expected OutcomeInserted for other source, got %v", outcome)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 segments, got %d", s.Len())
	}
}

func TestStore_SnapshotInObservationOrder(t *testing.T) {
	s := NewWithClock(fakeClock(10, 20, 30))

	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "one"})
	s.Upsert("src-b", models.SegmentEvent{SegmentID: "s2", Text: "two"})
	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s3", Text: "three"})
	// A revision must not move s1.
	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "one revised"})

	snap := s.Snapshot()
	wantIDs := []string{"s1", "s2", "s3"}
	if len(snap) != len(wantIDs) {
		t.Fatalf("expected %d segments, got %d", len(wantIDs), len(snap))
	}
	for i, want := range wantIDs {
		if snap[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, snap[i].ID)
		}
	}
	if snap[0].Text != "one revised" {
		t.Errorf("expected revised text in place, got %q", snap[0].Text)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewWithClock(fakeClock(10))
	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "one"})

	snap := s.Snapshot()
	snap[0].Text = "mutated"

	if got := s.Snapshot()[0].Text; got != "one" {
		t.Errorf("snapshot mutation leaked into store: %q", got)
	}
}

func TestStore_DropSource(t *testing.T) {
	s := NewWithClock(fakeClock(10, 20, 30))

	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "a1"})
	s.Upsert("src-b", models.SegmentEvent{SegmentID: "s2", Text: "b1", Final: true})
	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s3", Text: "a2"})

	if removed := s.DropSource("src-a"); removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 remaining segment, got %d", len(snap))
	}
	if snap[0].ID != "s2" || snap[0].Text != "b1" || !snap[0].Final {
		t.Errorf("other source's segment altered: %+v", snap[0])
	}

	if removed := s.DropSource("src-a"); removed != 0 {
		t.Errorf("expected dropping absent source to be a no-op, got %d", removed)
	}
}

func TestStore_FreezeSource(t *testing.T) {
	s := NewWithClock(fakeClock(10, 20, 30))

	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s1", Text: "in flight"})
	s.Upsert("src-a", models.SegmentEvent{SegmentID: "s2", Text: "done", Final: true})
	s.Upsert("src-b", models.SegmentEvent{SegmentID: "s3", Text: "other"})

	if frozen := s.FreezeSource("src-a"); frozen != 1 {
		t.Errorf("expected 1 frozen, got %d", frozen)
	}

	for _, seg := range s.Snapshot() {
		switch seg.ID {
		case "s1":
			if !seg.Final || seg.Text != "in flight" {
				t.Errorf("expected s1 frozen at last text, got %+v", seg)
			}
		case "s3":
			if seg.Final {
				t.Error("freeze must not touch other sources")
			}
		}
	}
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeInserted, "INSERTED"},
		{OutcomeUpdated, "UPDATED"},
		{OutcomeUnchanged, "UNCHANGED"},
		{OutcomeRejectedFinal, "REJECTED_FINAL"},
		{Outcome(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestOutcome_Changed(t *testing.T) {
	if !OutcomeInserted.Changed() || !OutcomeUpdated.Changed() {
		t.Error("insert and update must report changed")
	}
	if OutcomeUnchanged.Changed() || OutcomeRejectedFinal.Changed() {
		t.Error("no-op outcomes must not report changed")
	}
}
