package registry

import "testing"

func TestRegistry_RegisterBumpsRevision(t *testing.T) {
	r := New()

	rev := r.Revision()
	if !r.Register(Source{Identity: "u1", Name: "Alice", HasAudio: true}) {
		t.Error("expected first registration to change membership")
	}
	if r.Revision() <= rev {
		t.Error("expected revision to increase")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 source, got %d", r.Len())
	}
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := New()
	r.Register(Source{Identity: "u1", Name: "Alice"})

	rev := r.Revision()
	if r.Register(Source{Identity: "u1", Name: "Alice"}) {
		t.Error("expected identical registration to be a no-op")
	}
	if r.Revision() != rev {
		t.Error("expected revision unchanged on no-op")
	}
}

func TestRegistry_RegisterUpdatesName(t *testing.T) {
	r := New()
	r.Register(Source{Identity: "u1"})

	if !r.Register(Source{Identity: "u1", Name: "Alice"}) {
		t.Error("expected name change to register as a change")
	}
	if got := r.PublishedName("u1"); got != "Alice" {
		t.Errorf("expected published name Alice, got %q", got)
	}
	if r.Len() != 1 {
		t.Errorf("expected still 1 source, got %d", r.Len())
	}
}

func TestRegistry_EmptyIdentityIgnored(t *testing.T) {
	r := New()

	if r.Register(Source{Identity: "", Name: "ghost"}) {
		t.Error("expected empty identity to be ignored")
	}
	if r.Len() != 0 {
		t.Errorf("expected 0 sources, got %d", r.Len())
	}
}

func TestRegistry_DeregisterIdempotent(t *testing.T) {
	r := New()
	r.Register(Source{Identity: "u1"})

	if !r.Deregister("u1") {
		t.Error("expected deregistration to change membership")
	}
	rev := r.Revision()
	if r.Deregister("u1") {
		t.Error("expected repeated deregistration to be a no-op")
	}
	if r.Deregister("never-seen") {
		t.Error("expected deregistering an absent source to be a no-op")
	}
	if r.Revision() != rev {
		t.Error("expected revision unchanged on no-op deregistrations")
	}
}

func TestRegistry_SnapshotInRegistrationOrder(t *testing.T) {
	r := New()
	r.Register(Source{Identity: "u1"})
	r.Register(Source{Identity: "u2"})
	r.Register(Source{Identity: "u3"})
	r.Deregister("u2")

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(snap))
	}
	if snap[0].Identity != "u1" || snap[1].Identity != "u3" {
		t.Errorf("unexpected order: %+v", snap)
	}
}

func TestRegistry_PublishedNameForUnknown(t *testing.T) {
	r := New()

	if got := r.PublishedName("never-seen"); got != "" {
		t.Errorf("expected empty name for unknown source, got %q", got)
	}
}
