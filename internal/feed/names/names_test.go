package names

import "testing"

func TestResolver_FallbackChain(t *testing.T) {
	r := NewResolver("local-user", "agent-bot")

	tests := []struct {
		name          string
		identity      string
		publishedName string
		want          string
	}{
		{"published name wins", "remote-user-123", "Alice", "Alice"},
		{"published name wins for local", "local-user", "Bob", "Bob"},
		{"local participant", "local-user", "", "You"},
		{"agent participant", "agent-bot", "", "Agent"},
		{"long identity truncated", "remote-user-123", "", "remote-u"},
		{"short identity kept", "bob", "", "bob"},
		{"absent identity", "", "", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.identity, tt.publishedName); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolver_NoAgentConfigured(t *testing.T) {
	r := NewResolver("local-user", "")

	// An empty agent identity must never match anything.
	if got := r.Resolve("some-remote-user", ""); got == "Agent" {
		t.Error("expected no agent resolution when unconfigured")
	}
}

func TestResolver_Deterministic(t *testing.T) {
	r := NewResolver("local-user", "")

	first := r.Resolve("remote-user-123", "")
	for i := 0; i < 10; i++ {
		if got := r.Resolve("remote-user-123", ""); got != first {
			t.Fatalf("resolution flickered: %q then %q", first, got)
		}
	}
}

func TestResolver_IsSelf(t *testing.T) {
	r := NewResolver("local-user", "")

	if !r.IsSelf("local-user") {
		t.Error("expected local identity to be self")
	}
	if r.IsSelf("remote-user") {
		t.Error("expected remote identity to not be self")
	}
	if r.IsSelf("") {
		t.Error("expected absent identity to not be self")
	}
}
