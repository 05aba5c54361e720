package events

import (
	"context"
	"testing"

	"conversation-feed-service/internal/models"
)

func TestNew_NilConfig(t *testing.T) {
	p := New(nil)
	if p == nil {
		t.Fatal("expected publisher, got nil")
	}
	if p.enabled {
		t.Error("expected publisher disabled with nil config")
	}
}

func TestNew_Disabled(t *testing.T) {
	p := New(&Config{
		Enabled:     false,
		TopicEntry:  "conversation.feed.entry",
		TopicUpdate: "conversation.feed.update",
		Principal:   "svc-test",
	})
	if p.enabled {
		t.Error("expected publisher disabled")
	}
	if p.writerEntry != nil || p.writerUpdate != nil {
		t.Error("expected no writers in disabled mode")
	}
}

func TestNew_EnabledWithoutBrokers(t *testing.T) {
	p := New(&Config{Enabled: true})
	if p.enabled {
		t.Error("expected publisher disabled without brokers")
	}
}

func TestPublish_DisabledIsLogOnly(t *testing.T) {
	p := New(&Config{Enabled: false, TopicEntry: "entry", TopicUpdate: "update"})

	entry := models.FeedEntryEvent{
		EventType: "conversation.feed.entry",
		Room:      "room-1",
		Entry:     models.FeedEntry{DisplayName: "Alice", Text: "hi", Timestamp: 10},
		Timestamp: 100,
	}
	if err := p.PublishEntry(context.Background(), "room-1", entry); err != nil {
		t.Errorf("expected log-only publish to succeed, got %v", err)
	}

	update := models.FeedUpdateEvent{
		EventType: "conversation.feed.update",
		Room:      "room-1",
		Revision:  3,
		Entries:   5,
		Timestamp: 100,
	}
	if err := p.PublishUpdate(context.Background(), "room-1", update); err != nil {
		t.Errorf("expected log-only publish to succeed, got %v", err)
	}
}

func TestPublish_UnmarshalableEvent(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.PublishEntry(context.Background(), "room-1", func() {}); err == nil {
		t.Error("expected marshal error for unencodable event")
	}
}

func TestClose_DisabledPublisher(t *testing.T) {
	p := New(&Config{Enabled: false})
	if err := p.Close(); err != nil {
		t.Errorf("expected clean close, got %v", err)
	}
}
