package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"conversation-feed-service/internal/app"
	"conversation-feed-service/internal/config"
	"conversation-feed-service/internal/models"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Application) {
	t.Helper()
	application := app.New(&config.Configuration{
		TokenSecret:    "test-secret",
		TokenTTL:       time.Hour,
		DepartedPolicy: "freeze",
		LogLevel:       "error",
		LogFormat:      "json",
	})
	srv := httptest.NewServer(NewRouter(application))
	t.Cleanup(func() {
		srv.Close()
		application.Shutdown()
	})
	return srv, application
}

func mintToken(t *testing.T, srv *httptest.Server, room, identity string) string {
	t.Helper()
	body, _ := json.Marshal(tokenRequest{RoomName: room, Identity: identity})
	resp, err := http.Post(srv.URL+"/v1/token", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token mint: expected 200, got %d", resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		t.Fatal(err)
	}
	return tr.Token
}

func TestRouter_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/v1/liveness", "/v1/readiness"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestRouter_TokenRequiresFields(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(tokenRequest{RoomName: "room-1"})
	resp, err := http.Post(srv.URL+"/v1/token", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing identity, got %d", resp.StatusCode)
	}
}

func TestRouter_FeedRequiresCredential(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/rooms/room-1/feed")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without credential, got %d", resp.StatusCode)
	}
}

func TestRouter_CredentialBoundToRoom(t *testing.T) {
	srv, _ := newTestServer(t)
	cred := mintToken(t, srv, "room-1", "alice")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/rooms/other-room/feed", nil)
	req.Header.Set("Authorization", "Bearer "+cred)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for foreign room, got %d", resp.StatusCode)
	}
}

func TestRouter_ChatThenFeed(t *testing.T) {
	srv, _ := newTestServer(t)
	cred := mintToken(t, srv, "room-1", "alice")

	body, _ := json.Marshal(chatRequest{Text: "hello everyone"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/rooms/room-1/chat", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+cred)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var msg models.ChatMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d", resp.StatusCode)
	}
	if msg.Timestamp <= 0 {
		t.Error("expected an assigned timestamp")
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/rooms/room-1/feed?token="+cred, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var feed []models.FeedEntry
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(feed) != 1 {
		t.Fatalf("expected 1 feed entry, got %d", len(feed))
	}
	if feed[0].DisplayName != "You" || feed[0].Text != "hello everyone" {
		t.Errorf("unexpected entry: %+v", feed[0])
	}
}

func TestRouter_EmptyChatRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	cred := mintToken(t, srv, "room-1", "alice")

	body, _ := json.Marshal(chatRequest{Text: "   "})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/rooms/room-1/chat", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+cred)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for blank message, got %d", resp.StatusCode)
	}
}
