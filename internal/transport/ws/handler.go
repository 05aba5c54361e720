// Package ws carries the room boundary streams over websockets: inbound
// segment/chat/membership events, outbound feed emissions.
package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"conversation-feed-service/internal/models"
	"conversation-feed-service/internal/observability/logging"
	"conversation-feed-service/internal/observability/metrics"
	"conversation-feed-service/internal/room"
	"conversation-feed-service/internal/schema"
	"conversation-feed-service/internal/token"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// ack is the per-event reply on the inbound stream.
type ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler upgrades and serves the per-room websocket endpoints.
type Handler struct {
	rooms     *room.Manager
	tokens    *token.Manager
	validator *schema.Validator
	upgrader  websocket.Upgrader
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewHandler creates a websocket handler.
func NewHandler(rooms *room.Manager, tokens *token.Manager) *Handler {
	return &Handler{
		rooms:     rooms,
		tokens:    tokens,
		validator: schema.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect cross-origin through the media platform.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("ws"),
	}
}

// ServeEvents accepts the pushed event stream for a room: transcription
// segments, chat messages and membership changes, each acknowledged
// individually. A rejected event never closes the stream.
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	claims, err := h.authorize(r, roomID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("room", roomID).Msg("Events upgrade failed")
		return
	}
	defer conn.Close()

	h.metrics.WSConnections.WithLabelValues("events").Inc()
	defer h.metrics.WSConnections.WithLabelValues("events").Dec()

	rm := h.rooms.GetOrCreate(roomID, claims.Identity)
	logger := logging.WithSource(roomID, claims.Identity)
	logger.Info().Msg("Event stream opened")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("Event stream closed unexpectedly")
			}
			return
		}

		var ev models.InboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			h.metrics.RecordWSEvent("unknown", "invalid")
			h.reply(conn, ack{OK: false, Error: "malformed event"})
			continue
		}
		if err := h.validator.Validate(&ev); err != nil {
			h.metrics.RecordWSEvent(ev.Type, "invalid")
			logger.Warn().Err(err).Str("type", ev.Type).Msg("Event rejected")
			h.reply(conn, ack{OK: false, Error: err.Error()})
			continue
		}

		h.dispatch(conn, rm, &ev)
	}
}

// ServeFeed streams feed emissions to a renderer: the current feed on
// connect, then the full feed on every structural change.
func (h *Handler) ServeFeed(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	claims, err := h.authorize(r, roomID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("room", roomID).Msg("Feed upgrade failed")
		return
	}
	defer conn.Close()

	h.metrics.WSConnections.WithLabelValues("feed").Inc()
	defer h.metrics.WSConnections.WithLabelValues("feed").Dec()

	rm := h.rooms.GetOrCreate(roomID, claims.Identity)
	sub, feedCh := rm.SubscribeFeed()
	defer rm.Unsubscribe(sub)

	logger := logging.WithSource(roomID, claims.Identity)
	logger.Info().Msg("Feed stream opened")

	// Drain reads so client close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeFeed(conn, rm.Feed()); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case feed, ok := <-feedCh:
			if !ok {
				return
			}
			if err := h.writeFeed(conn, feed); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) dispatch(conn *websocket.Conn, rm *room.Room, ev *models.InboundEvent) {
	switch ev.Type {
	case models.EventSegment:
		rm.ApplySegment(*ev.Segment)
		h.metrics.RecordWSEvent(ev.Type, "applied")
		h.reply(conn, ack{OK: true})

	case models.EventChat:
		if err := rm.ApplyChat(*ev.Chat); err != nil {
			h.metrics.RecordWSEvent(ev.Type, "rejected")
			h.reply(conn, ack{OK: false, Error: err.Error()})
			return
		}
		h.metrics.RecordWSEvent(ev.Type, "applied")
		h.reply(conn, ack{OK: true})

	case models.EventMembership:
		rm.ApplyMembership(*ev.Membership)
		h.metrics.RecordWSEvent(ev.Type, "applied")
		h.reply(conn, ack{OK: true})
	}
}

func (h *Handler) writeFeed(conn *websocket.Conn, feed []models.FeedEntry) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(feed)
}

func (h *Handler) reply(conn *websocket.Conn, a ack) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(a); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to write ack")
	}
}

// authorize checks the bearer credential and that it was minted for this
// room. The credential rides in the Authorization header or, for browser
// websocket clients that cannot set headers, a query parameter.
func (h *Handler) authorize(r *http.Request, roomID string) (token.Claims, error) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if credential == "" {
		return token.Claims{}, errors.New("missing credential")
	}
	claims, err := h.tokens.Verify(credential)
	if err != nil {
		return token.Claims{}, err
	}
	if claims.Room != roomID {
		return token.Claims{}, errors.New("credential not valid for this room")
	}
	return claims, nil
}
