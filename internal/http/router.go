// Package http exposes the service's REST and websocket surface.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"conversation-feed-service/internal/app"
	"conversation-feed-service/internal/token"
	"conversation-feed-service/internal/transport/ws"
)

var errRoomMismatch = errors.New("credential not valid for this room")

type tokenRequest struct {
	RoomName string `json:"roomName"`
	Identity string `json:"identity"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
}

type chatRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	wsHandler := ws.NewHandler(application.Rooms, application.Tokens)

	r.Route("/v1", func(r chi.Router) {
		// Room/token issuance boundary: a valid credential must exist
		// before any source feed or chat channel can be opened.
		r.Post("/token", func(w http.ResponseWriter, req *http.Request) {
			var body tokenRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
				return
			}
			credential, err := application.Tokens.Mint(body.RoomName, body.Identity)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, tokenResponse{
				Token:     credential,
				ServerURL: "/v1/rooms/" + body.RoomName,
			})
		})

		r.Route("/rooms/{roomID}", func(r chi.Router) {
			// Pull-model renderer: latest merged feed.
			r.Get("/feed", func(w http.ResponseWriter, req *http.Request) {
				roomID := chi.URLParam(req, "roomID")
				claims, err := authorize(application.Tokens, req, roomID)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
					return
				}
				rm := application.Rooms.GetOrCreate(roomID, claims.Identity)
				writeJSON(w, http.StatusOK, rm.Feed())
			})

			// Outgoing-message sink. Failures surface here as discrete
			// errors; they never unwind aggregation state.
			r.Post("/chat", func(w http.ResponseWriter, req *http.Request) {
				roomID := chi.URLParam(req, "roomID")
				claims, err := authorize(application.Tokens, req, roomID)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
					return
				}
				var body chatRequest
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
					return
				}
				rm := application.Rooms.GetOrCreate(roomID, claims.Identity)
				msg, err := rm.SendChat(claims.Identity, strings.TrimSpace(body.Text))
				if err != nil {
					writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
					return
				}
				writeJSON(w, http.StatusOK, msg)
			})

			// Websocket boundary streams.
			r.Get("/events", wsHandler.ServeEvents)
			r.Get("/feed/ws", wsHandler.ServeFeed)
		})
	})

	return r
}

func authorize(tokens *token.Manager, req *http.Request, roomID string) (token.Claims, error) {
	credential := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	if credential == "" {
		credential = req.URL.Query().Get("token")
	}
	if credential == "" {
		return token.Claims{}, token.ErrMalformed
	}
	claims, err := tokens.Verify(credential)
	if err != nil {
		return token.Claims{}, err
	}
	if claims.Room != roomID {
		return token.Claims{}, errRoomMismatch
	}
	return claims, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
