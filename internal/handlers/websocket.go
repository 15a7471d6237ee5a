package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"kissan-connect-backend/internal/middleware"
	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *services.WSHub
	authService    *services.AuthService
	directory      *services.DirectoryService
	upgrader       websocket.Upgrader
	allowAnonymous bool
}

// NewWebSocketHandler creates a new WebSocket handler. Only origins in
// allowedOrigins may connect; an empty list allows any.
func NewWebSocketHandler(
	hub *services.WSHub,
	authService *services.AuthService,
	directory *services.DirectoryService,
	allowedOrigins []string,
	allowAnonymous bool,
) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
		directory:   directory,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		allowAnonymous: allowAnonymous,
	}
}

// HandleWebSocket handles GET /ws. The connection starts unjoined; a
// {"type":"join","username":...} frame attaches it to that user's channel.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	var sessionUserID string
	if token != "" {
		userID, err := h.authService.ValidateJWT(token)
		if err != nil {
			respondError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		sessionUserID = userID
	} else if !h.allowAnonymous {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := h.hub.NewClient()
	go h.writePump(conn, client)
	defer h.hub.Unregister(client)

	log.Info().Str("client_id", client.ID).Str("session_user_id", sessionUserID).Msg("WebSocket connection established")

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("client_id", client.ID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			h.sendError(client, "Invalid message format")
			continue
		}

		switch msg.Type {
		case services.EventJoin:
			h.handleJoin(r, client, sessionUserID, msg.Username)
		default:
			h.sendError(client, "Unknown message type")
		}
	}

	log.Info().Str("client_id", client.ID).Msg("WebSocket connection closed")
}

// handleJoin attaches client to the named user's channel
func (h *WebSocketHandler) handleJoin(r *http.Request, client *services.Client, sessionUserID, username string) {
	if username == "" {
		h.sendError(client, "username is required")
		return
	}

	user, err := h.directory.GetByName(r.Context(), username)
	if errors.Is(err, models.ErrNotFound) {
		h.sendError(client, "User not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to resolve join target")
		h.sendError(client, "Join failed")
		return
	}

	if sessionUserID != "" && sessionUserID != user.ID {
		h.sendError(client, "Cannot join another user's channel")
		return
	}

	if err := h.hub.Register(user.ID, client); err != nil {
		return
	}

	h.hub.Send(client, services.WSMessage{Type: services.EventJoined, Username: user.Name})
	log.Info().Str("user_id", user.ID).Str("client_id", client.ID).Msg("Joined user channel")
}

// writePump is the only writer on conn. It drains the client's queue and
// keeps the connection alive with pings until the hub closes the queue.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, client *services.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.hub.Unregister(client)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.Unregister(client)
				return
			}
		}
	}
}

// sendError queues an error frame for the client
func (h *WebSocketHandler) sendError(client *services.Client, message string) {
	h.hub.Send(client, services.WSMessage{Type: services.EventError, Message: message})
}
