package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/studyhive/realtime-service/internal/config"
	"github.com/studyhive/realtime-service/internal/domain"
	"github.com/studyhive/realtime-service/internal/history"
	"github.com/studyhive/realtime-service/internal/hub"
	"github.com/studyhive/realtime-service/internal/presence"
	"github.com/studyhive/realtime-service/internal/relay"
	"github.com/studyhive/realtime-service/internal/session"
	"github.com/studyhive/realtime-service/pkg/jwt"
	"github.com/studyhive/realtime-service/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections, authenticates them, and dispatches
// inbound frames to the session, presence, and relay layers.
type WSHandler struct {
	hub      *hub.Hub
	sessions session.Manager
	tracker  *presence.Tracker
	relay    *relay.Relay
	history  history.Service
	tokens   *jwt.Manager
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(
	h *hub.Hub,
	sessions session.Manager,
	tracker *presence.Tracker,
	r *relay.Relay,
	hist history.Service,
	tokens *jwt.Manager,
	wsCfg config.WebSocketConfig,
) *WSHandler {
	return &WSHandler{
		hub:      h,
		sessions: sessions,
		tracker:  tracker,
		relay:    r,
		history:  hist,
		tokens:   tokens,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket authenticates the token query parameter, upgrades the
// connection, and registers the session. The connection is refused when
// the token is invalid or the session cannot be stored.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sessionID := uuid.New().String()
	client := hub.NewClient(sessionID, claims.UserID, claims.Nickname, claims.Role, h.hub, conn, hub.Config{
		PingInterval:   h.wsCfg.PingInterval,
		PongWait:       h.wsCfg.PongWait,
		WriteWait:      h.wsCfg.WriteWait,
		MaxMessageSize: h.wsCfg.MaxMessageSize,
	})

	if err := h.sessions.OnConnect(r.Context(), claims.UserID, sessionID); err != nil {
		l := log.Ctx(r.Context())
		l.Error().Err(err).
			Int64(log.FieldUserID, claims.UserID).
			Msg("session registration failed")
		conn.WriteJSON(domain.NewErrorMessage(domain.ErrCodeInternal, "Session registration failed"))
		conn.Close()
		return
	}

	h.hub.Register(client)

	l := log.Ctx(r.Context())
	l.Info().
		Int64(log.FieldUserID, claims.UserID).
		Str(log.FieldSessionID, sessionID).
		Msg("websocket connected")

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleMessage)
		h.sessions.OnDisconnect(context.Background(), client.ID)
	}()
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	ctx := context.Background()

	// Any inbound frame proves liveness.
	h.sessions.OnHeartbeat(ctx, client.UserID)

	switch base.Type {
	case domain.MsgTypeHeartbeat:
		client.SendMessage(&domain.HeartbeatAckMessage{Type: domain.MsgTypeHeartbeatAck})

	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == 0 {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join_room message"))
			return
		}
		h.handleJoinRoom(ctx, client, msg)

	case domain.MsgTypeLeaveRoom:
		var msg domain.LeaveRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == 0 {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave_room message"))
			return
		}
		h.handleLeaveRoom(ctx, client, msg.RoomID)

	case domain.MsgTypeChat:
		var msg domain.ChatSendMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == 0 || msg.Content == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid chat message"))
			return
		}
		if _, err := h.relay.SendChat(ctx, msg.RoomID, client.UserID, msg.Content); err != nil {
			h.sendError(client, err)
		}

	case domain.MsgTypeWebRTCOffer, domain.MsgTypeWebRTCAnswer, domain.MsgTypeWebRTCIce:
		var msg domain.SignalMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == 0 || msg.TargetUserID == 0 {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid signal message"))
			return
		}
		msg.Type = base.Type
		if err := h.relay.SendSignal(ctx, msg.RoomID, client.UserID, msg); err != nil {
			h.sendError(client, err)
		}

	case domain.MsgTypeMediaToggle:
		var msg domain.MediaToggleMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == 0 || msg.MediaType == "" {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid media_toggle message"))
			return
		}
		if err := h.relay.ToggleMedia(ctx, msg.RoomID, client.UserID, msg.MediaType, msg.Enabled); err != nil {
			h.sendError(client, err)
		}

	case domain.MsgTypeClearChat:
		var msg domain.ClearChatMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == 0 {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid clear_chat message"))
			return
		}
		if _, err := h.relay.ClearRoom(ctx, msg.RoomID, client.UserID); err != nil {
			h.sendError(client, err)
			return
		}
		h.history.InvalidateRoom(ctx, msg.RoomID)

	case domain.MsgTypeAvatar:
		var msg domain.AvatarMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == 0 {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid avatar message"))
			return
		}
		if err := h.tracker.UpdateAvatar(ctx, msg.RoomID, client.UserID, msg.AvatarID); err != nil {
			h.sendError(client, err)
		}

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}

func (h *WSHandler) handleJoinRoom(ctx context.Context, client *hub.Client, msg domain.JoinRoomMessage) {
	if err := h.tracker.Join(ctx, msg.RoomID, client.UserID, msg.AvatarID); err != nil {
		h.sendError(client, err)
		return
	}

	h.hub.JoinRoom(client, msg.RoomID)

	participants, err := h.tracker.Participants(ctx, msg.RoomID)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Int64(log.FieldRoomID, msg.RoomID).Msg("participant list unavailable")
	}
	client.SendMessage(&domain.RoomJoinedMessage{
		Type:         domain.MsgTypeRoomJoined,
		RoomID:       msg.RoomID,
		Participants: participants,
	})
}

func (h *WSHandler) handleLeaveRoom(ctx context.Context, client *hub.Client, roomID int64) {
	h.hub.LeaveRoom(client, roomID)
	if err := h.tracker.Leave(ctx, roomID, client.UserID); err != nil {
		h.sendError(client, err)
	}
}

// sendError maps domain errors to structured error frames on the
// sender's private channel. Unexpected errors become INTERNAL_ERROR.
func (h *WSHandler) sendError(client *hub.Client, err error) {
	var code, msg string

	switch {
	case errors.Is(err, relay.ErrNotRoomMember):
		code, msg = domain.ErrCodeNotRoomMember, "Not a member of this room"
	case errors.Is(err, relay.ErrSelfSignal):
		code, msg = domain.ErrCodeSelfSignal, "Cannot signal yourself"
	case errors.Is(err, relay.ErrTargetOffline):
		code, msg = domain.ErrCodeTargetOffline, "Target user is offline"
	case errors.Is(err, relay.ErrForbidden):
		code, msg = domain.ErrCodeForbidden, "Insufficient role for this operation"
	case errors.Is(err, presence.ErrRoomFull):
		code, msg = domain.ErrCodeRoomFull, "Room is at capacity"
	case errors.Is(err, session.ErrSessionNotFound):
		code, msg = domain.ErrCodeSessionNotFound, "No active session"
	default:
		l := log.L()
		l.Error().Err(err).
			Int64(log.FieldUserID, client.UserID).
			Msg("unexpected handler error")
		code, msg = domain.ErrCodeInternal, "Internal error"
	}

	client.SendMessage(domain.NewErrorMessage(code, msg))
}

// RegisterRoutes attaches the websocket endpoint.
func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.HandleWebSocket)
}
