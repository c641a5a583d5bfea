package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/studyhive/realtime-service/internal/config"
	"github.com/studyhive/realtime-service/internal/history"
	"github.com/studyhive/realtime-service/internal/presence"
	"github.com/studyhive/realtime-service/internal/session"
)

// HTTPHandler serves the REST surface: connection status, per-user
// status, room participants, and paged room history.
type HTTPHandler struct {
	sessions   session.Manager
	tracker    *presence.Tracker
	history    history.Service
	sessionCfg config.SessionConfig
}

func NewHTTPHandler(sessions session.Manager, tracker *presence.Tracker, hist history.Service, sessionCfg config.SessionConfig) *HTTPHandler {
	return &HTTPHandler{
		sessions:   sessions,
		tracker:    tracker,
		history:    hist,
		sessionCfg: sessionCfg,
	}
}

// StatusResponse is the API response for GET /api/v1/ws/status.
type StatusResponse struct {
	OnlineUsers   int64  `json:"online_users"`
	SessionTTL    string `json:"session_ttl"`
	HeartbeatHint string `json:"heartbeat_hint"`
}

// UserStatusResponse is the API response for a single user's status.
type UserStatusResponse struct {
	UserID        int64 `json:"user_id"`
	Connected     bool  `json:"connected"`
	CurrentRoomID int64 `json:"current_room_id,omitempty"`
}

// ParticipantsResponse lists the live participants of a room.
type ParticipantsResponse struct {
	RoomID       int64   `json:"room_id"`
	Participants []int64 `json:"participants"`
	Total        int     `json:"total"`
}

// RegisterRoutes attaches API routes to the router.
func (h *HTTPHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/ws/status", h.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/ws/users/{user_id}/status", h.GetUserStatus).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room_id}/participants", h.GetParticipants).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room_id}/messages", h.GetMessages).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}

// GetStatus handles GET /api/v1/ws/status
func (h *HTTPHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	count, err := h.sessions.OnlineUserCount(r.Context())
	if err != nil {
		http.Error(w, "failed to count sessions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, StatusResponse{
		OnlineUsers:   count,
		SessionTTL:    h.sessionCfg.TTL.String(),
		HeartbeatHint: h.sessionCfg.HeartbeatHint.String(),
	})
}

// GetUserStatus handles GET /api/v1/ws/users/{user_id}/status
func (h *HTTPHandler) GetUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "user_id must be a positive integer", http.StatusBadRequest)
		return
	}

	connected, err := h.sessions.IsConnected(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to resolve user status", http.StatusInternalServerError)
		return
	}

	resp := UserStatusResponse{UserID: userID, Connected: connected}
	if connected {
		resp.CurrentRoomID = h.sessions.CurrentRoomID(r.Context(), userID)
	}
	writeJSON(w, resp)
}

// GetParticipants handles GET /api/v1/rooms/{room_id}/participants
func (h *HTTPHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(mux.Vars(r)["room_id"], 10, 64)
	if err != nil || roomID <= 0 {
		http.Error(w, "room_id must be a positive integer", http.StatusBadRequest)
		return
	}

	participants, err := h.tracker.Participants(r.Context(), roomID)
	if err != nil {
		http.Error(w, "failed to get participants", http.StatusInternalServerError)
		return
	}

	writeJSON(w, ParticipantsResponse{
		RoomID:       roomID,
		Participants: participants,
		Total:        len(participants),
	})
}

// GetMessages handles GET /api/v1/rooms/{room_id}/messages
func (h *HTTPHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(mux.Vars(r)["room_id"], 10, 64)
	if err != nil || roomID <= 0 {
		http.Error(w, "room_id must be a positive integer", http.StatusBadRequest)
		return
	}

	page := 0
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 0 {
			http.Error(w, "page must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	size := 0
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		size, err = strconv.Atoi(sizeStr)
		if err != nil || size < 1 {
			http.Error(w, "size must be a positive integer", http.StatusBadRequest)
			return
		}
	}

	var before time.Time
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		before, err = time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			http.Error(w, "before must be an RFC3339 timestamp", http.StatusBadRequest)
			return
		}
	}

	pageResult, err := h.history.GetRoomHistory(r.Context(), roomID, page, size, before)
	if err != nil {
		http.Error(w, "failed to get room history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, pageResult)
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
