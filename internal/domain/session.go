package domain

import "time"

// SessionInfo describes one authenticated real-time connection. It is
// stored as a JSON value in the session store, keyed by user, with the
// session TTL. At most one SessionInfo per user is canonical: a new
// connection for the same user supersedes the previous entry.
type SessionInfo struct {
	UserID        int64     `json:"user_id"`
	SessionID     string    `json:"session_id"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastActiveAt  time.Time `json:"last_active_at"`
	CurrentRoomID int64     `json:"current_room_id,omitempty"` // 0 means not in a room
}

// NewSessionInfo creates the session entry written on connect.
func NewSessionInfo(userID int64, sessionID string, now time.Time) SessionInfo {
	return SessionInfo{
		UserID:       userID,
		SessionID:    sessionID,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}

// WithActivity returns a copy with LastActiveAt advanced to now.
func (s SessionInfo) WithActivity(now time.Time) SessionInfo {
	s.LastActiveAt = now
	return s
}

// WithRoom returns a copy recording entry into roomID.
func (s SessionInfo) WithRoom(roomID int64, now time.Time) SessionInfo {
	s.CurrentRoomID = roomID
	s.LastActiveAt = now
	return s
}

// WithoutRoom returns a copy with the room association cleared.
func (s SessionInfo) WithoutRoom(now time.Time) SessionInfo {
	s.CurrentRoomID = 0
	s.LastActiveAt = now
	return s
}

// InRoom reports whether the session is currently in the given room.
func (s SessionInfo) InRoom(roomID int64) bool {
	return s.CurrentRoomID != 0 && s.CurrentRoomID == roomID
}

// InAnyRoom reports whether the session is in any room.
func (s SessionInfo) InAnyRoom() bool {
	return s.CurrentRoomID != 0
}

// UserProfile is the public identity attached to presence and chat
// broadcasts. Resolved through the user directory collaborator.
type UserProfile struct {
	UserID          int64  `json:"user_id"`
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// Room membership roles, as recorded by the persistence collaborator.
const (
	RoleHost    = "HOST"
	RoleSubHost = "SUB_HOST"
	RoleMember  = "MEMBER"
)

// RoomMembership is a user's durable membership record for a room,
// distinct from transient presence.
type RoomMembership struct {
	RoomID int64
	UserID int64
	Role   string
}

// CanManageChat reports whether the role may clear a room's chat log.
func (m RoomMembership) CanManageChat() bool {
	return m.Role == RoleHost || m.Role == RoleSubHost
}

// ChatMessage is one persisted message sent to a room.
type ChatMessage struct {
	MessageID string    `json:"message_id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
