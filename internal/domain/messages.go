package domain

import (
	"encoding/json"
	"time"
)

// WebSocket message types from client.
const (
	MsgTypeHeartbeat    = "heartbeat"
	MsgTypeJoinRoom     = "join_room"
	MsgTypeLeaveRoom    = "leave_room"
	MsgTypeChat         = "chat"
	MsgTypeWebRTCOffer  = "webrtc_offer"
	MsgTypeWebRTCAnswer = "webrtc_answer"
	MsgTypeWebRTCIce    = "webrtc_ice"
	MsgTypeMediaToggle  = "media_toggle"
	MsgTypeClearChat    = "clear_chat"
	MsgTypeAvatar       = "avatar"
)

// WebSocket message types to client.
const (
	MsgTypeHeartbeatAck  = "heartbeat_ack"
	MsgTypeRoomJoined    = "room_joined"
	MsgTypeUserJoined    = "user_joined"
	MsgTypeUserLeft      = "user_left"
	MsgTypeChatMessage   = "chat_message"
	MsgTypeWebRTCSignal  = "webrtc_signal"
	MsgTypeMediaState    = "media_state"
	MsgTypeChatCleared   = "chat_cleared"
	MsgTypeAvatarChanged = "avatar_changed"
	MsgTypeError         = "error"
)

// BaseMessage is the envelope used to dispatch on type.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// JoinRoomMessage asks to enter a room, optionally with an avatar.
type JoinRoomMessage struct {
	Type     string `json:"type"`
	RoomID   int64  `json:"room_id"`
	AvatarID int64  `json:"avatar_id,omitempty"`
}

// LeaveRoomMessage asks to leave a room.
type LeaveRoomMessage struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
}

// ChatSendMessage carries one inbound chat line.
type ChatSendMessage struct {
	Type    string `json:"type"`
	RoomID  int64  `json:"room_id"`
	Content string `json:"content"`
}

// SignalMessage carries a WebRTC negotiation payload targeted at one
// user in the same room. The payload is relayed verbatim.
type SignalMessage struct {
	Type         string          `json:"type"`
	RoomID       int64           `json:"room_id"`
	TargetUserID int64           `json:"target_user_id"`
	Payload      json.RawMessage `json:"payload"`
	MediaType    string          `json:"media_type,omitempty"`
}

// MediaToggleMessage announces a camera/mic state change.
type MediaToggleMessage struct {
	Type      string `json:"type"`
	RoomID    int64  `json:"room_id"`
	MediaType string `json:"media_type"`
	Enabled   bool   `json:"enabled"`
}

// ClearChatMessage asks to delete all messages of a room (moderation).
type ClearChatMessage struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
}

// AvatarMessage updates the sender's avatar within a room.
type AvatarMessage struct {
	Type     string `json:"type"`
	RoomID   int64  `json:"room_id"`
	AvatarID int64  `json:"avatar_id"`
}

// Server -> Client messages

// RoomJoinedMessage confirms room entry to the joining user.
type RoomJoinedMessage struct {
	Type         string  `json:"type"`
	RoomID       int64   `json:"room_id"`
	Participants []int64 `json:"participants"`
}

// UserJoinedMessage is broadcast to a room when a user enters.
type UserJoinedMessage struct {
	Type            string `json:"type"`
	RoomID          int64  `json:"room_id"`
	UserID          int64  `json:"user_id"`
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	AvatarID        int64  `json:"avatar_id,omitempty"`
}

// UserLeftMessage is broadcast to a room when a user leaves.
type UserLeftMessage struct {
	Type   string `json:"type"`
	RoomID int64  `json:"room_id"`
	UserID int64  `json:"user_id"`
}

// ChatBroadcastMessage carries one chat message to room subscribers.
type ChatBroadcastMessage struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

// SignalRelayMessage wraps a relayed WebRTC payload for the target.
type SignalRelayMessage struct {
	Type         string          `json:"type"`
	SignalType   string          `json:"signal_type"` // webrtc_offer | webrtc_answer | webrtc_ice
	RoomID       int64           `json:"room_id"`
	FromUserID   int64           `json:"from_user_id"`
	TargetUserID int64           `json:"target_user_id"`
	Payload      json.RawMessage `json:"payload"`
	MediaType    string          `json:"media_type,omitempty"`
}

// MediaStateMessage is broadcast on media toggle.
type MediaStateMessage struct {
	Type      string `json:"type"`
	RoomID    int64  `json:"room_id"`
	UserID    int64  `json:"user_id"`
	Nickname  string `json:"nickname"`
	MediaType string `json:"media_type"`
	Enabled   bool   `json:"enabled"`
}

// ChatClearedMessage is broadcast after a moderation bulk delete.
type ChatClearedMessage struct {
	Type         string    `json:"type"`
	RoomID       int64     `json:"room_id"`
	ClearedBy    int64     `json:"cleared_by"`
	Nickname     string    `json:"nickname"`
	Role         string    `json:"role"`
	DeletedCount int       `json:"deleted_count"`
	ClearedAt    time.Time `json:"cleared_at"`
}

// AvatarChangedMessage is broadcast when a participant updates their avatar.
type AvatarChangedMessage struct {
	Type     string `json:"type"`
	RoomID   int64  `json:"room_id"`
	UserID   int64  `json:"user_id"`
	AvatarID int64  `json:"avatar_id"`
}

// HeartbeatAckMessage confirms a heartbeat.
type HeartbeatAckMessage struct {
	Type string `json:"type"`
}

// ErrorMessage is delivered on the sender's private channel only; it
// never interrupts the room broadcast stream.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeNotRoomMember   = "NOT_ROOM_MEMBER"
	ErrCodeSelfSignal      = "SELF_SIGNAL"
	ErrCodeRoomFull        = "ROOM_CAPACITY_EXCEEDED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeTargetOffline   = "TARGET_OFFLINE"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewErrorMessage creates a structured error frame.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
