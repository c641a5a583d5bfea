package session

import (
	"context"
	"errors"

	"github.com/studyhive/realtime-service/internal/domain"
)

// ErrSessionNotFound marks lookups for an unknown or expired session.
// Disconnects for unknown sessions are a no-op and never return it.
var ErrSessionNotFound = errors.New("session not found")

// Manager orchestrates session lifecycle on top of the session store.
// It is the only component that knows about connection-level events.
type Manager interface {
	// OnConnect registers a new session for a user, superseding any
	// prior session (single-canonical-session policy). Store failures
	// are fatal and surface to the caller as a connection failure.
	OnConnect(ctx context.Context, userID int64, sessionID string) error

	// OnHeartbeat refreshes LastActiveAt and re-arms the TTL. Inert for
	// an absent session; store failures are logged, never returned.
	OnHeartbeat(ctx context.Context, userID int64)

	// OnDisconnect tears down the session resolved from the transport
	// session id and emits a SessionDisconnected event. No-op when the
	// session is unknown or already expired.
	OnDisconnect(ctx context.Context, sessionID string)

	// Events delivers disconnect notifications. Fire-and-observe; the
	// channel is buffered and events are dropped, not blocked on, when
	// no consumer keeps up.
	Events() <-chan domain.SessionDisconnected

	// IsConnected reports whether a user currently has a live session.
	IsConnected(ctx context.Context, userID int64) (bool, error)

	// SessionInfo returns the user's session, or ErrSessionNotFound.
	SessionInfo(ctx context.Context, userID int64) (*domain.SessionInfo, error)

	// CurrentRoomID returns the user's current room, 0 if none or offline.
	CurrentRoomID(ctx context.Context, userID int64) int64

	// OnlineUserCount returns the approximate number of live sessions.
	OnlineUserCount(ctx context.Context) (int64, error)
}
