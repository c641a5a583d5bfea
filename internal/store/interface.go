package store

import (
	"context"
	"errors"

	"github.com/studyhive/realtime-service/internal/domain"
)

// ErrUnavailable wraps any storage-layer failure (connectivity,
// serialization). Callers must not swallow it on writes that affect
// correctness; best-effort paths may log and continue.
var ErrUnavailable = errors.New("session store unavailable")

// SessionStore is TTL-bounded key-value storage for session and
// presence state. Every write is a key-scoped upsert or delete; the
// store offers no multi-key transactions, and callers accept the
// resulting races (bounded by TTL).
type SessionStore interface {
	// SaveSession upserts the session entry for a user and resets its TTL.
	SaveSession(ctx context.Context, userID int64, info domain.SessionInfo) error

	// GetSession returns the session for a user, or nil if absent/expired.
	GetSession(ctx context.Context, userID int64) (*domain.SessionInfo, error)

	// DeleteSession removes the session entry. Idempotent.
	DeleteSession(ctx context.Context, userID int64) error

	// MapSessionToUser writes the sessionID -> userID reverse index,
	// same TTL policy as the session entry.
	MapSessionToUser(ctx context.Context, sessionID string, userID int64) error

	// LookupUserBySession resolves the owner of a transport session.
	// The second return is false when the mapping is absent or expired.
	LookupUserBySession(ctx context.Context, sessionID string) (int64, bool, error)

	// UnmapSession removes the reverse index entry. Idempotent.
	UnmapSession(ctx context.Context, sessionID string) error

	// AddUserToRoom adds a user to a room's presence set and re-arms the
	// set's TTL. Idempotent.
	AddUserToRoom(ctx context.Context, roomID, userID int64) error

	// RemoveUserFromRoom removes a user from a room's presence set. Idempotent.
	RemoveUserFromRoom(ctx context.Context, roomID, userID int64) error

	// GetRoomUsers returns the presence set of a room.
	GetRoomUsers(ctx context.Context, roomID int64) ([]int64, error)

	// GetRoomUserCount returns the size of a room's presence set.
	GetRoomUserCount(ctx context.Context, roomID int64) (int64, error)

	// CountActiveSessions returns the approximate number of live
	// sessions. Pattern-scan based, eventually consistent.
	CountActiveSessions(ctx context.Context) (int64, error)

	// SaveValue / GetValue / DeleteValue are generic TTL'd string
	// entries (avatar tracking and similar side data).
	SaveValue(ctx context.Context, key, value string) error
	GetValue(ctx context.Context, key string) (string, bool, error)
	DeleteValue(ctx context.Context, key string) error

	// Close releases the backing connection.
	Close() error
}
