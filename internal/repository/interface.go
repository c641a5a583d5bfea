package repository

import (
	"context"
	"time"

	"github.com/studyhive/realtime-service/internal/domain"
)

// MessageRepository persists room chat messages.
type MessageRepository interface {
	// SaveMessage stores one message and returns the persisted record.
	SaveMessage(ctx context.Context, roomID, userID int64, nickname, content string) (*domain.ChatMessage, error)

	// FindByRoom returns one page of messages, newest first. A zero
	// `before` means no upper bound. The second return reports whether
	// more pages exist.
	FindByRoom(ctx context.Context, roomID int64, page, size int, before time.Time) ([]domain.ChatMessage, bool, error)

	// DeleteAllByRoom removes every message of a room and returns how
	// many were deleted.
	DeleteAllByRoom(ctx context.Context, roomID int64) (int, error)

	// CountByRoom returns the number of stored messages for a room.
	CountByRoom(ctx context.Context, roomID int64) (int, error)
}

// MembershipRepository resolves durable room membership (with role),
// distinct from transient presence. Absent membership returns (nil, nil).
type MembershipRepository interface {
	FindMembership(ctx context.Context, roomID, userID int64) (*domain.RoomMembership, error)
}

// UserDirectory resolves public display identity for broadcasts.
// Absent users return (nil, nil).
type UserDirectory interface {
	GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)
}
