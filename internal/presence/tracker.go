package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/studyhive/realtime-service/internal/domain"
	"github.com/studyhive/realtime-service/internal/repository"
	"github.com/studyhive/realtime-service/internal/session"
	"github.com/studyhive/realtime-service/internal/store"
	"github.com/studyhive/realtime-service/pkg/log"
)

// ErrRoomFull marks a join attempt against a room at its configured
// participant cap.
var ErrRoomFull = errors.New("room capacity exceeded")

// Broadcaster is the transport-side fan-out the tracker announces
// join/leave events through. Fire-and-forget.
type Broadcaster interface {
	SendToRoom(roomID int64, payload interface{})
}

// Config holds tracker settings.
type Config struct {
	// MaxParticipants caps each room's presence set. 0 means unlimited.
	MaxParticipants int64
}

// Tracker maintains business-level room presence, distinct from raw
// transport connections. Presence writes go through the same TTL-bounded
// store as sessions, so ghost participants are bounded by the TTL even
// if cleanup never runs.
type Tracker struct {
	store       store.SessionStore
	users       repository.UserDirectory
	broadcaster Broadcaster
	cfg         Config
	now         func() time.Time
}

// NewTracker creates a room presence tracker.
func NewTracker(s store.SessionStore, users repository.UserDirectory, b Broadcaster, cfg Config) *Tracker {
	return &Tracker{
		store:       s,
		users:       users,
		broadcaster: b,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Join adds a user to a room's presence set. Idempotent: joining a room
// the user is already in succeeds without a second broadcast. Requires
// a live session; joining a new room implicitly leaves the previous one.
func (t *Tracker) Join(ctx context.Context, roomID, userID, avatarID int64) error {
	l := log.Ctx(ctx)

	info, err := t.store.GetSession(ctx, userID)
	if err != nil {
		return err
	}
	if info == nil {
		return session.ErrSessionNotFound
	}

	if info.InRoom(roomID) {
		// Re-arm the set entry; nothing else changes.
		return t.store.AddUserToRoom(ctx, roomID, userID)
	}

	if t.cfg.MaxParticipants > 0 {
		count, err := t.store.GetRoomUserCount(ctx, roomID)
		if err != nil {
			return err
		}
		if count >= t.cfg.MaxParticipants {
			return fmt.Errorf("%w: room %d is at capacity %d", ErrRoomFull, roomID, t.cfg.MaxParticipants)
		}
	}

	if info.InAnyRoom() {
		if err := t.Leave(ctx, info.CurrentRoomID, userID); err != nil {
			l.Warn().Err(err).
				Int64(log.FieldUserID, userID).
				Int64(log.FieldRoomID, info.CurrentRoomID).
				Msg("failed to leave previous room")
		}
	}

	updated := info.WithRoom(roomID, t.now())
	if err := t.store.SaveSession(ctx, userID, updated); err != nil {
		return err
	}
	if err := t.store.AddUserToRoom(ctx, roomID, userID); err != nil {
		return err
	}

	if avatarID != 0 {
		t.saveAvatar(ctx, roomID, userID, avatarID)
	}

	l.Info().
		Int64(log.FieldUserID, userID).
		Int64(log.FieldRoomID, roomID).
		Msg("user joined room")

	t.broadcastJoined(ctx, roomID, userID, avatarID)
	return nil
}

// Leave removes a user from a room's presence set. Idempotent.
func (t *Tracker) Leave(ctx context.Context, roomID, userID int64) error {
	l := log.Ctx(ctx)

	info, err := t.store.GetSession(ctx, userID)
	if err != nil {
		l.Warn().Err(err).Int64(log.FieldUserID, userID).Msg("leave: session fetch failed")
	}
	if info != nil && info.InRoom(roomID) {
		updated := info.WithoutRoom(t.now())
		if err := t.store.SaveSession(ctx, userID, updated); err != nil {
			return err
		}
	}

	if err := t.store.RemoveUserFromRoom(ctx, roomID, userID); err != nil {
		return err
	}
	if err := t.store.DeleteValue(ctx, store.AvatarKey(roomID, userID)); err != nil {
		l.Warn().Err(err).Int64(log.FieldUserID, userID).Msg("leave: avatar delete failed")
	}

	l.Info().
		Int64(log.FieldUserID, userID).
		Int64(log.FieldRoomID, roomID).
		Msg("user left room")

	t.broadcaster.SendToRoom(roomID, &domain.UserLeftMessage{
		Type:   domain.MsgTypeUserLeft,
		RoomID: roomID,
		UserID: userID,
	})
	return nil
}

// Run consumes session-disconnect notifications and performs the
// implicit leave for abrupt disconnects, so network loss does not leave
// ghost participants. Blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, events <-chan domain.SessionDisconnected) {
	l := log.L()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.RoomID == 0 {
				continue
			}
			if err := t.Leave(ctx, ev.RoomID, ev.UserID); err != nil {
				l.Error().Err(err).
					Int64(log.FieldUserID, ev.UserID).
					Int64(log.FieldRoomID, ev.RoomID).
					Msg("disconnect cleanup failed")
			}
		}
	}
}

// Participants returns the presence set of a room.
func (t *Tracker) Participants(ctx context.Context, roomID int64) ([]int64, error) {
	return t.store.GetRoomUsers(ctx, roomID)
}

// ParticipantCount returns the presence count of a room.
func (t *Tracker) ParticipantCount(ctx context.Context, roomID int64) (int64, error) {
	return t.store.GetRoomUserCount(ctx, roomID)
}

// ParticipantCounts batch-resolves presence counts for several rooms.
func (t *Tracker) ParticipantCounts(ctx context.Context, roomIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(roomIDs))
	for _, roomID := range lo.Uniq(roomIDs) {
		count, err := t.store.GetRoomUserCount(ctx, roomID)
		if err != nil {
			return nil, err
		}
		counts[roomID] = count
	}
	return counts, nil
}

// IsUserInRoom reports whether a user is currently present in a room.
func (t *Tracker) IsUserInRoom(ctx context.Context, roomID, userID int64) (bool, error) {
	users, err := t.store.GetRoomUsers(ctx, roomID)
	if err != nil {
		return false, err
	}
	return lo.Contains(users, userID), nil
}

// UpdateAvatar changes a participant's avatar and announces it.
func (t *Tracker) UpdateAvatar(ctx context.Context, roomID, userID, avatarID int64) error {
	present, err := t.IsUserInRoom(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !present {
		return session.ErrSessionNotFound
	}

	t.saveAvatar(ctx, roomID, userID, avatarID)
	t.broadcaster.SendToRoom(roomID, &domain.AvatarChangedMessage{
		Type:     domain.MsgTypeAvatarChanged,
		RoomID:   roomID,
		UserID:   userID,
		AvatarID: avatarID,
	})
	return nil
}

// Avatar returns a participant's avatar id, 0 when unset.
func (t *Tracker) Avatar(ctx context.Context, roomID, userID int64) int64 {
	val, ok, err := t.store.GetValue(ctx, store.AvatarKey(roomID, userID))
	if err != nil || !ok {
		return 0
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (t *Tracker) saveAvatar(ctx context.Context, roomID, userID, avatarID int64) {
	if err := t.store.SaveValue(ctx, store.AvatarKey(roomID, userID), strconv.FormatInt(avatarID, 10)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).
			Int64(log.FieldUserID, userID).
			Int64(log.FieldRoomID, roomID).
			Msg("avatar save failed")
	}
}

func (t *Tracker) broadcastJoined(ctx context.Context, roomID, userID, avatarID int64) {
	l := log.Ctx(ctx)

	msg := &domain.UserJoinedMessage{
		Type:     domain.MsgTypeUserJoined,
		RoomID:   roomID,
		UserID:   userID,
		AvatarID: avatarID,
	}

	profile, err := t.users.GetProfile(ctx, userID)
	if err != nil {
		l.Warn().Err(err).Int64(log.FieldUserID, userID).Msg("profile lookup failed for join broadcast")
	}
	if profile != nil {
		msg.Nickname = profile.Nickname
		msg.ProfileImageURL = profile.ProfileImageURL
	}

	t.broadcaster.SendToRoom(roomID, msg)
}
