package relay

import (
	"context"
	"errors"
	"time"

	"github.com/studyhive/realtime-service/internal/domain"
	"github.com/studyhive/realtime-service/internal/repository"
	"github.com/studyhive/realtime-service/internal/session"
	"github.com/studyhive/realtime-service/pkg/log"
)

var (
	// ErrNotRoomMember marks a chat or signaling action by a user not
	// currently present in the target room.
	ErrNotRoomMember = errors.New("not a room member")

	// ErrSelfSignal marks a signaling message where sender equals target.
	ErrSelfSignal = errors.New("cannot signal self")

	// ErrTargetOffline marks a signal whose target has no live session.
	ErrTargetOffline = errors.New("signal target offline")

	// ErrForbidden marks a moderation action without the required role.
	ErrForbidden = errors.New("forbidden")
)

// Presence is the membership view the relay validates against.
type Presence interface {
	IsUserInRoom(ctx context.Context, roomID, userID int64) (bool, error)
}

// Broadcaster is the transport-side delivery collaborator. Both methods
// are fire-and-forget; the relay offers at-most-once delivery.
type Broadcaster interface {
	SendToRoom(roomID int64, payload interface{})
	SendToUser(userID int64, payload interface{})
}

// Relay ingests inbound real-time messages, persists chat, and delivers
// to room subscribers or a specific target. Within one room, delivery
// order follows the order sends are processed.
type Relay struct {
	presence    Presence
	sessions    session.Manager
	messages    repository.MessageRepository
	memberships repository.MembershipRepository
	users       repository.UserDirectory
	broadcaster Broadcaster
	now         func() time.Time
}

// NewRelay creates a message relay.
func NewRelay(
	p Presence,
	sessions session.Manager,
	messages repository.MessageRepository,
	memberships repository.MembershipRepository,
	users repository.UserDirectory,
	b Broadcaster,
) *Relay {
	return &Relay{
		presence:    p,
		sessions:    sessions,
		messages:    messages,
		memberships: memberships,
		users:       users,
		broadcaster: b,
		now:         time.Now,
	}
}

// SendChat persists one chat message and broadcasts it to the room.
func (r *Relay) SendChat(ctx context.Context, roomID, userID int64, content string) (*domain.ChatMessage, error) {
	present, err := r.presence.IsUserInRoom(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, ErrNotRoomMember
	}

	nickname := r.resolveNickname(ctx, userID)
	msg, err := r.messages.SaveMessage(ctx, roomID, userID, nickname, content)
	if err != nil {
		return nil, err
	}

	r.broadcaster.SendToRoom(roomID, &domain.ChatBroadcastMessage{
		Type:    domain.MsgTypeChatMessage,
		Message: *msg,
	})

	l := log.Ctx(ctx)
	l.Debug().
		Int64(log.FieldUserID, userID).
		Int64(log.FieldRoomID, roomID).
		Msg("chat message relayed")
	return msg, nil
}

// SendSignal relays a peer-to-peer negotiation payload to one target in
// the same room. The payload is not interpreted or persisted. ICE
// candidates to an offline target are dropped silently; offers and
// answers surface ErrTargetOffline.
func (r *Relay) SendSignal(ctx context.Context, roomID, fromUserID int64, msg domain.SignalMessage) error {
	if fromUserID == msg.TargetUserID {
		return ErrSelfSignal
	}

	fromPresent, err := r.presence.IsUserInRoom(ctx, roomID, fromUserID)
	if err != nil {
		return err
	}
	if !fromPresent {
		return ErrNotRoomMember
	}

	targetPresent, err := r.presence.IsUserInRoom(ctx, roomID, msg.TargetUserID)
	if err != nil {
		return err
	}
	if !targetPresent {
		return ErrNotRoomMember
	}

	if _, err := r.sessions.SessionInfo(ctx, msg.TargetUserID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			if msg.Type == domain.MsgTypeWebRTCIce {
				l := log.Ctx(ctx)
				l.Debug().
					Int64(log.FieldUserID, msg.TargetUserID).
					Msg("ice candidate dropped, target offline")
				return nil
			}
			return ErrTargetOffline
		}
		return err
	}

	r.broadcaster.SendToUser(msg.TargetUserID, &domain.SignalRelayMessage{
		Type:         domain.MsgTypeWebRTCSignal,
		SignalType:   msg.Type,
		RoomID:       roomID,
		FromUserID:   fromUserID,
		TargetUserID: msg.TargetUserID,
		Payload:      msg.Payload,
		MediaType:    msg.MediaType,
	})

	l := log.Ctx(ctx)
	l.Debug().
		Int64(log.FieldUserID, fromUserID).
		Int64(log.FieldRoomID, roomID).
		Str(log.FieldMsgType, msg.Type).
		Msg("signal relayed")
	return nil
}

// ToggleMedia broadcasts a participant's camera/mic state to the room.
func (r *Relay) ToggleMedia(ctx context.Context, roomID, userID int64, mediaType string, enabled bool) error {
	present, err := r.presence.IsUserInRoom(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !present {
		return ErrNotRoomMember
	}

	r.broadcaster.SendToRoom(roomID, &domain.MediaStateMessage{
		Type:      domain.MsgTypeMediaState,
		RoomID:    roomID,
		UserID:    userID,
		Nickname:  r.resolveNickname(ctx, userID),
		MediaType: mediaType,
		Enabled:   enabled,
	})
	return nil
}

// ClearRoom deletes all messages of a room (moderation) and broadcasts
// a cleared notification naming the acting user and deleted count.
// Requires host or sub-host membership.
func (r *Relay) ClearRoom(ctx context.Context, roomID, userID int64) (*domain.ChatClearedMessage, error) {
	membership, err := r.memberships.FindMembership(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, ErrNotRoomMember
	}
	if !membership.CanManageChat() {
		return nil, ErrForbidden
	}

	count, err := r.messages.DeleteAllByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	cleared := &domain.ChatClearedMessage{
		Type:         domain.MsgTypeChatCleared,
		RoomID:       roomID,
		ClearedBy:    userID,
		Nickname:     r.resolveNickname(ctx, userID),
		Role:         membership.Role,
		DeletedCount: count,
		ClearedAt:    r.now().UTC(),
	}
	r.broadcaster.SendToRoom(roomID, cleared)

	l := log.Ctx(ctx)
	l.Info().
		Int64(log.FieldUserID, userID).
		Int64(log.FieldRoomID, roomID).
		Int("deleted_count", count).
		Msg("room chat cleared")
	return cleared, nil
}

func (r *Relay) resolveNickname(ctx context.Context, userID int64) string {
	profile, err := r.users.GetProfile(ctx, userID)
	if err != nil || profile == nil {
		return ""
	}
	return profile.Nickname
}
