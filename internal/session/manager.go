package session

import (
	"context"
	"time"

	"github.com/studyhive/realtime-service/internal/domain"
	"github.com/studyhive/realtime-service/internal/store"
	"github.com/studyhive/realtime-service/pkg/log"
)

const eventBufferSize = 256

type manager struct {
	store  store.SessionStore
	events chan domain.SessionDisconnected
	now    func() time.Time
}

// NewManager creates a session manager over the given store.
func NewManager(s store.SessionStore) Manager {
	return &manager{
		store:  s,
		events: make(chan domain.SessionDisconnected, eventBufferSize),
		now:    time.Now,
	}
}

func (m *manager) OnConnect(ctx context.Context, userID int64, sessionID string) error {
	l := log.Ctx(ctx)

	// Supersede any prior session for this user. The old reverse mapping
	// is revoked here rather than left to lapse with its TTL, so a
	// late disconnect for the old transport session cannot tear down
	// the new session's state.
	existing, err := m.store.GetSession(ctx, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := m.store.UnmapSession(ctx, existing.SessionID); err != nil {
			l.Warn().Err(err).
				Int64(log.FieldUserID, userID).
				Str(log.FieldSessionID, existing.SessionID).
				Msg("failed to unmap superseded session")
		}
		m.emit(domain.SessionDisconnected{
			UserID:    userID,
			SessionID: existing.SessionID,
			RoomID:    existing.CurrentRoomID,
		})
		l.Info().Int64(log.FieldUserID, userID).Msg("superseded prior session")
	}

	info := domain.NewSessionInfo(userID, sessionID, m.now())
	if err := m.store.SaveSession(ctx, userID, info); err != nil {
		return err
	}
	if err := m.store.MapSessionToUser(ctx, sessionID, userID); err != nil {
		return err
	}

	l.Info().
		Int64(log.FieldUserID, userID).
		Str(log.FieldSessionID, sessionID).
		Msg("session registered")
	return nil
}

func (m *manager) OnHeartbeat(ctx context.Context, userID int64) {
	l := log.Ctx(ctx)

	info, err := m.store.GetSession(ctx, userID)
	if err != nil {
		// Best-effort path: a missed TTL refresh is harmless, the next
		// heartbeat retries.
		l.Warn().Err(err).Int64(log.FieldUserID, userID).Msg("heartbeat: session fetch failed")
		return
	}
	if info == nil {
		// Expired sessions are not resurrected; the client must reconnect.
		l.Debug().Int64(log.FieldUserID, userID).Msg("heartbeat for absent session ignored")
		return
	}

	updated := info.WithActivity(m.now())
	if err := m.store.SaveSession(ctx, userID, updated); err != nil {
		l.Warn().Err(err).Int64(log.FieldUserID, userID).Msg("heartbeat: session save failed")
		return
	}

	l.Debug().Int64(log.FieldUserID, userID).Msg("heartbeat processed, ttl extended")
}

func (m *manager) OnDisconnect(ctx context.Context, sessionID string) {
	l := log.Ctx(ctx)

	userID, ok, err := m.store.LookupUserBySession(ctx, sessionID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("disconnect: reverse lookup failed")
		return
	}
	if !ok {
		l.Debug().Str(log.FieldSessionID, sessionID).Msg("disconnect for unknown session ignored")
		return
	}

	var roomID int64
	info, err := m.store.GetSession(ctx, userID)
	if err != nil {
		l.Warn().Err(err).Int64(log.FieldUserID, userID).Msg("disconnect: session fetch failed")
	}
	if info != nil {
		roomID = info.CurrentRoomID
		// Only remove the canonical entry when it still belongs to this
		// transport session; a reconnect may already have replaced it.
		if info.SessionID == sessionID {
			if err := m.store.DeleteSession(ctx, userID); err != nil {
				l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("disconnect: session delete failed")
			}
		}
	}
	if err := m.store.UnmapSession(ctx, sessionID); err != nil {
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("disconnect: unmap failed")
	}

	m.emit(domain.SessionDisconnected{
		UserID:    userID,
		SessionID: sessionID,
		RoomID:    roomID,
	})

	l.Info().
		Int64(log.FieldUserID, userID).
		Str(log.FieldSessionID, sessionID).
		Msg("session terminated")
}

func (m *manager) Events() <-chan domain.SessionDisconnected {
	return m.events
}

func (m *manager) IsConnected(ctx context.Context, userID int64) (bool, error) {
	info, err := m.store.GetSession(ctx, userID)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

func (m *manager) SessionInfo(ctx context.Context, userID int64) (*domain.SessionInfo, error) {
	info, err := m.store.GetSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrSessionNotFound
	}
	return info, nil
}

func (m *manager) CurrentRoomID(ctx context.Context, userID int64) int64 {
	info, err := m.store.GetSession(ctx, userID)
	if err != nil || info == nil {
		return 0
	}
	return info.CurrentRoomID
}

func (m *manager) OnlineUserCount(ctx context.Context) (int64, error) {
	return m.store.CountActiveSessions(ctx)
}

func (m *manager) emit(ev domain.SessionDisconnected) {
	select {
	case m.events <- ev:
	default:
		l := log.L()
		l.Warn().
			Int64(log.FieldUserID, ev.UserID).
			Msg("disconnect event dropped, buffer full")
	}
}
