package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studyhive/realtime-service/internal/store"
)

func TestManager_ConnectLifecycle(t *testing.T) {
	req := require.New(t)
	s := store.NewMemoryStore(6 * time.Minute)
	m := NewManager(s)
	ctx := context.Background()

	// Given no session
	connected, err := m.IsConnected(ctx, 42)
	req.NoError(err)
	req.False(connected)

	// When the user connects
	req.NoError(m.OnConnect(ctx, 42, "sess-1"))

	// Then the session is live and resolvable both ways
	connected, err = m.IsConnected(ctx, 42)
	req.NoError(err)
	req.True(connected)

	info, err := m.SessionInfo(ctx, 42)
	req.NoError(err)
	req.Equal("sess-1", info.SessionID)
	req.Equal(int64(0), info.CurrentRoomID)

	userID, ok, err := s.LookupUserBySession(ctx, "sess-1")
	req.NoError(err)
	req.True(ok)
	req.Equal(int64(42), userID)
}

func TestManager_DisconnectTearsDownSession(t *testing.T) {
	req := require.New(t)
	s := store.NewMemoryStore(6 * time.Minute)
	m := NewManager(s)
	ctx := context.Background()

	req.NoError(m.OnConnect(ctx, 42, "sess-1"))

	m.OnDisconnect(ctx, "sess-1")

	connected, err := m.IsConnected(ctx, 42)
	req.NoError(err)
	req.False(connected)

	_, ok, err := s.LookupUserBySession(ctx, "sess-1")
	req.NoError(err)
	req.False(ok)

	// And a disconnect event was emitted
	select {
	case ev := <-m.Events():
		req.Equal(int64(42), ev.UserID)
		req.Equal("sess-1", ev.SessionID)
		req.Equal(int64(0), ev.RoomID)
	default:
		t.Fatal("expected a disconnect event")
	}
}

func TestManager_DisconnectUnknownSessionIsNoop(t *testing.T) {
	req := require.New(t)
	s := store.NewMemoryStore(6 * time.Minute)
	m := NewManager(s)
	ctx := context.Background()

	m.OnDisconnect(ctx, "never-existed")

	select {
	case <-m.Events():
		t.Fatal("no event expected for an unknown session")
	default:
	}
	req.NotNil(m.Events())
}

func TestManager_ReconnectSupersedesPriorSession(t *testing.T) {
	req := require.New(t)
	s := store.NewMemoryStore(6 * time.Minute)
	m := NewManager(s)
	ctx := context.Background()

	// Given a live session
	req.NoError(m.OnConnect(ctx, 42, "sess-old"))

	// When the same user connects again
	req.NoError(m.OnConnect(ctx, 42, "sess-new"))

	// Then the new session is canonical
	info, err := m.SessionInfo(ctx, 42)
	req.NoError(err)
	req.Equal("sess-new", info.SessionID)

	// And the superseded reverse mapping is revoked immediately
	_, ok, err := s.LookupUserBySession(ctx, "sess-old")
	req.NoError(err)
	req.False(ok)

	// And a disconnect event was emitted for the old session
	select {
	case ev := <-m.Events():
		req.Equal("sess-old", ev.SessionID)
	default:
		t.Fatal("expected a disconnect event for the superseded session")
	}
}

func TestManager_LateDisconnectOfSupersededSessionKeepsNewSession(t *testing.T) {
	req := require.New(t)
	s := store.NewMemoryStore(6 * time.Minute)
	m := NewManager(s)
	ctx := context.Background()

	req.NoError(m.OnConnect(ctx, 42, "sess-old"))
	req.NoError(m.OnConnect(ctx, 42, "sess-new"))
	drain(m)

	// When the old transport finally reports its disconnect
	m.OnDisconnect(ctx, "sess-old")

	// Then the new canonical session survives
	connected, err := m.IsConnected(ctx, 42)
	req.NoError(err)
	req.True(connected)
}

func TestManager_HeartbeatExtendsSession(t *testing.T) {
	req := require.New(t)
	s := store.NewMemoryStore(6 * time.Minute)
	m := NewManager(s)
	ctx := context.Background()

	base := time.Now()
	s.SetClock(func() time.Time { return base })
	req.NoError(m.OnConnect(ctx, 42, "sess-1"))

	expiryBefore, ok := s.SessionExpiry(42)
	req.True(ok)

	s.SetClock(func() time.Time { return base.Add(5 * time.Minute) })
	m.OnHeartbeat(ctx, 42)

	expiryAfter, ok := s.SessionExpiry(42)
	req.True(ok)
	req.True(expiryAfter.After(expiryBefore))

	info, err := m.SessionInfo(ctx, 42)
	req.NoError(err)
	req.False(info.LastActiveAt.Before(info.ConnectedAt))
}

func TestManager_HeartbeatForAbsentSessionIsInert(t *testing.T) {
	req := require.New(t)
	s := store.NewMemoryStore(6 * time.Minute)
	m := NewManager(s)
	ctx := context.Background()

	// A heartbeat must never resurrect an expired or absent session
	m.OnHeartbeat(ctx, 42)

	connected, err := m.IsConnected(ctx, 42)
	req.NoError(err)
	req.False(connected)
}

func TestManager_SessionInfoAbsentReturnsError(t *testing.T) {
	req := require.New(t)
	m := NewManager(store.NewMemoryStore(6 * time.Minute))

	_, err := m.SessionInfo(context.Background(), 42)
	req.ErrorIs(err, ErrSessionNotFound)
}

func TestManager_OnlineUserCount(t *testing.T) {
	req := require.New(t)
	m := NewManager(store.NewMemoryStore(6 * time.Minute))
	ctx := context.Background()

	req.NoError(m.OnConnect(ctx, 1, "a"))
	req.NoError(m.OnConnect(ctx, 2, "b"))

	count, err := m.OnlineUserCount(ctx)
	req.NoError(err)
	req.Equal(int64(2), count)
}

func drain(m Manager) {
	for {
		select {
		case <-m.Events():
		default:
			return
		}
	}
}
