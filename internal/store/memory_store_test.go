package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studyhive/realtime-service/internal/domain"
)

func TestMemoryStore_SaveAndGetSession(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)
	ctx := context.Background()

	info := domain.NewSessionInfo(42, "sess-1", time.Now())
	req.NoError(s.SaveSession(ctx, 42, info))

	got, err := s.GetSession(ctx, 42)
	req.NoError(err)
	req.NotNil(got)
	req.Equal(int64(42), got.UserID)
	req.Equal("sess-1", got.SessionID)
}

func TestMemoryStore_GetSession_AbsentReturnsNil(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)

	got, err := s.GetSession(context.Background(), 999)
	req.NoError(err)
	req.Nil(got)
}

func TestMemoryStore_SessionExpiresAfterTTL(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)
	ctx := context.Background()

	base := time.Now()
	s.SetClock(func() time.Time { return base })

	req.NoError(s.SaveSession(ctx, 42, domain.NewSessionInfo(42, "sess-1", base)))
	req.NoError(s.MapSessionToUser(ctx, "sess-1", 42))

	// Advance past the TTL
	s.SetClock(func() time.Time { return base.Add(7 * time.Minute) })

	got, err := s.GetSession(ctx, 42)
	req.NoError(err)
	req.Nil(got)

	_, ok, err := s.LookupUserBySession(ctx, "sess-1")
	req.NoError(err)
	req.False(ok)
}

func TestMemoryStore_SaveSessionReArmsTTL(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)
	ctx := context.Background()

	base := time.Now()
	s.SetClock(func() time.Time { return base })
	req.NoError(s.SaveSession(ctx, 42, domain.NewSessionInfo(42, "sess-1", base)))

	// Refresh at the 5 minute mark
	s.SetClock(func() time.Time { return base.Add(5 * time.Minute) })
	info, err := s.GetSession(ctx, 42)
	req.NoError(err)
	req.NotNil(info)
	req.NoError(s.SaveSession(ctx, 42, info.WithActivity(base.Add(5*time.Minute))))

	// 7 minutes after the original save but within the refreshed TTL
	s.SetClock(func() time.Time { return base.Add(7 * time.Minute) })
	got, err := s.GetSession(ctx, 42)
	req.NoError(err)
	req.NotNil(got)
}

func TestMemoryStore_SessionMapping(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)
	ctx := context.Background()

	req.NoError(s.MapSessionToUser(ctx, "sess-1", 42))

	userID, ok, err := s.LookupUserBySession(ctx, "sess-1")
	req.NoError(err)
	req.True(ok)
	req.Equal(int64(42), userID)

	req.NoError(s.UnmapSession(ctx, "sess-1"))

	_, ok, err = s.LookupUserBySession(ctx, "sess-1")
	req.NoError(err)
	req.False(ok)
}

func TestMemoryStore_RoomMembership(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)
	ctx := context.Background()

	req.NoError(s.AddUserToRoom(ctx, 7, 1))
	req.NoError(s.AddUserToRoom(ctx, 7, 2))
	// Adding the same user twice keeps the set a set
	req.NoError(s.AddUserToRoom(ctx, 7, 2))

	users, err := s.GetRoomUsers(ctx, 7)
	req.NoError(err)
	req.ElementsMatch([]int64{1, 2}, users)

	count, err := s.GetRoomUserCount(ctx, 7)
	req.NoError(err)
	req.Equal(int64(2), count)

	req.NoError(s.RemoveUserFromRoom(ctx, 7, 1))
	count, err = s.GetRoomUserCount(ctx, 7)
	req.NoError(err)
	req.Equal(int64(1), count)
}

func TestMemoryStore_RoomSetExpires(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)
	ctx := context.Background()

	base := time.Now()
	s.SetClock(func() time.Time { return base })
	req.NoError(s.AddUserToRoom(ctx, 7, 1))

	s.SetClock(func() time.Time { return base.Add(7 * time.Minute) })

	users, err := s.GetRoomUsers(ctx, 7)
	req.NoError(err)
	req.Empty(users)
}

func TestMemoryStore_CountActiveSessions(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)
	ctx := context.Background()

	base := time.Now()
	s.SetClock(func() time.Time { return base })
	req.NoError(s.SaveSession(ctx, 1, domain.NewSessionInfo(1, "a", base)))
	req.NoError(s.SaveSession(ctx, 2, domain.NewSessionInfo(2, "b", base)))

	count, err := s.CountActiveSessions(ctx)
	req.NoError(err)
	req.Equal(int64(2), count)

	s.SetClock(func() time.Time { return base.Add(7 * time.Minute) })
	count, err = s.CountActiveSessions(ctx)
	req.NoError(err)
	req.Zero(count)
}

func TestMemoryStore_Values(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(6 * time.Minute)
	ctx := context.Background()

	key := AvatarKey(7, 42)
	req.NoError(s.SaveValue(ctx, key, "3"))

	val, ok, err := s.GetValue(ctx, key)
	req.NoError(err)
	req.True(ok)
	req.Equal("3", val)

	req.NoError(s.DeleteValue(ctx, key))
	_, ok, err = s.GetValue(ctx, key)
	req.NoError(err)
	req.False(ok)
}
