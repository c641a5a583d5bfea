package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studyhive/realtime-service/internal/domain"
	"github.com/studyhive/realtime-service/internal/session"
	"github.com/studyhive/realtime-service/internal/store"
)

type fakeDirectory struct {
	profiles map[int64]*domain.UserProfile
}

func (d *fakeDirectory) GetProfile(_ context.Context, userID int64) (*domain.UserProfile, error) {
	return d.profiles[userID], nil
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	sends []broadcastCall
}

type broadcastCall struct {
	roomID  int64
	payload interface{}
}

func (b *recordingBroadcaster) SendToRoom(roomID int64, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends = append(b.sends, broadcastCall{roomID: roomID, payload: payload})
}

func (b *recordingBroadcaster) calls() []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcastCall, len(b.sends))
	copy(out, b.sends)
	return out
}

func newTestTracker(cfg Config) (*Tracker, *store.MemoryStore, *recordingBroadcaster) {
	s := store.NewMemoryStore(6 * time.Minute)
	b := &recordingBroadcaster{}
	dir := &fakeDirectory{profiles: map[int64]*domain.UserProfile{
		1: {UserID: 1, Nickname: "alice"},
		2: {UserID: 2, Nickname: "bob"},
	}}
	return NewTracker(s, dir, b, cfg), s, b
}

func connect(t *testing.T, s *store.MemoryStore, userID int64, sessionID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveSession(ctx, userID, domain.NewSessionInfo(userID, sessionID, time.Now())))
	require.NoError(t, s.MapSessionToUser(ctx, sessionID, userID))
}

func TestTracker_JoinRequiresLiveSession(t *testing.T) {
	req := require.New(t)
	tracker, _, _ := newTestTracker(Config{})

	err := tracker.Join(context.Background(), 7, 1, 0)
	req.ErrorIs(err, session.ErrSessionNotFound)
}

func TestTracker_JoinAddsParticipantAndBroadcasts(t *testing.T) {
	req := require.New(t)
	tracker, s, b := newTestTracker(Config{})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")

	req.NoError(tracker.Join(ctx, 7, 1, 3))

	present, err := tracker.IsUserInRoom(ctx, 7, 1)
	req.NoError(err)
	req.True(present)

	info, err := s.GetSession(ctx, 1)
	req.NoError(err)
	req.Equal(int64(7), info.CurrentRoomID)

	req.Equal(int64(3), tracker.Avatar(ctx, 7, 1))

	calls := b.calls()
	req.Len(calls, 1)
	joined, ok := calls[0].payload.(*domain.UserJoinedMessage)
	req.True(ok)
	req.Equal(int64(1), joined.UserID)
	req.Equal("alice", joined.Nickname)
}

func TestTracker_JoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	tracker, s, b := newTestTracker(Config{})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")

	req.NoError(tracker.Join(ctx, 7, 1, 0))
	req.NoError(tracker.Join(ctx, 7, 1, 0))

	count, err := tracker.ParticipantCount(ctx, 7)
	req.NoError(err)
	req.Equal(int64(1), count)

	// Only the first join announces
	req.Len(b.calls(), 1)
}

func TestTracker_JoinSwitchesRooms(t *testing.T) {
	req := require.New(t)
	tracker, s, _ := newTestTracker(Config{})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")

	req.NoError(tracker.Join(ctx, 7, 1, 0))
	req.NoError(tracker.Join(ctx, 8, 1, 0))

	inOld, err := tracker.IsUserInRoom(ctx, 7, 1)
	req.NoError(err)
	req.False(inOld)

	inNew, err := tracker.IsUserInRoom(ctx, 8, 1)
	req.NoError(err)
	req.True(inNew)

	info, err := s.GetSession(ctx, 1)
	req.NoError(err)
	req.Equal(int64(8), info.CurrentRoomID)
}

func TestTracker_JoinRejectsFullRoom(t *testing.T) {
	req := require.New(t)
	tracker, s, _ := newTestTracker(Config{MaxParticipants: 1})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")
	connect(t, s, 2, "sess-2")

	req.NoError(tracker.Join(ctx, 7, 1, 0))

	err := tracker.Join(ctx, 7, 2, 0)
	req.ErrorIs(err, ErrRoomFull)

	count, err := tracker.ParticipantCount(ctx, 7)
	req.NoError(err)
	req.Equal(int64(1), count)
}

func TestTracker_RejoinOfFullRoomStillSucceeds(t *testing.T) {
	req := require.New(t)
	tracker, s, _ := newTestTracker(Config{MaxParticipants: 1})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")

	req.NoError(tracker.Join(ctx, 7, 1, 0))

	// The room is at capacity, but the user is already inside
	req.NoError(tracker.Join(ctx, 7, 1, 0))
}

func TestTracker_LeaveRemovesParticipant(t *testing.T) {
	req := require.New(t)
	tracker, s, b := newTestTracker(Config{})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")

	req.NoError(tracker.Join(ctx, 7, 1, 3))
	req.NoError(tracker.Leave(ctx, 7, 1))

	present, err := tracker.IsUserInRoom(ctx, 7, 1)
	req.NoError(err)
	req.False(present)

	info, err := s.GetSession(ctx, 1)
	req.NoError(err)
	req.Equal(int64(0), info.CurrentRoomID)

	// Avatar state is dropped with the participant
	req.Equal(int64(0), tracker.Avatar(ctx, 7, 1))

	calls := b.calls()
	req.Len(calls, 2)
	left, ok := calls[1].payload.(*domain.UserLeftMessage)
	req.True(ok)
	req.Equal(int64(1), left.UserID)
}

func TestTracker_LeaveIsIdempotent(t *testing.T) {
	req := require.New(t)
	tracker, s, _ := newTestTracker(Config{})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")

	// Leaving a room the user never joined succeeds
	req.NoError(tracker.Leave(ctx, 7, 1))
}

func TestTracker_RunCleansUpOnDisconnect(t *testing.T) {
	req := require.New(t)
	tracker, s, _ := newTestTracker(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connect(t, s, 1, "sess-1")

	req.NoError(tracker.Join(ctx, 7, 1, 0))

	events := make(chan domain.SessionDisconnected, 1)
	events <- domain.SessionDisconnected{UserID: 1, SessionID: "sess-1", RoomID: 7}
	close(events)

	tracker.Run(ctx, events)

	present, err := tracker.IsUserInRoom(ctx, 7, 1)
	req.NoError(err)
	req.False(present)
}

func TestTracker_RunSkipsDisconnectsOutsideRooms(t *testing.T) {
	req := require.New(t)
	tracker, s, b := newTestTracker(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connect(t, s, 1, "sess-1")

	events := make(chan domain.SessionDisconnected, 1)
	events <- domain.SessionDisconnected{UserID: 1, SessionID: "sess-1", RoomID: 0}
	close(events)

	tracker.Run(ctx, events)

	req.Empty(b.calls())
}

func TestTracker_UpdateAvatarRequiresPresence(t *testing.T) {
	req := require.New(t)
	tracker, s, b := newTestTracker(Config{})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")

	err := tracker.UpdateAvatar(ctx, 7, 1, 5)
	req.ErrorIs(err, session.ErrSessionNotFound)

	req.NoError(tracker.Join(ctx, 7, 1, 0))
	req.NoError(tracker.UpdateAvatar(ctx, 7, 1, 5))
	req.Equal(int64(5), tracker.Avatar(ctx, 7, 1))

	calls := b.calls()
	changed, ok := calls[len(calls)-1].payload.(*domain.AvatarChangedMessage)
	req.True(ok)
	req.Equal(int64(5), changed.AvatarID)
}

func TestTracker_ParticipantCounts(t *testing.T) {
	req := require.New(t)
	tracker, s, _ := newTestTracker(Config{})
	ctx := context.Background()
	connect(t, s, 1, "sess-1")
	connect(t, s, 2, "sess-2")

	req.NoError(tracker.Join(ctx, 7, 1, 0))
	req.NoError(tracker.Join(ctx, 8, 2, 0))

	counts, err := tracker.ParticipantCounts(ctx, []int64{7, 8, 9, 7})
	req.NoError(err)
	req.Equal(int64(1), counts[7])
	req.Equal(int64(1), counts[8])
	req.Equal(int64(0), counts[9])
}
