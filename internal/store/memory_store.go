package store

import (
	"context"
	"sync"
	"time"

	"github.com/studyhive/realtime-service/internal/domain"
)

// MemoryStore is an in-process SessionStore with lazy TTL expiry. It
// backs single-node development mode and the test suites; semantics
// match the Redis implementation key for key.
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]entry              // userID -> session
	mappings map[string]mappingEntry      // sessionID -> userID
	rooms    map[int64]map[int64]struct{} // roomID -> set of userIDs
	roomExp  map[int64]time.Time
	values   map[string]valueEntry
}

type entry struct {
	info      domain.SessionInfo
	expiresAt time.Time
}

type mappingEntry struct {
	userID    int64
	expiresAt time.Time
}

type valueEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory session store with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]entry),
		mappings: make(map[string]mappingEntry),
		rooms:    make(map[int64]map[int64]struct{}),
		roomExp:  make(map[int64]time.Time),
		values:   make(map[string]valueEntry),
	}
}

// SetClock overrides the time source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) SaveSession(_ context.Context, userID int64, info domain.SessionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = entry{info: info, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, userID int64) (*domain.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[userID]
	if !ok || s.now().After(e.expiresAt) {
		return nil, nil
	}
	info := e.info
	return &info, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *MemoryStore) MapSessionToUser(_ context.Context, sessionID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[sessionID] = mappingEntry{userID: userID, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) LookupUserBySession(_ context.Context, sessionID string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[sessionID]
	if !ok || s.now().After(m.expiresAt) {
		return 0, false, nil
	}
	return m.userID, true, nil
}

func (s *MemoryStore) UnmapSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mappings, sessionID)
	return nil
}

func (s *MemoryStore) AddUserToRoom(_ context.Context, roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireRoomLocked(roomID)
	if _, ok := s.rooms[roomID]; !ok {
		s.rooms[roomID] = make(map[int64]struct{})
	}
	s.rooms[roomID][userID] = struct{}{}
	s.roomExp[roomID] = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) RemoveUserFromRoom(_ context.Context, roomID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireRoomLocked(roomID)
	if members, ok := s.rooms[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(s.rooms, roomID)
			delete(s.roomExp, roomID)
		}
	}
	return nil
}

func (s *MemoryStore) GetRoomUsers(_ context.Context, roomID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireRoomLocked(roomID)
	members := s.rooms[roomID]
	users := make([]int64, 0, len(members))
	for id := range members {
		users = append(users, id)
	}
	return users, nil
}

func (s *MemoryStore) GetRoomUserCount(_ context.Context, roomID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireRoomLocked(roomID)
	return int64(len(s.rooms[roomID])), nil
}

func (s *MemoryStore) CountActiveSessions(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var total int64
	for _, e := range s.sessions {
		if !now.After(e.expiresAt) {
			total++
		}
	}
	return total, nil
}

func (s *MemoryStore) SaveValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = valueEntry{value: value, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) GetValue(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok || s.now().After(v.expiresAt) {
		return "", false, nil
	}
	return v.value, true, nil
}

func (s *MemoryStore) DeleteValue(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// SessionExpiry exposes a session entry's deadline. Test hook.
func (s *MemoryStore) SessionExpiry(userID int64) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

func (s *MemoryStore) expireRoomLocked(roomID int64) {
	if exp, ok := s.roomExp[roomID]; ok && s.now().After(exp) {
		delete(s.rooms, roomID)
		delete(s.roomExp, roomID)
	}
}
