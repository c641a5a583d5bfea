package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studyhive/realtime-service/internal/domain"
)

type fakeRepo struct {
	mu       sync.Mutex
	messages map[int64][]domain.ChatMessage
	queries  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{messages: make(map[int64][]domain.ChatMessage)}
}

func (r *fakeRepo) add(roomID int64, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		r.messages[roomID] = append(r.messages[roomID], domain.ChatMessage{
			MessageID: fmt.Sprintf("msg-%d", len(r.messages[roomID])+1),
			RoomID:    roomID,
			Content:   "line",
			CreatedAt: time.Now(),
		})
	}
}

func (r *fakeRepo) SaveMessage(_ context.Context, roomID, userID int64, nickname, content string) (*domain.ChatMessage, error) {
	r.add(roomID, 1)
	msg := r.messages[roomID][len(r.messages[roomID])-1]
	return &msg, nil
}

func (r *fakeRepo) FindByRoom(_ context.Context, roomID int64, page, size int, _ time.Time) ([]domain.ChatMessage, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++

	all := r.messages[roomID]
	start := page * size
	if start >= len(all) {
		return nil, false, nil
	}
	end := start + size
	hasMore := end < len(all)
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], hasMore, nil
}

func (r *fakeRepo) DeleteAllByRoom(_ context.Context, roomID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := len(r.messages[roomID])
	delete(r.messages, roomID)
	return count, nil
}

func (r *fakeRepo) CountByRoom(_ context.Context, roomID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[roomID]), nil
}

func (r *fakeRepo) queryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*PageResult
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*PageResult)}
}

func (c *memoryCache) BuildKey(roomID int64, page, size int, before time.Time) string {
	cursor := "start"
	if !before.IsZero() {
		cursor = fmt.Sprintf("%d", before.UnixMilli())
	}
	return fmt.Sprintf("test:%d:%d:%d:%s", roomID, page, size, cursor)
}

func (c *memoryCache) Get(_ context.Context, key string) (*PageResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if result, ok := c.entries[key]; ok {
		return result, nil
	}
	return nil, ErrCacheMiss
}

func (c *memoryCache) Set(_ context.Context, key string, result *PageResult, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, roomID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := fmt.Sprintf("test:%d:", roomID)
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memoryCache) Close() error { return nil }

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func waitForCache(t *testing.T, c *memoryCache, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.size() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("cache never reached %d entries", n)
}

func TestService_DefaultAndMaxPageSize(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.add(7, 30)
	svc := NewService(repo, nil, time.Minute)
	ctx := context.Background()

	// Zero size falls back to the default
	page, err := svc.GetRoomHistory(ctx, 7, 0, 0, time.Time{})
	req.NoError(err)
	req.Equal(20, page.Size)
	req.Len(page.Messages, 20)
	req.True(page.HasMore)

	// Oversized requests are clamped
	page, err = svc.GetRoomHistory(ctx, 7, 0, 500, time.Time{})
	req.NoError(err)
	req.Equal(100, page.Size)
	req.Len(page.Messages, 30)
	req.False(page.HasMore)
}

func TestService_NegativePageIsClamped(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.add(7, 5)
	svc := NewService(repo, nil, time.Minute)

	page, err := svc.GetRoomHistory(context.Background(), 7, -3, 10, time.Time{})
	req.NoError(err)
	req.Equal(0, page.Page)
	req.Len(page.Messages, 5)
}

func TestService_FirstPageBypassesCache(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.add(7, 5)
	cache := newMemoryCache()
	svc := NewService(repo, cache, time.Minute)
	ctx := context.Background()

	_, err := svc.GetRoomHistory(ctx, 7, 0, 10, time.Time{})
	req.NoError(err)
	_, err = svc.GetRoomHistory(ctx, 7, 0, 10, time.Time{})
	req.NoError(err)

	// Both reads hit the repository, nothing was cached
	req.Equal(2, repo.queryCount())
	req.Zero(cache.size())
}

func TestService_LaterPagesAreCached(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.add(7, 30)
	cache := newMemoryCache()
	svc := NewService(repo, cache, time.Minute)
	ctx := context.Background()

	page, err := svc.GetRoomHistory(ctx, 7, 1, 10, time.Time{})
	req.NoError(err)
	req.Len(page.Messages, 10)
	waitForCache(t, cache, 1)

	// The second read is served from cache
	page, err = svc.GetRoomHistory(ctx, 7, 1, 10, time.Time{})
	req.NoError(err)
	req.Len(page.Messages, 10)
	req.Equal(1, repo.queryCount())
}

func TestService_InvalidateRoomDropsCachedPages(t *testing.T) {
	req := require.New(t)
	repo := newFakeRepo()
	repo.add(7, 30)
	cache := newMemoryCache()
	svc := NewService(repo, cache, time.Minute)
	ctx := context.Background()

	_, err := svc.GetRoomHistory(ctx, 7, 1, 10, time.Time{})
	req.NoError(err)
	waitForCache(t, cache, 1)

	svc.InvalidateRoom(ctx, 7)
	req.Zero(cache.size())

	// The next read goes back to the repository
	_, err = svc.GetRoomHistory(ctx, 7, 1, 10, time.Time{})
	req.NoError(err)
	req.Equal(2, repo.queryCount())
}
