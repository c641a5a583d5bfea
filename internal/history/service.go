package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/studyhive/realtime-service/internal/domain"
	"github.com/studyhive/realtime-service/internal/repository"
	"github.com/studyhive/realtime-service/pkg/log"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is one page of room history, newest first.
type Page struct {
	Messages []domain.ChatMessage `json:"messages"`
	Page     int                  `json:"page"`
	Size     int                  `json:"size"`
	HasMore  bool                 `json:"has_more"`
}

// Service serves paged room history with a read-through cache.
type Service interface {
	GetRoomHistory(ctx context.Context, roomID int64, page, size int, before time.Time) (*Page, error)

	// InvalidateRoom drops every cached page of a room. Called after a
	// moderation purge so stale pages never survive the delete.
	InvalidateRoom(ctx context.Context, roomID int64)
}

type service struct {
	repo     repository.MessageRepository
	cache    PageCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewService creates the history service. A nil cache disables caching.
func NewService(repo repository.MessageRepository, cache PageCache, cacheTTL time.Duration) Service {
	return &service{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (s *service) GetRoomHistory(ctx context.Context, roomID int64, page, size int, before time.Time) (*Page, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	// The first page changes on every new message; serve it straight
	// from the repository so readers see fresh history.
	if s.cache == nil || (page == 0 && before.IsZero()) {
		messages, hasMore, err := s.repo.FindByRoom(ctx, roomID, page, size, before)
		if err != nil {
			return nil, fmt.Errorf("failed to get messages from repository: %w", err)
		}
		return &Page{Messages: messages, Page: page, Size: size, HasMore: hasMore}, nil
	}

	cacheKey := s.cache.BuildKey(roomID, page, size, before)

	result, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx, roomID, page, size, before, cacheKey)
	})
	if err != nil {
		return nil, err
	}

	pageResult, ok := result.(*PageResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	return &Page{
		Messages: pageResult.Messages,
		Page:     page,
		Size:     size,
		HasMore:  pageResult.HasMore,
	}, nil
}

func (s *service) InvalidateRoom(ctx context.Context, roomID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, roomID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache invalidation error")
	}
}

func (s *service) fetchWithCache(ctx context.Context, roomID int64, page, size int, before time.Time, cacheKey string) (*PageResult, error) {
	cached, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	messages, hasMore, err := s.repo.FindByRoom(ctx, roomID, page, size, before)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from repository: %w", err)
	}

	result := &PageResult{Messages: messages, HasMore: hasMore}

	// Store asynchronously so a slow cache never delays the response.
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Set(cacheCtx, cacheKey, result, s.cacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("cache set error")
		}
	}()

	return result, nil
}
