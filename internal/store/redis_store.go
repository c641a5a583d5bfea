package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studyhive/realtime-service/internal/domain"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// redisStore implements SessionStore using Redis.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store. All entries are
// written with the given TTL.
func NewRedisStore(cfg RedisConfig, ttl time.Duration) (SessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisStore{client: client, ttl: ttl}, nil
}

func (s *redisStore) SaveSession(ctx context.Context, userID int64, info domain.SessionInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return wrapUnavailable(err)
	}
	if err := s.client.Set(ctx, userSessionKey(userID), data, s.ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *redisStore) GetSession(ctx context.Context, userID int64) (*domain.SessionInfo, error) {
	data, err := s.client.Get(ctx, userSessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, wrapUnavailable(err)
	}

	var info domain.SessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, wrapUnavailable(err)
	}
	return &info, nil
}

func (s *redisStore) DeleteSession(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, userSessionKey(userID)).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *redisStore) MapSessionToUser(ctx context.Context, sessionID string, userID int64) error {
	if err := s.client.Set(ctx, sessionUserKey(sessionID), userID, s.ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *redisStore) LookupUserBySession(ctx context.Context, sessionID string) (int64, bool, error) {
	val, err := s.client.Get(ctx, sessionUserKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, wrapUnavailable(err)
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, wrapUnavailable(err)
	}
	return userID, true, nil
}

func (s *redisStore) UnmapSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionUserKey(sessionID)).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *redisStore) AddUserToRoom(ctx context.Context, roomID, userID int64) error {
	key := roomUsersKey(roomID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, userID)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *redisStore) RemoveUserFromRoom(ctx context.Context, roomID, userID int64) error {
	if err := s.client.SRem(ctx, roomUsersKey(roomID), userID).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *redisStore) GetRoomUsers(ctx context.Context, roomID int64) ([]int64, error) {
	members, err := s.client.SMembers(ctx, roomUsersKey(roomID)).Result()
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	users := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		users = append(users, id)
	}
	return users, nil
}

func (s *redisStore) GetRoomUserCount(ctx context.Context, roomID int64) (int64, error) {
	count, err := s.client.SCard(ctx, roomUsersKey(roomID)).Result()
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	return count, nil
}

func (s *redisStore) CountActiveSessions(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, userSessionPattern(), 100).Result()
		if err != nil {
			return 0, wrapUnavailable(err)
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return total, nil
}

func (s *redisStore) SaveValue(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *redisStore) GetValue(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, wrapUnavailable(err)
	}
	return val, true, nil
}

func (s *redisStore) DeleteValue(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
