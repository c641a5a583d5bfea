package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/studyhive/realtime-service/internal/domain"
)

// CassandraConfig holds cluster connection configuration.
type CassandraConfig struct {
	Hosts          []string
	Keyspace       string
	Consistency    string
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// NewCassandraSession connects to the cluster. The returned session is
// shared by all repositories.
func NewCassandraSession(cfg CassandraConfig) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout

	switch cfg.Consistency {
	case "LOCAL_ONE":
		cluster.Consistency = gocql.LocalOne
	case "LOCAL_QUORUM":
		cluster.Consistency = gocql.LocalQuorum
	case "ONE":
		cluster.Consistency = gocql.One
	case "QUORUM":
		cluster.Consistency = gocql.Quorum
	default:
		cluster.Consistency = gocql.LocalOne
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}
	return session, nil
}

// Schema:
// messages_by_room (room_id bigint, message_id timeuuid, user_id bigint,
//   nickname text, content text, created_at timestamp,
//   PRIMARY KEY (room_id, message_id)) WITH CLUSTERING ORDER BY (message_id DESC)
// room_members (room_id bigint, user_id bigint, role text,
//   PRIMARY KEY (room_id, user_id))
// users_by_id (user_id bigint PRIMARY KEY, nickname text, profile_image_url text)

// CassandraMessageRepository implements MessageRepository.
type CassandraMessageRepository struct {
	session *gocql.Session
}

func NewCassandraMessageRepository(session *gocql.Session) *CassandraMessageRepository {
	return &CassandraMessageRepository{session: session}
}

func (r *CassandraMessageRepository) SaveMessage(ctx context.Context, roomID, userID int64, nickname, content string) (*domain.ChatMessage, error) {
	id := gocql.TimeUUID()
	createdAt := id.Time().UTC()

	if err := r.session.Query(
		`INSERT INTO messages_by_room (room_id, message_id, user_id, nickname, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		roomID, id, userID, nickname, content, createdAt,
	).WithContext(ctx).Exec(); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return &domain.ChatMessage{
		MessageID: id.String(),
		RoomID:    roomID,
		UserID:    userID,
		Nickname:  nickname,
		Content:   content,
		CreatedAt: createdAt,
	}, nil
}

func (r *CassandraMessageRepository) FindByRoom(ctx context.Context, roomID int64, page, size int, before time.Time) ([]domain.ChatMessage, bool, error) {
	// Page offsets are small here (chat backlog browsing), so the page
	// window is read in one partition scan and sliced.
	limit := (page + 1) * size
	queryLimit := limit + 1

	var iter *gocql.Iter
	if before.IsZero() {
		iter = r.session.Query(
			`SELECT message_id, user_id, nickname, content, created_at
			 FROM messages_by_room WHERE room_id = ? LIMIT ?`,
			roomID, queryLimit,
		).WithContext(ctx).Iter()
	} else {
		iter = r.session.Query(
			`SELECT message_id, user_id, nickname, content, created_at
			 FROM messages_by_room WHERE room_id = ? AND created_at < ? LIMIT ? ALLOW FILTERING`,
			roomID, before, queryLimit,
		).WithContext(ctx).Iter()
	}

	var (
		all       []domain.ChatMessage
		messageID gocql.UUID
		userID    int64
		nickname  string
		content   string
		createdAt time.Time
	)
	for iter.Scan(&messageID, &userID, &nickname, &content, &createdAt) {
		all = append(all, domain.ChatMessage{
			MessageID: messageID.String(),
			RoomID:    roomID,
			UserID:    userID,
			Nickname:  nickname,
			Content:   content,
			CreatedAt: createdAt,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to query messages: %w", err)
	}

	hasMore := len(all) > limit
	start := page * size
	if start >= len(all) {
		return []domain.ChatMessage{}, false, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], hasMore || end < len(all), nil
}

func (r *CassandraMessageRepository) DeleteAllByRoom(ctx context.Context, roomID int64) (int, error) {
	count, err := r.CountByRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}

	// Single-partition delete.
	if err := r.session.Query(
		`DELETE FROM messages_by_room WHERE room_id = ?`, roomID,
	).WithContext(ctx).Exec(); err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return count, nil
}

func (r *CassandraMessageRepository) CountByRoom(ctx context.Context, roomID int64) (int, error) {
	var count int
	if err := r.session.Query(
		`SELECT COUNT(*) FROM messages_by_room WHERE room_id = ?`, roomID,
	).WithContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// CassandraMembershipRepository implements MembershipRepository.
type CassandraMembershipRepository struct {
	session *gocql.Session
}

func NewCassandraMembershipRepository(session *gocql.Session) *CassandraMembershipRepository {
	return &CassandraMembershipRepository{session: session}
}

func (r *CassandraMembershipRepository) FindMembership(ctx context.Context, roomID, userID int64) (*domain.RoomMembership, error) {
	var role string
	err := r.session.Query(
		`SELECT role FROM room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	).WithContext(ctx).Scan(&role)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query membership: %w", err)
	}

	return &domain.RoomMembership{RoomID: roomID, UserID: userID, Role: role}, nil
}

// CassandraUserDirectory implements UserDirectory.
type CassandraUserDirectory struct {
	session *gocql.Session
}

func NewCassandraUserDirectory(session *gocql.Session) *CassandraUserDirectory {
	return &CassandraUserDirectory{session: session}
}

func (r *CassandraUserDirectory) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	var (
		nickname        string
		profileImageURL string
	)
	err := r.session.Query(
		`SELECT nickname, profile_image_url FROM users_by_id WHERE user_id = ?`,
		userID,
	).WithContext(ctx).Scan(&nickname, &profileImageURL)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user profile: %w", err)
	}

	return &domain.UserProfile{
		UserID:          userID,
		Nickname:        nickname,
		ProfileImageURL: profileImageURL,
	}, nil
}
