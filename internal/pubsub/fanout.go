package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/studyhive/realtime-service/internal/hub"
	"github.com/studyhive/realtime-service/pkg/log"
)

const defaultChannel = "ws:fanout"

// envelope is the cross-instance wire format. Origin lets a subscriber
// skip frames it published itself; exactly one of RoomID/UserID is set.
type envelope struct {
	Origin  string          `json:"origin"`
	RoomID  int64           `json:"room_id,omitempty"`
	UserID  int64           `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Fanout delivers payloads to the local hub and republishes them over
// Redis so sibling instances can reach their own subscribers. It
// satisfies the Broadcaster interfaces of the presence and relay
// packages.
type Fanout struct {
	hub        *hub.Hub
	client     *redis.Client
	channel    string
	instanceID string
}

// NewFanout creates a fanout broadcaster. An empty channel falls back
// to the default.
func NewFanout(h *hub.Hub, client *redis.Client, channel, instanceID string) *Fanout {
	if channel == "" {
		channel = defaultChannel
	}
	return &Fanout{
		hub:        h,
		client:     client,
		channel:    channel,
		instanceID: instanceID,
	}
}

// SendToRoom delivers to local room subscribers and publishes for
// sibling instances.
func (f *Fanout) SendToRoom(roomID int64, payload interface{}) {
	f.hub.SendToRoom(roomID, payload)
	f.publish(&envelope{Origin: f.instanceID, RoomID: roomID}, payload)
}

// SendToUser delivers to the user's local connection, if any, and
// publishes for sibling instances.
func (f *Fanout) SendToUser(userID int64, payload interface{}) {
	f.hub.SendToUser(userID, payload)
	f.publish(&envelope{Origin: f.instanceID, UserID: userID}, payload)
}

func (f *Fanout) publish(env *envelope, payload interface{}) {
	if f.client == nil {
		return
	}
	l := log.L()

	raw, err := json.Marshal(payload)
	if err != nil {
		l.Error().Err(err).Msg("fanout payload marshal failed")
		return
	}
	env.Payload = raw

	data, err := json.Marshal(env)
	if err != nil {
		l.Error().Err(err).Msg("fanout envelope marshal failed")
		return
	}

	if err := f.client.Publish(context.Background(), f.channel, data).Err(); err != nil {
		l.Warn().Err(err).Msg("fanout publish failed, delivered locally only")
	}
}
