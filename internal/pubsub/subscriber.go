package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studyhive/realtime-service/internal/hub"
	"github.com/studyhive/realtime-service/pkg/log"
)

// Subscriber listens on the fanout channel and delivers frames
// published by sibling instances to the local hub.
type Subscriber struct {
	client     *redis.Client
	channel    string
	hub        *hub.Hub
	instanceID string
	doneCh     chan struct{}
}

// NewSubscriber creates a fanout subscriber. An empty channel falls
// back to the default.
func NewSubscriber(client *redis.Client, channel string, h *hub.Hub, instanceID string) *Subscriber {
	if channel == "" {
		channel = defaultChannel
	}
	return &Subscriber{
		client:     client,
		channel:    channel,
		hub:        h,
		instanceID: instanceID,
		doneCh:     make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run subscribes to the fanout channel and delivers frames to the
// local hub until ctx is done. Reconnects on receive errors.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)
	l := log.L()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := s.runSubscription(ctx); err != nil && ctx.Err() == nil {
				l.Warn().Err(err).Msg("fanout subscription error, reconnecting in 2s")
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
					continue
				}
			}
			return
		}
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for the subscription to be active before draining.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handleMessage(msg.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("fanout subscriber: invalid envelope")
		return
	}
	if env.Origin == s.instanceID {
		return
	}

	switch {
	case env.UserID != 0:
		s.hub.SendRawToUser(env.UserID, env.Payload)
	case env.RoomID != 0:
		s.hub.SendRawToRoom(env.RoomID, env.Payload)
	}
}
