package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/pkg/utils"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBroadcaster publishes events over redis pub/sub so every API instance
// can stream them to its own SSE clients.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster connects to redis and verifies the connection.
func NewRedisBroadcaster(ctx context.Context, addr, password string, db int, channel string) (*RedisBroadcaster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Str("channel", channel).Msg("Connected to redis for realtime events")
	return &RedisBroadcaster{client: client, channel: channel}, nil
}

func (b *RedisBroadcaster) userChannel(userID int64) string {
	return b.channel + ":user:" + utils.Int64ToStr(userID)
}

func (b *RedisBroadcaster) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", event.Type, err)
	}
	channel := b.channel
	if event.UserID != 0 {
		channel = b.userChannel(event.UserID)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing event %s: %w", event.Type, err)
	}
	return nil
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, userID int64) (<-chan models.Event, func(), error) {
	sub := b.client.Subscribe(ctx, b.channel, b.userChannel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribing to realtime events: %w", err)
	}

	out := make(chan models.Event, subscriberBuffer)
	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event models.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping malformed realtime event")
					continue
				}
				select {
				case out <- event:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}

func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
