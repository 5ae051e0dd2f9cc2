package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonathan/vulture/internal/logger"
)

// ChannelPrefix namespaces run event channels in Redis
const ChannelPrefix = "vulture:runs:"

// RedisPublisher mirrors run events to Redis so every process can serve the stream
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps a Redis client
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends p to the run's channel
func (p *RedisPublisher) Publish(ctx context.Context, runID uuid.UUID, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if err := p.client.Publish(ctx, ChannelName(runID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// RedisRelay forwards every run channel into a local Bus
type RedisRelay struct {
	client *redis.Client
	bus    *Bus
	log    *logger.Logger
}

// NewRedisRelay creates a relay feeding bus
func NewRedisRelay(client *redis.Client, bus *Bus, log *logger.Logger) *RedisRelay {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisRelay{client: client, bus: bus, log: log}
}

// Run listens until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to redis: %w", err)
	}
	r.log.Info("redis relay subscribed", "pattern", ChannelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			runID, err := RunIDFromChannel(msg.Channel)
			if err != nil {
				r.log.Warn("ignoring message on unexpected channel", "channel", msg.Channel)
				continue
			}
			var p Payload
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				r.log.Warn("ignoring malformed event payload", "channel", msg.Channel, "error", err)
				continue
			}
			_ = r.bus.Publish(ctx, runID, p)
		}
	}
}

// ChannelName returns the Redis channel for a run
func ChannelName(runID uuid.UUID) string {
	return ChannelPrefix + runID.String()
}

// RunIDFromChannel parses "vulture:runs:{id}".
func RunIDFromChannel(channel string) (uuid.UUID, error) {
	if !strings.HasPrefix(channel, ChannelPrefix) {
		return uuid.Nil, fmt.Errorf("unexpected channel %q", channel)
	}
	return uuid.Parse(strings.TrimPrefix(channel, ChannelPrefix))
}
