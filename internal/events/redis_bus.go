package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// EventBus publishes outbox envelopes to downstream consumers.
type EventBus interface {
	Publish(ctx context.Context, env Envelope) error
}

// RedisEventBus implements EventBus using Redis Pub/Sub
type RedisEventBus struct {
	client   *redis.Client
	resolver ChannelResolver
}

func NewRedisEventBus(client *redis.Client, resolver ChannelResolver) *RedisEventBus {
	return &RedisEventBus{
		client:   client,
		resolver: resolver,
	}
}

func (b *RedisEventBus) Publish(ctx context.Context, env Envelope) error {
	channels := b.resolver.ResolveChannels(env)
	if len(channels) == 0 {
		return nil
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var errs []error
	for _, channel := range channels {
		if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish to %s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}
