package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/providers"
	redisclient "github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/clients/redis"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
)

const subscriberBuffer = 64

// RedisInvalidationBus implements InvalidationBus over one Redis Pub/Sub channel
type RedisInvalidationBus struct {
	client  *redisclient.Client
	channel string
	logger  zerolog.Logger

	mu          sync.Mutex
	pubsub      *redis.PubSub
	subscribers map[chan entities.InvalidationSignal]struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewRedisInvalidationBus creates a bus on "<prefix>:invalidate"
func NewRedisInvalidationBus(client *redisclient.Client, prefix string) *RedisInvalidationBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisInvalidationBus{
		client:      client,
		channel:     prefix + providers.InvalidationChannelSuffix,
		logger:      observability.Component("invalidation_bus"),
		subscribers: make(map[chan entities.InvalidationSignal]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Channel returns the Redis channel name
func (b *RedisInvalidationBus) Channel() string {
	return b.channel
}

// Publish validates and publishes a signal
func (b *RedisInvalidationBus) Publish(ctx context.Context, signal entities.InvalidationSignal) error {
	if err := signal.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation signal: %w", err)
	}
	if err := b.client.Client().Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation signal: %w", err)
	}
	return nil
}

// Subscribe registers a subscriber. The Redis subscription is opened with the
// first subscriber and shared by all of them.
func (b *RedisInvalidationBus) Subscribe(ctx context.Context) (<-chan entities.InvalidationSignal, error) {
	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("invalidation bus is closed")
	}

	if b.pubsub == nil {
		pubsub := b.client.Client().Subscribe(b.ctx, b.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			b.mu.Unlock()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
		}
		b.pubsub = pubsub
		go b.receive(pubsub)
	}

	signals := make(chan entities.InvalidationSignal, subscriberBuffer)
	b.subscribers[signals] = struct{}{}
	count := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Info().Str("channel", b.channel).Int("subscribers", count).Msg("Subscribed to invalidation signals")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(signals)
	}()

	return signals, nil
}

func (b *RedisInvalidationBus) receive(pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var signal entities.InvalidationSignal
			if err := json.Unmarshal([]byte(msg.Payload), &signal); err != nil {
				b.logger.Warn().Err(err).Msg("Dropping undecodable invalidation signal")
				continue
			}
			if err := signal.Validate(); err != nil {
				b.logger.Warn().Err(err).Msg("Dropping invalid invalidation signal")
				continue
			}

			b.mu.Lock()
			for subscriber := range b.subscribers {
				select {
				case subscriber <- signal:
				default:
					b.logger.Warn().
						Str("entity_type", string(signal.EntityType)).
						Msg("Subscriber channel full, skipping invalidation signal")
				}
			}
			b.mu.Unlock()
		}
	}
}

func (b *RedisInvalidationBus) removeSubscriber(signals chan entities.InvalidationSignal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[signals]; !ok {
		return
	}
	delete(b.subscribers, signals)
	close(signals)

	if len(b.subscribers) == 0 && b.pubsub != nil {
		_ = b.pubsub.Close()
		b.pubsub = nil
	}
}

// Close closes the bus and all subscriptions
func (b *RedisInvalidationBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for subscriber := range b.subscribers {
		close(subscriber)
		delete(b.subscribers, subscriber)
	}
	if b.pubsub != nil {
		err := b.pubsub.Close()
		b.pubsub = nil
		if err != nil {
			return fmt.Errorf("failed to close invalidation subscription: %w", err)
		}
	}
	return nil
}
