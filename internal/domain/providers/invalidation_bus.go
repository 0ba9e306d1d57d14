package providers

import (
	"context"

	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

// InvalidationBus carries invalidation signals from the services that mutate
// content to every running search instance.
type InvalidationBus interface {
	// Publish sends a signal to all subscribers
	Publish(ctx context.Context, signal entities.InvalidationSignal) error

	// Subscribe returns a channel of signals that is closed when ctx ends or
	// the bus is closed
	Subscribe(ctx context.Context) (<-chan entities.InvalidationSignal, error)

	// Close closes the bus and all subscriptions
	Close() error
}

// InvalidationChannelSuffix is appended to the cache key prefix to name the channel
const InvalidationChannelSuffix = ":invalidate"
