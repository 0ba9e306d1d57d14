package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/providers"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
)

const applySignalTimeout = 10 * time.Second

// InvalidationListener applies invalidation signals received from the bus to
// the query cache.
type InvalidationListener struct {
	bus     providers.InvalidationBus
	cache   *QueryCache
	sweeper *CacheSweepService
	logger  zerolog.Logger
	done    chan struct{}
}

// NewInvalidationListener creates a listener. sweeper may be nil.
func NewInvalidationListener(bus providers.InvalidationBus, cache *QueryCache, sweeper *CacheSweepService) *InvalidationListener {
	return &InvalidationListener{
		bus:     bus,
		cache:   cache,
		sweeper: sweeper,
		logger:  observability.Component("invalidation_listener"),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the bus and applies signals until ctx ends or the bus
// closes. It must be called once.
func (l *InvalidationListener) Start(ctx context.Context) error {
	signals, err := l.bus.Subscribe(ctx)
	if err != nil {
		close(l.done)
		return fmt.Errorf("failed to subscribe to invalidation bus: %w", err)
	}

	go func() {
		defer close(l.done)
		for signal := range signals {
			applyCtx, cancel := context.WithTimeout(context.Background(), applySignalTimeout)
			if err := l.Apply(applyCtx, signal); err != nil {
				l.logger.Error().Err(err).
					Str("entity_type", string(signal.EntityType)).
					Str("action", string(signal.Action)).
					Msg("Failed to apply invalidation signal")
			}
			cancel()
		}
	}()
	return nil
}

// Done is closed once the listener has stopped
func (l *InvalidationListener) Done() <-chan struct{} {
	return l.done
}

// Apply clears the categories made stale by signal. Deleting or updating a
// resource or post also triggers a sweep, since archiving is a status update.
func (l *InvalidationListener) Apply(ctx context.Context, signal entities.InvalidationSignal) error {
	if _, err := l.cache.Invalidate(ctx, signal); err != nil {
		return err
	}
	if signal.RemovesContent() && l.sweeper != nil {
		l.sweeper.Trigger()
	}
	return nil
}
