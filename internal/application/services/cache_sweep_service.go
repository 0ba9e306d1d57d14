package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/repositories"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
	"golang.org/x/sync/errgroup"
)

// DefaultSweepInterval is the period of the background sweep
const DefaultSweepInterval = 5 * time.Minute

const triggeredSweepTimeout = 30 * time.Second

// ErrSweeperRunning is returned by Start on a sweeper that is already running
var ErrSweeperRunning = errors.New("cache sweeper already running")

// SweepReport summarizes one sweep
type SweepReport struct {
	StartedAt  time.Time                   `json:"startedAt"`
	DurationMs int64                       `json:"durationMs"`
	InvalidIDs map[entities.EntityType]int `json:"invalidIds"`
	Scanned    int                         `json:"scanned"`
	Evicted    int                         `json:"evicted"`
	Errors     map[string]string           `json:"errors,omitempty"`
}

func (r *SweepReport) addError(stage string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[stage] = err.Error()
}

// CacheSweepService evicts cached search pages that embed records which have
// since been archived or deleted. It runs on a ticker between Start and Stop
// and can be run on demand.
type CacheSweepService struct {
	cache    *QueryCache
	content  repositories.ContentRepository
	interval time.Duration
	metrics  *observability.Metrics
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	sweepMu  sync.Mutex
	inflight sync.WaitGroup
}

// NewCacheSweepService creates a stopped sweeper
func NewCacheSweepService(cache *QueryCache, content repositories.ContentRepository, interval time.Duration, metrics *observability.Metrics) *CacheSweepService {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &CacheSweepService{
		cache:    cache,
		content:  content,
		interval: interval,
		metrics:  metrics,
		logger:   observability.Component("cache_sweeper"),
	}
}

// Start launches the periodic sweep
func (s *CacheSweepService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSweeperRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, s.done)
	s.logger.Info().Dur("interval", s.interval).Msg("Cache sweeper started")
	return nil
}

// Stop halts the ticker, cancels a sweep in progress and waits for it to
// return or for ctx to expire.
func (s *CacheSweepService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-done
		s.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.logger.Info().Msg("Cache sweeper stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cache sweeper did not drain: %w", ctx.Err())
	}
}

// Running reports whether the periodic sweep is active
func (s *CacheSweepService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger runs a sweep in the background without blocking the caller
func (s *CacheSweepService) Trigger() {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), triggeredSweepTimeout)
		defer cancel()

		if _, err := s.SweepNow(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Triggered cache sweep failed")
		}
	}()
}

// SweepNow runs one sweep synchronously. Sweeps never overlap.
func (s *CacheSweepService) SweepNow(ctx context.Context) (*SweepReport, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	report := &SweepReport{
		StartedAt:  time.Now(),
		InvalidIDs: make(map[entities.EntityType]int, len(entities.ContentKinds)),
	}
	err := s.sweep(ctx, report)
	elapsed := time.Since(report.StartedAt)
	report.DurationMs = elapsed.Milliseconds()

	observability.RecordSweep(ctx, s.metrics, report.Evicted, err != nil || len(report.Errors) > 0, elapsed)
	s.logger.Info().
		Int("scanned", report.Scanned).
		Int("evicted", report.Evicted).
		Interface("invalid_ids", report.InvalidIDs).
		Interface("errors", report.Errors).
		Dur("duration", elapsed).
		Msg("Cache sweep completed")
	return report, err
}

func (s *CacheSweepService) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.inflight.Add(1)
			if _, err := s.SweepNow(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("Periodic cache sweep failed")
			}
			s.inflight.Done()
		}
	}
}

func (s *CacheSweepService) sweep(ctx context.Context, report *SweepReport) error {
	invalid := s.loadInvalidIDs(ctx, report)
	if len(invalid) == 0 {
		return nil
	}

	var stale []string
	scanned, err := s.cache.Entries(ctx, entities.CategorySearch, func(key string, entry *entities.CacheEntry) error {
		for kind, ids := range invalid {
			if entry.References(kind, ids) {
				stale = append(stale, key)
				return nil
			}
		}
		return nil
	})
	report.Scanned = scanned
	if err != nil {
		report.addError("scan", err)
		return fmt.Errorf("failed to scan search cache: %w", err)
	}

	if err := s.cache.Evict(ctx, stale...); err != nil {
		report.addError("evict", err)
		return fmt.Errorf("failed to evict stale search pages: %w", err)
	}
	report.Evicted = len(stale)
	return nil
}

// loadInvalidIDs fetches the invalid ID sets of every content kind in
// parallel. A failing kind is logged and left out; empty sets are skipped.
func (s *CacheSweepService) loadInvalidIDs(ctx context.Context, report *SweepReport) map[entities.EntityType]map[string]struct{} {
	var mu sync.Mutex
	invalid := make(map[entities.EntityType]map[string]struct{}, len(entities.ContentKinds))

	var g errgroup.Group
	for _, kind := range entities.ContentKinds {
		g.Go(func() error {
			ids, err := s.content.ListInvalidIDs(ctx, kind)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error().Err(err).Str("entity_type", string(kind)).Msg("Failed to load invalid content IDs")
				report.addError(string(kind), err)
				return nil
			}
			report.InvalidIDs[kind] = len(ids)
			if len(ids) == 0 {
				return nil
			}
			set := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				set[id] = struct{}{}
			}
			invalid[kind] = set
			return nil
		})
	}
	_ = g.Wait()
	return invalid
}
