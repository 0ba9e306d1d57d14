package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
)

const warmupTimeout = 30 * time.Second

// CacheWarmingService preloads cheap, frequently read cache entries. Search
// pages depend on user input and are not warmed.
type CacheWarmingService struct {
	search *SearchService
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(search *SearchService) *CacheWarmingService {
	return &CacheWarmingService{search: search}
}

// WarmCache loads the filter options of every content kind
func (s *CacheWarmingService) WarmCache(ctx context.Context) []entities.EntityType {
	log.Info().Msg("Starting cache warming...")

	warmed := make([]entities.EntityType, 0, len(entities.ContentKinds))
	for _, kind := range entities.ContentKinds {
		if _, err := s.search.FilterOptions(ctx, kind); err != nil {
			log.Warn().Err(err).Str("entity_type", string(kind)).Msg("Failed to warm filter options")
			continue
		}
		warmed = append(warmed, kind)
	}

	log.Info().Interface("warmed", warmed).Msg("Cache warming completed")
	return warmed
}

// WarmAsync runs WarmCache in the background
func (s *CacheWarmingService) WarmAsync() {
	go func() {
		// Use a fresh context since the request context might be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
		defer cancel()
		s.WarmCache(ctx)
	}()
}
