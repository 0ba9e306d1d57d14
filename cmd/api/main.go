package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/whyuwhyi/bjut-se-sub000/internal/adapters/cache"
	"github.com/whyuwhyi/bjut-se-sub000/internal/adapters/database"
	"github.com/whyuwhyi/bjut-se-sub000/internal/adapters/events"
	"github.com/whyuwhyi/bjut-se-sub000/internal/api/handlers"
	"github.com/whyuwhyi/bjut-se-sub000/internal/api/routes"
	"github.com/whyuwhyi/bjut-se-sub000/internal/application/services"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/entities"
	"github.com/whyuwhyi/bjut-se-sub000/internal/domain/providers"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/clients/postgres"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/clients/redis"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
	"github.com/whyuwhyi/bjut-se-sub000/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis is optional: without it the query cache runs in-process
	var (
		primary     providers.CacheBackend
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, query cache will run in-process")
			redisClient = nil
		} else {
			defer redisClient.Close()
			primary = cache.NewRedisBackend(redisClient)
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
		}
	}

	queryCache := services.NewQueryCache(ctx, primary, cache.NewMemoryBackend(), services.QueryCacheConfig{
		KeyPrefix: cfg.Cache.KeyPrefix,
		TTLs: map[entities.CacheCategory]time.Duration{
			entities.CategorySearch:     cfg.Cache.SearchTTL,
			entities.CategorySuggestion: cfg.Cache.SuggestionTTL,
			entities.CategoryFilter:     cfg.Cache.FilterTTL,
		},
	}, metrics)

	// Relevance engine
	extractor := services.NewKeywordExtractor(cfg.Search.MaxKeywords).WithSynonyms(cfg.Search.SynonymsEnabled)
	if cfg.Search.DictionaryPath != "" {
		if err := extractor.LoadDictionary(cfg.Search.DictionaryPath); err != nil {
			log.Warn().Err(err).Str("path", cfg.Search.DictionaryPath).Msg("Failed to load keyword dictionary, using built-in tables")
		}
	}
	scorer := services.NewRelevanceScorer(services.NewFuzzyMatcher(0))

	contentAdapter := database.NewContentAdapter(pgClient, metrics)
	searchService := services.NewSearchService(
		queryCache,
		contentAdapter,
		services.NewConditionBuilder(extractor),
		scorer,
		services.SearchServiceConfig{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
		},
	)
	warmingService := services.NewCacheWarmingService(searchService)

	// Invalidation sweeper
	sweeper := services.NewCacheSweepService(queryCache, contentAdapter, cfg.Sweeper.Interval, metrics)
	if cfg.Sweeper.Enabled {
		if err := sweeper.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start cache sweeper")
		}
	}

	// Invalidation signals published by the content services
	var bus *events.RedisInvalidationBus
	if redisClient != nil && cfg.Cache.SubscribeInvalidations {
		bus = events.NewRedisInvalidationBus(redisClient, cfg.Cache.KeyPrefix)
		listener := services.NewInvalidationListener(bus, queryCache, sweeper)
		if err := listener.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("Invalidation listener not started")
		} else {
			log.Info().Str("channel", bus.Channel()).Msg("Invalidation listener started")
		}
	}

	router := routes.NewRouter(
		handlers.NewSearchHandler(searchService),
		handlers.NewCacheHandler(queryCache, warmingService, sweeper),
		handlers.NewHealthHandler(
			map[string]handlers.HealthCheck{"database": pgClient.Ping},
			map[string]handlers.HealthCheck{"cache": func(ctx context.Context) error {
				return queryCache.Backend().Ping(ctx)
			}},
		),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	if bus != nil {
		if err := bus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing invalidation bus")
		}
	}

	// Let an in-flight sweep finish before the clients close
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping cache sweeper")
	}
	queryCache.WaitStats()

	log.Info().Msg("Server stopped")
}
