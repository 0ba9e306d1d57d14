package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/whyuwhyi/bjut-se-sub000/internal/adapters/cache"
	"github.com/whyuwhyi/bjut-se-sub000/internal/adapters/database"
	"github.com/whyuwhyi/bjut-se-sub000/internal/application/services"
	"github.com/whyuwhyi/bjut-se-sub000/internal/evaluation"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/clients/postgres"
	"github.com/whyuwhyi/bjut-se-sub000/internal/infrastructure/observability"
	"github.com/whyuwhyi/bjut-se-sub000/pkg/config"
)

func main() {
	app := &cli.App{
		Name:  "evaluate",
		Usage: "Score the relevance engine against a labeled golden query set",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "golden",
				Aliases: []string{"g"},
				Usage:   "Path to the golden query file (.json or .yaml)",
				Value:   "config/golden_queries.yaml",
			},
			&cli.IntFlag{
				Name:  "k",
				Usage: "Rank cutoff for recall, MRR and NDCG",
				Value: evaluation.DefaultK,
			},
			&cli.Float64Flag{Name: "min-recall", Usage: "Fail when average recall drops below this value"},
			&cli.Float64Flag{Name: "min-mrr", Usage: "Fail when average MRR drops below this value"},
			&cli.Float64Flag{Name: "min-ndcg", Usage: "Fail when average NDCG drops below this value"},
			&cli.BoolFlag{Name: "details", Usage: "Include per-query results in the report"},
		},
		Action: evaluate,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "evaluate: %v\n", err)
		os.Exit(1)
	}
}

func evaluate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-evaluate", cfg.Env, cfg.LogLevel)

	queries, err := evaluation.LoadGoldenQueries(c.String("golden"))
	if err != nil {
		return err
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pgClient.Close()

	searchService, err := newSearchService(ctx, cfg, pgClient)
	if err != nil {
		return err
	}

	summary, err := evaluation.NewRunner(searchService, c.Int("k")).Run(ctx, queries)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	violations := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MinRecall: c.Float64("min-recall"),
		MinMRR:    c.Float64("min-mrr"),
		MinNDCG:   c.Float64("min-ndcg"),
	}).Check(summary)

	if !c.Bool("details") {
		summary.Results = nil
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))

	if len(violations) > 0 {
		for _, v := range violations {
			log.Error().Str("violation", v).Msg("Relevance guardrail failed")
		}
		return cli.Exit(fmt.Sprintf("%d guardrail(s) failed", len(violations)), 2)
	}
	return nil
}

// newSearchService wires the same relevance engine the API serves, backed by
// an in-process cache so every golden query hits the database once.
func newSearchService(ctx context.Context, cfg *config.Config, pgClient *postgres.Client) (*services.SearchService, error) {
	extractor := services.NewKeywordExtractor(cfg.Search.MaxKeywords).WithSynonyms(cfg.Search.SynonymsEnabled)
	if cfg.Search.DictionaryPath != "" {
		if err := extractor.LoadDictionary(cfg.Search.DictionaryPath); err != nil {
			return nil, fmt.Errorf("failed to load keyword dictionary: %w", err)
		}
	}

	queryCache := services.NewQueryCache(ctx, nil, cache.NewMemoryBackend(), services.QueryCacheConfig{
		KeyPrefix: cfg.Cache.KeyPrefix,
	}, nil)

	return services.NewSearchService(
		queryCache,
		database.NewContentAdapter(pgClient, nil),
		services.NewConditionBuilder(extractor),
		services.NewRelevanceScorer(services.NewFuzzyMatcher(0)),
		services.SearchServiceConfig{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
		},
	), nil
}
