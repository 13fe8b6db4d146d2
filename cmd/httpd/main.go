package main

import (
	"context"
	"fmt"
	"os"

	"github.com/stuntlytics/stuntlytics/internal/api"
	"github.com/stuntlytics/stuntlytics/internal/cache"
	"github.com/stuntlytics/stuntlytics/internal/config"
	"github.com/stuntlytics/stuntlytics/internal/elastic"
	"github.com/stuntlytics/stuntlytics/internal/geo"
	"github.com/stuntlytics/stuntlytics/internal/insight"
	"github.com/stuntlytics/stuntlytics/internal/logger"
	"github.com/stuntlytics/stuntlytics/internal/predict"
	"github.com/stuntlytics/stuntlytics/internal/rules"
	"github.com/stuntlytics/stuntlytics/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	configPath := config.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	log = log.With(logger.String("service", cfg.Service.Name))

	log.Info("Starting analytics service",
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
		logger.Bool("debug", cfg.Service.Debug),
	)

	// Initialize Elasticsearch client
	log.Info("Connecting to Elasticsearch", logger.String("url", cfg.Elasticsearch.URL))
	esClient, esErr := elastic.NewClient(&cfg.Elasticsearch)
	if esErr != nil {
		log.Error("Failed to create Elasticsearch client", logger.Error(esErr))
		return 1
	}
	log.Info("Successfully connected to Elasticsearch")

	// Cache backend: Redis when enabled, in-process otherwise
	var store cache.Store
	if cfg.Redis.Enabled {
		redisStore, redisErr := cache.NewRedisStore(context.Background(), &cfg.Redis)
		if redisErr != nil {
			log.Error("Failed to connect to Redis", logger.Error(redisErr))
			return 1
		}
		defer func() { _ = redisStore.Close() }()
		store = redisStore
		log.Info("Using Redis cache", logger.String("address", cfg.Redis.Address))
	} else {
		store = cache.NewMemoryStore()
		log.Info("Using in-memory cache")
	}

	// Boundary file for the choropleth; the map degrades when absent
	var boundaries *geo.FeatureCollection
	if boundaries, err = geo.LoadBoundaries(cfg.Geo.BoundaryPath); err != nil {
		log.Warn("Boundary file unavailable, choropleth disabled", logger.Error(err))
		boundaries = nil
	} else {
		log.Info("Loaded boundary features", logger.Int("count", len(boundaries.Features)))
	}

	qb := elastic.NewQueryBuilder(&cfg.Elasticsearch)
	summarizer := elastic.NewSummarizer(esClient, qb, &cfg.Elasticsearch, log)
	resolver := elastic.NewResolver(esClient, qb, cfg.Elasticsearch.StuntingIndex, cfg.Elasticsearch.ResolverTermsSize, log)
	ruleEngine := rules.NewEngine(rules.DefaultRules(), log)

	dashboard := service.NewDashboard(summarizer, resolver, esClient, store, boundaries, ruleEngine, cfg, log)

	var remote *predict.RemoteScorer
	if cfg.Predict.ScoringURL != "" {
		remote = predict.NewRemoteScorer(cfg.Predict.ScoringURL, cfg.Predict.Timeout)
		log.Info("Remote scoring enabled", logger.String("url", cfg.Predict.ScoringURL))
	}
	predictor := predict.NewService(nil, remote, log)

	insights := insight.NewGenerator(&cfg.Insight, log)
	if cfg.Insight.APIKey == "" {
		log.Warn("No LLM API key configured, insight runs rule-based only")
	}

	handler := api.NewHandler(dashboard, predictor, insights, log)
	server := api.NewServer(handler, cfg, log)

	log.Info("Analytics service starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("stunting_index", cfg.Elasticsearch.StuntingIndex),
	)

	if runErr := server.Run(); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return 1
	}

	log.Info("Analytics service exited cleanly")
	return 0
}
