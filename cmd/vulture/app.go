package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonathan/vulture/internal/browser"
	"github.com/jonathan/vulture/internal/config"
	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
	"github.com/jonathan/vulture/internal/fetch"
	"github.com/jonathan/vulture/internal/llm"
	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/orchestrator"
	"github.com/jonathan/vulture/internal/policy"
)

// loadSettings merges the environment, the --config file and defaults.
func loadSettings() (*config.Settings, *logger.Logger, error) {
	s, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if logLevel != "" {
		s.LogLevel = logLevel
	}
	return s, logger.New(s.LogLevel, s.LogFormat), nil
}

func connectDB(ctx context.Context, s *config.Settings) (*db.DB, error) {
	if s.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	database, err := db.Connect(ctx, s.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

// connectRedis returns nil when no Redis URL is configured.
func connectRedis(ctx context.Context, s *config.Settings) (*redis.Client, error) {
	if s.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(s.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// orchestratorDeps are the pieces a command supplies to buildOrchestrator
type orchestratorDeps struct {
	repo      orchestrator.Repository
	locker    orchestrator.RunLocker
	publisher events.Publisher
}

// buildOrchestrator wires the LLM router, browser engine and fetcher from
// settings. The returned func releases them.
func buildOrchestrator(ctx context.Context, s *config.Settings, deps orchestratorDeps, log *logger.Logger) (*orchestrator.Orchestrator, func(), error) {
	router, err := llm.NewRouterFromSettings(ctx, s.LLM, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM router: %w", err)
	}
	engine, err := browser.NewEngineFromSettings(s.Browser, log)
	if err != nil {
		_ = router.Close()
		return nil, nil, fmt.Errorf("failed to create browser engine: %w", err)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Repo:      deps.repo,
		Fetcher:   fetch.NewTextFetcher(s.Browser.NavTimeout(), s.Browser.Enabled, s.Browser.Headless, log),
		LLM:       router,
		Browser:   engine,
		Publisher: deps.publisher,
		Locker:    deps.locker,
		Log:       log,
	}, orchestrator.Options{
		ResumeDir:      s.ResumeDir,
		CoverLetterDir: s.CoverLetterDir,
		DefaultMode:    policy.Mode(s.DefaultRunMode),
		PatchProvider:  s.LLM.DBPatchProvider,
	})

	cleanup := func() {
		if err := engine.Close(); err != nil {
			log.Warn("failed to close browser engine", "error", err)
		}
		if err := router.Close(); err != nil {
			log.Warn("failed to close LLM router", "error", err)
		}
	}
	return orch, cleanup, nil
}

// operatorEnv is what the Postgres-backed operator commands run against
type operatorEnv struct {
	settings *config.Settings
	log      *logger.Logger
	db       *db.DB
	orch     *orchestrator.Orchestrator
}

// withOperatorEnv connects to Postgres (and Redis when configured, so live
// watchers see the events), builds an orchestrator and runs fn.
func withOperatorEnv(ctx context.Context, fn func(ctx context.Context, env *operatorEnv) error) error {
	s, log, err := loadSettings()
	if err != nil {
		return err
	}
	database, err := connectDB(ctx, s)
	if err != nil {
		return err
	}
	defer database.Close()

	var publisher events.Publisher
	rdb, err := connectRedis(ctx, s)
	if err != nil {
		log.Warn("events will not be mirrored", "error", err)
	} else if rdb != nil {
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb)
	}

	orch, cleanup, err := buildOrchestrator(ctx, s, orchestratorDeps{
		repo:      database,
		locker:    database,
		publisher: publisher,
	}, log)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, &operatorEnv{settings: s, log: log, db: database, orch: orch})
}

func parseIDs(args []string, names ...string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(names))
	for i, name := range names {
		id, err := uuid.Parse(args[i])
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", name, args[i], err)
		}
		ids[i] = id
	}
	return ids, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
