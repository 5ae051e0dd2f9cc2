package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/vulture/internal/events"
	"github.com/jonathan/vulture/internal/memstore"
	"github.com/jonathan/vulture/internal/orchestrator"
	"github.com/jonathan/vulture/internal/server"
)

var (
	servePort   int
	serveMemory bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that exposes run, approval and profile endpoints plus a
Server-Sent Events stream per run.

With --memory, state lives in process memory and DATABASE_URL is not needed.
With REDIS_URL set, run events are mirrored through Redis so every server
instance can stream every run.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to HTTP_PORT or 8080)")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Keep state in memory instead of PostgreSQL")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, log, err := loadSettings()
	if err != nil {
		return err
	}
	if servePort != 0 {
		s.HTTPPort = servePort
	}

	bus := events.NewBus(log, 0)
	deps := orchestratorDeps{publisher: bus}
	var store server.Store

	if serveMemory {
		mem := memstore.New()
		deps.repo = mem
		store = mem
		log.Warn("using in-memory store, state is lost on exit")
	} else {
		database, err := connectDB(ctx, s)
		if err != nil {
			return err
		}
		defer database.Close()
		if _, err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		deps.repo = database
		deps.locker = database
		store = database
	}

	rdb, err := connectRedis(ctx, s)
	if err != nil {
		return err
	}
	var relay *events.RedisRelay
	if rdb != nil {
		defer rdb.Close()
		// Publish through Redis and let the relay feed the local bus
		deps.publisher = events.NewRedisPublisher(rdb)
		relay = events.NewRedisRelay(rdb, bus, log)
	}

	orch, cleanup, err := buildOrchestrator(ctx, s, deps, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(server.Config{
		Port:        s.HTTPPort,
		CORSOrigins: s.CORSOrigins,
		Auth:        s.Auth,
		RateLimit:   s.RateLimit,
	}, server.Deps{
		Runs:   orch,
		Store:  store,
		Events: bus,
		Log:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	return g.Wait()
}

var (
	_ orchestrator.Repository = (*memstore.Store)(nil)
	_ server.Store            = (*memstore.Store)(nil)
)
