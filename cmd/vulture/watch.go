package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
	"github.com/jonathan/vulture/internal/observability"
)

var watchCmd = &cobra.Command{
	Use:   "watch RUN_ID",
	Short: "Follow a run's events live",
	Long: `Print a run's events as they are published until the run reaches a terminal
status. Events travel over Redis, so REDIS_URL must be set here and in the
process advancing the run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args, "run id")
		if err != nil {
			return err
		}
		runID := ids[0]

		s, log, err := loadSettings()
		if err != nil {
			return err
		}
		if s.RedisURL == "" {
			return errors.New("REDIS_URL is required to watch a run")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		database, err := connectDB(ctx, s)
		if err != nil {
			return err
		}
		defer database.Close()

		rdb, err := connectRedis(ctx, s)
		if err != nil {
			return err
		}
		defer rdb.Close()

		bus := events.NewBus(log, 0)
		relay := events.NewRedisRelay(rdb, bus, log)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stream, unsubscribe := bus.Subscribe(ctx, runID)
		defer unsubscribe()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return relay.Run(gctx) })
		g.Go(func() error {
			defer cancel()
			return follow(gctx, cmd.OutOrStdout(), database, runID, stream, statusCheckInterval)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// statusCheckInterval is how often watch re-reads the run in case its
// terminal event was dropped
const statusCheckInterval = 15 * time.Second

// runReader loads a run by id
type runReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (*db.Run, error)
}

// follow prints the current run state and then each event until the run's
// terminal event arrives or ctx ends.
func follow(ctx context.Context, w io.Writer, runs runReader, runID uuid.UUID, stream <-chan events.Payload, interval time.Duration) error {
	run, err := runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	printer := observability.NewPrinter(w)
	printer.PrintRun(run)
	if run.IsTerminal() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	finish := func() error {
		run, err := runs.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		printer.PrintRun(run)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			run, err := runs.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			if run == nil || !run.IsTerminal() {
				continue
			}
			for drained := false; !drained; {
				select {
				case p, ok := <-stream:
					if !ok {
						drained = true
						break
					}
					printer.PrintPayload(p)
				default:
					drained = true
				}
			}
			printer.PrintRun(run)
			return nil
		case p, ok := <-stream:
			if !ok {
				return nil
			}
			printer.PrintPayload(p)
			if p.Terminal() {
				return finish()
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
