package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/vulture/internal/observability"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status RUN_ID",
	Short: "Show a run and its pending approvals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args, "run id")
		if err != nil {
			return err
		}
		return withOperatorEnv(cmd.Context(), func(ctx context.Context, env *operatorEnv) error {
			run, err := env.orch.SerializeRun(ctx, ids[0])
			if err != nil {
				return err
			}
			if statusJSON {
				return printJSON(cmd.OutOrStdout(), run)
			}
			return printRunSummary(ctx, cmd.OutOrStdout(), env, run)
		})
	},
}

var eventsJSON bool

var eventsCmd = &cobra.Command{
	Use:   "events RUN_ID",
	Short: "List a run's events in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args, "run id")
		if err != nil {
			return err
		}
		return withOperatorEnv(cmd.Context(), func(ctx context.Context, env *operatorEnv) error {
			evts, err := env.orch.Events(ctx, ids[0])
			if err != nil {
				return err
			}
			if eventsJSON {
				return printJSON(cmd.OutOrStdout(), evts)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintEvents(evts)
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the full run snapshot as JSON")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Print events as JSON")
	rootCmd.AddCommand(statusCmd, eventsCmd)
}
