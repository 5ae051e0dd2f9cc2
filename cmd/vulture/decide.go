package main

import (
	"context"

	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve RUN_ID EVENT_ID",
	Short: "Approve a pending event and resume the run",
	Long:  `Approve a pending gate or captcha event. The run continues until it completes or stops again.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args, "run id", "event id")
		if err != nil {
			return err
		}
		return withOperatorEnv(cmd.Context(), func(ctx context.Context, env *operatorEnv) error {
			run, err := env.orch.ApproveEvent(ctx, ids[0], ids[1])
			if err != nil {
				return err
			}
			return printRunSummary(ctx, cmd.OutOrStdout(), env, run)
		})
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject RUN_ID EVENT_ID",
	Short: "Reject a pending event, blocking the run",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args, "run id", "event id")
		if err != nil {
			return err
		}
		return withOperatorEnv(cmd.Context(), func(ctx context.Context, env *operatorEnv) error {
			run, err := env.orch.RejectEvent(ctx, ids[0], ids[1])
			if err != nil {
				return err
			}
			return printRunSummary(ctx, cmd.OutOrStdout(), env, run)
		})
	},
}

func init() {
	rootCmd.AddCommand(approveCmd, rejectCmd)
}
