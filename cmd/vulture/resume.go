package main

import (
	"context"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume RUN_ID",
	Short: "Continue a run left running by an interrupted process",
	Long: `Re-enter the advance loop for a run whose process stopped mid-step (for example
on shutdown). Runs waiting for a decision or already finished are shown unchanged;
decide those with "vulture approve" or "vulture reject".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args, "run id")
		if err != nil {
			return err
		}
		return withOperatorEnv(cmd.Context(), func(ctx context.Context, env *operatorEnv) error {
			run, err := env.orch.Advance(ctx, ids[0])
			if err != nil {
				return err
			}
			return printRunSummary(ctx, cmd.OutOrStdout(), env, run)
		})
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
