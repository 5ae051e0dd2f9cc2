package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/observability"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

var (
	applyURL     string
	applyProfile string
	applyMode    string
	applySubmit  bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Start an application run",
	Long: `Start a run for a job posting and advance it until it completes or stops at an
approval gate. Decide pending gates with "vulture approve" or "vulture reject".

Modes:
  strict  every sensitive step waits for approval
  medium  documents, profile patches, question review, uploads and submit wait
  yolo    only captchas wait`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ids, err := parseIDs([]string{applyProfile}, "profile id")
		if err != nil {
			return err
		}
		req := types.StartRunRequest{URL: applyURL, ProfileID: ids[0], Mode: applyMode, Submit: applySubmit}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("invalid run request: %w", err)
		}

		return withOperatorEnv(cmd.Context(), func(ctx context.Context, env *operatorEnv) error {
			run, err := env.orch.StartApplication(ctx, req.URL, req.ProfileID, policy.Mode(req.Mode), req.Submit)
			if err != nil {
				return err
			}
			return printRunSummary(ctx, cmd.OutOrStdout(), env, run)
		})
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyURL, "url", "u", "", "Job posting URL")
	applyCmd.Flags().StringVarP(&applyProfile, "profile", "p", "", "Profile id")
	applyCmd.Flags().StringVarP(&applyMode, "mode", "m", "", "Run mode: strict, medium or yolo (defaults to DEFAULT_RUN_MODE)")
	applyCmd.Flags().BoolVar(&applySubmit, "submit", false, "Actually submit the application (default is a dry run)")
	_ = applyCmd.MarkFlagRequired("url")
	_ = applyCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(applyCmd)
}

// printRunSummary prints the run and, when it waits, how to continue.
func printRunSummary(ctx context.Context, w io.Writer, env *operatorEnv, run *db.Run) error {
	printer := observability.NewPrinter(w)
	printer.PrintRun(run)
	if !run.IsSuspended() || run.IsTerminal() {
		return nil
	}
	pending, err := env.orch.PendingApprovals(ctx, run.ID)
	if err != nil {
		return err
	}
	printer.PrintPending(run.ID, pending)
	return nil
}
