package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/vulture/internal/answers"
	"github.com/jonathan/vulture/internal/types"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage candidate profiles",
}

var (
	profileFile      string
	profileName      string
	profileJobFamily string
	profileSummary   string
	profileEmail     string
)

var profileCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a candidate profile",
	Long: `Create a candidate profile from a JSON file (the POST /profiles body) or from flags.
Flags override the matching fields of the file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := profileRequest()
		if err != nil {
			return err
		}
		return withOperatorEnv(cmd.Context(), func(ctx context.Context, env *operatorEnv) error {
			profile, err := env.db.CreateProfile(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), profile)
		})
	},
}

func profileRequest() (*types.CreateProfileRequest, error) {
	req := &types.CreateProfileRequest{}
	if profileFile != "" {
		data, err := os.ReadFile(profileFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile file: %w", err)
		}
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("failed to parse profile file: %w", err)
		}
	}
	if profileName != "" {
		req.Name = profileName
	}
	if profileJobFamily != "" {
		req.JobFamily = profileJobFamily
	}
	if profileSummary != "" {
		req.Summary = profileSummary
	}
	if profileEmail != "" {
		if req.Personal == nil {
			req.Personal = &types.PersonalInfo{}
		}
		req.Personal.Email = profileEmail
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return req, nil
}

var (
	answerQuestion string
	answerText     string
	answerType     string
	answerTags     string
	answerState    string
)

var profileAnswerCmd = &cobra.Command{
	Use:   "answer PROFILE_ID",
	Short: "Store a reviewed answer to a screening question",
	Long: `Store an answer so later runs can fill the question without review.
Answers are verified unless --state says otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args, "profile id")
		if err != nil {
			return err
		}
		req := &types.StoreAnswerRequest{
			Question:          answerQuestion,
			QuestionType:      answerType,
			Answer:            answerText,
			VerificationState: answerState,
			Source:            "cli",
		}
		for _, tag := range strings.Split(answerTags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				req.Tags = append(req.Tags, tag)
			}
		}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("invalid answer: %w", err)
		}

		return withOperatorEnv(cmd.Context(), func(ctx context.Context, env *operatorEnv) error {
			profile, err := env.db.GetProfile(ctx, ids[0])
			if err != nil {
				return err
			}
			if profile == nil {
				return fmt.Errorf("profile %s not found", ids[0])
			}
			answer, err := answers.Remember(ctx, env.db, ids[0], req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), answer)
		})
	},
}

func init() {
	profileCreateCmd.Flags().StringVarP(&profileFile, "file", "f", "", "Path to a profile JSON file")
	profileCreateCmd.Flags().StringVarP(&profileName, "name", "n", "", "Candidate name")
	profileCreateCmd.Flags().StringVar(&profileJobFamily, "job-family", "", "Target job family")
	profileCreateCmd.Flags().StringVar(&profileSummary, "summary", "", "Profile summary")
	profileCreateCmd.Flags().StringVar(&profileEmail, "email", "", "Candidate email")

	profileAnswerCmd.Flags().StringVarP(&answerQuestion, "question", "q", "", "Question text")
	profileAnswerCmd.Flags().StringVarP(&answerText, "answer", "a", "", "Answer text")
	profileAnswerCmd.Flags().StringVar(&answerType, "type", "", "Question type (e.g. work_auth, eeo)")
	profileAnswerCmd.Flags().StringVar(&answerTags, "tags", "", "Comma-separated tags (e.g. legal)")
	profileAnswerCmd.Flags().StringVar(&answerState, "state", "", "Verification state: verified, needs_review or rejected")
	_ = profileAnswerCmd.MarkFlagRequired("question")
	_ = profileAnswerCmd.MarkFlagRequired("answer")

	profileCmd.AddCommand(profileCreateCmd, profileAnswerCmd)
	rootCmd.AddCommand(profileCmd)
}
