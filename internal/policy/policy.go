// Package policy decides which workflow stages need a human sign-off in each run mode.
package policy

import (
	"errors"
	"fmt"
)

// Mode controls how much of a run is gated behind human approval
type Mode string

// Run modes
const (
	ModeStrict Mode = "strict"
	ModeMedium Mode = "medium"
	ModeYolo   Mode = "yolo"
)

// Approval stages
const (
	StageJobParsingStart        = "job_parsing_start"
	StageCVTailoringOutput      = "cv_tailoring_output"
	StageDBPatchApply           = "db_patch_apply"
	StageQuestionReviewRequired = "question_review_required"
	StageStartBrowserSession    = "start_browser_session"
	StageFillRequiredSection    = "fill_required_section"
	StageFileUpload             = "file_upload"
	StageFinalSubmit            = "final_submit"
	StageCaptcha                = "captcha"
)

// ErrUnknownMode is returned for any mode outside strict, medium and yolo.
var ErrUnknownMode = errors.New("unknown run mode")

var gatedStages = map[Mode]map[string]bool{
	ModeStrict: {
		StageJobParsingStart:        true,
		StageCVTailoringOutput:      true,
		StageDBPatchApply:           true,
		StageQuestionReviewRequired: true,
		StageStartBrowserSession:    true,
		StageFillRequiredSection:    true,
		StageFileUpload:             true,
		StageFinalSubmit:            true,
	},
	ModeMedium: {
		StageCVTailoringOutput:      true,
		StageDBPatchApply:           true,
		StageQuestionReviewRequired: true,
		StageFileUpload:             true,
		StageFinalSubmit:            true,
	},
	ModeYolo: {},
}

// ParseMode converts a string into a Mode, rejecting unknown values.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, ok := gatedStages[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// RequiresApproval reports whether the stage needs human sign-off in the given mode.
// The captcha stage always does. Stages not listed for a mode never do.
func RequiresApproval(mode Mode, stage string) (bool, error) {
	if stage == StageCaptcha {
		return true, nil
	}
	gated, ok := gatedStages[mode]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
	return gated[stage], nil
}

// GatedStages returns the stages gated for a mode, excluding the captcha override.
func GatedStages(mode Mode) []string {
	order := []string{
		StageJobParsingStart, StageCVTailoringOutput, StageDBPatchApply,
		StageQuestionReviewRequired, StageStartBrowserSession,
		StageFillRequiredSection, StageFileUpload, StageFinalSubmit,
	}
	var out []string
	for _, s := range order {
		if gatedStages[mode][s] {
			out = append(out, s)
		}
	}
	return out
}
