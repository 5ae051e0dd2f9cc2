package browser

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

// Session is what a driver knows about the run it is acting for
type Session struct {
	RunID         uuid.UUID
	ProfileID     uuid.UUID
	JobURL        string
	Submit        bool
	CaptchaSolved bool
	Adapter       Adapter
	Profile       *types.ProfileFacts
	ResumePath    string
}

// Driver executes a single action. Outcomes are typed; a driver reports
// trouble through a failed or blocked result rather than an error.
type Driver interface {
	Execute(ctx context.Context, s *Session, action string) types.ActionResult
	Close() error
}

// StageForAction maps an action to the approval stage that gates it.
func StageForAction(action string) string {
	switch action {
	case ActionStartSession:
		return policy.StageStartBrowserSession
	case ActionUploadResume:
		return policy.StageFileUpload
	case ActionSubmitApplication:
		return policy.StageFinalSubmit
	default:
		return policy.StageFillRequiredSection
	}
}

// CaptchaAction is the action of a waiting_captcha outcome; its stage is policy.StageCaptcha.
const CaptchaAction = "human_solve"

func captchaResult(message string) types.ActionResult {
	return types.ActionResult{
		Status:  types.ActionWaitingCaptcha,
		Stage:   policy.StageCaptcha,
		Action:  CaptchaAction,
		Message: message,
		Fields:  []types.FieldFillPlan{},
	}
}

func result(status, action, message string, fields ...types.FieldFillPlan) types.ActionResult {
	if fields == nil {
		fields = []types.FieldFillPlan{}
	}
	return types.ActionResult{
		Status:  status,
		Stage:   StageForAction(action),
		Action:  action,
		Message: message,
		Fields:  fields,
	}
}

func unsupported(action string) types.ActionResult {
	return types.ActionResult{
		Status:  types.ActionFailed,
		Stage:   "browser",
		Action:  action,
		Message: "Unsupported browser action: " + action,
		Fields:  []types.FieldFillPlan{},
	}
}
