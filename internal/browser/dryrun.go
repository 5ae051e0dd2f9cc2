package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/vulture/internal/types"
)

// Field plans per action. Drivers share them: the dry run reports them as
// filled, Chrome fills the ones it finds on the page.
var fieldPlans = map[string][]types.FieldFillPlan{
	ActionFillPersonalInfo: {
		{FieldKey: "first_name", Locator: "input[name*=first]", ValueSource: "profile_personal.first_name", Confidence: 0.95},
		{FieldKey: "email", Locator: "input[type=email]", ValueSource: "profile_personal.email", Confidence: 0.95},
	},
	ActionFillWorkHistory: {
		{FieldKey: "current_title", Locator: "input[name*=title]", ValueSource: "profile_personal.headline", Confidence: 0.86},
	},
	ActionFillCompliance: {
		{FieldKey: "work_authorization", Locator: "select[name*=auth]", ValueSource: "profile_work_auth", Confidence: 0.8},
	},
	ActionLinkedInFillSteps: {
		{FieldKey: "first_name", Locator: "input[id*=firstName]", ValueSource: "profile_personal.first_name", Confidence: 0.95},
		{FieldKey: "email", Locator: "input[id*=email]", ValueSource: "profile_personal.email", Confidence: 0.95},
		{FieldKey: "phone", Locator: "input[id*=phoneNumber]", ValueSource: "profile_personal.phone_e164", Confidence: 0.9},
	},
	ActionUploadResume: {
		{FieldKey: "resume_file", Locator: "input[type=file]", ValueSource: "resume_versions.latest", Confidence: 0.9},
	},
}

// complianceQuestions are the screening questions found in the compliance section.
var complianceQuestions = []types.FormQuestion{
	{
		FieldKey: "work_authorization",
		Text:     "Are you legally authorized to work in this country?",
		Type:     "work_auth",
		Tags:     []string{"legal"},
		Options:  []string{"Yes", "No"},
	},
	{
		FieldKey: "visa_sponsorship",
		Text:     "Will you now or in the future require visa sponsorship?",
		Type:     "work_auth",
		Tags:     []string{"legal"},
		Options:  []string{"Yes", "No"},
	},
}

// FieldPlans returns a copy of the field plans for an action.
func FieldPlans(action string) []types.FieldFillPlan {
	return append([]types.FieldFillPlan{}, fieldPlans[action]...)
}

// ComplianceQuestions returns a copy of the compliance screening questions.
func ComplianceQuestions() []types.FormQuestion {
	out := make([]types.FormQuestion, len(complianceQuestions))
	copy(out, complianceQuestions)
	return out
}

// DryRunDriver simulates the form flow from URL heuristics. It never opens a
// browser: "captcha" anywhere in the URL means a CAPTCHA is showing, and
// "external" or "offsite" in a LinkedIn URL means there is no Easy Apply.
type DryRunDriver struct{}

// NewDryRunDriver creates a dry-run driver
func NewDryRunDriver() *DryRunDriver {
	return &DryRunDriver{}
}

// Execute simulates one action.
func (d *DryRunDriver) Execute(_ context.Context, s *Session, action string) types.ActionResult {
	lowerURL := strings.ToLower(s.JobURL)
	if strings.Contains(lowerURL, "captcha") && !s.CaptchaSolved {
		return captchaResult("CAPTCHA detected from URL heuristic; waiting for human intervention.")
	}

	switch action {
	case ActionStartSession:
		return result(types.ActionCompleted, action,
			fmt.Sprintf("Opened %s with the %s adapter (dry run). %s", s.JobURL, s.Adapter.Name, s.Adapter.Instructions))

	case ActionFillPersonalInfo:
		return result(types.ActionCompleted, action, "Filled personal info section", FieldPlans(action)...)

	case ActionFillWorkHistory:
		return result(types.ActionCompleted, action, "Filled work history section", FieldPlans(action)...)

	case ActionFillCompliance:
		res := result(types.ActionCompleted, action, "Filled compliance section", FieldPlans(action)...)
		res.Questions = ComplianceQuestions()
		return res

	case ActionLinkedInOpenEasyApply:
		if strings.Contains(lowerURL, "external") || strings.Contains(lowerURL, "offsite") {
			return result(types.ActionBlocked, action,
				"LinkedIn posting routes to an external application; Easy Apply is not available.")
		}
		return result(types.ActionCompleted, action, "Opened Easy Apply modal")

	case ActionLinkedInFillSteps:
		return result(types.ActionCompleted, action, "Completed Easy Apply steps", FieldPlans(action)...)

	case ActionUploadResume:
		return result(types.ActionCompleted, action, "Uploaded tailored resume", FieldPlans(action)...)

	case ActionSubmitApplication:
		if !s.Submit {
			return result(types.ActionCompleted, action, "Submit disabled (--submit not set). Dry run completed.")
		}
		return result(types.ActionCompleted, action, "Application submitted (dry run).")

	default:
		return unsupported(action)
	}
}

// Close is a no-op
func (d *DryRunDriver) Close() error {
	return nil
}
