package browser

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

func newTestEngine(t *testing.T, domains DomainPolicy) *Engine {
	t.Helper()
	r, err := NewRegistry(logger.Nop())
	require.NoError(t, err)
	return NewEngine(r, domains, nil, logger.Nop())
}

func session(e *Engine, url string, submit bool) *Session {
	adapter, _ := e.Plan(url)
	return &Session{RunID: uuid.New(), JobURL: url, Submit: submit, Adapter: adapter}
}

func TestEngine_DefaultFlow(t *testing.T) {
	e := newTestEngine(t, DomainPolicy{})
	url := "https://boards.greenhouse.io/acme/jobs/1"
	adapter, actions := e.Plan(url)
	assert.Equal(t, "greenhouse", adapter.Name)
	assert.Equal(t, DefaultActions, actions)

	s := session(e, url, false)
	for _, action := range actions {
		res := e.Execute(context.Background(), s, action)
		assert.Equal(t, types.ActionCompleted, res.Status, action)
		assert.Equal(t, action, res.Action)
		assert.Equal(t, StageForAction(action), res.Stage)
		assert.NotNil(t, res.Fields)
	}
}

func TestEngine_FieldPlansAndQuestions(t *testing.T) {
	e := newTestEngine(t, DomainPolicy{})
	s := session(e, "https://jobs.lever.co/acme/1", false)

	personal := e.Execute(context.Background(), s, ActionFillPersonalInfo)
	require.Len(t, personal.Fields, 2)
	assert.Equal(t, "first_name", personal.Fields[0].FieldKey)
	assert.Equal(t, 0.95, personal.Fields[0].Confidence)

	compliance := e.Execute(context.Background(), s, ActionFillCompliance)
	require.Len(t, compliance.Questions, 2)
	assert.Equal(t, "work_auth", compliance.Questions[0].Type)
	assert.Equal(t, 0.8, compliance.Fields[0].Confidence)

	submit := e.Execute(context.Background(), s, ActionSubmitApplication)
	assert.Equal(t, "Submit disabled (--submit not set). Dry run completed.", submit.Message)
}

func TestEngine_Captcha(t *testing.T) {
	e := newTestEngine(t, DomainPolicy{})
	s := session(e, "https://example.com/jobs/captcha-test", true)

	res := e.Execute(context.Background(), s, ActionStartSession)
	assert.Equal(t, types.ActionWaitingCaptcha, res.Status)
	assert.Equal(t, policy.StageCaptcha, res.Stage)
	assert.Equal(t, CaptchaAction, res.Action)

	s.CaptchaSolved = true
	assert.Equal(t, types.ActionCompleted, e.Execute(context.Background(), s, ActionStartSession).Status)
}

func TestEngine_LinkedIn(t *testing.T) {
	e := newTestEngine(t, DomainPolicy{})

	adapter, actions := e.Plan("https://www.linkedin.com/jobs/view/1")
	assert.Equal(t, AdapterLinkedIn, adapter.Name)
	assert.Equal(t, LinkedInActions, actions)

	ok := session(e, "https://www.linkedin.com/jobs/view/1", false)
	assert.Equal(t, types.ActionCompleted, e.Execute(context.Background(), ok, ActionLinkedInOpenEasyApply).Status)

	ext := session(e, "https://www.linkedin.com/jobs/view/2?apply=external", false)
	res := e.Execute(context.Background(), ext, ActionLinkedInOpenEasyApply)
	assert.Equal(t, types.ActionBlocked, res.Status)
	assert.Contains(t, res.Message, "Easy Apply is not available")
}

func TestEngine_BlockedDomain(t *testing.T) {
	e := newTestEngine(t, DomainPolicy{Blocked: []string{"example.com"}})
	s := session(e, "https://jobs.example.com/1", false)

	res := e.Execute(context.Background(), s, ActionStartSession)
	assert.Equal(t, types.ActionBlocked, res.Status)
	assert.Equal(t, policy.StageStartBrowserSession, res.Stage)
}

func TestEngine_UnsupportedAction(t *testing.T) {
	e := newTestEngine(t, DomainPolicy{})
	res := e.Execute(context.Background(), session(e, "https://example.com/j", false), "dance")
	assert.Equal(t, types.ActionFailed, res.Status)
	assert.Equal(t, "Unsupported browser action: dance", res.Message)
}

func TestStageForAction(t *testing.T) {
	assert.Equal(t, policy.StageStartBrowserSession, StageForAction(ActionStartSession))
	assert.Equal(t, policy.StageFillRequiredSection, StageForAction(ActionFillWorkHistory))
	assert.Equal(t, policy.StageFillRequiredSection, StageForAction(ActionLinkedInFillSteps))
	assert.Equal(t, policy.StageFileUpload, StageForAction(ActionUploadResume))
	assert.Equal(t, policy.StageFinalSubmit, StageForAction(ActionSubmitApplication))
}

func TestProfileValue(t *testing.T) {
	p := &types.ProfileFacts{
		Personal: &types.PersonalInfo{FirstName: "Ada", Email: "ada@example.com"},
		WorkAuth: &types.WorkAuthorization{AuthorizedCountries: []string{"US"}},
	}
	assert.Equal(t, "Ada", ProfileValue(p, "profile_personal.first_name"))
	assert.Equal(t, "ada@example.com", ProfileValue(p, "profile_personal.email"))
	assert.Equal(t, "Yes", ProfileValue(p, "profile_work_auth"))
	assert.Empty(t, ProfileValue(p, "profile_personal.headline"))
	assert.Empty(t, ProfileValue(nil, "profile_personal.email"))
}
