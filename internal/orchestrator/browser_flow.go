package orchestrator

import (
	"context"
	"fmt"

	"github.com/jonathan/vulture/internal/answers"
	"github.com/jonathan/vulture/internal/browser"
	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

// ReviewQuestionAction is the gate action for a screening question needing review.
func ReviewQuestionAction(questionHash string) string {
	return "review_question:" + questionHash
}

// stepBrowserFlow walks the adapter's action sequence from the saved cursor.
// The cursor only moves once an action and its questions are fully settled.
func (o *Orchestrator) stepBrowserFlow(ctx context.Context, run *db.Run, mode policy.Mode, job *db.Job) (bool, error) {
	adapter, actions := o.browser.Plan(job.URL)
	switch {
	case run.Context.BrowserAdapter == "":
		rc := run.Context.Clone()
		rc.BrowserAdapter = adapter.Name
		if err := o.updateRun(ctx, run, &db.RunUpdate{Context: &rc}); err != nil {
			return false, err
		}
	case run.Context.BrowserAdapter != adapter.Name:
		adapter = o.browser.AdapterByName(run.Context.BrowserAdapter, job.URL)
		actions = adapter.Sequence()
	}

	facts, err := o.profileFacts(ctx, run)
	if err != nil {
		return false, err
	}

	for run.Context.BrowserActionIndex < len(actions) {
		action := actions[run.Context.BrowserActionIndex]
		stage := browser.StageForAction(action)

		ok, err := o.gate(ctx, run, mode, stage, "approve:"+action, map[string]any{"action": action})
		if err != nil || !ok {
			return false, err
		}

		res := o.browser.Execute(ctx, &browser.Session{
			RunID:         run.ID,
			ProfileID:     run.ProfileID,
			JobURL:        job.URL,
			Submit:        run.Context.Submit,
			CaptchaSolved: run.Context.CaptchaSolved,
			Adapter:       adapter,
			Profile:       facts,
			ResumePath:    run.Context.TailoredResumePath,
		}, action)

		switch res.Status {
		case types.ActionCompleted:
		case types.ActionWaitingCaptcha:
			return false, o.suspendForCaptcha(ctx, run, action, res)
		case types.ActionFailed:
			return false, o.endBrowserFlow(ctx, run, stage, action, res, db.RunStatusFailed, db.StageFailed)
		case types.ActionBlocked:
			return false, o.endBrowserFlow(ctx, run, stage, action, res, db.RunStatusBlocked, db.StageBlocked)
		default:
			return false, fmt.Errorf("unexpected outcome %q for browser action %s", res.Status, action)
		}

		fills := make([]db.FieldFillInput, 0, len(res.Fields)+len(res.Questions))
		for _, f := range res.Fields {
			fills = append(fills, db.FieldFillInput{
				RunID:       run.ID,
				PageURL:     job.URL,
				FieldKey:    f.FieldKey,
				Locator:     f.Locator,
				ValueSource: f.ValueSource,
				FillStatus:  db.FillStatusFilled,
				Confidence:  f.Confidence,
			})
		}

		answered, ok, err := o.answerQuestions(ctx, run, mode, facts, job, res.Questions)
		if err != nil || !ok {
			return false, err
		}
		fills = append(fills, answered...)

		if err := o.record(ctx, run.ID, stage, "completed:"+action, map[string]any{
			"message": res.Message,
			"adapter": adapter.Name,
		}); err != nil {
			return false, err
		}
		for i := range fills {
			if _, err := o.repo.RecordFieldFill(ctx, &fills[i]); err != nil {
				return false, fmt.Errorf("failed to record field fill: %w", err)
			}
		}

		rc := run.Context.Clone()
		rc.BrowserActionIndex++
		if err := o.updateRun(ctx, run, &db.RunUpdate{Context: &rc}); err != nil {
			return false, err
		}
		o.emit(ctx, run.ID)
		o.log.Debug("browser action completed", "run_id", run.ID, "action", action, "fields", len(fills))
	}

	return true, o.complete(ctx, run, job)
}

// answerQuestions resolves the screening questions an action surfaced. It
// reports false when a review gate stopped the run.
func (o *Orchestrator) answerQuestions(ctx context.Context, run *db.Run, mode policy.Mode, facts *types.ProfileFacts, job *db.Job, questions []types.FormQuestion) ([]db.FieldFillInput, bool, error) {
	fills := make([]db.FieldFillInput, 0, len(questions))
	for _, q := range questions {
		res, err := o.answers.Resolve(ctx, answers.Request{
			ProfileID: run.ProfileID,
			Profile:   facts,
			Analysis:  analysisOf(run.Context),
			Question:  q,
			Mode:      mode,
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve question %q: %w", q.FieldKey, err)
		}

		fill := db.FieldFillInput{
			RunID:       run.ID,
			PageURL:     job.URL,
			FieldKey:    q.FieldKey,
			ValueSource: res.Source,
			FillStatus:  db.FillStatusUnanswered,
		}

		switch {
		case res.Usable:
			fill.FillStatus = db.FillStatusFilled
			fill.Confidence = res.Confidence
		case res.NeedsHumanReview():
			required, err := policy.RequiresApproval(mode, policy.StageQuestionReviewRequired)
			if err != nil {
				return nil, false, err
			}
			if !required {
				break
			}
			ok, err := o.gate(ctx, run, mode, policy.StageQuestionReviewRequired, ReviewQuestionAction(res.QuestionHash), map[string]any{
				"field_key": q.FieldKey,
				"question":  q.Text,
				"answer":    res.Answer,
				"source":    res.Source,
				"reason":    res.Reason,
				"critical":  res.Critical,
			})
			if err != nil || !ok {
				return nil, false, err
			}
			fill.FillStatus = db.FillStatusFilledAfterReview
			fill.Confidence = 1
		}
		if fill.FillStatus == db.FillStatusUnanswered {
			o.log.Info("question left unanswered", "run_id", run.ID, "field_key", q.FieldKey, "reason", res.Reason)
		}
		fills = append(fills, fill)
	}
	return fills, true, nil
}

// suspendForCaptcha parks the run until a human solves the captcha. The
// cursor stays put so the same action runs again after approval.
func (o *Orchestrator) suspendForCaptcha(ctx context.Context, run *db.Run, action string, res types.ActionResult) error {
	if _, err := o.repo.AppendRunEvent(ctx, &db.RunEventInput{
		RunID:            run.ID,
		Stage:            policy.StageCaptcha,
		Action:           browser.CaptchaAction,
		Payload:          map[string]any{"message": res.Message, "browser_action": action},
		RequiresApproval: true,
		ApprovalState:    db.ApprovalPending,
	}); err != nil {
		return fmt.Errorf("failed to append captcha event: %w", err)
	}
	if err := o.updateRun(ctx, run, &db.RunUpdate{Status: db.Ptr(db.RunStatusWaitingCaptcha)}); err != nil {
		return err
	}
	o.emit(ctx, run.ID)
	o.log.Info("waiting for captcha", "run_id", run.ID, "action", action)
	return nil
}

// endBrowserFlow finishes the run with a failed or blocked browser outcome.
func (o *Orchestrator) endBrowserFlow(ctx context.Context, run *db.Run, stage, action string, res types.ActionResult, status, runStage string) error {
	if err := o.record(ctx, run.ID, stage, res.Status+":"+action, map[string]any{"message": res.Message}); err != nil {
		return err
	}
	upd := &db.RunUpdate{
		Status:       db.Ptr(status),
		CurrentStage: db.Ptr(runStage),
		Completed:    true,
	}
	if status == db.RunStatusFailed {
		upd.Error = db.Ptr(res.Message)
	}
	if err := o.updateRun(ctx, run, upd); err != nil {
		return err
	}
	o.emit(ctx, run.ID)
	o.log.Info("browser flow ended", "run_id", run.ID, "action", action, "status", status, "message", res.Message)
	return nil
}

// complete records the submission and finishes the run.
func (o *Orchestrator) complete(ctx context.Context, run *db.Run, job *db.Job) error {
	ref := fmt.Sprintf("RUN-%s-%d", run.ID, o.opts.Clock().Unix())
	text := "Application flow completed"
	if !run.Context.Submit {
		text = "Application flow completed (dry run, not submitted)"
	}
	if _, err := o.repo.CreateSubmission(ctx, &db.SubmissionInput{
		RunID:            run.ID,
		ConfirmationText: text,
		ConfirmationRef:  ref,
	}); err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	if err := o.updateRun(ctx, run, &db.RunUpdate{
		Status:        db.Ptr(db.RunStatusCompleted),
		CurrentStage:  db.Ptr(db.StageCompleted),
		SubmissionURL: db.Ptr(job.URL),
		Completed:     true,
	}); err != nil {
		return err
	}
	if err := o.record(ctx, run.ID, "run", "completed", map[string]any{
		"confirmation_ref": ref,
		"submitted":        run.Context.Submit,
	}); err != nil {
		return err
	}
	o.emit(ctx, run.ID)
	o.log.Info("run completed", "run_id", run.ID, "confirmation_ref", ref)
	return nil
}
