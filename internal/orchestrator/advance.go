package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
	"github.com/jonathan/vulture/internal/policy"
)

// maxSteps bounds one advance call. A healthy run needs far fewer.
const maxSteps = 64

// advance runs steps until the run suspends, finishes or stops making progress.
// The caller holds the run lock.
func (o *Orchestrator) advance(ctx context.Context, runID uuid.UUID) (*db.Run, error) {
	for i := 0; i < maxSteps; i++ {
		run, err := o.getRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.IsSuspended() {
			return run, nil
		}
		if err := ctx.Err(); err != nil {
			return run, err
		}

		progressed, err := o.safeStep(ctx, run)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return run, err
			}
			return o.fail(ctx, runID, err)
		}
		if !progressed {
			return o.getRun(ctx, runID)
		}
	}
	return o.fail(ctx, runID, fmt.Errorf("run did not settle after %d steps", maxSteps))
}

// safeStep turns a panic inside a step into an error.
func (o *Orchestrator) safeStep(ctx context.Context, run *db.Run) (progressed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			progressed = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.step(ctx, run)
}

// step attempts the work of the run's current stage once.
func (o *Orchestrator) step(ctx context.Context, run *db.Run) (bool, error) {
	mode, err := policy.ParseMode(run.Mode)
	if err != nil {
		return false, err
	}

	job, err := o.repo.GetJob(ctx, run.JobID)
	if err != nil {
		return false, fmt.Errorf("failed to get job: %w", err)
	}
	profile, err := o.repo.GetProfile(ctx, run.ProfileID)
	if err != nil {
		return false, fmt.Errorf("failed to get profile: %w", err)
	}
	if job == nil || profile == nil {
		return false, fmt.Errorf("%w: run references missing job or profile", ErrInvalidReference)
	}

	o.log.Debug("advancing run", "run_id", run.ID, "stage", run.CurrentStage, "mode", mode)

	switch run.CurrentStage {
	case db.StageJobParse:
		return o.stepJobParse(ctx, run, mode, job)
	case db.StageCVTailor:
		return o.stepCVTailor(ctx, run, mode, job)
	case db.StageProfilePatch:
		return o.stepProfilePatch(ctx, run, mode)
	case db.StageBrowserFlow:
		return o.stepBrowserFlow(ctx, run, mode, job)
	default:
		return false, fmt.Errorf("unknown stage %q", run.CurrentStage)
	}
}

// fail records cause on the run and ends it. The failure is the outcome, so
// only persistence errors are returned.
func (o *Orchestrator) fail(ctx context.Context, runID uuid.UUID, cause error) (*db.Run, error) {
	msg := cause.Error()
	o.log.Error("run failed", "run_id", runID, "error", msg)

	if _, err := o.repo.AppendRunEvent(ctx, &db.RunEventInput{
		RunID:   runID,
		Stage:   "run",
		Action:  "error",
		Payload: map[string]any{"error": msg},
	}); err != nil {
		return nil, fmt.Errorf("failed to append error event: %w", err)
	}

	run, err := o.repo.UpdateRun(ctx, runID, &db.RunUpdate{
		Status:       db.Ptr(db.RunStatusFailed),
		CurrentStage: db.Ptr(db.StageFailed),
		Error:        db.Ptr(msg),
		Completed:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark run failed: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	o.emit(ctx, runID)
	return run, nil
}

// gate applies the approval protocol for (stage, action). It reports whether
// the caller may proceed; when it may not, the run has been suspended or blocked.
func (o *Orchestrator) gate(ctx context.Context, run *db.Run, mode policy.Mode, stage, action string, payload map[string]any) (bool, error) {
	required, err := policy.RequiresApproval(mode, stage)
	if err != nil {
		return false, err
	}
	if !required {
		return true, nil
	}

	rejected, err := o.repo.GetApprovalEvent(ctx, run.ID, stage, action, db.ApprovalRejected)
	if err != nil {
		return false, fmt.Errorf("failed to look up approval: %w", err)
	}
	if rejected != nil {
		if err := o.updateRun(ctx, run, &db.RunUpdate{
			Status:       db.Ptr(db.RunStatusBlocked),
			CurrentStage: db.Ptr(db.StageBlocked),
			Completed:    true,
		}); err != nil {
			return false, err
		}
		o.emit(ctx, run.ID)
		o.log.Info("gate rejected, run blocked", "run_id", run.ID, "stage", stage, "action", action)
		return false, nil
	}

	approved, err := o.repo.GetApprovalEvent(ctx, run.ID, stage, action, db.ApprovalApproved)
	if err != nil {
		return false, fmt.Errorf("failed to look up approval: %w", err)
	}
	if approved != nil {
		return true, nil
	}

	pending, err := o.repo.GetApprovalEvent(ctx, run.ID, stage, action, db.ApprovalPending)
	if err != nil {
		return false, fmt.Errorf("failed to look up approval: %w", err)
	}
	if pending == nil {
		if _, err := o.repo.AppendRunEvent(ctx, &db.RunEventInput{
			RunID:            run.ID,
			Stage:            stage,
			Action:           action,
			Payload:          payload,
			RequiresApproval: true,
			ApprovalState:    db.ApprovalPending,
		}); err != nil {
			return false, fmt.Errorf("failed to append approval request: %w", err)
		}
	}

	if err := o.updateRun(ctx, run, &db.RunUpdate{Status: db.Ptr(db.RunStatusWaitingApproval)}); err != nil {
		return false, err
	}
	o.emit(ctx, run.ID)
	o.log.Info("waiting for approval", "run_id", run.ID, "stage", stage, "action", action)
	return false, nil
}

// updateRun persists upd and refreshes run in place.
func (o *Orchestrator) updateRun(ctx context.Context, run *db.Run, upd *db.RunUpdate) error {
	if upd.Context != nil {
		rc := upd.Context.Clone()
		upd.Context = &rc
	}
	updated, err := o.repo.UpdateRun(ctx, run.ID, upd)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if updated == nil {
		return fmt.Errorf("%w: run %s", ErrNotFound, run.ID)
	}
	*run = *updated
	return nil
}

// record appends a non-approval event for the run.
func (o *Orchestrator) record(ctx context.Context, runID uuid.UUID, stage, action string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	if _, err := o.repo.AppendRunEvent(ctx, &db.RunEventInput{
		RunID:   runID,
		Stage:   stage,
		Action:  action,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("failed to append %s event: %w", action, err)
	}
	return nil
}

// emit publishes the run's latest event. Delivery problems are logged and
// never reach the run.
func (o *Orchestrator) emit(ctx context.Context, runID uuid.UUID) {
	if o.publisher == nil {
		return
	}

	latest, err := o.repo.LatestRunEvent(ctx, runID)
	if err != nil {
		o.log.Warn("failed to load latest event for publishing", "run_id", runID, "error", err)
		return
	}
	if latest == nil {
		return
	}

	if err := o.publisher.Publish(ctx, runID, PayloadOf(latest)); err != nil {
		o.log.Warn("failed to publish run event", "run_id", runID, "action", latest.Action, "error", err)
	}
}

// PayloadOf converts a stored event into its broadcast form.
func PayloadOf(e *db.RunEvent) events.Payload {
	return events.Payload{
		EventID:          e.ID,
		RunID:            e.RunID,
		Stage:            e.Stage,
		Action:           e.Action,
		Payload:          e.Payload,
		RequiresApproval: e.RequiresApproval,
		ApprovalState:    e.ApprovalState,
		CreatedAt:        e.CreatedAt,
	}
}
