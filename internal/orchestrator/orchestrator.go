// Package orchestrator drives application runs through job parsing, document
// tailoring, profile patching and the browser flow.
//
// A run is a resumable state machine. Everything needed to continue lives in
// the persisted run context, every transition appends an event, and sensitive
// steps stop behind approval gates until a human decides them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/answers"
	"github.com/jonathan/vulture/internal/browser"
	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

var (
	// ErrNotFound is returned when a run or event does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidReference is returned for dangling or mismatched references,
	// such as an unknown profile or an event that belongs to another run.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrEventNotPending is returned when deciding an event that was already decided
	// or never needed a decision.
	ErrEventNotPending = db.ErrEventNotPending
	// ErrRunTerminal is returned when deciding an event of a finished run.
	ErrRunTerminal = errors.New("run is terminal")
)

// Repository is the persistence the orchestrator needs. Reads return (nil, nil)
// when the record does not exist.
type Repository interface {
	answers.Store

	GetProfile(ctx context.Context, id uuid.UUID) (*db.Profile, error)
	GetProfileFacts(ctx context.Context, id uuid.UUID) (*types.ProfileFacts, error)
	ApplyPatchOperation(ctx context.Context, profileID uuid.UUID, op types.PatchOperation) error

	CreateJob(ctx context.Context, jobURL string) (*db.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*db.Job, error)
	UpdateJobAnalysis(ctx context.Context, jobID uuid.UUID, analysis types.JobAnalysis, text string) (*db.Job, error)

	CreateRun(ctx context.Context, input *db.RunInput) (*db.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*db.Run, error)
	UpdateRun(ctx context.Context, id uuid.UUID, upd *db.RunUpdate) (*db.Run, error)

	AppendRunEvent(ctx context.Context, input *db.RunEventInput) (*db.RunEvent, error)
	GetRunEvent(ctx context.Context, id uuid.UUID) (*db.RunEvent, error)
	ListRunEvents(ctx context.Context, runID uuid.UUID) ([]db.RunEvent, error)
	LatestRunEvent(ctx context.Context, runID uuid.UUID) (*db.RunEvent, error)
	GetApprovalEvent(ctx context.Context, runID uuid.UUID, stage, action, state string) (*db.RunEvent, error)
	ListPendingApprovalEvents(ctx context.Context, runID uuid.UUID) ([]db.RunEvent, error)
	SetEventApproval(ctx context.Context, id uuid.UUID, state string) (*db.RunEvent, error)

	CreatePatchSuggestion(ctx context.Context, input *db.PatchSuggestionInput) (*db.PatchSuggestion, error)
	SaveResumeVersion(ctx context.Context, input *db.DocumentVersionInput) (*db.DocumentVersion, error)
	SaveCoverLetterVersion(ctx context.Context, input *db.DocumentVersionInput) (*db.DocumentVersion, error)
	RecordFieldFill(ctx context.Context, input *db.FieldFillInput) (*db.FieldFillResult, error)
	CreateSubmission(ctx context.Context, input *db.SubmissionInput) (*db.ApplicationSubmission, error)
}

var _ Repository = (*db.DB)(nil)

// RunLocker serializes advancement of one run across processes.
type RunLocker interface {
	LockRun(ctx context.Context, runID uuid.UUID) (func(), error)
}

var _ RunLocker = (*db.DB)(nil)

// Fetcher returns the readable text of a job posting, or "" when it cannot.
type Fetcher interface {
	JobText(ctx context.Context, jobURL string) string
}

// Router is the LLM surface. Every call degrades to a heuristic instead of failing.
type Router interface {
	AnalyzeJob(ctx context.Context, jobURL, jobText string) types.JobAnalysis
	TailorDocuments(ctx context.Context, profile *types.ProfileFacts, analysis types.JobAnalysis) types.TailoredDocuments
	SuggestProfilePatch(ctx context.Context, profile *types.ProfileFacts, analysis types.JobAnalysis) types.ProfilePatchBundle
	DraftAnswer(ctx context.Context, question string, profile *types.ProfileFacts, analysis types.JobAnalysis) string
}

// Executor runs browser actions and reports typed outcomes.
type Executor interface {
	Plan(jobURL string) (browser.Adapter, []string)
	AdapterByName(name, jobURL string) browser.Adapter
	Execute(ctx context.Context, s *browser.Session, action string) types.ActionResult
}

// AnswerResolver decides whether a screening answer may be used unreviewed.
type AnswerResolver interface {
	Resolve(ctx context.Context, req answers.Request) (answers.Resolution, error)
}

// Deps are the collaborators of an Orchestrator. Answers defaults to a resolver
// over Repo and LLM; Publisher and Locker are optional.
type Deps struct {
	Repo      Repository
	Fetcher   Fetcher
	LLM       Router
	Browser   Executor
	Answers   AnswerResolver
	Publisher events.Publisher
	Locker    RunLocker
	Log       *logger.Logger
}

// Options tune where documents go and how runs are stamped
type Options struct {
	ResumeDir      string
	CoverLetterDir string
	DefaultMode    policy.Mode
	PatchProvider  string
	Clock          func() time.Time
}

// Orchestrator owns the run state machine
type Orchestrator struct {
	repo      Repository
	fetcher   Fetcher
	llm       Router
	browser   Executor
	answers   AnswerResolver
	publisher events.Publisher
	locker    RunLocker
	log       *logger.Logger
	opts      Options
	locks     *runLocks
}

// New creates an orchestrator
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Answers == nil {
		deps.Answers = answers.NewResolver(deps.Repo, deps.LLM)
	}
	if opts.ResumeDir == "" {
		opts.ResumeDir = "./data/resumes"
	}
	if opts.CoverLetterDir == "" {
		opts.CoverLetterDir = "./data/cover_letters"
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = policy.ModeMedium
	}
	if opts.PatchProvider == "" {
		opts.PatchProvider = "local"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Orchestrator{
		repo:      deps.Repo,
		fetcher:   deps.Fetcher,
		llm:       deps.LLM,
		browser:   deps.Browser,
		answers:   deps.Answers,
		publisher: deps.Publisher,
		locker:    deps.Locker,
		log:       deps.Log,
		opts:      opts,
		locks:     newRunLocks(),
	}
}

// StartApplication creates a job and a run for url and advances the run until
// it completes or suspends. An empty mode selects the default mode.
func (o *Orchestrator) StartApplication(ctx context.Context, url string, profileID uuid.UUID, mode policy.Mode, submit bool) (*db.Run, error) {
	if mode == "" {
		mode = o.opts.DefaultMode
	}
	mode, err := policy.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}

	profile, err := o.repo.GetProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: profile %s does not exist", ErrInvalidReference, profileID)
	}

	job, err := o.repo.CreateJob(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	run, err := o.repo.CreateRun(ctx, &db.RunInput{
		JobID:        job.ID,
		ProfileID:    profileID,
		Mode:         string(mode),
		Status:       db.RunStatusRunning,
		CurrentStage: db.StageJobParse,
		Context: types.RunContext{
			Submit:              submit,
			PatchAppliedIndexes: []int{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if _, err := o.repo.AppendRunEvent(ctx, &db.RunEventInput{
		RunID:  run.ID,
		Stage:  "run",
		Action: "created",
		Payload: map[string]any{
			"job_id": job.ID.String(),
			"url":    url,
			"mode":   string(mode),
			"submit": submit,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to append created event: %w", err)
	}
	o.emit(ctx, run.ID)

	o.log.Info("run started", "run_id", run.ID, "job_url", url, "mode", mode, "submit", submit)
	return o.Advance(ctx, run.ID)
}

// Advance re-enters the advance loop. Suspended and terminal runs are returned unchanged.
func (o *Orchestrator) Advance(ctx context.Context, runID uuid.UUID) (*db.Run, error) {
	unlock, err := o.lock(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return o.advance(ctx, runID)
}

// ApproveEvent approves a pending event and resumes the run. Approving a
// captcha event marks the captcha as solved.
func (o *Orchestrator) ApproveEvent(ctx context.Context, runID, eventID uuid.UUID) (*db.Run, error) {
	unlock, err := o.lock(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	run, event, err := o.decisionTarget(ctx, runID, eventID)
	if err != nil {
		return nil, err
	}

	if _, err := o.setApproval(ctx, eventID, db.ApprovalApproved); err != nil {
		return nil, err
	}

	if event.Stage == policy.StageCaptcha {
		rc := run.Context.Clone()
		rc.CaptchaSolved = true
		if err := o.updateRun(ctx, run, &db.RunUpdate{Context: &rc}); err != nil {
			return nil, err
		}
	}

	if _, err := o.repo.AppendRunEvent(ctx, &db.RunEventInput{
		RunID:   runID,
		Stage:   event.Stage,
		Action:  "approval_granted:" + event.Action,
		Payload: map[string]any{"event_id": eventID.String()},
	}); err != nil {
		return nil, fmt.Errorf("failed to append approval event: %w", err)
	}
	if err := o.updateRun(ctx, run, &db.RunUpdate{Status: db.Ptr(db.RunStatusRunning)}); err != nil {
		return nil, err
	}
	o.emit(ctx, runID)

	o.log.Info("event approved", "run_id", runID, "stage", event.Stage, "action", event.Action)
	return o.advance(ctx, runID)
}

// RejectEvent rejects a pending event. The run ends blocked.
func (o *Orchestrator) RejectEvent(ctx context.Context, runID, eventID uuid.UUID) (*db.Run, error) {
	unlock, err := o.lock(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	run, event, err := o.decisionTarget(ctx, runID, eventID)
	if err != nil {
		return nil, err
	}

	if _, err := o.setApproval(ctx, eventID, db.ApprovalRejected); err != nil {
		return nil, err
	}
	if _, err := o.repo.AppendRunEvent(ctx, &db.RunEventInput{
		RunID:   runID,
		Stage:   event.Stage,
		Action:  "approval_rejected:" + event.Action,
		Payload: map[string]any{"event_id": eventID.String()},
	}); err != nil {
		return nil, fmt.Errorf("failed to append rejection event: %w", err)
	}
	if err := o.updateRun(ctx, run, &db.RunUpdate{
		Status:       db.Ptr(db.RunStatusBlocked),
		CurrentStage: db.Ptr(db.StageBlocked),
		Completed:    true,
	}); err != nil {
		return nil, err
	}
	o.emit(ctx, runID)

	o.log.Info("event rejected, run blocked", "run_id", runID, "stage", event.Stage, "action", event.Action)
	return run, nil
}

// SerializeRun returns the latest persisted state of a run.
func (o *Orchestrator) SerializeRun(ctx context.Context, runID uuid.UUID) (*db.Run, error) {
	return o.getRun(ctx, runID)
}

// Events lists a run's events in append order.
func (o *Orchestrator) Events(ctx context.Context, runID uuid.UUID) ([]db.RunEvent, error) {
	if _, err := o.getRun(ctx, runID); err != nil {
		return nil, err
	}
	evts, err := o.repo.ListRunEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run events: %w", err)
	}
	return evts, nil
}

// PendingApprovals lists the events of a run that wait for a decision.
func (o *Orchestrator) PendingApprovals(ctx context.Context, runID uuid.UUID) ([]db.RunEvent, error) {
	if _, err := o.getRun(ctx, runID); err != nil {
		return nil, err
	}
	evts, err := o.repo.ListPendingApprovalEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	return evts, nil
}

func (o *Orchestrator) getRun(ctx context.Context, runID uuid.UUID) (*db.Run, error) {
	run, err := o.repo.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return run, nil
}

// decisionTarget loads the run and event an approval decision applies to.
func (o *Orchestrator) decisionTarget(ctx context.Context, runID, eventID uuid.UUID) (*db.Run, *db.RunEvent, error) {
	run, err := o.getRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	event, err := o.repo.GetRunEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get run event: %w", err)
	}
	if event == nil {
		return nil, nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if event.RunID != runID {
		return nil, nil, fmt.Errorf("%w: event %s does not belong to run %s", ErrInvalidReference, eventID, runID)
	}
	if run.IsTerminal() {
		return nil, nil, fmt.Errorf("%w: run %s is %s", ErrRunTerminal, runID, run.Status)
	}
	if event.ApprovalState != db.ApprovalPending {
		return nil, nil, fmt.Errorf("%w: event %s is %s", ErrEventNotPending, eventID, event.ApprovalState)
	}
	return run, event, nil
}

func (o *Orchestrator) setApproval(ctx context.Context, eventID uuid.UUID, state string) (*db.RunEvent, error) {
	event, err := o.repo.SetEventApproval(ctx, eventID, state)
	if err != nil {
		if errors.Is(err, db.ErrEventNotPending) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to set event approval: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	return event, nil
}

// lock serializes work on one run in this process and, when a locker is
// configured, across processes.
func (o *Orchestrator) lock(ctx context.Context, runID uuid.UUID) (func(), error) {
	release := o.locks.lock(runID)
	if o.locker == nil {
		return release, nil
	}

	unlock, err := o.locker.LockRun(ctx, runID)
	if err != nil {
		release()
		return nil, err
	}
	return func() {
		unlock()
		release()
	}, nil
}
