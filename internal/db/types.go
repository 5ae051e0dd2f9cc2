package db

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/types"
)

// Run status constants
const (
	RunStatusCreated         = "created"
	RunStatusRunning         = "running"
	RunStatusWaitingApproval = "waiting_approval"
	RunStatusWaitingCaptcha  = "waiting_captcha"
	RunStatusBlocked         = "blocked"
	RunStatusFailed          = "failed"
	RunStatusCompleted       = "completed"
)

// Workflow stage constants (Run.CurrentStage)
const (
	StageJobParse     = "job_parse"
	StageCVTailor     = "cv_tailor"
	StageProfilePatch = "profile_patch"
	StageBrowserFlow  = "browser_flow"
	StageCompleted    = "completed"
	StageFailed       = "failed"
	StageBlocked      = "blocked"
)

// Approval state constants
const (
	ApprovalNotRequired = "not_required"
	ApprovalPending     = "pending"
	ApprovalApproved    = "approved"
	ApprovalRejected    = "rejected"
)

// Patch suggestion status constants
const (
	PatchStatusSuggested = "suggested"
	PatchStatusApplied   = "applied"
)

// Verification states of stored answers
const (
	VerificationVerified    = "verified"
	VerificationNeedsReview = "needs_review"
	VerificationRejected    = "rejected"
)

// ErrEventNotPending is returned when deciding an event that is not awaiting approval.
var ErrEventNotPending = errors.New("event is not pending approval")

// Ptr returns a pointer to v, for building partial updates.
func Ptr[T any](v T) *T {
	return &v
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

// Profile is the root record of a candidate profile
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	JobFamily string    `json:"job_family"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// -----------------------------------------------------------------------------
// Jobs
// -----------------------------------------------------------------------------

// Job is one fetched posting. A new row is created per run start.
type Job struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Company   string    `json:"company"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	JDText    string    `json:"jd_text"`
	JDHash    string    `json:"jd_hash"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job requirement kinds
const (
	RequirementKindRequirement    = "requirement"
	RequirementKindResponsibility = "responsibility"
)

// JobRequirement is a requirement or responsibility line item
type JobRequirement struct {
	ID          int64     `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	Kind        string    `json:"kind"`
	Value       string    `json:"value"`
	Priority    string    `json:"priority"`
	SourceQuote string    `json:"source_quote"`
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

// Run is the unit of work driven by the orchestrator
type Run struct {
	ID             uuid.UUID        `json:"id"`
	JobID          uuid.UUID        `json:"job_id"`
	ProfileID      uuid.UUID        `json:"profile_id"`
	Mode           string           `json:"mode"`
	Status         string           `json:"status"`
	CurrentStage   string           `json:"current_stage"`
	Context        types.RunContext `json:"context"`
	ContextVersion int              `json:"context_version"`
	SubmissionURL  *string          `json:"submission_url"`
	Error          *string          `json:"error"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsTerminal reports whether the run can never advance again.
func (r *Run) IsTerminal() bool {
	switch r.Status {
	case RunStatusBlocked, RunStatusFailed, RunStatusCompleted:
		return true
	}
	return false
}

// IsSuspended reports whether the advance loop must stop for this run.
func (r *Run) IsSuspended() bool {
	return r.IsTerminal() || r.Status == RunStatusWaitingApproval || r.Status == RunStatusWaitingCaptcha
}

// RunInput represents input for creating a run
type RunInput struct {
	JobID        uuid.UUID
	ProfileID    uuid.UUID
	Mode         string
	Status       string
	CurrentStage string
	Context      types.RunContext
}

// RunUpdate is a partial update; nil fields are left unchanged.
// Completed stamps completed_at.
type RunUpdate struct {
	Status        *string
	CurrentStage  *string
	Context       *types.RunContext
	SubmissionURL *string
	Error         *string
	Completed     bool
}

// ContextHistoryEntry is one versioned change to a run's context
type ContextHistoryEntry struct {
	RunID     uuid.UUID       `json:"run_id"`
	Version   int             `json:"version"`
	Patch     json.RawMessage `json:"patch"`
	CreatedAt time.Time       `json:"created_at"`
}

// RunEvent is one append-only entry in a run's history
type RunEvent struct {
	ID               uuid.UUID      `json:"id"`
	Seq              int64          `json:"seq"`
	RunID            uuid.UUID      `json:"run_id"`
	Stage            string         `json:"stage"`
	Action           string         `json:"action"`
	Payload          map[string]any `json:"payload"`
	RequiresApproval bool           `json:"requires_approval"`
	ApprovalState    string         `json:"approval_state"`
	CreatedAt        time.Time      `json:"created_at"`
	DecidedAt        *time.Time     `json:"decided_at,omitempty"`
}

// RunEventInput represents input for appending an event
type RunEventInput struct {
	RunID            uuid.UUID
	Stage            string
	Action           string
	Payload          map[string]any
	RequiresApproval bool
	ApprovalState    string
}

// -----------------------------------------------------------------------------
// Patches, documents, browser results, submissions
// -----------------------------------------------------------------------------

// PatchSuggestion is an advisory record of one LLM-proposed patch bundle
type PatchSuggestion struct {
	ID         uuid.UUID              `json:"id"`
	RunID      uuid.UUID              `json:"run_id"`
	Provider   string                 `json:"provider"`
	Rationale  string                 `json:"rationale"`
	Operations []types.PatchOperation `json:"operations"`
	Confidence float64                `json:"confidence"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
}

// PatchSuggestionInput represents input for recording a patch suggestion
type PatchSuggestionInput struct {
	RunID    uuid.UUID
	Provider string
	Bundle   types.ProfilePatchBundle
	Status   string
}

// DocumentVersion is a generated resume or cover letter snapshot
type DocumentVersion struct {
	ID               uuid.UUID      `json:"id"`
	ProfileID        uuid.UUID      `json:"profile_id"`
	JobID            uuid.UUID      `json:"job_id"`
	RunID            *uuid.UUID     `json:"run_id,omitempty"`
	FilePath         string         `json:"file_path"`
	MarkdownSnapshot string         `json:"markdown_snapshot"`
	LLMMetadata      map[string]any `json:"llm_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
}

// DocumentVersionInput represents input for saving a document snapshot
type DocumentVersionInput struct {
	ProfileID        uuid.UUID
	JobID            uuid.UUID
	RunID            *uuid.UUID
	FilePath         string
	MarkdownSnapshot string
	LLMMetadata      map[string]any
}

// Field fill statuses
const (
	FillStatusFilled            = "filled"
	FillStatusFilledAfterReview = "filled_after_review"
	FillStatusUnanswered        = "unanswered"
)

// FieldFillResult is one browser form-field outcome
type FieldFillResult struct {
	ID          int64     `json:"id"`
	RunID       uuid.UUID `json:"run_id"`
	PageURL     string    `json:"page_url"`
	FieldKey    string    `json:"field_key"`
	Locator     string    `json:"locator"`
	ValueSource string    `json:"value_source"`
	FillStatus  string    `json:"fill_status"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

// FieldFillInput represents input for recording a field fill
type FieldFillInput struct {
	RunID       uuid.UUID
	PageURL     string
	FieldKey    string
	Locator     string
	ValueSource string
	FillStatus  string
	Confidence  float64
}

// ApplicationSubmission is the terminal confirmation of a run
type ApplicationSubmission struct {
	ID               uuid.UUID `json:"id"`
	RunID            uuid.UUID `json:"run_id"`
	SubmittedAt      time.Time `json:"submitted_at"`
	ConfirmationText string    `json:"confirmation_text"`
	ConfirmationRef  string    `json:"confirmation_ref"`
	ScreenshotPath   string    `json:"screenshot_path"`
}

// SubmissionInput represents input for recording a submission
type SubmissionInput struct {
	RunID            uuid.UUID
	ConfirmationText string
	ConfirmationRef  string
	ScreenshotPath   string
}

// -----------------------------------------------------------------------------
// Question bank
// -----------------------------------------------------------------------------

// Question is a canonicalized screening question
type Question struct {
	ID            uuid.UUID `json:"id"`
	QuestionHash  string    `json:"question_hash"`
	CanonicalText string    `json:"canonical_text"`
	QuestionType  string    `json:"question_type"`
	Options       []string  `json:"options"`
	Tags          []string  `json:"tags"`
	Section       string    `json:"section"`
	Importance    string    `json:"importance"`
	IsCVDerived   bool      `json:"is_cv_derived"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuestionInput represents input for upserting a question
type QuestionInput struct {
	QuestionHash  string
	CanonicalText string
	QuestionType  string
	Options       []string
	Tags          []string
	Section       string
	Importance    string
	IsCVDerived   bool
}

// ProfileAnswer is a profile's stored answer to a question
type ProfileAnswer struct {
	ID                uuid.UUID `json:"id"`
	ProfileID         uuid.UUID `json:"profile_id"`
	QuestionID        uuid.UUID `json:"question_id"`
	QuestionHash      string    `json:"question_hash"`
	AnswerText        string    `json:"answer_text"`
	Confidence        float64   `json:"confidence"`
	VerificationState string    `json:"verification_state"`
	Source            string    `json:"source"`
	SourceSection     string    `json:"source_section"`
	Evidence          string    `json:"evidence"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProfileAnswerInput represents input for upserting an answer
type ProfileAnswerInput struct {
	ProfileID         uuid.UUID
	QuestionID        uuid.UUID
	AnswerText        string
	Confidence        float64
	VerificationState string
	Source            string
	SourceSection     string
	Evidence          string
}
