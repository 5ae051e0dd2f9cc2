package answers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/llm"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

// Answer sources
const (
	SourceProfileAnswers = "profile_answers"
	SourceLLMInferred    = "llm_inferred"
)

// Refusal reasons
const (
	ReasonNeedsReview         = "needs_review"
	ReasonCriticalNeedsReview = "critical_needs_review"
	ReasonRejected            = "rejected"
	ReasonUnknown             = "unknown"
	ReasonRequiresReview      = "requires_review"
	ReasonBlockedCritical     = "blocked_critical"
)

// Confidence levels
const (
	ConfidenceVerified    = 0.98
	ConfidenceNeedsReview = 0.75
	ConfidenceDrafted     = 0.6
)

// Store is the slice of the repository the resolver reads and writes
type Store interface {
	UpsertQuestion(ctx context.Context, input *db.QuestionInput) (*db.Question, error)
	GetProfileAnswer(ctx context.Context, profileID uuid.UUID, questionHash string) (*db.ProfileAnswer, error)
	UpsertProfileAnswer(ctx context.Context, input *db.ProfileAnswerInput) (*db.ProfileAnswer, error)
}

// Drafter produces a candidate answer or llm.UnknownAnswer
type Drafter interface {
	DraftAnswer(ctx context.Context, question string, profile *types.ProfileFacts, analysis types.JobAnalysis) string
}

// Request is one question to resolve for a run
type Request struct {
	ProfileID uuid.UUID
	Profile   *types.ProfileFacts
	Analysis  types.JobAnalysis
	Question  types.FormQuestion
	Mode      policy.Mode
}

// Resolution is the outcome of the decision table. A refused resolution may
// still carry the stored or drafted answer so a reviewer can accept it.
type Resolution struct {
	QuestionHash string  `json:"question_hash"`
	Critical     bool    `json:"critical"`
	Usable       bool    `json:"usable"`
	Answer       string  `json:"answer"`
	Source       string  `json:"source"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason,omitempty"`
}

// NeedsHumanReview reports whether the refusal can be lifted by an approval.
func (r Resolution) NeedsHumanReview() bool {
	switch r.Reason {
	case ReasonNeedsReview, ReasonCriticalNeedsReview, ReasonRequiresReview:
		return true
	}
	return false
}

// Resolver applies the answer decision table
type Resolver struct {
	store   Store
	drafter Drafter
}

// NewResolver creates a resolver
func NewResolver(store Store, drafter Drafter) *Resolver {
	return &Resolver{store: store, drafter: drafter}
}

// Resolve registers the question in the bank and decides whether an answer
// may be used without review.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	if _, err := policy.ParseMode(string(req.Mode)); err != nil {
		return Resolution{}, err
	}

	q := req.Question
	res := Resolution{QuestionHash: HashQuestion(q.Text), Critical: IsCritical(q)}

	if _, err := r.store.UpsertQuestion(ctx, &db.QuestionInput{
		QuestionHash:  res.QuestionHash,
		CanonicalText: Canonicalize(q.Text),
		QuestionType:  q.Type,
		Options:       q.Options,
		Tags:          q.Tags,
		Section:       "application_form",
	}); err != nil {
		return Resolution{}, fmt.Errorf("failed to register question: %w", err)
	}

	stored, err := r.store.GetProfileAnswer(ctx, req.ProfileID, res.QuestionHash)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to get stored answer: %w", err)
	}
	if stored != nil && stored.AnswerText != "" {
		res.Answer = stored.AnswerText
		res.Source = SourceProfileAnswers
		res.Usable, res.Confidence, res.Reason = decideStored(stored.VerificationState, req.Mode, res.Critical)
		return res, nil
	}

	draft := llm.UnknownAnswer
	if r.drafter != nil {
		draft = r.drafter.DraftAnswer(ctx, q.Text, req.Profile, req.Analysis)
	}
	if draft == llm.UnknownAnswer || draft == "" {
		res.Reason = ReasonUnknown
		return res, nil
	}
	res.Answer = draft
	res.Source = SourceLLMInferred
	res.Usable, res.Confidence, res.Reason = decideDrafted(req.Mode, res.Critical)
	return res, nil
}

// decideStored covers answers the profile already holds.
func decideStored(state string, mode policy.Mode, critical bool) (bool, float64, string) {
	switch state {
	case db.VerificationVerified:
		return true, ConfidenceVerified, ""
	case db.VerificationNeedsReview:
		if mode == policy.ModeStrict {
			return false, 0, ReasonNeedsReview
		}
		if critical {
			return false, 0, ReasonCriticalNeedsReview
		}
		return true, ConfidenceNeedsReview, ""
	default:
		return false, 0, ReasonRejected
	}
}

// decideDrafted covers answers the LLM just drafted.
func decideDrafted(mode policy.Mode, critical bool) (bool, float64, string) {
	switch {
	case mode == policy.ModeStrict:
		return false, 0, ReasonRequiresReview
	case critical && mode == policy.ModeMedium:
		return false, 0, ReasonRequiresReview
	case critical:
		return false, 0, ReasonBlockedCritical
	default:
		return true, ConfidenceDrafted, ""
	}
}

// Remember stores a profile's answer, registering the question first.
func Remember(ctx context.Context, store Store, profileID uuid.UUID, req *types.StoreAnswerRequest) (*db.ProfileAnswer, error) {
	q, err := store.UpsertQuestion(ctx, &db.QuestionInput{
		QuestionHash:  HashQuestion(req.Question),
		CanonicalText: Canonicalize(req.Question),
		QuestionType:  req.QuestionType,
		Tags:          req.Tags,
		Section:       "profile",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register question: %w", err)
	}

	state := req.VerificationState
	if state == "" {
		state = db.VerificationVerified
	}
	source := req.Source
	if source == "" {
		source = "manual"
	}
	confidence := ConfidenceNeedsReview
	if state == db.VerificationVerified {
		confidence = ConfidenceVerified
	}

	return store.UpsertProfileAnswer(ctx, &db.ProfileAnswerInput{
		ProfileID:         profileID,
		QuestionID:        q.ID,
		AnswerText:        req.Answer,
		Confidence:        confidence,
		VerificationState: state,
		Source:            source,
	})
}
