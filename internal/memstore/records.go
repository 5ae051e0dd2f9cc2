package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/db"
)

// CreatePatchSuggestion records an advisory patch bundle for a run
func (s *Store) CreatePatchSuggestion(_ context.Context, input *db.PatchSuggestionInput) (*db.PatchSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := input.Status
	if status == "" {
		status = db.PatchStatusSuggested
	}
	p := db.PatchSuggestion{
		ID:         uuid.New(),
		RunID:      input.RunID,
		Provider:   input.Provider,
		Rationale:  input.Bundle.Rationale,
		Operations: input.Bundle.Operations,
		Confidence: input.Bundle.Confidence,
		Status:     status,
		CreatedAt:  s.now(),
	}
	s.patches = append(s.patches, p)
	return &p, nil
}

// ListPatchSuggestions returns the suggestions recorded for a run
func (s *Store) ListPatchSuggestions(_ context.Context, runID uuid.UUID) ([]db.PatchSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []db.PatchSuggestion
	for _, p := range s.patches {
		if p.RunID == runID {
			out = append(out, p)
		}
	}
	return out, nil
}

// SaveResumeVersion stores a generated resume snapshot
func (s *Store) SaveResumeVersion(_ context.Context, input *db.DocumentVersionInput) (*db.DocumentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.document(input)
	s.resumes = append(s.resumes, d)
	return &d, nil
}

// SaveCoverLetterVersion stores a generated cover letter snapshot
func (s *Store) SaveCoverLetterVersion(_ context.Context, input *db.DocumentVersionInput) (*db.DocumentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.document(input)
	s.letters = append(s.letters, d)
	return &d, nil
}

func (s *Store) document(input *db.DocumentVersionInput) db.DocumentVersion {
	metadata := input.LLMMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return db.DocumentVersion{
		ID:               uuid.New(),
		ProfileID:        input.ProfileID,
		JobID:            input.JobID,
		RunID:            input.RunID,
		FilePath:         input.FilePath,
		MarkdownSnapshot: input.MarkdownSnapshot,
		LLMMetadata:      metadata,
		CreatedAt:        s.now(),
	}
}

// ResumeVersions returns every stored resume snapshot
func (s *Store) ResumeVersions() []db.DocumentVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]db.DocumentVersion(nil), s.resumes...)
}

// RecordFieldFill stores one browser field outcome
func (s *Store) RecordFieldFill(_ context.Context, input *db.FieldFillInput) (*db.FieldFillResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fillID++
	f := db.FieldFillResult{
		ID:          s.fillID,
		RunID:       input.RunID,
		PageURL:     input.PageURL,
		FieldKey:    input.FieldKey,
		Locator:     input.Locator,
		ValueSource: input.ValueSource,
		FillStatus:  input.FillStatus,
		Confidence:  input.Confidence,
		CreatedAt:   s.now(),
	}
	s.fills = append(s.fills, f)
	return &f, nil
}

// ListFieldFills returns a run's field outcomes in order
func (s *Store) ListFieldFills(_ context.Context, runID uuid.UUID) ([]db.FieldFillResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []db.FieldFillResult
	for _, f := range s.fills {
		if f.RunID == runID {
			out = append(out, f)
		}
	}
	return out, nil
}

// CreateSubmission records the terminal confirmation of a run
func (s *Store) CreateSubmission(_ context.Context, input *db.SubmissionInput) (*db.ApplicationSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[input.RunID]; exists {
		return nil, fmt.Errorf("failed to create submission: run %s already submitted", input.RunID)
	}
	sub := db.ApplicationSubmission{
		ID:               uuid.New(),
		RunID:            input.RunID,
		SubmittedAt:      s.now(),
		ConfirmationText: input.ConfirmationText,
		ConfirmationRef:  input.ConfirmationRef,
		ScreenshotPath:   input.ScreenshotPath,
	}
	s.submissions[input.RunID] = sub
	return &sub, nil
}

// GetSubmission returns the submission of a run, or nil
func (s *Store) GetSubmission(_ context.Context, runID uuid.UUID) (*db.ApplicationSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[runID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

// -----------------------------------------------------------------------------
// Question bank
// -----------------------------------------------------------------------------

// UpsertQuestion inserts a question or refreshes the one with the same hash
func (s *Store) UpsertQuestion(_ context.Context, input *db.QuestionInput) (*db.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, exists := s.questions[input.QuestionHash]
	if !exists {
		q = db.Question{
			ID:            uuid.New(),
			QuestionHash:  input.QuestionHash,
			CanonicalText: input.CanonicalText,
			IsCVDerived:   input.IsCVDerived,
			CreatedAt:     s.now(),
		}
	}
	q.QuestionType = input.QuestionType
	q.Options = append([]string{}, input.Options...)
	q.Tags = append([]string{}, input.Tags...)
	q.Section = input.Section
	q.Importance = input.Importance
	if q.Importance == "" {
		q.Importance = "normal"
	}
	s.questions[q.QuestionHash] = q
	return &q, nil
}

// GetQuestionByHash returns the question with the given hash, or nil
func (s *Store) GetQuestionByHash(_ context.Context, hash string) (*db.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[hash]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

// UpsertProfileAnswer stores or replaces a profile's answer to a question
func (s *Store) UpsertProfileAnswer(_ context.Context, input *db.ProfileAnswerInput) (*db.ProfileAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hash string
	for h, q := range s.questions {
		if q.ID == input.QuestionID {
			hash = h
			break
		}
	}
	if hash == "" {
		return nil, fmt.Errorf("failed to upsert profile answer: question %s not found", input.QuestionID)
	}

	state := input.VerificationState
	if state == "" {
		state = db.VerificationNeedsReview
	}
	source := input.Source
	if source == "" {
		source = "manual"
	}
	if s.answers[input.ProfileID] == nil {
		s.answers[input.ProfileID] = make(map[uuid.UUID]db.ProfileAnswer)
	}
	a, exists := s.answers[input.ProfileID][input.QuestionID]
	if !exists {
		a.ID = uuid.New()
	}
	a.ProfileID = input.ProfileID
	a.QuestionID = input.QuestionID
	a.QuestionHash = hash
	a.AnswerText = input.AnswerText
	a.Confidence = input.Confidence
	a.VerificationState = state
	a.Source = source
	a.SourceSection = input.SourceSection
	a.Evidence = input.Evidence
	a.UpdatedAt = s.now()
	s.answers[input.ProfileID][input.QuestionID] = a
	return &a, nil
}

// GetProfileAnswer returns the profile's answer to the question with the given hash, or nil
func (s *Store) GetProfileAnswer(_ context.Context, profileID uuid.UUID, questionHash string) (*db.ProfileAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionHash]
	if !ok {
		return nil, nil
	}
	a, ok := s.answers[profileID][q.ID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}
