package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Question Bank Methods
// -----------------------------------------------------------------------------

// UpsertQuestion inserts a question or refreshes the one with the same hash
func (db *DB) UpsertQuestion(ctx context.Context, input *QuestionInput) (*Question, error) {
	options := input.Options
	if options == nil {
		options = []string{}
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	optionsJSON, _ := json.Marshal(options)
	tagsJSON, _ := json.Marshal(tags)
	importance := input.Importance
	if importance == "" {
		importance = "normal"
	}

	q := Question{
		QuestionHash:  input.QuestionHash,
		CanonicalText: input.CanonicalText,
		QuestionType:  input.QuestionType,
		Options:       options,
		Tags:          tags,
		Section:       input.Section,
		Importance:    importance,
		IsCVDerived:   input.IsCVDerived,
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO question_bank (question_hash, canonical_text, question_type, options, tags,
		                            section, importance, is_cv_derived)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (question_hash) DO UPDATE
		 SET question_type = EXCLUDED.question_type, options = EXCLUDED.options,
		     tags = EXCLUDED.tags, section = EXCLUDED.section, importance = EXCLUDED.importance
		 RETURNING id, created_at`,
		q.QuestionHash, q.CanonicalText, q.QuestionType, optionsJSON, tagsJSON,
		q.Section, q.Importance, q.IsCVDerived,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert question: %w", err)
	}
	return &q, nil
}

// GetQuestionByHash returns the question with the given hash, or nil
func (db *DB) GetQuestionByHash(ctx context.Context, hash string) (*Question, error) {
	var q Question
	var optionsJSON, tagsJSON []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, question_hash, canonical_text, question_type, options, tags, section,
		        importance, is_cv_derived, created_at
		 FROM question_bank WHERE question_hash = $1`,
		hash,
	).Scan(&q.ID, &q.QuestionHash, &q.CanonicalText, &q.QuestionType, &optionsJSON, &tagsJSON,
		&q.Section, &q.Importance, &q.IsCVDerived, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if err := q.decodeLists(optionsJSON, tagsJSON); err != nil {
		return nil, err
	}
	return &q, nil
}

// decodeLists fills the options and tags columns. NULL columns stay empty.
func (q *Question) decodeLists(optionsJSON, tagsJSON []byte) error {
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
			return fmt.Errorf("failed to decode question options: %w", err)
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &q.Tags); err != nil {
			return fmt.Errorf("failed to decode question tags: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Profile Answer Methods
// -----------------------------------------------------------------------------

// UpsertProfileAnswer stores or replaces a profile's answer to a question
func (db *DB) UpsertProfileAnswer(ctx context.Context, input *ProfileAnswerInput) (*ProfileAnswer, error) {
	state := input.VerificationState
	if state == "" {
		state = VerificationNeedsReview
	}
	source := input.Source
	if source == "" {
		source = "manual"
	}

	a := ProfileAnswer{
		ProfileID:         input.ProfileID,
		QuestionID:        input.QuestionID,
		AnswerText:        input.AnswerText,
		Confidence:        input.Confidence,
		VerificationState: state,
		Source:            source,
		SourceSection:     input.SourceSection,
		Evidence:          input.Evidence,
	}
	err := db.pool.QueryRow(ctx,
		`WITH upserted AS (
		     INSERT INTO profile_answers (profile_id, question_id, answer_text, confidence,
		                                  verification_state, source, source_section, evidence)
		     VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		     ON CONFLICT (profile_id, question_id) DO UPDATE
		     SET answer_text = EXCLUDED.answer_text, confidence = EXCLUDED.confidence,
		         verification_state = EXCLUDED.verification_state, source = EXCLUDED.source,
		         source_section = EXCLUDED.source_section, evidence = EXCLUDED.evidence,
		         updated_at = NOW()
		     RETURNING id, question_id, updated_at
		 )
		 SELECT u.id, q.question_hash, u.updated_at
		 FROM upserted u JOIN question_bank q ON q.id = u.question_id`,
		a.ProfileID, a.QuestionID, a.AnswerText, a.Confidence, a.VerificationState,
		a.Source, a.SourceSection, a.Evidence,
	).Scan(&a.ID, &a.QuestionHash, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile answer: %w", err)
	}
	return &a, nil
}

// GetProfileAnswer returns the profile's answer to the question with the given
// hash, or nil
func (db *DB) GetProfileAnswer(ctx context.Context, profileID uuid.UUID, questionHash string) (*ProfileAnswer, error) {
	var a ProfileAnswer
	err := db.pool.QueryRow(ctx,
		`SELECT a.id, a.profile_id, a.question_id, q.question_hash, a.answer_text, a.confidence,
		        a.verification_state, a.source, a.source_section, a.evidence, a.updated_at
		 FROM profile_answers a JOIN question_bank q ON q.id = a.question_id
		 WHERE a.profile_id = $1 AND q.question_hash = $2`,
		profileID, questionHash,
	).Scan(&a.ID, &a.ProfileID, &a.QuestionID, &a.QuestionHash, &a.AnswerText, &a.Confidence,
		&a.VerificationState, &a.Source, &a.SourceSection, &a.Evidence, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile answer: %w", err)
	}
	return &a, nil
}
