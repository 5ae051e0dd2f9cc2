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
// Patch Suggestions
// -----------------------------------------------------------------------------

// CreatePatchSuggestion records an advisory patch bundle for a run
func (db *DB) CreatePatchSuggestion(ctx context.Context, input *PatchSuggestionInput) (*PatchSuggestion, error) {
	patchJSON, err := json.Marshal(input.Bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch bundle: %w", err)
	}
	status := input.Status
	if status == "" {
		status = PatchStatusSuggested
	}

	s := PatchSuggestion{
		RunID:      input.RunID,
		Provider:   input.Provider,
		Rationale:  input.Bundle.Rationale,
		Operations: input.Bundle.Operations,
		Confidence: input.Bundle.Confidence,
		Status:     status,
	}
	err = db.pool.QueryRow(ctx,
		`INSERT INTO ai_patch_suggestions (run_id, provider, rationale, patch_json, confidence, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		s.RunID, s.Provider, s.Rationale, patchJSON, s.Confidence, s.Status,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create patch suggestion: %w", err)
	}
	return &s, nil
}

// -----------------------------------------------------------------------------
// Document Versions
// -----------------------------------------------------------------------------

// SaveResumeVersion stores a generated resume snapshot
func (db *DB) SaveResumeVersion(ctx context.Context, input *DocumentVersionInput) (*DocumentVersion, error) {
	return db.saveDocument(ctx, "resume_versions", input)
}

// SaveCoverLetterVersion stores a generated cover letter snapshot
func (db *DB) SaveCoverLetterVersion(ctx context.Context, input *DocumentVersionInput) (*DocumentVersion, error) {
	return db.saveDocument(ctx, "cover_letter_versions", input)
}

func (db *DB) saveDocument(ctx context.Context, table string, input *DocumentVersionInput) (*DocumentVersion, error) {
	metadata := input.LLMMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal llm metadata: %w", err)
	}

	d := DocumentVersion{
		ProfileID:        input.ProfileID,
		JobID:            input.JobID,
		RunID:            input.RunID,
		FilePath:         input.FilePath,
		MarkdownSnapshot: input.MarkdownSnapshot,
		LLMMetadata:      metadata,
	}
	err = db.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (profile_id, job_id, run_id, file_path, markdown_snapshot, llm_metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`, table),
		d.ProfileID, d.JobID, d.RunID, d.FilePath, d.MarkdownSnapshot, metadataJSON,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", table, err)
	}
	return &d, nil
}

// -----------------------------------------------------------------------------
// Field Fills and Submissions
// -----------------------------------------------------------------------------

// RecordFieldFill stores one browser field outcome
func (db *DB) RecordFieldFill(ctx context.Context, input *FieldFillInput) (*FieldFillResult, error) {
	f := FieldFillResult{
		RunID:       input.RunID,
		PageURL:     input.PageURL,
		FieldKey:    input.FieldKey,
		Locator:     input.Locator,
		ValueSource: input.ValueSource,
		FillStatus:  input.FillStatus,
		Confidence:  input.Confidence,
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO field_fill_results (run_id, page_url, field_key, locator, value_source, fill_status, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		f.RunID, f.PageURL, f.FieldKey, f.Locator, f.ValueSource, f.FillStatus, f.Confidence,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record field fill: %w", err)
	}
	return &f, nil
}

// ListFieldFills returns a run's field outcomes in order
func (db *DB) ListFieldFills(ctx context.Context, runID uuid.UUID) ([]FieldFillResult, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, page_url, field_key, locator, value_source, fill_status, confidence, created_at
		 FROM field_fill_results WHERE run_id = $1 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list field fills: %w", err)
	}
	defer rows.Close()

	var out []FieldFillResult
	for rows.Next() {
		var f FieldFillResult
		if err := rows.Scan(&f.ID, &f.RunID, &f.PageURL, &f.FieldKey, &f.Locator, &f.ValueSource,
			&f.FillStatus, &f.Confidence, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan field fill: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateSubmission records the terminal confirmation of a run
func (db *DB) CreateSubmission(ctx context.Context, input *SubmissionInput) (*ApplicationSubmission, error) {
	s := ApplicationSubmission{
		RunID:            input.RunID,
		ConfirmationText: input.ConfirmationText,
		ConfirmationRef:  input.ConfirmationRef,
		ScreenshotPath:   input.ScreenshotPath,
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO application_submissions (run_id, confirmation_text, confirmation_ref, screenshot_path)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, submitted_at`,
		s.RunID, s.ConfirmationText, s.ConfirmationRef, s.ScreenshotPath,
	).Scan(&s.ID, &s.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return &s, nil
}

// GetSubmission returns the submission of a run, or nil
func (db *DB) GetSubmission(ctx context.Context, runID uuid.UUID) (*ApplicationSubmission, error) {
	var s ApplicationSubmission
	err := db.pool.QueryRow(ctx,
		`SELECT id, run_id, submitted_at, confirmation_text, confirmation_ref, screenshot_path
		 FROM application_submissions WHERE run_id = $1`,
		runID,
	).Scan(&s.ID, &s.RunID, &s.SubmittedAt, &s.ConfirmationText, &s.ConfirmationRef, &s.ScreenshotPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &s, nil
}
