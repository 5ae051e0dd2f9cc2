package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/vulture/internal/types"
)

// -----------------------------------------------------------------------------
// Job Methods
// -----------------------------------------------------------------------------

// DomainFromURL returns the lowercase host of rawURL, or "" if it cannot be parsed.
func DomainFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// HashText returns the hex SHA-256 of text
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// RequirementRows converts an analysis into requirement and responsibility rows.
func RequirementRows(jobID uuid.UUID, analysis types.JobAnalysis) []JobRequirement {
	rows := make([]JobRequirement, 0, len(analysis.Requirements)+len(analysis.Responsibilities))
	for _, r := range analysis.Requirements {
		rows = append(rows, JobRequirement{
			JobID: jobID, Kind: RequirementKindRequirement, Value: r, Priority: "high", SourceQuote: r,
		})
	}
	for _, r := range analysis.Responsibilities {
		rows = append(rows, JobRequirement{
			JobID: jobID, Kind: RequirementKindResponsibility, Value: r, Priority: "medium", SourceQuote: r,
		})
	}
	return rows
}

// CreateJob creates a new job row for url. Jobs are not deduplicated.
func (db *DB) CreateJob(ctx context.Context, jobURL string) (*Job, error) {
	var j Job
	err := db.pool.QueryRow(ctx,
		`INSERT INTO jobs (url, domain)
		 VALUES ($1, $2)
		 RETURNING id, url, domain, company, title, location, jd_text, jd_hash, created_at, updated_at`,
		jobURL, DomainFromURL(jobURL),
	).Scan(&j.ID, &j.URL, &j.Domain, &j.Company, &j.Title, &j.Location, &j.JDText, &j.JDHash,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return &j, nil
}

// GetJob retrieves a job by ID
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	err := db.pool.QueryRow(ctx,
		`SELECT id, url, domain, company, title, location, jd_text, jd_hash, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.URL, &j.Domain, &j.Company, &j.Title, &j.Location, &j.JDText, &j.JDHash,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &j, nil
}

// UpdateJobAnalysis stores the parsed posting and replaces its line items
func (db *DB) UpdateJobAnalysis(ctx context.Context, jobID uuid.UUID, analysis types.JobAnalysis, text string) (*Job, error) {
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE jobs
			 SET title = $1, company = $2, location = $3, jd_text = $4, jd_hash = $5, updated_at = NOW()
			 WHERE id = $6`,
			analysis.Title, analysis.Company, analysis.Location, text, HashText(text), jobID,
		)
		if err != nil {
			return fmt.Errorf("failed to update job: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("job not found: %s", jobID)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM job_requirements WHERE job_id = $1`, jobID); err != nil {
			return fmt.Errorf("failed to clear job requirements: %w", err)
		}

		for _, r := range RequirementRows(jobID, analysis) {
			_, err := tx.Exec(ctx,
				`INSERT INTO job_requirements (job_id, kind, value, priority, source_quote)
				 VALUES ($1, $2, $3, $4, $5)`,
				r.JobID, r.Kind, r.Value, r.Priority, r.SourceQuote,
			)
			if err != nil {
				return fmt.Errorf("failed to insert job requirement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetJob(ctx, jobID)
}

// ListJobRequirements returns the line items of a job in insertion order
func (db *DB) ListJobRequirements(ctx context.Context, jobID uuid.UUID) ([]JobRequirement, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, kind, value, priority, source_quote
		 FROM job_requirements WHERE job_id = $1 ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list job requirements: %w", err)
	}
	defer rows.Close()

	var out []JobRequirement
	for rows.Next() {
		var r JobRequirement
		if err := rows.Scan(&r.ID, &r.JobID, &r.Kind, &r.Value, &r.Priority, &r.SourceQuote); err != nil {
			return nil, fmt.Errorf("failed to scan job requirement: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
