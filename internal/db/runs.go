package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// -----------------------------------------------------------------------------
// Run Methods
// -----------------------------------------------------------------------------

const runColumns = `id, job_id, profile_id, mode, status, current_stage, context, context_version,
	submission_url, error, started_at, completed_at, updated_at`

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	var contextJSON []byte
	err := row.Scan(&r.ID, &r.JobID, &r.ProfileID, &r.Mode, &r.Status, &r.CurrentStage,
		&contextJSON, &r.ContextVersion, &r.SubmissionURL, &r.Error, &r.StartedAt,
		&r.CompletedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &r.Context); err != nil {
			return nil, fmt.Errorf("failed to decode run context: %w", err)
		}
	}
	return &r, nil
}

// CreateRun creates a run and records its initial context as version 1
func (db *DB) CreateRun(ctx context.Context, input *RunInput) (*Run, error) {
	contextJSON, err := json.Marshal(input.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run context: %w", err)
	}
	patch, err := InitialContextPatch(input.Context)
	if err != nil {
		return nil, err
	}

	var run *Run
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		r, err := scanRun(tx.QueryRow(ctx,
			`INSERT INTO runs (job_id, profile_id, mode, status, current_stage, context)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+runColumns,
			input.JobID, input.ProfileID, input.Mode, input.Status, input.CurrentStage, contextJSON,
		))
		if err != nil {
			return fmt.Errorf("failed to create run: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO run_context_history (run_id, version, patch) VALUES ($1, $2, $3)`,
			r.ID, r.ContextVersion, patch,
		); err != nil {
			return fmt.Errorf("failed to record context history: %w", err)
		}
		run = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	r, err := scanRun(db.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs, newest first, optionally filtered by status
func (db *DB) ListRuns(ctx context.Context, status string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// UpdateRun applies a partial update. A changed context bumps context_version and
// appends its merge patch to run_context_history in the same transaction.
func (db *DB) UpdateRun(ctx context.Context, id uuid.UUID, upd *RunUpdate) (*Run, error) {
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		current, err := scanRun(tx.QueryRow(ctx,
			`SELECT `+runColumns+` FROM runs WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("run not found: %s", id)
			}
			return fmt.Errorf("failed to lock run: %w", err)
		}

		sets := []string{"updated_at = NOW()"}
		args := []any{id}
		set := func(col string, v any) {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}

		if upd.Status != nil {
			set("status", *upd.Status)
		}
		if upd.CurrentStage != nil {
			set("current_stage", *upd.CurrentStage)
		}
		if upd.SubmissionURL != nil {
			set("submission_url", *upd.SubmissionURL)
		}
		if upd.Error != nil {
			set("error", *upd.Error)
		}
		if upd.Completed {
			set("completed_at", time.Now().UTC())
		}
		if upd.Context != nil {
			patch, err := ContextMergePatch(current.Context, *upd.Context)
			if err != nil {
				return err
			}
			if !IsEmptyPatch(patch) {
				contextJSON, err := json.Marshal(upd.Context)
				if err != nil {
					return fmt.Errorf("failed to marshal run context: %w", err)
				}
				set("context", contextJSON)
				set("context_version", current.ContextVersion+1)
				if _, err := tx.Exec(ctx,
					`INSERT INTO run_context_history (run_id, version, patch) VALUES ($1, $2, $3)`,
					id, current.ContextVersion+1, patch,
				); err != nil {
					return fmt.Errorf("failed to record context history: %w", err)
				}
			}
		}

		_, err = tx.Exec(ctx,
			fmt.Sprintf(`UPDATE runs SET %s WHERE id = $1`, strings.Join(sets, ", ")), args...)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetRun(ctx, id)
}

// ListRunContextHistory returns every context version of a run in order
func (db *DB) ListRunContextHistory(ctx context.Context, runID uuid.UUID) ([]ContextHistoryEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT run_id, version, patch, created_at
		 FROM run_context_history WHERE run_id = $1 ORDER BY version`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list context history: %w", err)
	}
	defer rows.Close()

	var out []ContextHistoryEntry
	for rows.Next() {
		var e ContextHistoryEntry
		var patch []byte
		if err := rows.Scan(&e.RunID, &e.Version, &patch, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan context history: %w", err)
		}
		e.Patch = patch
		out = append(out, e)
	}
	return out, rows.Err()
}

// LockRun takes a session-level advisory lock on the run, held on a dedicated
// connection until the returned unlock function is called.
func (db *DB) LockRun(ctx context.Context, runID uuid.UUID) (func(), error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for run lock: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, runID.String()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to lock run: %w", err)
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseRunLock(unlockCtx, pooledSession{conn}, runID)
	}, nil
}

// lockSession is the connection holding a run's advisory lock
type lockSession interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
	Discard(ctx context.Context)
}

// pooledSession adapts a pool connection to lockSession
type pooledSession struct {
	*pgxpool.Conn
}

// Discard takes the connection out of the pool and closes it, ending the
// session and every advisory lock it holds.
func (s pooledSession) Discard(ctx context.Context) {
	_ = s.Hijack().Close(ctx)
}

// releaseRunLock unlocks the run and returns the session to the pool. When the
// unlock is not confirmed the session is discarded instead, so the lock cannot
// outlive it on a pooled connection.
func releaseRunLock(ctx context.Context, s lockSession, runID uuid.UUID) {
	var unlocked bool
	err := s.QueryRow(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, runID.String()).Scan(&unlocked)
	if err != nil || !unlocked {
		s.Discard(ctx)
		return
	}
	s.Release()
}
