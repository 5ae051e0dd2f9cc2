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
// Run Event Methods
// -----------------------------------------------------------------------------

const eventColumns = `id, seq, run_id, stage, action, payload, requires_approval,
	approval_state, created_at, decided_at`

func scanEvent(row pgx.Row) (*RunEvent, error) {
	var e RunEvent
	var payloadJSON []byte
	err := row.Scan(&e.ID, &e.Seq, &e.RunID, &e.Stage, &e.Action, &payloadJSON,
		&e.RequiresApproval, &e.ApprovalState, &e.CreatedAt, &e.DecidedAt)
	if err != nil {
		return nil, err
	}
	e.Payload = map[string]any{}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]RunEvent, error) {
	defer rows.Close()
	var out []RunEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// AppendRunEvent appends an event to the run's log
func (db *DB) AppendRunEvent(ctx context.Context, input *RunEventInput) (*RunEvent, error) {
	payload := input.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	state := input.ApprovalState
	if state == "" {
		state = ApprovalNotRequired
	}

	e, err := scanEvent(db.pool.QueryRow(ctx,
		`INSERT INTO run_events (run_id, stage, action, payload, requires_approval, approval_state)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+eventColumns,
		input.RunID, input.Stage, input.Action, payloadJSON, input.RequiresApproval, state,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to append run event: %w", err)
	}
	return e, nil
}

// GetRunEvent retrieves an event by ID
func (db *DB) GetRunEvent(ctx context.Context, id uuid.UUID) (*RunEvent, error) {
	e, err := scanEvent(db.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM run_events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run event: %w", err)
	}
	return e, nil
}

// ListRunEvents returns a run's events in creation order
func (db *DB) ListRunEvents(ctx context.Context, runID uuid.UUID) ([]RunEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM run_events WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run events: %w", err)
	}
	return collectEvents(rows)
}

// LatestRunEvent returns the most recent event of a run, or nil
func (db *DB) LatestRunEvent(ctx context.Context, runID uuid.UUID) (*RunEvent, error) {
	e, err := scanEvent(db.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM run_events WHERE run_id = $1 ORDER BY seq DESC LIMIT 1`, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run event: %w", err)
	}
	return e, nil
}

// GetApprovalEvent returns the newest approval event matching the exact
// (run, stage, action, state) tuple, or nil
func (db *DB) GetApprovalEvent(ctx context.Context, runID uuid.UUID, stage, action, state string) (*RunEvent, error) {
	e, err := scanEvent(db.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM run_events
		 WHERE run_id = $1 AND stage = $2 AND action = $3 AND approval_state = $4
		   AND requires_approval
		 ORDER BY seq DESC LIMIT 1`,
		runID, stage, action, state,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval event: %w", err)
	}
	return e, nil
}

// ListPendingApprovalEvents returns a run's undecided approval events
func (db *DB) ListPendingApprovalEvents(ctx context.Context, runID uuid.UUID) ([]RunEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM run_events
		 WHERE run_id = $1 AND requires_approval AND approval_state = 'pending'
		 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	return collectEvents(rows)
}

// SetEventApproval decides a pending event. It returns (nil, nil) when the event
// does not exist and ErrEventNotPending when it was already decided.
func (db *DB) SetEventApproval(ctx context.Context, id uuid.UUID, state string) (*RunEvent, error) {
	e, err := scanEvent(db.pool.QueryRow(ctx,
		`UPDATE run_events SET approval_state = $2, decided_at = NOW()
		 WHERE id = $1 AND approval_state = 'pending'
		 RETURNING `+eventColumns,
		id, state,
	))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to set event approval: %w", err)
	}

	existing, err := db.GetRunEvent(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s is %s", ErrEventNotPending, id, existing.ApprovalState)
}
