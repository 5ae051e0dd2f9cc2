package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/db"
)

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

func cloneRun(r db.Run) *db.Run {
	r.Context = r.Context.Clone()
	return &r
}

// CreateRun creates a run and records its initial context as version 1
func (s *Store) CreateRun(_ context.Context, input *db.RunInput) (*db.Run, error) {
	patch, err := db.InitialContextPatch(input.Context)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r := db.Run{
		ID:             uuid.New(),
		JobID:          input.JobID,
		ProfileID:      input.ProfileID,
		Mode:           input.Mode,
		Status:         input.Status,
		CurrentStage:   input.CurrentStage,
		Context:        input.Context.Clone(),
		ContextVersion: 1,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	s.runs[r.ID] = r
	s.history[r.ID] = []db.ContextHistoryEntry{{RunID: r.ID, Version: 1, Patch: patch, CreatedAt: now}}
	return cloneRun(r), nil
}

// GetRun retrieves a run, or nil
func (s *Store) GetRun(_ context.Context, id uuid.UUID) (*db.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return cloneRun(r), nil
}

// ListRuns returns runs, newest first, optionally filtered by status
func (s *Store) ListRuns(_ context.Context, status string, limit int) ([]db.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []db.Run
	for _, r := range s.runs {
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, *cloneRun(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateRun applies a partial update, versioning context changes
func (s *Store) UpdateRun(_ context.Context, id uuid.UUID, upd *db.RunUpdate) (*db.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	now := s.now()

	if upd.Context != nil {
		patch, err := db.ContextMergePatch(r.Context, *upd.Context)
		if err != nil {
			return nil, err
		}
		if !db.IsEmptyPatch(patch) {
			r.Context = upd.Context.Clone()
			r.ContextVersion++
			s.history[id] = append(s.history[id], db.ContextHistoryEntry{
				RunID: id, Version: r.ContextVersion, Patch: patch, CreatedAt: now,
			})
		}
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.CurrentStage != nil {
		r.CurrentStage = *upd.CurrentStage
	}
	if upd.SubmissionURL != nil {
		r.SubmissionURL = db.Ptr(*upd.SubmissionURL)
	}
	if upd.Error != nil {
		r.Error = db.Ptr(*upd.Error)
	}
	if upd.Completed {
		r.CompletedAt = db.Ptr(now)
	}
	r.UpdatedAt = now

	s.runs[id] = r
	return cloneRun(r), nil
}

// ListRunContextHistory returns every context version of a run in order
func (s *Store) ListRunContextHistory(_ context.Context, runID uuid.UUID) ([]db.ContextHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]db.ContextHistoryEntry(nil), s.history[runID]...), nil
}

// -----------------------------------------------------------------------------
// Run Events
// -----------------------------------------------------------------------------

// AppendRunEvent appends an event to the run's log
func (s *Store) AppendRunEvent(_ context.Context, input *db.RunEventInput) (*db.RunEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[input.RunID]; !ok {
		return nil, fmt.Errorf("run not found: %s", input.RunID)
	}
	payload := input.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	state := input.ApprovalState
	if state == "" {
		state = db.ApprovalNotRequired
	}

	s.seq++
	e := db.RunEvent{
		ID:               uuid.New(),
		Seq:              s.seq,
		RunID:            input.RunID,
		Stage:            input.Stage,
		Action:           input.Action,
		Payload:          payload,
		RequiresApproval: input.RequiresApproval,
		ApprovalState:    state,
		CreatedAt:        s.now(),
	}
	s.events = append(s.events, e)
	return &e, nil
}

// GetRunEvent retrieves an event, or nil
func (s *Store) GetRunEvent(_ context.Context, id uuid.UUID) (*db.RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, nil
}

// ListRunEvents returns a run's events in creation order
func (s *Store) ListRunEvents(_ context.Context, runID uuid.UUID) ([]db.RunEvent, error) {
	return s.filterEvents(func(e *db.RunEvent) bool { return e.RunID == runID }), nil
}

// LatestRunEvent returns the most recent event of a run, or nil
func (s *Store) LatestRunEvent(_ context.Context, runID uuid.UUID) (*db.RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].RunID == runID {
			e := s.events[i]
			return &e, nil
		}
	}
	return nil, nil
}

// GetApprovalEvent returns the newest approval event matching the exact tuple, or nil
func (s *Store) GetApprovalEvent(_ context.Context, runID uuid.UUID, stage, action, state string) (*db.RunEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.RunID == runID && e.Stage == stage && e.Action == action &&
			e.ApprovalState == state && e.RequiresApproval {
			return &e, nil
		}
	}
	return nil, nil
}

// ListPendingApprovalEvents returns a run's undecided approval events
func (s *Store) ListPendingApprovalEvents(_ context.Context, runID uuid.UUID) ([]db.RunEvent, error) {
	return s.filterEvents(func(e *db.RunEvent) bool {
		return e.RunID == runID && e.RequiresApproval && e.ApprovalState == db.ApprovalPending
	}), nil
}

// SetEventApproval decides a pending event
func (s *Store) SetEventApproval(_ context.Context, id uuid.UUID, state string) (*db.RunEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID != id {
			continue
		}
		if s.events[i].ApprovalState != db.ApprovalPending {
			return nil, fmt.Errorf("%w: %s is %s", db.ErrEventNotPending, id, s.events[i].ApprovalState)
		}
		s.events[i].ApprovalState = state
		s.events[i].DecidedAt = db.Ptr(s.now())
		e := s.events[i]
		return &e, nil
	}
	return nil, nil
}

func (s *Store) filterEvents(keep func(*db.RunEvent) bool) []db.RunEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []db.RunEvent
	for i := range s.events {
		if keep(&s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out
}
