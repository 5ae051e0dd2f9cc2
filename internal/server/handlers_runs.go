package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 200
)

// handleStartRun starts a run and answers once it completes or suspends.
// The run keeps advancing if the client goes away.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req types.StartRunRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.runs.StartApplication(context.WithoutCancel(r.Context()), req.URL, req.ProfileID, policy.Mode(req.Mode), req.Submit)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.store.ListRuns(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	run, err := s.runs.SerializeRun(r.Context(), runID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleAdvanceRun resumes a run left running by an interrupted process.
// Suspended and terminal runs are returned unchanged.
func (s *Server) handleAdvanceRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	run, err := s.runs.Advance(context.WithoutCancel(r.Context()), runID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	evts, err := s.runs.Events(r.Context(), runID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, nonNilEvents(evts))
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	evts, err := s.runs.PendingApprovals(r.Context(), runID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, nonNilEvents(evts))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, s.runs.ApproveEvent)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, s.runs.RejectEvent)
}

// decide applies an approval decision. Approving resumes the run, so it is
// detached from the request like a run start.
func (s *Server) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, runID, eventID uuid.UUID) (*db.Run, error)) {
	runID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	eventID, ok := s.pathUUID(w, r, "event_id")
	if !ok {
		return
	}

	run, err := fn(context.WithoutCancel(r.Context()), runID, eventID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

func (s *Server) handleContextHistory(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.runs.SerializeRun(r.Context(), runID); err != nil {
		s.failure(w, r, err)
		return
	}
	history, err := s.store.ListRunContextHistory(r.Context(), runID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	if history == nil {
		history = []db.ContextHistoryEntry{}
	}
	s.jsonResponse(w, http.StatusOK, history)
}

func nonNilEvents(evts []db.RunEvent) []db.RunEvent {
	if evts == nil {
		return []db.RunEvent{}
	}
	return evts
}
