package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
)

// handleStream sends the run snapshot, then every event published for the run
// until its terminal event or the client disconnects. Events published before the
// subscription are not replayed; the snapshot covers them.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if s.events == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "event streaming is not configured")
		return
	}

	// Subscribe before reading the snapshot so nothing falls in between
	ctx := r.Context()
	ch, cancel := s.events.Subscribe(ctx, runID)
	defer cancel()

	run, err := s.runs.SerializeRun(ctx, runID)
	if err != nil {
		s.failure(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sse.WriteEvent("snapshot", "", run); err != nil {
		return
	}
	if run.IsTerminal() {
		sse.WriteComplete(run.ID.String(), run.Status)
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := sse.WriteHeartbeat(); err != nil {
				return
			}
			// A terminal event can be missed when the subscriber buffer overflowed
			if done := s.finished(r, runID); done != nil {
				s.drain(sse, ch)
				sse.WriteComplete(done.ID.String(), done.Status)
				return
			}
		case p, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.WriteEvent("run_event", p.EventID.String(), p); err != nil {
				return
			}
			if !p.Terminal() {
				continue
			}
			status := ""
			if done := s.finished(r, runID); done != nil {
				status = done.Status
			}
			sse.WriteComplete(runID.String(), status)
			return
		}
	}
}

// finished returns the run when it has reached a terminal status.
func (s *Server) finished(r *http.Request, runID uuid.UUID) *db.Run {
	run, err := s.runs.SerializeRun(r.Context(), runID)
	if err != nil || !run.IsTerminal() {
		return nil
	}
	return run
}

// drain writes the events already buffered for the stream without waiting for more.
func (s *Server) drain(sse *SSEWriter, ch <-chan events.Payload) {
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.WriteEvent("run_event", p.EventID.String(), p); err != nil {
				return
			}
		default:
			return
		}
	}
}
