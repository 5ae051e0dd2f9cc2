package main

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
)

// scriptedRuns returns the given statuses in order, repeating the last one.
type scriptedRuns struct {
	mu       sync.Mutex
	id       uuid.UUID
	statuses []string
	calls    int
}

func (s *scriptedRuns) GetRun(_ context.Context, id uuid.UUID) (*db.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.id {
		return nil, nil
	}
	status := s.statuses[min(s.calls, len(s.statuses)-1)]
	s.calls++
	return &db.Run{ID: id, Mode: "yolo", Status: status, CurrentStage: status}, nil
}

func TestFollow_PrintsBufferedEventsThroughCompletion(t *testing.T) {
	runID := uuid.New()
	runs := &scriptedRuns{id: runID, statuses: []string{db.RunStatusWaitingCaptcha, db.RunStatusCompleted}}

	stream := make(chan events.Payload, 8)
	stream <- events.Payload{RunID: runID, Stage: "captcha", Action: "approval_granted:human_solve"}
	stream <- events.Payload{RunID: runID, Stage: "browser_flow", Action: "completed:fill_compliance"}
	stream <- events.Payload{RunID: runID, Stage: "run", Action: "completed"}

	var out bytes.Buffer
	require.NoError(t, follow(context.Background(), &out, runs, runID, stream, time.Hour))

	output := out.String()
	assert.Contains(t, output, "approval_granted:human_solve")
	assert.Contains(t, output, "completed:fill_compliance")
	assert.Regexp(t, `run\s+completed\s`, output)
	assert.Contains(t, output, "Status:  "+db.RunStatusCompleted)
}

func TestFollow_StatusCheckDrainsBeforeFinishing(t *testing.T) {
	runID := uuid.New()
	runs := &scriptedRuns{id: runID, statuses: []string{db.RunStatusRunning, db.RunStatusFailed}}

	stream := make(chan events.Payload, 8)
	stream <- events.Payload{RunID: runID, Stage: "browser_flow", Action: "completed:start_session"}

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, follow(ctx, &out, runs, runID, stream, 5*time.Millisecond))

	assert.Contains(t, out.String(), "completed:start_session")
	assert.Contains(t, out.String(), "Status:  "+db.RunStatusFailed)
	assert.NoError(t, ctx.Err())
}

func TestFollow_TerminalRunReturnsImmediately(t *testing.T) {
	runID := uuid.New()
	runs := &scriptedRuns{id: runID, statuses: []string{db.RunStatusBlocked}}

	var out bytes.Buffer
	require.NoError(t, follow(context.Background(), &out, runs, runID, make(chan events.Payload), time.Hour))
	assert.Contains(t, out.String(), "Status:  "+db.RunStatusBlocked)
}

func TestFollow_UnknownRun(t *testing.T) {
	runs := &scriptedRuns{id: uuid.New(), statuses: []string{db.RunStatusRunning}}

	err := follow(context.Background(), &bytes.Buffer{}, runs, uuid.New(), make(chan events.Payload), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
