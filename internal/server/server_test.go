package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/browser"
	"github.com/jonathan/vulture/internal/config"
	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
	"github.com/jonathan/vulture/internal/llm"
	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/memstore"
	"github.com/jonathan/vulture/internal/orchestrator"
	"github.com/jonathan/vulture/internal/types"
)

const testJobURL = "https://jobs.example.com/postings/42"

type stubFetcher struct{}

func (stubFetcher) JobText(context.Context, string) string {
	return "Senior Go Engineer at Example Corp. Requirements: Go, PostgreSQL, Kubernetes."
}

type testServer struct {
	*Server
	store     *memstore.Store
	profileID uuid.UUID
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	store := memstore.New()
	bus := events.NewBus(logger.Nop(), 0)
	registry, err := browser.NewRegistry(logger.Nop())
	require.NoError(t, err)

	dir := t.TempDir()
	orch := orchestrator.New(orchestrator.Deps{
		Repo:      store,
		Fetcher:   stubFetcher{},
		LLM:       llm.NewRouter(nil, nil, logger.Nop()),
		Browser:   browser.NewEngine(registry, browser.DomainPolicy{}, nil, logger.Nop()),
		Publisher: bus,
		Log:       logger.Nop(),
	}, orchestrator.Options{
		ResumeDir:      filepath.Join(dir, "resumes"),
		CoverLetterDir: filepath.Join(dir, "cover_letters"),
	})

	s, err := New(cfg, Deps{Runs: orch, Store: store, Events: bus, Log: logger.Nop()})
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)

	profile, err := store.CreateProfile(context.Background(), &types.CreateProfileRequest{
		Name: "Ada Lovelace",
		Personal: &types.PersonalInfo{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
		},
	})
	require.NoError(t, err)

	return &testServer{Server: s, store: store, profileID: profile.ID}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) startRun(t *testing.T, mode string) db.Run {
	t.Helper()
	return ts.startRunAt(t, testJobURL, mode, false)
}

func (ts *testServer) startRunAt(t *testing.T, url, mode string, submit bool) db.Run {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/runs", types.StartRunRequest{URL: url, ProfileID: ts.profileID, Mode: mode, Submit: submit})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[db.Run](t, w)
}

func (ts *testServer) pending(t *testing.T, runID uuid.UUID) []db.RunEvent {
	t.Helper()
	w := ts.do(t, http.MethodGet, "/runs/"+runID.String()+"/approvals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decodeBody[[]db.RunEvent](t, w)
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, w)["error"]
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})
	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, Config{})
	w := ts.do(t, http.MethodGet, "/health", nil, "X-Request-ID", "req-123")
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestProfiles(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(t, http.MethodPost, "/profiles", types.CreateProfileRequest{
		Name:      "Grace Hopper",
		JobFamily: "backend",
		Skills:    []types.Skill{{Name: "COBOL"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[types.ProfileFacts](t, w)
	assert.Equal(t, "Grace Hopper", created.Name)

	w = ts.do(t, http.MethodGet, "/profiles/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[types.ProfileFacts](t, w)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "backend", got.JobFamily)

	w = ts.do(t, http.MethodGet, "/profiles/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/profiles/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/profiles", types.CreateProfileRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreAnswer(t *testing.T) {
	ts := newTestServer(t, Config{})
	path := "/profiles/" + ts.profileID.String() + "/answers"

	w := ts.do(t, http.MethodPut, path, types.StoreAnswerRequest{
		Question:     "Are you authorized to work in the US?",
		QuestionType: "work_auth",
		Answer:       "Yes",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	answer := decodeBody[db.ProfileAnswer](t, w)
	assert.Equal(t, "Yes", answer.AnswerText)
	assert.Equal(t, db.VerificationVerified, answer.VerificationState)

	w = ts.do(t, http.MethodPut, path, types.StoreAnswerRequest{Question: "Anything?"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/profiles/"+uuid.NewString()+"/answers", types.StoreAnswerRequest{Question: "Q?", Answer: "A"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartRun_YoloCompletes(t *testing.T) {
	ts := newTestServer(t, Config{})

	run := ts.startRun(t, "yolo")
	assert.Equal(t, db.RunStatusCompleted, run.Status)
	assert.Equal(t, db.StageCompleted, run.CurrentStage)

	w := ts.do(t, http.MethodGet, "/runs/"+run.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, db.RunStatusCompleted, decodeBody[db.Run](t, w).Status)

	w = ts.do(t, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[struct {
		Runs  []db.Run `json:"runs"`
		Count int      `json:"count"`
	}](t, w)
	assert.Equal(t, 1, list.Count)

	w = ts.do(t, http.MethodGet, "/runs?status="+db.RunStatusWaitingApproval, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"runs":[]`)
}

func TestStartRun_InputErrors(t *testing.T) {
	ts := newTestServer(t, Config{})

	tests := []struct {
		name string
		body any
		want int
	}{
		{"unknown profile", types.StartRunRequest{URL: testJobURL, ProfileID: uuid.New()}, http.StatusBadRequest},
		{"unknown mode", types.StartRunRequest{URL: testJobURL, ProfileID: ts.profileID, Mode: "turbo"}, http.StatusBadRequest},
		{"missing url", types.StartRunRequest{ProfileID: ts.profileID}, http.StatusBadRequest},
		{"not json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/runs", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	w := ts.do(t, http.MethodGet, "/runs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApprovalFlow(t *testing.T) {
	ts := newTestServer(t, Config{})

	run := ts.startRun(t, "medium")
	require.Equal(t, db.RunStatusWaitingApproval, run.Status)

	pending := ts.pending(t, run.ID)
	require.Len(t, pending, 1)
	assert.Equal(t, orchestrator.ActionApproveTailoredDocs, pending[0].Action)

	approvePath := "/runs/" + run.ID.String() + "/events/" + pending[0].ID.String() + "/approve"
	w := ts.do(t, http.MethodPost, approvePath, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, db.StageProfilePatch, decodeBody[db.Run](t, w).CurrentStage)

	w = ts.do(t, http.MethodPost, approvePath, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	pending = ts.pending(t, run.ID)
	require.Len(t, pending, 1)
	assert.Equal(t, orchestrator.ActionPatchBatch, pending[0].Action)

	w = ts.do(t, http.MethodPost, "/runs/"+run.ID.String()+"/events/"+pending[0].ID.String()+"/reject", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rejected := decodeBody[db.Run](t, w)
	assert.Equal(t, db.RunStatusBlocked, rejected.Status)
	assert.NotNil(t, rejected.CompletedAt)

	w = ts.do(t, http.MethodPost, "/runs/"+run.ID.String()+"/events/"+pending[0].ID.String()+"/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, errorOf(t, w), "terminal")

	w = ts.do(t, http.MethodGet, "/runs/"+run.ID.String()+"/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	evts := decodeBody[[]db.RunEvent](t, w)
	require.NotEmpty(t, evts)
	assert.Equal(t, "created", evts[0].Action)
	assert.Equal(t, "approval_rejected:"+orchestrator.ActionPatchBatch, evts[len(evts)-1].Action)

	w = ts.do(t, http.MethodGet, "/runs/"+run.ID.String()+"/context-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decodeBody[[]db.ContextHistoryEntry](t, w)
	require.NotEmpty(t, history)
	assert.Equal(t, 1, history[0].Version)
}

func TestDecisionErrors(t *testing.T) {
	ts := newTestServer(t, Config{})
	first := ts.startRun(t, "medium")
	second := ts.startRun(t, "medium")
	foreign := ts.pending(t, second.ID)[0]

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown run", "/runs/" + uuid.NewString() + "/events/" + foreign.ID.String() + "/approve", http.StatusNotFound},
		{"unknown event", "/runs/" + first.ID.String() + "/events/" + uuid.NewString() + "/approve", http.StatusNotFound},
		{"event of another run", "/runs/" + first.ID.String() + "/events/" + foreign.ID.String() + "/approve", http.StatusBadRequest},
		{"malformed event id", "/runs/" + first.ID.String() + "/events/nope/reject", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, tt.path, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	for _, path := range []string{"", "/events", "/approvals", "/context-history"} {
		w := ts.do(t, http.MethodGet, "/runs/"+uuid.NewString()+path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestAuth(t *testing.T) {
	pw, err := config.NewPasswordConfig(config.AuthSettings{BcryptCost: 10})
	require.NoError(t, err)
	hash, err := pw.HashPassword("hunter22")
	require.NoError(t, err)

	ts := newTestServer(t, Config{Auth: config.AuthSettings{
		Enabled:              true,
		Operator:             "operator",
		OperatorPasswordHash: hash,
		JWTSecret:            "test-secret",
		BcryptCost:           10,
	}})

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/runs", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/auth/token", types.LoginRequest{Operator: "operator", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.do(t, http.MethodPost, "/auth/token", types.LoginRequest{Operator: "intruder", Password: "hunter22"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.do(t, http.MethodPost, "/auth/token", types.LoginRequest{Operator: "operator"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/auth/token", types.LoginRequest{Operator: "operator", Password: "hunter22"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decodeBody[types.LoginResponse](t, w)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, 24*3600, login.ExpiresIn)

	w = ts.do(t, http.MethodGet, "/runs", nil, "Authorization", "Bearer "+login.Token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginDisabledWithoutAuth(t *testing.T) {
	ts := newTestServer(t, Config{})
	w := ts.do(t, http.MethodPost, "/auth/token", types.LoginRequest{Operator: "operator", Password: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, Config{RateLimit: config.RateLimitSettings{Enabled: true}})

	// The login endpoint allows a burst of 3
	for i := 0; i < 3; i++ {
		w := ts.do(t, http.MethodPost, "/auth/token", types.LoginRequest{Operator: "o", Password: "p"})
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := ts.do(t, http.MethodPost, "/auth/token", types.LoginRequest{Operator: "o", Password: "p"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeBody[map[string]any](t, w)["error"])

	w = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, Config{})
	w := ts.do(t, http.MethodOptions, "/runs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	ts = newTestServer(t, Config{CORSOrigins: []string{"https://ops.example.com"}})
	w = ts.do(t, http.MethodGet, "/health", nil, "Origin", "https://ops.example.com")
	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	w = ts.do(t, http.MethodGet, "/health", nil, "Origin", "https://evil.example.com")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// sseEvent is one parsed Server-Sent Event
type sseEvent struct {
	name string
	data string
}

func readSSE(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && ev.name != "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestStream_LiveEvents(t *testing.T) {
	ts := newTestServer(t, Config{})
	run := ts.startRun(t, "medium")
	pending := ts.pending(t, run.ID)
	require.Len(t, pending, 1)

	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/runs/"+run.ID.String()+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := bufio.NewReader(resp.Body)
	snapshot := readSSE(t, body)
	require.Equal(t, "snapshot", snapshot.name)
	assert.Contains(t, snapshot.data, db.RunStatusWaitingApproval)

	w := ts.do(t, http.MethodPost, "/runs/"+run.ID.String()+"/events/"+pending[0].ID.String()+"/reject", nil)
	require.Equal(t, http.StatusOK, w.Code)

	ev := readSSE(t, body)
	require.Equal(t, "run_event", ev.name)
	var p events.Payload
	require.NoError(t, json.Unmarshal([]byte(ev.data), &p))
	assert.Equal(t, run.ID, p.RunID)
	assert.Equal(t, "approval_rejected:"+orchestrator.ActionApproveTailoredDocs, p.Action)

	done := readSSE(t, body)
	assert.Equal(t, "complete", done.name)
	assert.Contains(t, done.data, db.RunStatusBlocked)
}

func TestStream_TerminalRunCompletesImmediately(t *testing.T) {
	ts := newTestServer(t, Config{})
	run := ts.startRun(t, "yolo")

	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/" + run.ID.String() + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	body := bufio.NewReader(resp.Body)
	assert.Equal(t, "snapshot", readSSE(t, body).name)
	done := readSSE(t, body)
	assert.Equal(t, "complete", done.name)
	assert.Contains(t, done.data, db.RunStatusCompleted)

	resp404, err := http.Get(srv.URL + "/runs/" + uuid.NewString() + "/stream")
	require.NoError(t, err)
	defer resp404.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
}

// openStream connects to the run's event stream and returns its snapshot.
func openStream(t *testing.T, srv *httptest.Server, runID uuid.UUID) (*bufio.Reader, sseEvent) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/runs/"+runID.String()+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := bufio.NewReader(resp.Body)
	snapshot := readSSE(t, body)
	require.Equal(t, "snapshot", snapshot.name)
	return body, snapshot
}

func TestStream_ResumedRunDeliversEveryEvent(t *testing.T) {
	ts := newTestServer(t, Config{})
	run := ts.startRunAt(t, "https://jobs.example.com/captcha/1", "yolo", true)
	require.Equal(t, db.RunStatusWaitingCaptcha, run.Status)
	pending := ts.pending(t, run.ID)
	require.Len(t, pending, 1)

	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()
	body, _ := openStream(t, srv, run.ID)

	w := ts.do(t, http.MethodPost, "/runs/"+run.ID.String()+"/events/"+pending[0].ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var received []events.Payload
	var done sseEvent
	for {
		ev := readSSE(t, body)
		if ev.name == "complete" {
			done = ev
			break
		}
		require.Equal(t, "run_event", ev.name)
		var p events.Payload
		require.NoError(t, json.Unmarshal([]byte(ev.data), &p))
		received = append(received, p)
	}

	require.Greater(t, len(received), 1, "stream ended before the run finished")
	assert.Equal(t, "approval_granted:"+pending[0].Action, received[0].Action)
	last := received[len(received)-1]
	assert.Equal(t, "run", last.Stage)
	assert.Equal(t, "completed", last.Action)
	assert.NotEmpty(t, last.Payload["confirmation_ref"])
	assert.Contains(t, done.data, db.RunStatusCompleted)
}

func TestStream_CompletesWhenTerminalEventWasMissed(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.heartbeat = 10 * time.Millisecond
	run := ts.startRun(t, "medium")
	require.Equal(t, db.RunStatusWaitingApproval, run.Status)

	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()
	body, _ := openStream(t, srv, run.ID)

	// End the run without publishing anything
	_, err := ts.store.UpdateRun(context.Background(), run.ID, &db.RunUpdate{
		Status:       db.Ptr(db.RunStatusFailed),
		CurrentStage: db.Ptr(db.StageFailed),
		Completed:    true,
	})
	require.NoError(t, err)

	done := readSSE(t, body)
	assert.Equal(t, "complete", done.name)
	assert.Contains(t, done.data, db.RunStatusFailed)
}

func TestAdvanceRun(t *testing.T) {
	ts := newTestServer(t, Config{})
	run := ts.startRun(t, "medium")
	require.Equal(t, db.RunStatusWaitingApproval, run.Status)
	require.Len(t, ts.pending(t, run.ID), 1)

	// Leave the run as an interrupted process would
	_, err := ts.store.UpdateRun(context.Background(), run.ID, &db.RunUpdate{Status: db.Ptr(db.RunStatusRunning)})
	require.NoError(t, err)

	w := ts.do(t, http.MethodPost, "/runs/"+run.ID.String()+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resumed := decodeBody[db.Run](t, w)
	assert.Equal(t, db.RunStatusWaitingApproval, resumed.Status)
	assert.Len(t, ts.pending(t, run.ID), 1)

	// Advancing a suspended run changes nothing
	w = ts.do(t, http.MethodPost, "/runs/"+run.ID.String()+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, db.RunStatusWaitingApproval, decodeBody[db.Run](t, w).Status)

	w = ts.do(t, http.MethodPost, "/runs/"+uuid.NewString()+"/advance", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/runs/not-a-uuid/advance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
