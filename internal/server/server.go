package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/vulture/internal/answers"
	"github.com/jonathan/vulture/internal/config"
	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/events"
	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/orchestrator"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/server/middleware"
	"github.com/jonathan/vulture/internal/server/ratelimit"
	"github.com/jonathan/vulture/internal/types"
)

// Runs is the run lifecycle the API exposes
type Runs interface {
	StartApplication(ctx context.Context, url string, profileID uuid.UUID, mode policy.Mode, submit bool) (*db.Run, error)
	ApproveEvent(ctx context.Context, runID, eventID uuid.UUID) (*db.Run, error)
	RejectEvent(ctx context.Context, runID, eventID uuid.UUID) (*db.Run, error)
	SerializeRun(ctx context.Context, runID uuid.UUID) (*db.Run, error)
	Events(ctx context.Context, runID uuid.UUID) ([]db.RunEvent, error)
	PendingApprovals(ctx context.Context, runID uuid.UUID) ([]db.RunEvent, error)
	Advance(ctx context.Context, runID uuid.UUID) (*db.Run, error)
}

var _ Runs = (*orchestrator.Orchestrator)(nil)

// Store is the read and profile surface the API needs beyond Runs
type Store interface {
	answers.Store

	CreateProfile(ctx context.Context, req *types.CreateProfileRequest) (*types.ProfileFacts, error)
	GetProfileFacts(ctx context.Context, id uuid.UUID) (*types.ProfileFacts, error)
	ListRuns(ctx context.Context, status string, limit int) ([]db.Run, error)
	ListRunContextHistory(ctx context.Context, runID uuid.UUID) ([]db.ContextHistoryEntry, error)
}

var _ Store = (*db.DB)(nil)

// Config holds server configuration
type Config struct {
	Port        int
	CORSOrigins []string
	Auth        config.AuthSettings
	RateLimit   config.RateLimitSettings
}

// Deps are the collaborators a Server serves from
type Deps struct {
	Runs   Runs
	Store  Store
	Events events.Subscriber
	Log    *logger.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	runs        Runs
	store       Store
	events      events.Subscriber
	log         *logger.Logger
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService // nil when auth is disabled
	passwords   *config.PasswordConfig
	auth        config.AuthSettings
	corsOrigins map[string]bool

	heartbeat time.Duration
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}

	s := &Server{
		runs:        deps.Runs,
		store:       deps.Store,
		events:      deps.Events,
		log:         deps.Log,
		auth:        cfg.Auth,
		corsOrigins: make(map[string]bool, len(cfg.CORSOrigins)),
		heartbeat:   15 * time.Second,
	}
	for _, o := range cfg.CORSOrigins {
		s.corsOrigins[o] = true
	}

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.FromSettings(cfg.RateLimit))

	if cfg.Auth.Enabled {
		jwtConfig, err := config.NewJWTConfig(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT config: %w", err)
		}
		s.jwtService = NewJWTService(jwtConfig)

		s.passwords, err = config.NewPasswordConfig(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to create password config: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/token", s.handleLogin)

	mux.HandleFunc("POST /profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("PUT /profiles/{id}/answers", s.handleStoreAnswer)

	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /runs/{id}/advance", s.handleAdvanceRun)
	mux.HandleFunc("GET /runs/{id}/events", s.handleListEvents)
	mux.HandleFunc("GET /runs/{id}/approvals", s.handleListApprovals)
	mux.HandleFunc("POST /runs/{id}/events/{event_id}/approve", s.handleApprove)
	mux.HandleFunc("POST /runs/{id}/events/{event_id}/reject", s.handleReject)
	mux.HandleFunc("GET /runs/{id}/context-history", s.handleContextHistory)
	mux.HandleFunc("GET /runs/{id}/stream", s.handleStream)

	var handler http.Handler = mux
	if s.jwtService != nil {
		handler = middleware.AuthMiddleware(s.jwtService.AsTokenValidator(), "/health", "/auth/token")(handler)
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.withRateLimit(s.withLogging(s.withCORS(handler))),
		ReadTimeout: 30 * time.Second,
		// No write timeout: run starts block until the run suspends and streams stay open
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.rateLimiter.Stop()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.corsOrigins) > 0 {
			origin = ""
			if o := r.Header.Get("Origin"); s.corsOrigins[o] {
				origin = o
				w.Header().Add("Vary", "Origin")
			}
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging tags each request with an id and logs its outcome
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logger.ContextWithRequestID(r.Context(), requestID)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		s.log.WithContext(ctx).Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failure maps err onto a status code. Internal errors are logged and hidden.
func (s *Server) failure(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		s.errorResponse(w, status, "internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID uses the IP from RemoteAddr. X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// pathUUID parses a UUID path segment, answering 400 when it is malformed.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid "+strings.ReplaceAll(name, "_", " "))
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body into v
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
