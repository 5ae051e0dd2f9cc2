package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jonathan/vulture/internal/config"
	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/prompts"
	"github.com/jonathan/vulture/internal/schemas"
	"github.com/jonathan/vulture/internal/types"
)

// Task selects which provider serves a call
type Task string

// Router tasks
const (
	TaskExtract Task = "extract"
	TaskWriter  Task = "writer"
	TaskDBPatch Task = "db_patch"
)

// maxJobTextChars bounds the posting text sent for analysis
const maxJobTextChars = 20000

// Router sends each task to its primary provider, then the other one, and falls
// back to heuristics when neither produces usable output. Its methods never fail.
type Router struct {
	clients map[Provider]Client
	routes  map[Task]Provider
	log     *logger.Logger
}

// NewRouter builds a router over the given clients. Missing clients are skipped.
func NewRouter(clients map[Provider]Client, routes map[Task]Provider, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	if clients == nil {
		clients = map[Provider]Client{}
	}
	if routes == nil {
		routes = map[Task]Provider{}
	}
	return &Router{clients: clients, routes: routes, log: log}
}

// NewRouterFromSettings creates Gemini when an API key is set and the local
// client when enabled. With neither, every call takes the heuristic path.
func NewRouterFromSettings(ctx context.Context, s config.LLMSettings, log *logger.Logger) (*Router, error) {
	clients := map[Provider]Client{}
	if s.GeminiAPIKey != "" {
		c, err := NewGeminiClient(ctx, DefaultGeminiConfig(), s.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		clients[ProviderGemini] = c
	}
	if s.LocalEnabled {
		c, err := NewLocalClient(LocalConfig(s.LocalModel), ClientOptions{
			APIKey:  s.LocalAPIKey,
			BaseURL: s.LocalBaseURL,
			Timeout: s.LocalTimeout(),
		})
		if err != nil {
			return nil, err
		}
		clients[ProviderLocal] = c
	}
	routes := map[Task]Provider{
		TaskExtract: ParseProvider(s.ExtractProvider),
		TaskWriter:  ParseProvider(s.WriterProvider),
		TaskDBPatch: ParseProvider(s.DBPatchProvider),
	}
	return NewRouter(clients, routes, log), nil
}

// Close releases every client.
func (r *Router) Close() error {
	var errs []error
	for _, c := range r.clients {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Providers returns the configured providers in call order for task.
func (r *Router) Providers(task Task) []Provider {
	primary := r.routes[task]
	if primary == "" {
		primary = ProviderGemini
	}
	fallback := ProviderLocal
	if primary == ProviderLocal {
		fallback = ProviderGemini
	}

	var out []Provider
	for _, p := range []Provider{primary, fallback} {
		if _, ok := r.clients[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// callJSON returns the first JSON object any provider produces, or "".
func (r *Router) callJSON(ctx context.Context, task Task, tier ModelTier, prompt string) string {
	for _, p := range r.Providers(task) {
		text, err := r.clients[p].GenerateJSON(ctx, prompt, tier)
		if err != nil {
			r.log.Warn("LLM JSON call failed", "provider", p, "task", task, "error", err)
			continue
		}
		if obj := JSONObject(text); obj != "" {
			return obj
		}
		r.log.Warn("LLM returned no JSON object", "provider", p, "task", task)
	}
	return ""
}

func (r *Router) callText(ctx context.Context, task Task, tier ModelTier, prompt string) string {
	for _, p := range r.Providers(task) {
		text, err := r.clients[p].GenerateContent(ctx, prompt, tier)
		if err != nil {
			r.log.Warn("LLM text call failed", "provider", p, "task", task, "error", err)
			continue
		}
		return text
	}
	return ""
}

// AnalyzeJob extracts a structured analysis from posting text.
func (r *Router) AnalyzeJob(ctx context.Context, jobURL, jobText string) types.JobAnalysis {
	prompt := prompts.Format(prompts.MustGet(prompts.JobsFile, prompts.KeyAnalyzeJob), map[string]string{
		"URL":     jobURL,
		"JobText": truncateRunes(jobText, maxJobTextChars),
	})

	raw := r.callJSON(ctx, TaskExtract, TierStandard, prompt)
	if raw == "" {
		return HeuristicJobAnalysis(jobText)
	}
	if err := schemas.Validate(schemas.JobAnalysis, []byte(raw)); err != nil {
		r.log.Warn("invalid job analysis output, using heuristic", "error", err)
		return HeuristicJobAnalysis(jobText)
	}

	var analysis types.JobAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		r.log.Warn("failed to decode job analysis, using heuristic", "error", err)
		return HeuristicJobAnalysis(jobText)
	}
	analysis.Normalize()
	return analysis
}

// TailorDocuments writes a resume and cover letter for the analyzed job.
func (r *Router) TailorDocuments(ctx context.Context, profile *types.ProfileFacts, analysis types.JobAnalysis) types.TailoredDocuments {
	name := "Candidate"
	if profile != nil {
		name = profile.DisplayName()
	}
	prompt := prompts.Format(prompts.MustGet(prompts.DocumentsFile, prompts.KeyTailorDocs), map[string]string{
		"CandidateName": name,
		"JobAnalysis":   toJSON(analysis),
		"Profile":       toJSON(profile),
	})

	raw := r.callJSON(ctx, TaskWriter, TierAdvanced, prompt)
	if raw == "" {
		return HeuristicDocuments(profile, analysis)
	}
	if err := schemas.Validate(schemas.TailoredDocuments, []byte(raw)); err != nil {
		r.log.Warn("invalid tailored documents output, using heuristic", "error", err)
		return HeuristicDocuments(profile, analysis)
	}

	var docs types.TailoredDocuments
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		r.log.Warn("failed to decode tailored documents, using heuristic", "error", err)
		return HeuristicDocuments(profile, analysis)
	}
	if docs.Metadata == nil {
		docs.Metadata = map[string]any{}
	}
	return docs
}

// rawBundle is the lenient shape of a patch suggestion. Operations are decoded
// one at a time so a single bad entry does not discard the rest.
type rawBundle struct {
	Rationale  any               `json:"rationale"`
	Operations []json.RawMessage `json:"operations"`
	Confidence any               `json:"confidence"`
}

// SuggestProfilePatch proposes profile enrichments. Invalid operations are
// dropped and the bundle confidence is clamped to [0, 1].
func (r *Router) SuggestProfilePatch(ctx context.Context, profile *types.ProfileFacts, analysis types.JobAnalysis) types.ProfilePatchBundle {
	prompt := prompts.Format(prompts.MustGet(prompts.ProfileFile, prompts.KeySuggestPatch), map[string]string{
		"Tables":      strings.Join(types.PatchTables, ", "),
		"JobAnalysis": toJSON(analysis),
		"Profile":     toJSON(profile),
	})

	raw := r.callJSON(ctx, TaskDBPatch, TierStandard, prompt)
	if raw == "" {
		return EmptyPatchBundle()
	}
	if err := schemas.Validate(schemas.PatchBundle, []byte(raw)); err != nil {
		r.log.Warn("invalid patch bundle output", "error", err)
		return EmptyPatchBundle()
	}

	var rb rawBundle
	if err := json.Unmarshal([]byte(raw), &rb); err != nil {
		r.log.Warn("failed to decode patch bundle", "error", err)
		return EmptyPatchBundle()
	}
	return decodeBundle(rb, r.log)
}

func decodeBundle(rb rawBundle, log *logger.Logger) types.ProfilePatchBundle {
	ops := make([]types.PatchOperation, 0, len(rb.Operations))
	for i, item := range rb.Operations {
		var candidate types.PatchOperation
		if err := json.Unmarshal(item, &candidate); err != nil {
			log.Debug("skipping undecodable patch operation", "index", i, "error", err)
			continue
		}
		op, err := types.NewPatchOperation(candidate.Table, candidate.Op, candidate.Key, candidate.Values,
			candidate.Source, candidate.Confidence)
		if err != nil {
			log.Debug("skipping invalid patch operation", "index", i, "error", err)
			continue
		}
		ops = append(ops, op)
	}

	rationale := ""
	if rb.Rationale != nil {
		if s, ok := rb.Rationale.(string); ok {
			rationale = s
		} else {
			rationale = toJSON(rb.Rationale)
		}
	}

	return types.ProfilePatchBundle{
		Rationale:  rationale,
		Operations: ops,
		Confidence: clamp01(asFloat(rb.Confidence)),
	}
}

// DraftAnswer drafts a screening answer from profile facts. It returns
// UnknownAnswer when the model is silent or unavailable.
func (r *Router) DraftAnswer(ctx context.Context, question string, profile *types.ProfileFacts, analysis types.JobAnalysis) string {
	prompt := prompts.Format(prompts.MustGet(prompts.ScreeningFile, prompts.KeyDraftAnswer), map[string]string{
		"Question":    question,
		"Profile":     toJSON(profile),
		"JobAnalysis": toJSON(analysis),
	})

	answer := strings.TrimSpace(r.callText(ctx, TaskWriter, TierLite, prompt))
	if answer == "" {
		return UnknownAnswer
	}
	return answer
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(x)), &f); err == nil {
			return f
		}
	}
	return 0
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
