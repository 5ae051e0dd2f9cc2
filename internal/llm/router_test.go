package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/logger"
	"github.com/jonathan/vulture/internal/types"
)

type fakeClient struct {
	json    string
	text    string
	err     error
	prompts []string
}

func (f *fakeClient) GenerateContent(_ context.Context, prompt string, _ ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, _ ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.json, f.err
}

func (f *fakeClient) GetModel(ModelTier) string { return "fake" }
func (f *fakeClient) Close() error             { return nil }

const postingText = `Senior Data Engineer
Acme builds logistics software.
Responsibilities: own the Python ETL platform
Work with SQL and AWS daily
Mentor engineers
Requirements: 5+ years building pipelines
Strong communication skills`

func TestHeuristicJobAnalysis(t *testing.T) {
	a := HeuristicJobAnalysis(postingText)

	assert.Equal(t, "Senior Data Engineer", a.Title)
	assert.Equal(t, []string{"Responsibilities: own the Python ETL platform"}, a.Responsibilities)
	assert.Equal(t, []string{"Requirements: 5+ years building pipelines"}, a.Requirements)
	assert.Equal(t, []string{"python", "sql", "aws", "communication"}, a.Keywords)
}

func TestHeuristicJobAnalysis_PositionalFallback(t *testing.T) {
	a := HeuristicJobAnalysis("Title\nline one\nline two")
	assert.Equal(t, []string{"line one", "line two"}, a.Responsibilities)
	assert.Equal(t, []string{}, a.Requirements)

	empty := HeuristicJobAnalysis("")
	assert.Equal(t, "Unknown Title", empty.Title)
	assert.NotNil(t, empty.Keywords)
}

func TestHeuristicDocuments(t *testing.T) {
	profile := &types.ProfileFacts{Name: "Ada Lovelace", JobFamily: "Engineer"}
	docs := HeuristicDocuments(profile, HeuristicJobAnalysis(postingText))

	assert.Contains(t, docs.ResumeMarkdown, "# Ada Lovelace")
	assert.Contains(t, docs.ResumeMarkdown, "## Target Role: Senior Data Engineer")
	assert.Contains(t, docs.ResumeMarkdown, "focused on python, sql, aws, communication")
	assert.Contains(t, docs.CoverLetterMarkdown, "Dear Hiring Team at your company,")
	assert.Equal(t, StrategyHeuristic, docs.Metadata["strategy"])
}

func TestRouter_NoClientsUsesHeuristics(t *testing.T) {
	r := NewRouter(nil, nil, logger.Nop())
	ctx := context.Background()

	a := r.AnalyzeJob(ctx, "https://example.com/job", postingText)
	assert.Equal(t, "Senior Data Engineer", a.Title)

	docs := r.TailorDocuments(ctx, nil, a)
	assert.Equal(t, StrategyHeuristic, docs.Metadata["strategy"])

	bundle := r.SuggestProfilePatch(ctx, nil, a)
	assert.Equal(t, EmptyPatchBundle(), bundle)

	assert.Equal(t, UnknownAnswer, r.DraftAnswer(ctx, "Notice period?", nil, a))
}

func TestRouter_AnalyzeJobFromModel(t *testing.T) {
	c := &fakeClient{json: "```json\n{\"title\":\"SRE\",\"company\":\"Acme\",\"keywords\":[\"go\"]}\n```"}
	r := NewRouter(map[Provider]Client{ProviderGemini: c}, nil, logger.Nop())

	a := r.AnalyzeJob(context.Background(), "https://example.com/job", postingText)
	assert.Equal(t, "SRE", a.Title)
	assert.Equal(t, "Acme", a.Company)
	assert.Equal(t, []string{}, a.Requirements)
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "https://example.com/job")
}

func TestRouter_InvalidOutputFallsBack(t *testing.T) {
	c := &fakeClient{json: `{"company":"Acme"}`}
	r := NewRouter(map[Provider]Client{ProviderGemini: c}, nil, logger.Nop())

	a := r.AnalyzeJob(context.Background(), "u", postingText)
	assert.Equal(t, "Senior Data Engineer", a.Title)
}

func TestRouter_FallbackProvider(t *testing.T) {
	local := &fakeClient{err: errors.New("connection refused")}
	remote := &fakeClient{text: "  30 days  "}
	r := NewRouter(
		map[Provider]Client{ProviderLocal: local, ProviderGemini: remote},
		map[Task]Provider{TaskWriter: ProviderLocal},
		logger.Nop(),
	)

	assert.Equal(t, []Provider{ProviderLocal, ProviderGemini}, r.Providers(TaskWriter))
	assert.Equal(t, []Provider{ProviderGemini, ProviderLocal}, r.Providers(TaskExtract))
	assert.Equal(t, "30 days", r.DraftAnswer(context.Background(), "Notice period?", nil, types.JobAnalysis{}))
	assert.Len(t, local.prompts, 1)
	assert.Len(t, remote.prompts, 1)
}

func TestRouter_SuggestProfilePatchFiltersOperations(t *testing.T) {
	c := &fakeClient{json: `{
		"rationale": "add skills",
		"confidence": 1.7,
		"operations": [
			{"table":"skills","op":"upsert","key":{"name":"Go"},"values":{"years":3},"confidence":0.9},
			{"table":"skills","op":"delete","key":{"name":"Perl"}},
			{"table":"profile_personal","op":"update","values":{"headline":"SRE"},"confidence":3},
			{"table":"profile_preferences","op":"insert","values":{"remote_pref":"remote"}}
		]
	}`}
	r := NewRouter(map[Provider]Client{ProviderLocal: c}, map[Task]Provider{TaskDBPatch: ProviderLocal}, logger.Nop())

	bundle := r.SuggestProfilePatch(context.Background(), &types.ProfileFacts{Name: "A"}, types.JobAnalysis{Title: "SRE"})
	assert.Equal(t, "add skills", bundle.Rationale)
	assert.Equal(t, 1.0, bundle.Confidence)
	require.Len(t, bundle.Operations, 2)
	assert.Equal(t, "skills", bundle.Operations[0].Table)
	assert.Equal(t, "llm", bundle.Operations[0].Source)
	assert.Equal(t, "profile_preferences", bundle.Operations[1].Table)
	assert.Equal(t, map[string]any{}, bundle.Operations[1].Key)
	assert.Contains(t, c.prompts[0], "profile_work_auth")
}

func TestRouter_StringConfidence(t *testing.T) {
	c := &fakeClient{json: `{"operations":[],"confidence":"0.4"}`}
	r := NewRouter(map[Provider]Client{ProviderGemini: c}, nil, logger.Nop())

	bundle := r.SuggestProfilePatch(context.Background(), nil, types.JobAnalysis{})
	assert.InDelta(t, 0.4, bundle.Confidence, 1e-9)
	assert.Empty(t, bundle.Operations)
}
