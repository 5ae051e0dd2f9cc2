package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/logger"
)

func TestRegistry_DetectBuiltins(t *testing.T) {
	r, err := NewRegistry(logger.Nop())
	require.NoError(t, err)

	tests := map[string]string{
		"https://boards.greenhouse.io/acme/jobs/1":     "greenhouse",
		"https://jobs.lever.co/acme/abc":               "lever",
		"https://apply.workable.com/acme/j/1":          "workable",
		"https://jobs.smartrecruiters.com/Acme/1":      "smartrecruiters",
		"https://www.linkedin.com/jobs/view/42":        AdapterLinkedIn,
		"https://linkedin.com/jobs/view/42":            AdapterLinkedIn,
		"https://notlinkedin.com/jobs/view/42":         AdapterGeneric,
		"https://careers.example.com/openings/backend": AdapterGeneric,
		"not a url":                                    AdapterGeneric,
	}
	for url, want := range tests {
		t.Run(url, func(t *testing.T) {
			assert.Equal(t, want, r.Detect(url).Name)
		})
	}
}

func TestAdapter_Sequence(t *testing.T) {
	assert.Equal(t, LinkedInActions, Adapter{Name: AdapterLinkedIn}.Sequence())
	assert.Equal(t, DefaultActions, Adapter{Name: "lever"}.Sequence())

	custom := Adapter{Name: "x", Actions: []string{ActionStartSession, ActionSubmitApplication}}
	seq := custom.Sequence()
	seq[0] = "mutated"
	assert.Equal(t, ActionStartSession, custom.Actions[0])
}

func TestNewRegistry_ExtraAdapters(t *testing.T) {
	extra := []Adapter{
		{Name: "lever", Match: `host.endsWith("lever.co")`, Instructions: "custom lever"},
		{Name: "ashby", Match: `host.contains("ashbyhq")`, Instructions: "ashby"},
	}
	r, err := NewRegistry(logger.Nop(), extra...)
	require.NoError(t, err)

	adapters := r.Adapters()
	assert.Equal(t, AdapterGeneric, adapters[len(adapters)-1].Name)
	assert.Equal(t, "custom lever", r.Detect("https://jobs.lever.co/acme").Instructions)
	assert.Equal(t, "ashby", r.Detect("https://jobs.ashbyhq.com/acme/1").Name)
}

func TestNewRegistry_RejectsBadExpressions(t *testing.T) {
	_, err := NewRegistry(logger.Nop(), Adapter{Name: "bad", Match: `host.contains(`})
	assert.Error(t, err)

	_, err = NewRegistry(logger.Nop(), Adapter{Name: "notbool", Match: `host`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must return bool")
}

func TestParseAdaptersYAML(t *testing.T) {
	doc := []byte(`
adapters:
  - name: ashby
    match: host.contains("ashbyhq")
    instructions: Ashby forms are single page.
    actions: [start_session, fill_personal_info, upload_resume, submit_application]
`)
	adapters, err := ParseAdaptersYAML(doc)
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, "ashby", adapters[0].Name)
	assert.Len(t, adapters[0].Actions, 4)

	_, err = ParseAdaptersYAML([]byte("adapters:\n  - name: x\n    match: \"true\"\n    actions: [dance]\n"))
	assert.ErrorContains(t, err, "unknown action")

	_, err = ParseAdaptersYAML([]byte("adapters:\n  - name: x\n"))
	assert.ErrorContains(t, err, "match is required")

	none, err := ParseAdaptersYAML(nil)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestLoadAdaptersFile(t *testing.T) {
	none, err := LoadAdaptersFile("")
	require.NoError(t, err)
	assert.Nil(t, none)

	path := filepath.Join(t.TempDir(), "adapters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adapters:\n  - name: a\n    match: \"true\"\n"), 0o600))
	adapters, err := LoadAdaptersFile(path)
	require.NoError(t, err)
	assert.Len(t, adapters, 1)

	_, err = LoadAdaptersFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMatcher_Caches(t *testing.T) {
	m, err := NewMatcher()
	require.NoError(t, err)

	ok, err := m.Match(`path.startsWith("/jobs")`, "https://x.io/jobs/1")
	require.NoError(t, err)
	assert.True(t, ok)
	_, _ = m.Match(`path.startsWith("/jobs")`, "https://x.io/other")
	assert.Equal(t, 1, m.CacheSize())
}

func TestDomainPolicy(t *testing.T) {
	p := DomainPolicy{Blocked: []string{"evil.example"}}
	assert.Empty(t, p.Check("https://jobs.good.example/1"))
	assert.Contains(t, p.Check("https://apply.evil.example/1"), "blocked")

	allow := DomainPolicy{Allowed: []string{"greenhouse.io", ".lever.co"}}
	assert.Empty(t, allow.Check("https://boards.greenhouse.io/a"))
	assert.Empty(t, allow.Check("https://jobs.lever.co/a"))
	assert.Contains(t, allow.Check("https://example.com/a"), "not in the allowed list")
	assert.NotEmpty(t, allow.Check("::"))
}
