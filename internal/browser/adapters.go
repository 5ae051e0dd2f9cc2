// Package browser drives application forms: it picks a domain adapter for the
// job URL, enforces the domain allow and block lists, and executes one action
// at a time through a driver.
package browser

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/vulture/internal/logger"
)

// Browser actions
const (
	ActionStartSession          = "start_session"
	ActionFillPersonalInfo      = "fill_personal_info"
	ActionFillWorkHistory       = "fill_work_history"
	ActionFillCompliance        = "fill_compliance"
	ActionUploadResume          = "upload_resume"
	ActionSubmitApplication     = "submit_application"
	ActionLinkedInOpenEasyApply = "linkedin_open_easy_apply"
	ActionLinkedInFillSteps     = "linkedin_fill_steps"
)

// DefaultActions is the action sequence for ordinary application forms.
var DefaultActions = []string{
	ActionStartSession,
	ActionFillPersonalInfo,
	ActionFillWorkHistory,
	ActionFillCompliance,
	ActionUploadResume,
	ActionSubmitApplication,
}

// LinkedInActions is the Easy Apply sequence.
var LinkedInActions = []string{
	ActionStartSession,
	ActionLinkedInOpenEasyApply,
	ActionLinkedInFillSteps,
	ActionUploadResume,
	ActionSubmitApplication,
}

var knownActions = map[string]bool{
	ActionStartSession:          true,
	ActionFillPersonalInfo:      true,
	ActionFillWorkHistory:       true,
	ActionFillCompliance:        true,
	ActionUploadResume:          true,
	ActionSubmitApplication:     true,
	ActionLinkedInOpenEasyApply: true,
	ActionLinkedInFillSteps:     true,
}

// AdapterLinkedIn and AdapterGeneric are the adapters with special handling.
const (
	AdapterLinkedIn = "linkedin"
	AdapterGeneric  = "generic"
)

// Adapter carries per-site hints and the action sequence for matching URLs
type Adapter struct {
	Name         string   `yaml:"name" json:"name"`
	Match        string   `yaml:"match" json:"match"`
	Instructions string   `yaml:"instructions" json:"instructions"`
	Actions      []string `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Sequence returns the adapter's actions, defaulting by adapter name.
func (a Adapter) Sequence() []string {
	if len(a.Actions) > 0 {
		return append([]string(nil), a.Actions...)
	}
	if a.Name == AdapterLinkedIn {
		return append([]string(nil), LinkedInActions...)
	}
	return append([]string(nil), DefaultActions...)
}

var adapterInstructions = map[string]string{
	"greenhouse": "Greenhouse forms usually include grouped sections for personal information, " +
		"resume upload, EEOC voluntary self-identification, and custom questions. " +
		"Watch for required fields marked with an asterisk.",
	"lever": "Lever applications often render profile fields and resume upload in one page, " +
		"then optional links and additional questions. Prefer stable input names over placeholders.",
	"workable": "Workable forms are usually modular with optional screening questions. " +
		"Handle radio and select controls carefully and preserve user-declared compliance answers.",
	"smartrecruiters": "SmartRecruiters flows may include account creation and multi-step forms. " +
		"Proceed step-by-step and verify required fields before advancing.",
	AdapterLinkedIn: "Prioritize Easy Apply modal detection. If the posting routes to an external " +
		"application, stop and report it. Complete one step at a time and stop immediately " +
		"if a CAPTCHA or other human verification appears.",
	AdapterGeneric: "Use robust form detection with semantic labels and avoid assumptions about field order.",
}

// BuiltinAdapters returns the shipped adapters in match order. Generic is last
// and matches everything.
func BuiltinAdapters() []Adapter {
	builtins := []struct{ name, match string }{
		{"greenhouse", `host.contains("greenhouse")`},
		{"lever", `host.contains("lever")`},
		{"workable", `host.contains("workable")`},
		{"smartrecruiters", `host.contains("smartrecruiters")`},
		{AdapterLinkedIn, `host == "linkedin.com" || host.endsWith(".linkedin.com")`},
		{AdapterGeneric, "true"},
	}
	adapters := make([]Adapter, 0, len(builtins))
	for _, b := range builtins {
		adapters = append(adapters, Adapter{Name: b.name, Match: b.match, Instructions: adapterInstructions[b.name]})
	}
	return adapters
}

type adaptersFile struct {
	Adapters []Adapter `yaml:"adapters"`
}

// ParseAdaptersYAML decodes an adapters document.
func ParseAdaptersYAML(data []byte) ([]Adapter, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var file adaptersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode adapters: %w", err)
	}
	for i, a := range file.Adapters {
		if strings.TrimSpace(a.Name) == "" {
			return nil, fmt.Errorf("adapter %d: name is required", i)
		}
		if strings.TrimSpace(a.Match) == "" {
			return nil, fmt.Errorf("adapter %s: match is required", a.Name)
		}
		for _, action := range a.Actions {
			if !knownActions[action] {
				return nil, fmt.Errorf("adapter %s: unknown action %q", a.Name, action)
			}
		}
	}
	return file.Adapters, nil
}

// LoadAdaptersFile reads adapters from a YAML file. An empty path means none.
func LoadAdaptersFile(path string) ([]Adapter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read adapters file %s: %w", path, err)
	}
	adapters, err := ParseAdaptersYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return adapters, nil
}

// Registry picks the first adapter whose expression matches a URL
type Registry struct {
	adapters []Adapter
	matcher  *Matcher
	log      *logger.Logger
}

// NewRegistry merges extra adapters into the builtins. An extra adapter with a
// builtin name replaces it in place; new ones are tried before generic.
func NewRegistry(log *logger.Logger, extra ...Adapter) (*Registry, error) {
	if log == nil {
		log = logger.Nop()
	}
	matcher, err := NewMatcher()
	if err != nil {
		return nil, err
	}

	adapters := BuiltinAdapters()
	for _, a := range extra {
		replaced := false
		for i := range adapters {
			if adapters[i].Name == a.Name {
				adapters[i] = a
				replaced = true
				break
			}
		}
		if !replaced {
			last := len(adapters) - 1
			adapters = append(adapters[:last], a, adapters[last])
		}
	}

	for _, a := range adapters {
		if err := matcher.Compile(a.Match); err != nil {
			return nil, fmt.Errorf("adapter %s: %w", a.Name, err)
		}
	}
	return &Registry{adapters: adapters, matcher: matcher, log: log}, nil
}

// Adapters returns the adapters in match order
func (r *Registry) Adapters() []Adapter {
	return append([]Adapter(nil), r.adapters...)
}

// Detect returns the adapter for jobURL, falling back to generic.
func (r *Registry) Detect(jobURL string) Adapter {
	for _, a := range r.adapters {
		ok, err := r.matcher.Match(a.Match, jobURL)
		if err != nil {
			r.log.Warn("adapter match failed", "adapter", a.Name, "error", err)
			continue
		}
		if ok {
			return a
		}
	}
	for _, a := range BuiltinAdapters() {
		if a.Name == AdapterGeneric {
			return a
		}
	}
	return Adapter{Name: AdapterGeneric}
}
