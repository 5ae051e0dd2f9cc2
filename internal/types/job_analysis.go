// Package types provides type definitions for structured data used throughout the vulture system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// JobAnalysis is the structured reading of a job posting produced by the LLM router
// (or its heuristic fallback).
type JobAnalysis struct {
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	Location         string   `json:"location"`
	Responsibilities []string `json:"responsibilities"`
	Requirements     []string `json:"requirements"`
	Compensation     string   `json:"compensation"`
	Keywords         []string `json:"keywords"`
}

// Normalize replaces nil slices with empty ones so the analysis serializes as arrays.
func (a *JobAnalysis) Normalize() {
	if a.Responsibilities == nil {
		a.Responsibilities = []string{}
	}
	if a.Requirements == nil {
		a.Requirements = []string{}
	}
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
}

// AsMap renders the analysis as a generic JSON object for event payloads.
func (a JobAnalysis) AsMap() map[string]any {
	a.Normalize()
	return map[string]any{
		"title":            a.Title,
		"company":          a.Company,
		"location":         a.Location,
		"responsibilities": a.Responsibilities,
		"requirements":     a.Requirements,
		"compensation":     a.Compensation,
		"keywords":         a.Keywords,
	}
}
