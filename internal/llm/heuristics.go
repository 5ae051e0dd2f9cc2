package llm

import (
	"fmt"
	"strings"

	"github.com/jonathan/vulture/internal/types"
)

// UnknownAnswer is the draft returned when no answer can be derived.
const UnknownAnswer = "UNKNOWN"

// StrategyHeuristic marks documents produced without a model.
const StrategyHeuristic = "heuristic_fallback"

var heuristicKeywords = []string{"python", "sql", "aws", "javascript", "leadership", "communication"}

// HeuristicJobAnalysis reads a posting line by line when no model is available.
func HeuristicJobAnalysis(jobText string) types.JobAnalysis {
	var lines []string
	for _, line := range strings.Split(jobText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	title := "Unknown Title"
	if len(lines) > 0 {
		title = lines[0]
	}

	var responsibilities, requirements []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "responsib") && len(responsibilities) < 8 {
			responsibilities = append(responsibilities, line)
		}
		if (strings.Contains(lower, "require") || strings.Contains(lower, "qualif")) && len(requirements) < 8 {
			requirements = append(requirements, line)
		}
	}
	if len(responsibilities) == 0 {
		responsibilities = window(lines, 1, 5)
	}
	if len(requirements) == 0 {
		requirements = window(lines, 5, 10)
	}

	lowerText := strings.ToLower(jobText)
	keywords := []string{}
	for _, kw := range heuristicKeywords {
		if strings.Contains(lowerText, kw) {
			keywords = append(keywords, kw)
		}
	}

	analysis := types.JobAnalysis{
		Title:            title,
		Responsibilities: responsibilities,
		Requirements:     requirements,
		Keywords:         keywords,
	}
	analysis.Normalize()
	return analysis
}

// window returns a copy of lines[from:to] clamped to the slice bounds.
func window(lines []string, from, to int) []string {
	if from >= len(lines) {
		return []string{}
	}
	if to > len(lines) {
		to = len(lines)
	}
	return append([]string{}, lines[from:to]...)
}

// HeuristicDocuments renders a plain markdown resume and cover letter from the analysis.
func HeuristicDocuments(profile *types.ProfileFacts, analysis types.JobAnalysis) types.TailoredDocuments {
	name := "Candidate"
	family := "Professional"
	if profile != nil {
		name = profile.DisplayName()
		if profile.JobFamily != "" {
			family = profile.JobFamily
		}
	}
	role := analysis.Title
	if role == "" {
		role = family
	}

	focus := "the role's core requirements"
	if len(analysis.Keywords) > 0 {
		focus = strings.Join(analysis.Keywords[:min(5, len(analysis.Keywords))], ", ")
	}

	var resume strings.Builder
	fmt.Fprintf(&resume, "# %s\n\n## Target Role: %s\n\n## Summary\n", name, role)
	fmt.Fprintf(&resume, "Experienced %s focused on %s with measurable delivery across cross-functional teams.\n\n",
		strings.ToLower(family), focus)
	resume.WriteString("## Key Responsibilities Alignment\n")
	for _, item := range analysis.Responsibilities[:min(6, len(analysis.Responsibilities))] {
		fmt.Fprintf(&resume, "- %s\n", item)
	}
	resume.WriteString("\n## Key Requirements Alignment\n")
	for _, item := range analysis.Requirements[:min(6, len(analysis.Requirements))] {
		fmt.Fprintf(&resume, "- %s\n", item)
	}

	company := analysis.Company
	if company == "" {
		company = "your company"
	}
	cover := strings.Join([]string{
		fmt.Sprintf("Dear Hiring Team at %s,", company),
		"",
		fmt.Sprintf("I am applying for the %s role.", role),
		"My background aligns with your requirements, and I can contribute immediately.",
		"",
		"Sincerely,",
		name,
	}, "\n")

	return types.TailoredDocuments{
		ResumeMarkdown:      strings.TrimRight(resume.String(), "\n"),
		CoverLetterMarkdown: cover,
		Metadata:            map[string]any{"strategy": StrategyHeuristic},
	}
}

// EmptyPatchBundle is the bundle used when no model produced suggestions.
func EmptyPatchBundle() types.ProfilePatchBundle {
	return types.ProfilePatchBundle{
		Rationale:  "No patch suggestions",
		Operations: []types.PatchOperation{},
		Confidence: 0,
	}
}
