package types

// TailoredDocuments holds the generated resume and cover letter for one run
type TailoredDocuments struct {
	ResumeMarkdown      string         `json:"resume_markdown"`
	CoverLetterMarkdown string         `json:"cover_letter_markdown"`
	Metadata            map[string]any `json:"metadata"`
}
