package types

// RunContext is the persisted working state of a run. Everything needed to resume
// after a suspension lives here.
type RunContext struct {
	Submit                  bool                `json:"submit"`
	BrowserActionIndex      int                 `json:"browser_action_index"`
	BrowserAdapter          string              `json:"browser_adapter,omitempty"`
	JobAnalysis             *JobAnalysis        `json:"job_analysis,omitempty"`
	TailoredResumePath      string              `json:"tailored_resume_path,omitempty"`
	TailoredCoverLetterPath string              `json:"tailored_cover_letter_path,omitempty"`
	PatchGenerated          bool                `json:"patch_generated"`
	PatchBundle             *ProfilePatchBundle `json:"patch_bundle,omitempty"`
	PatchAppliedIndexes     []int               `json:"patch_applied_indexes"`
	PatchBatchApplied       bool                `json:"patch_batch_applied,omitempty"`
	CaptchaSolved           bool                `json:"captcha_solved,omitempty"`
}

// PatchApplied reports whether operation i was already applied.
func (c *RunContext) PatchApplied(i int) bool {
	for _, idx := range c.PatchAppliedIndexes {
		if idx == i {
			return true
		}
	}
	return false
}

// MarkPatchApplied records operation i as applied, keeping the index set sorted and unique.
func (c *RunContext) MarkPatchApplied(i int) {
	if c.PatchApplied(i) {
		return
	}
	pos := len(c.PatchAppliedIndexes)
	for j, idx := range c.PatchAppliedIndexes {
		if idx > i {
			pos = j
			break
		}
	}
	c.PatchAppliedIndexes = append(c.PatchAppliedIndexes, 0)
	copy(c.PatchAppliedIndexes[pos+1:], c.PatchAppliedIndexes[pos:])
	c.PatchAppliedIndexes[pos] = i
}

// Clone returns a deep enough copy for safe mutation of the index set.
func (c RunContext) Clone() RunContext {
	out := c
	if c.PatchAppliedIndexes != nil {
		out.PatchAppliedIndexes = make([]int, len(c.PatchAppliedIndexes))
		copy(out.PatchAppliedIndexes, c.PatchAppliedIndexes)
	}
	return out
}
