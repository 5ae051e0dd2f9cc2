package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/policy"
	"github.com/jonathan/vulture/internal/types"
)

// Gate actions outside the browser flow
const (
	ActionBeginJobParse       = "begin_job_parse"
	ActionApproveTailoredDocs = "approve_tailored_docs"
	ActionPatchBatch          = "patch_batch"
)

// PatchOpAction is the strict-mode gate action of operation i.
func PatchOpAction(i int) string {
	return fmt.Sprintf("patch_op:%d", i)
}

func (o *Orchestrator) stepJobParse(ctx context.Context, run *db.Run, mode policy.Mode, job *db.Job) (bool, error) {
	ok, err := o.gate(ctx, run, mode, policy.StageJobParsingStart, ActionBeginJobParse, map[string]any{"job_url": job.URL})
	if err != nil || !ok {
		return false, err
	}

	text := o.fetcher.JobText(ctx, job.URL)
	analysis := o.llm.AnalyzeJob(ctx, job.URL, text)
	if _, err := o.repo.UpdateJobAnalysis(ctx, job.ID, analysis, text); err != nil {
		return false, fmt.Errorf("failed to store job analysis: %w", err)
	}

	rc := run.Context.Clone()
	rc.JobAnalysis = &analysis
	if err := o.updateRun(ctx, run, &db.RunUpdate{
		Status:       db.Ptr(db.RunStatusRunning),
		CurrentStage: db.Ptr(db.StageCVTailor),
		Context:      &rc,
	}); err != nil {
		return false, err
	}
	if err := o.record(ctx, run.ID, db.StageJobParse, "completed", analysis.AsMap()); err != nil {
		return false, err
	}
	o.emit(ctx, run.ID)

	o.log.Debug("job parsed", "run_id", run.ID, "title", analysis.Title, "text_chars", len(text))
	return true, nil
}

func (o *Orchestrator) stepCVTailor(ctx context.Context, run *db.Run, mode policy.Mode, job *db.Job) (bool, error) {
	if run.Context.TailoredResumePath == "" {
		if err := o.tailorDocuments(ctx, run, job); err != nil {
			return false, err
		}
	}

	ok, err := o.gate(ctx, run, mode, policy.StageCVTailoringOutput, ActionApproveTailoredDocs, map[string]any{
		"resume_path":       run.Context.TailoredResumePath,
		"cover_letter_path": run.Context.TailoredCoverLetterPath,
	})
	if err != nil || !ok {
		return false, err
	}

	if err := o.updateRun(ctx, run, &db.RunUpdate{
		Status:       db.Ptr(db.RunStatusRunning),
		CurrentStage: db.Ptr(db.StageProfilePatch),
	}); err != nil {
		return false, err
	}
	if err := o.record(ctx, run.ID, db.StageCVTailor, "approved_or_auto", nil); err != nil {
		return false, err
	}
	o.emit(ctx, run.ID)
	return true, nil
}

// tailorDocuments generates and stores the resume and cover letter once per run.
func (o *Orchestrator) tailorDocuments(ctx context.Context, run *db.Run, job *db.Job) error {
	facts, err := o.profileFacts(ctx, run)
	if err != nil {
		return err
	}
	docs := o.llm.TailorDocuments(ctx, facts, analysisOf(run.Context))

	name := fmt.Sprintf("run_%s_%s.md", run.ID, o.opts.Clock().UTC().Format("20060102150405"))
	resumePath := filepath.Join(o.opts.ResumeDir, name)
	coverPath := filepath.Join(o.opts.CoverLetterDir, name)

	g := new(errgroup.Group)
	g.Go(func() error { return writeDocument(resumePath, docs.ResumeMarkdown) })
	g.Go(func() error { return writeDocument(coverPath, docs.CoverLetterMarkdown) })
	if err := g.Wait(); err != nil {
		return err
	}

	runID := run.ID
	if _, err := o.repo.SaveResumeVersion(ctx, &db.DocumentVersionInput{
		ProfileID:        run.ProfileID,
		JobID:            job.ID,
		RunID:            &runID,
		FilePath:         resumePath,
		MarkdownSnapshot: docs.ResumeMarkdown,
		LLMMetadata:      docs.Metadata,
	}); err != nil {
		return fmt.Errorf("failed to save resume version: %w", err)
	}
	if _, err := o.repo.SaveCoverLetterVersion(ctx, &db.DocumentVersionInput{
		ProfileID:        run.ProfileID,
		JobID:            job.ID,
		RunID:            &runID,
		FilePath:         coverPath,
		MarkdownSnapshot: docs.CoverLetterMarkdown,
		LLMMetadata:      docs.Metadata,
	}); err != nil {
		return fmt.Errorf("failed to save cover letter version: %w", err)
	}

	rc := run.Context.Clone()
	rc.TailoredResumePath = resumePath
	rc.TailoredCoverLetterPath = coverPath
	if err := o.updateRun(ctx, run, &db.RunUpdate{Context: &rc}); err != nil {
		return err
	}
	if err := o.record(ctx, run.ID, db.StageCVTailor, "documents_generated", map[string]any{
		"resume_path":       resumePath,
		"cover_letter_path": coverPath,
	}); err != nil {
		return err
	}
	o.emit(ctx, run.ID)
	return nil
}

func writeDocument(path, markdown string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (o *Orchestrator) stepProfilePatch(ctx context.Context, run *db.Run, mode policy.Mode) (bool, error) {
	if !run.Context.PatchGenerated {
		if err := o.suggestPatch(ctx, run); err != nil {
			return false, err
		}
	}

	ok, err := o.applyPatches(ctx, run, mode)
	if err != nil || !ok {
		return false, err
	}

	if err := o.updateRun(ctx, run, &db.RunUpdate{
		Status:       db.Ptr(db.RunStatusRunning),
		CurrentStage: db.Ptr(db.StageBrowserFlow),
	}); err != nil {
		return false, err
	}
	if err := o.record(ctx, run.ID, db.StageProfilePatch, "applied", map[string]any{
		"applied_count": len(run.Context.PatchAppliedIndexes),
	}); err != nil {
		return false, err
	}
	o.emit(ctx, run.ID)
	return true, nil
}

// suggestPatch asks for a patch bundle once and keeps it in the run context.
func (o *Orchestrator) suggestPatch(ctx context.Context, run *db.Run) error {
	facts, err := o.profileFacts(ctx, run)
	if err != nil {
		return err
	}
	bundle := o.llm.SuggestProfilePatch(ctx, facts, analysisOf(run.Context))

	if _, err := o.repo.CreatePatchSuggestion(ctx, &db.PatchSuggestionInput{
		RunID:    run.ID,
		Provider: o.opts.PatchProvider,
		Bundle:   bundle,
		Status:   db.PatchStatusSuggested,
	}); err != nil {
		return fmt.Errorf("failed to store patch suggestion: %w", err)
	}

	rc := run.Context.Clone()
	rc.PatchBundle = &bundle
	rc.PatchGenerated = true
	if rc.PatchAppliedIndexes == nil {
		rc.PatchAppliedIndexes = []int{}
	}
	if err := o.updateRun(ctx, run, &db.RunUpdate{Context: &rc}); err != nil {
		return err
	}
	if err := o.record(ctx, run.ID, db.StageProfilePatch, "patch_suggested", map[string]any{
		"operation_count": len(bundle.Operations),
		"confidence":      bundle.Confidence,
	}); err != nil {
		return err
	}
	o.emit(ctx, run.ID)
	return nil
}

// applyPatches runs the patch sub-machine. Strict approves each operation,
// medium approves the batch once, yolo applies without asking.
func (o *Orchestrator) applyPatches(ctx context.Context, run *db.Run, mode policy.Mode) (bool, error) {
	var ops []types.PatchOperation
	if run.Context.PatchBundle != nil {
		ops = run.Context.PatchBundle.Operations
	}

	if mode == policy.ModeStrict {
		for i, op := range ops {
			if run.Context.PatchApplied(i) {
				continue
			}
			ok, err := o.gate(ctx, run, mode, policy.StageDBPatchApply, PatchOpAction(i), op.AsMap())
			if err != nil || !ok {
				return false, err
			}

			if err := o.repo.ApplyPatchOperation(ctx, run.ProfileID, op); err != nil {
				return false, fmt.Errorf("failed to apply patch operation %d: %w", i, err)
			}
			rc := run.Context.Clone()
			rc.MarkPatchApplied(i)
			if err := o.updateRun(ctx, run, &db.RunUpdate{Context: &rc}); err != nil {
				return false, err
			}
			if err := o.record(ctx, run.ID, db.StageProfilePatch, fmt.Sprintf("applied_patch_op:%d", i), op.AsMap()); err != nil {
				return false, err
			}
			o.emit(ctx, run.ID)
		}
		return true, nil
	}

	if run.Context.PatchBatchApplied {
		return true, nil
	}
	ok, err := o.gate(ctx, run, mode, policy.StageDBPatchApply, ActionPatchBatch, map[string]any{"operation_count": len(ops)})
	if err != nil || !ok {
		return false, err
	}

	rc := run.Context.Clone()
	for i, op := range ops {
		if rc.PatchApplied(i) {
			continue
		}
		if err := o.repo.ApplyPatchOperation(ctx, run.ProfileID, op); err != nil {
			return false, fmt.Errorf("failed to apply patch operation %d: %w", i, err)
		}
		rc.MarkPatchApplied(i)
	}
	rc.PatchBatchApplied = true
	if err := o.updateRun(ctx, run, &db.RunUpdate{Context: &rc}); err != nil {
		return false, err
	}
	o.emit(ctx, run.ID)
	return true, nil
}

func (o *Orchestrator) profileFacts(ctx context.Context, run *db.Run) (*types.ProfileFacts, error) {
	facts, err := o.repo.GetProfileFacts(ctx, run.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile facts: %w", err)
	}
	if facts == nil {
		return nil, fmt.Errorf("%w: profile %s does not exist", ErrInvalidReference, run.ProfileID)
	}
	return facts, nil
}

func analysisOf(rc types.RunContext) types.JobAnalysis {
	if rc.JobAnalysis == nil {
		return types.JobAnalysis{}
	}
	return *rc.JobAnalysis
}
