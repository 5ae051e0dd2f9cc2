package memstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/vulture/internal/db"
	"github.com/jonathan/vulture/internal/types"
)

func newProfile(t *testing.T, s *Store) *types.ProfileFacts {
	t.Helper()
	p, err := s.CreateProfile(context.Background(), &types.CreateProfileRequest{
		Name:     "Ada",
		Personal: &types.PersonalInfo{FirstName: "Ada", Headline: "Engineer"},
		WorkAuth: &types.WorkAuthorization{AuthorizedCountries: []string{"US"}},
	})
	require.NoError(t, err)
	return p
}

func TestCreateProfile_SeedsSubRecords(t *testing.T) {
	s := New()
	p := newProfile(t, s)

	require.NotNil(t, p.Personal)
	assert.Equal(t, "Engineer", p.Personal.Headline)
	require.NotNil(t, p.WorkAuth)
	assert.Equal(t, []string{"US"}, p.WorkAuth.AuthorizedCountries)
	assert.Nil(t, p.Preferences)

	missing, err := s.GetProfileFacts(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApplyPatchOperation_Semantics(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProfile(t, s)

	t.Run("insert on existing key is a no-op", func(t *testing.T) {
		err := s.ApplyPatchOperation(ctx, p.ID, types.PatchOperation{
			Table: types.PatchTablePersonal, Op: types.PatchOpInsert,
			Values: map[string]any{"headline": "Changed"},
		})
		require.NoError(t, err)
		facts, _ := s.GetProfileFacts(ctx, p.ID)
		assert.Equal(t, "Engineer", facts.Personal.Headline)
	})

	t.Run("update on missing key fails", func(t *testing.T) {
		err := s.ApplyPatchOperation(ctx, p.ID, types.PatchOperation{
			Table: types.PatchTableSkills, Op: types.PatchOpUpdate,
			Key: map[string]any{"name": "Go"}, Values: map[string]any{"years": 2.0},
		})
		assert.ErrorIs(t, err, db.ErrPatchTargetMissing)
	})

	t.Run("upsert leaves exactly one row", func(t *testing.T) {
		for _, years := range []float64{1, 4} {
			err := s.ApplyPatchOperation(ctx, p.ID, types.PatchOperation{
				Table: types.PatchTableSkills, Op: types.PatchOpUpsert,
				Key: map[string]any{"name": "Go"}, Values: map[string]any{"years": years},
			})
			require.NoError(t, err)
		}
		facts, _ := s.GetProfileFacts(ctx, p.ID)
		require.Len(t, facts.Skills, 1)
		assert.Equal(t, 4.0, *facts.Skills[0].Years)
	})

	t.Run("unknown table is rejected", func(t *testing.T) {
		err := s.ApplyPatchOperation(ctx, p.ID, types.PatchOperation{Table: "users", Op: types.PatchOpUpsert})
		assert.ErrorIs(t, err, db.ErrUnsupportedPatchTable)
	})

	t.Run("unknown op is rejected", func(t *testing.T) {
		err := s.ApplyPatchOperation(ctx, p.ID, types.PatchOperation{Table: types.PatchTableSkills, Op: "merge"})
		assert.ErrorIs(t, err, db.ErrUnsupportedPatchOperation)
	})
}

func TestRunEvents_ApprovalLookup(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProfile(t, s)
	job, err := s.CreateJob(ctx, "https://jobs.lever.co/acme/1")
	require.NoError(t, err)
	assert.Equal(t, "jobs.lever.co", job.Domain)

	run, err := s.CreateRun(ctx, &db.RunInput{
		JobID: job.ID, ProfileID: p.ID, Mode: "strict",
		Status: db.RunStatusRunning, CurrentStage: db.StageJobParse,
	})
	require.NoError(t, err)

	first, err := s.AppendRunEvent(ctx, &db.RunEventInput{
		RunID: run.ID, Stage: "db_patch_apply", Action: "patch_op:0",
		RequiresApproval: true, ApprovalState: db.ApprovalPending,
	})
	require.NoError(t, err)
	_, err = s.AppendRunEvent(ctx, &db.RunEventInput{RunID: run.ID, Stage: "run", Action: "note"})
	require.NoError(t, err)

	got, err := s.GetApprovalEvent(ctx, run.ID, "db_patch_apply", "patch_op:0", db.ApprovalPending)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	other, err := s.GetApprovalEvent(ctx, run.ID, "db_patch_apply", "patch_op:1", db.ApprovalPending)
	require.NoError(t, err)
	assert.Nil(t, other)

	pending, err := s.ListPendingApprovalEvents(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	latest, err := s.LatestRunEvent(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "note", latest.Action)

	decided, err := s.SetEventApproval(ctx, first.ID, db.ApprovalApproved)
	require.NoError(t, err)
	assert.Equal(t, db.ApprovalApproved, decided.ApprovalState)
	assert.NotNil(t, decided.DecidedAt)

	_, err = s.SetEventApproval(ctx, first.ID, db.ApprovalRejected)
	assert.ErrorIs(t, err, db.ErrEventNotPending)

	missing, err := s.SetEventApproval(ctx, uuid.New(), db.ApprovalApproved)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateRun_VersionsContext(t *testing.T) {
	s := New()
	ctx := context.Background()
	run, err := s.CreateRun(ctx, &db.RunInput{
		Status: db.RunStatusRunning, CurrentStage: db.StageJobParse,
		Context: types.RunContext{Submit: true},
	})
	require.NoError(t, err)

	next := run.Context.Clone()
	next.PatchGenerated = true
	next.PatchAppliedIndexes = []int{}
	run, err = s.UpdateRun(ctx, run.ID, &db.RunUpdate{Context: &next})
	require.NoError(t, err)
	assert.Equal(t, 2, run.ContextVersion)

	// unchanged context does not create a version
	same := run.Context.Clone()
	run, err = s.UpdateRun(ctx, run.ID, &db.RunUpdate{Context: &same, Status: db.Ptr(db.RunStatusCompleted), Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 2, run.ContextVersion)
	assert.Equal(t, db.RunStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)

	history, err := s.ListRunContextHistory(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	replayed, err := db.ReplayContextHistory(history)
	require.NoError(t, err)
	assert.True(t, replayed.PatchGenerated)
	assert.True(t, replayed.Submit)
}

func TestProfileAnswers(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProfile(t, s)

	q, err := s.UpsertQuestion(ctx, &db.QuestionInput{
		QuestionHash: "abc", CanonicalText: "are you authorized?", QuestionType: "work_auth",
	})
	require.NoError(t, err)

	_, err = s.UpsertProfileAnswer(ctx, &db.ProfileAnswerInput{
		ProfileID: p.ID, QuestionID: q.ID, AnswerText: "Yes", Confidence: 1,
	})
	require.NoError(t, err)

	a, err := s.GetProfileAnswer(ctx, p.ID, "abc")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, db.VerificationNeedsReview, a.VerificationState)
	assert.Equal(t, "abc", a.QuestionHash)

	none, err := s.GetProfileAnswer(ctx, p.ID, "zzz")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.UpsertProfileAnswer(ctx, &db.ProfileAnswerInput{ProfileID: p.ID, QuestionID: uuid.New(), AnswerText: "x"})
	assert.Error(t, err)
}
