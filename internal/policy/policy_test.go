package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiresApproval_CaptchaAlwaysGated(t *testing.T) {
	for _, mode := range []Mode{ModeStrict, ModeMedium, ModeYolo, "bogus", ""} {
		t.Run(string(mode), func(t *testing.T) {
			ok, err := RequiresApproval(mode, StageCaptcha)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestRequiresApproval_Table(t *testing.T) {
	tests := []struct {
		stage  string
		strict bool
		medium bool
	}{
		{StageJobParsingStart, true, false},
		{StageCVTailoringOutput, true, true},
		{StageDBPatchApply, true, true},
		{StageQuestionReviewRequired, true, true},
		{StageStartBrowserSession, true, false},
		{StageFillRequiredSection, true, false},
		{StageFileUpload, true, true},
		{StageFinalSubmit, true, true},
		{"something_else", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			got, err := RequiresApproval(ModeStrict, tt.stage)
			require.NoError(t, err)
			assert.Equal(t, tt.strict, got, "strict")

			got, err = RequiresApproval(ModeMedium, tt.stage)
			require.NoError(t, err)
			assert.Equal(t, tt.medium, got, "medium")

			got, err = RequiresApproval(ModeYolo, tt.stage)
			require.NoError(t, err)
			assert.False(t, got, "yolo")
		})
	}
}

func TestRequiresApproval_UnknownMode(t *testing.T) {
	_, err := RequiresApproval("reckless", StageFinalSubmit)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("medium")
	require.NoError(t, err)
	assert.Equal(t, ModeMedium, m)

	_, err = ParseMode("MEDIUM")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestGatedStages(t *testing.T) {
	assert.Len(t, GatedStages(ModeStrict), 8)
	assert.Equal(t, []string{
		StageCVTailoringOutput, StageDBPatchApply, StageQuestionReviewRequired,
		StageFileUpload, StageFinalSubmit,
	}, GatedStages(ModeMedium))
	assert.Empty(t, GatedStages(ModeYolo))
}
