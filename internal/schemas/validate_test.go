package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_JobAnalysis(t *testing.T) {
	require.NoError(t, Validate(JobAnalysis, []byte(`{"title":"SRE","keywords":["go"]}`)))

	err := Validate(JobAnalysis, []byte(`{"company":"Acme","keywords":"go"}`))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, JobAnalysis, ve.Schema)
	assert.Len(t, ve.Errors, 2)
}

func TestValidate_TailoredDocuments(t *testing.T) {
	require.NoError(t, Validate(TailoredDocuments, []byte(`{"resume_markdown":"# R","cover_letter_markdown":"Hi"}`)))
	assert.Error(t, Validate(TailoredDocuments, []byte(`{"resume_markdown":""}`)))
}

func TestValidate_PatchBundle(t *testing.T) {
	ok := `{"rationale":"r","confidence":0.5,"operations":[{"table":"skills","op":"upsert","key":{"name":"Go"},"values":{}}]}`
	require.NoError(t, Validate(PatchBundle, []byte(ok)))

	err := Validate(PatchBundle, []byte(`{"operations":"skills"}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "operations")

	// operations are checked one by one after decoding
	assert.NoError(t, Validate(PatchBundle, []byte(`{"operations":[{"table":"skills"}],"confidence":"0.4"}`)))
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(JobAnalysis, []byte(`{not json`))
	require.Error(t, err)
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope", []byte(`{}`))
	var le *SchemaLoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "nope", le.Name)
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type":"object","required":["a"]}`
	assert.NoError(t, ValidateJSONString(schema, `{"a":1}`))
	assert.Error(t, ValidateJSONString(schema, `{}`))
}
