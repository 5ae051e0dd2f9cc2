package answers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/vulture/internal/types"
)

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "are you authorized to work?", Canonicalize("  Are  you\tAuthorized\nto work? "))
}

func TestHashQuestion_StableAcrossFormatting(t *testing.T) {
	a := HashQuestion("Do you require visa sponsorship?")
	b := HashQuestion("  do you REQUIRE   visa sponsorship? ")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashQuestion("Do you require relocation?"))
}

func TestIsCritical(t *testing.T) {
	tests := []struct {
		name string
		q    types.FormQuestion
		want bool
	}{
		{"critical type", types.FormQuestion{Text: "Status?", Type: "work_auth"}, true},
		{"critical tag", types.FormQuestion{Text: "I certify the above", Type: "checkbox", Tags: []string{"Attestation"}}, true},
		{"typed non critical", types.FormQuestion{Text: "Expected salary?", Type: "short_text"}, false},
		{"keyword fallback", types.FormQuestion{Text: "What are your salary expectations?"}, true},
		{"plain untyped", types.FormQuestion{Text: "What is your notice period?"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCritical(tt.q))
		})
	}
}
