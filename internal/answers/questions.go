// Package answers resolves screening questions against a profile's stored
// answers and the LLM, and keeps the shared question bank.
package answers

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jonathan/vulture/internal/types"
)

var criticalTypes = map[string]bool{
	"work_auth":  true,
	"salary":     true,
	"eeo":        true,
	"veteran":    true,
	"disability": true,
}

var criticalTags = map[string]bool{
	"legal":        true,
	"compliance":   true,
	"compensation": true,
	"attestation":  true,
}

// keyword fallback for questions that arrive without a type
var criticalKeywords = []string{"salary", "authorized", "sponsorship", "veteran", "disability"}

// Canonicalize trims, lowercases and collapses internal whitespace.
func Canonicalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// HashQuestion returns the hex SHA-256 of the canonical question text.
func HashQuestion(question string) string {
	sum := sha256.Sum256([]byte(Canonicalize(question)))
	return hex.EncodeToString(sum[:])
}

// IsCritical reports whether a question touches legal, compliance or
// compensation ground.
func IsCritical(q types.FormQuestion) bool {
	if criticalTypes[strings.ToLower(q.Type)] {
		return true
	}
	for _, tag := range q.Tags {
		if criticalTags[strings.ToLower(tag)] {
			return true
		}
	}
	if q.Type != "" {
		return false
	}
	text := Canonicalize(q.Text)
	for _, kw := range criticalKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
