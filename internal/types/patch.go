package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Patch operation kinds
const (
	PatchOpInsert = "insert"
	PatchOpUpdate = "update"
	PatchOpUpsert = "upsert"
)

// Profile sub-tables that patch operations may target
const (
	PatchTablePersonal    = "profile_personal"
	PatchTablePreferences = "profile_preferences"
	PatchTableWorkAuth    = "profile_work_auth"
	PatchTableSkills      = "skills"
)

// PatchTables lists the whitelisted patch targets in a stable order.
var PatchTables = []string{PatchTablePersonal, PatchTablePreferences, PatchTableWorkAuth, PatchTableSkills}

var patchValidate = validator.New()

// PatchOperation is one proposed mutation against a profile sub-table.
// The key is always scoped to the owning profile by the repository.
type PatchOperation struct {
	Table      string         `json:"table" validate:"required"`
	Op         string         `json:"op" validate:"required,oneof=insert update upsert"`
	Key        map[string]any `json:"key"`
	Values     map[string]any `json:"values"`
	Source     string         `json:"source"`
	Confidence float64        `json:"confidence" validate:"gte=0,lte=1"`
}

// NewPatchOperation builds a validated operation. Out-of-range confidence or an
// unknown operation kind is a construction error.
func NewPatchOperation(table, op string, key, values map[string]any, source string, confidence float64) (PatchOperation, error) {
	p := PatchOperation{
		Table:      table,
		Op:         op,
		Key:        key,
		Values:     values,
		Source:     source,
		Confidence: confidence,
	}
	if p.Key == nil {
		p.Key = map[string]any{}
	}
	if p.Values == nil {
		p.Values = map[string]any{}
	}
	if p.Source == "" {
		p.Source = "llm"
	}
	if err := p.Validate(); err != nil {
		return PatchOperation{}, err
	}
	return p, nil
}

// Validate checks the operation kind, its table and the confidence range.
func (p *PatchOperation) Validate() error {
	if err := patchValidate.Struct(p); err != nil {
		return fmt.Errorf("invalid patch operation: %w", err)
	}
	return nil
}

// AsMap renders the operation as a generic JSON object for event payloads.
func (p PatchOperation) AsMap() map[string]any {
	return map[string]any{
		"table":      p.Table,
		"op":         p.Op,
		"key":        p.Key,
		"values":     p.Values,
		"source":     p.Source,
		"confidence": p.Confidence,
	}
}

// ProfilePatchBundle is one batch of suggested profile enrichments
type ProfilePatchBundle struct {
	Rationale  string           `json:"rationale"`
	Operations []PatchOperation `json:"operations"`
	Confidence float64          `json:"confidence" validate:"gte=0,lte=1"`
}

// Validate checks the bundle confidence and every operation in it.
func (b *ProfilePatchBundle) Validate() error {
	if err := patchValidate.Struct(b); err != nil {
		return fmt.Errorf("invalid patch bundle: %w", err)
	}
	for i := range b.Operations {
		if err := b.Operations[i].Validate(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}
