package db

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/jonathan/vulture/internal/types"
)

// ContextMergePatch returns the RFC 7386 merge patch turning prev into next.
// An unchanged context yields "{}".
func ContextMergePatch(prev, next types.RunContext) (json.RawMessage, error) {
	a, err := json.Marshal(prev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal previous context: %w", err)
	}
	b, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal next context: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to diff run context: %w", err)
	}
	return patch, nil
}

// InitialContextPatch is the history entry recorded when a run is created.
func InitialContextPatch(c types.RunContext) (json.RawMessage, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run context: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch([]byte("{}"), b)
	if err != nil {
		return nil, fmt.Errorf("failed to diff run context: %w", err)
	}
	return patch, nil
}

// IsEmptyPatch reports whether a merge patch changes nothing.
func IsEmptyPatch(patch json.RawMessage) bool {
	var m map[string]any
	if err := json.Unmarshal(patch, &m); err != nil {
		return false
	}
	return len(m) == 0
}

// ReplayContextHistory rebuilds a context by applying history patches in order.
func ReplayContextHistory(entries []ContextHistoryEntry) (types.RunContext, error) {
	doc := []byte("{}")
	for _, e := range entries {
		next, err := jsonpatch.MergePatch(doc, e.Patch)
		if err != nil {
			return types.RunContext{}, fmt.Errorf("failed to apply context version %d: %w", e.Version, err)
		}
		doc = next
	}

	var c types.RunContext
	if err := json.Unmarshal(doc, &c); err != nil {
		return types.RunContext{}, fmt.Errorf("failed to decode replayed context: %w", err)
	}
	return c, nil
}
