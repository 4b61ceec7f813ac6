package render

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/ankaflow/ankaflow/internal/model"
)

// ApplyConfigPatch merges a stage-local connection.config object onto the
// run's base ConnectionConfiguration, returning a new value so the shared
// base is never mutated out from under other stages. patch is treated as a
// JSON merge patch (RFC 7396): keys absent from patch keep the base value,
// keys present (including null) override it.
func ApplyConfigPatch(base *model.ConnectionConfiguration, patch map[string]any) (*model.ConnectionConfiguration, error) {
	if len(patch) == 0 {
		return base, nil
	}
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: encoding base connection configuration: %w", err)
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: encoding connection config patch: %w", err)
	}
	merged, err := jsonpatch.MergePatch(baseJSON, patchJSON)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: applying connection config patch: %w", err)
	}
	var out model.ConnectionConfiguration
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("ankaflow: decoding patched connection configuration: %w", err)
	}
	return &out, nil
}
