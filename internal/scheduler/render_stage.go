package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/render"
)

// renderStage substitutes templates in skip_if, query and connection,
// re-validating the connection after render, per §4.L step 3. The input
// stage is never mutated; a rendered copy is returned.
func (s *Scheduler) renderStage(stage *model.Stage) (*model.Stage, error) {
	out := *stage
	scope := s.scope(stage)

	if out.Query != "" {
		rendered, err := s.Renderer.Render(out.Query, scope, render.Options{})
		if err != nil {
			return nil, fmt.Errorf("ankaflow: rendering stage %q query: %w", stage.Name, err)
		}
		text, ok := rendered.(string)
		if !ok {
			return nil, fmt.Errorf("ankaflow: stage %q query did not render to a string", stage.Name)
		}
		out.Query = text
	}

	if out.SkipIf != nil {
		rendered, err := s.Renderer.Render(out.SkipIf, scope, render.Options{InferType: true})
		if err != nil {
			return nil, fmt.Errorf("ankaflow: rendering stage %q skip_if: %w", stage.Name, err)
		}
		out.SkipIf = rendered
	}

	if out.Connection != nil {
		renderedConn, err := s.renderConnection(out.Connection, scope)
		if err != nil {
			return nil, fmt.Errorf("ankaflow: rendering stage %q connection: %w", stage.Name, err)
		}
		out.Connection = renderedConn
	}

	return &out, nil
}

// renderConnection round-trips conn through the renderer by walking it as a
// generic map (so every string field, however nested, is templated), then
// decodes back into a Connection and re-validates it, per §4.L step 3's
// "Connection models are re-validated after render".
func (s *Scheduler) renderConnection(conn *model.Connection, scope map[string]any) (*model.Connection, error) {
	encoded, err := json.Marshal(conn)
	if err != nil {
		return nil, fmt.Errorf("encoding connection: %w", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(encoded, &asMap); err != nil {
		return nil, fmt.Errorf("decoding connection to map: %w", err)
	}

	renderedAny, err := s.Renderer.Render(asMap, scope, render.Options{InferType: true})
	if err != nil {
		return nil, err
	}
	renderedMap, ok := renderedAny.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rendered connection is not a map")
	}

	reencoded, err := json.Marshal(renderedMap)
	if err != nil {
		return nil, fmt.Errorf("re-encoding rendered connection: %w", err)
	}
	var out model.Connection
	if err := json.Unmarshal(reencoded, &out); err != nil {
		return nil, fmt.Errorf("decoding rendered connection: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// scope builds the template dot-context for stage: the flow Context and
// Variables snapshot, overlaid by the stage's own local context block.
func (s *Scheduler) scope(stage *model.Stage) map[string]any {
	out := make(map[string]any, len(s.Context)+4)
	for k, v := range s.Context {
		out[k] = v
	}
	for k, v := range s.Variables.Snapshot() {
		out[k] = v
	}
	for k, v := range stage.Context {
		out[k] = v
	}
	return out
}
