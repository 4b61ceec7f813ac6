// Package ops holds the CLI-facing collaborators the core engine itself
// does not need: the stage-document loader and the sink-format output
// writer, per §6's external interfaces.
package ops

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ankaflow/ankaflow/internal/model"
)

// demoStages is the built-in pipeline the CLI runs when given the literal
// path "DEMO": a single self-contained internal stage any installation can
// run with zero external configuration.
const demoStages = `
- kind: internal
  name: demo
  query: "SELECT 'ankaflow' AS engine, 1 AS ok"
  show: all
`

// Loader loads a Stages document from a path, raw text, or an arbitrary
// io.Reader, matching §6's "path, raw text, a file-like stream, or a custom
// loader" surface. A custom loader is any function with this signature.
type Loader func() (model.Stages, error)

// LoadPath loads a Stages document given the CLI's positional argument: the
// literal "DEMO" runs the built-in demo pipeline; anything else is read as
// a file path.
func LoadPath(path string) (model.Stages, error) {
	if strings.EqualFold(path, "DEMO") {
		return LoadText([]byte(demoStages))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: reading stage document %q: %w", path, err)
	}
	return LoadText(data)
}

// LoadReader loads a Stages document from an already-open stream.
func LoadReader(r io.Reader) (model.Stages, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: reading stage document stream: %w", err)
	}
	return LoadText(data)
}

// LoadText parses raw YAML/JSON bytes (YAML is a JSON superset, so one
// decoder handles both) into a Stages document, failing if the top-level
// value is not a list.
func LoadText(data []byte) (model.Stages, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ankaflow: stage document must be a list of stage records: %w", err)
	}
	reencoded, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: re-encoding stage document: %w", err)
	}
	var stages model.Stages
	if err := yaml.Unmarshal(reencoded, &stages); err != nil {
		return nil, fmt.Errorf("ankaflow: decoding stage document: %w", err)
	}
	if err := stages.Validate(); err != nil {
		return nil, err
	}
	return stages, nil
}
