// Package render implements the §4.B template renderer: recursive
// string templating over arbitrary Go values, backed by the standard
// library's text/template engine with the non-default delimiters the spec
// requires (<< >> for expressions, <% %> for control, <# #> for comments),
// plus the @json / deprecated JSON> prefix form and infer_type coercion.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	log "github.com/sirupsen/logrus"
)

const (
	jsonMarker           = "@json"
	deprecatedJSONMarker = "JSON>"
)

// Options controls a single Render call.
type Options struct {
	// InferType coerces rendered scalar strings matching true|false, null|none,
	// or a numeric literal into their native Go type.
	InferType bool
}

// bareIdentifier matches a dotted identifier with no template syntax of its
// own (no parens, no spaces), e.g. "region" or "env.region" or
// "env.region|int". Only the portion before the first pipe is tested.
var bareIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

var delimPattern = regexp.MustCompile(`<<(.*?)>>|<%(.*?)%>|<#(.*?)#>`)

// templateKeywords are text/template control-flow tokens that must never be
// treated as a bare variable reference, even though they match
// bareIdentifier on their own (e.g. a lone "<% end %>" block terminator).
var templateKeywords = map[string]bool{
	"if": true, "else": true, "end": true, "range": true,
	"with": true, "define": true, "block": true, "template": true,
	"break": true, "continue": true,
}

// Renderer renders templated values against a variable scope and exposes
// the template API of api.go to template expressions.
type Renderer struct {
	api *API
}

// New returns a Renderer whose template-callable API functions operate
// against api.
func New(api *API) *Renderer {
	return &Renderer{api: api}
}

// Render recursively renders value: strings are templated, maps and slices
// are walked key/element-wise, and everything else passes through
// unchanged.
func (r *Renderer) Render(value any, scope map[string]any, opts Options) (any, error) {
	switch v := value.(type) {
	case string:
		return r.renderString(v, scope, opts)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			rendered, err := r.Render(elem, scope, opts)
			if err != nil {
				return nil, fmt.Errorf("rendering key %q: %w", k, err)
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			rendered, err := r.Render(elem, scope, opts)
			if err != nil {
				return nil, fmt.Errorf("rendering index %d: %w", i, err)
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return value, nil
	}
}

func (r *Renderer) renderString(s string, scope map[string]any, opts Options) (any, error) {
	marker, body, isJSON := stripJSONMarker(s)
	if isJSON {
		if err := rejectNestedMarker(body); err != nil {
			return nil, err
		}
		if marker == deprecatedJSONMarker {
			log.Warn("ankaflow: the JSON> template prefix is deprecated, use @json instead")
		}
		rendered, err := r.execute(body, scope)
		if err != nil {
			return nil, err
		}
		collapsed := strings.Join(strings.Fields(rendered), " ")
		var parsed any
		if err := json.Unmarshal([]byte(collapsed), &parsed); err != nil {
			return nil, fmt.Errorf("ankaflow: rendering %q as JSON: %w", s, err)
		}
		return parsed, nil
	}

	rendered, err := r.execute(s, scope)
	if err != nil {
		return nil, err
	}
	if !opts.InferType {
		return rendered, nil
	}
	return inferType(rendered), nil
}

// execute translates the spec's custom delimiters into Go template syntax
// and runs the result through text/template with the API's FuncMap bound.
func (r *Renderer) execute(s string, scope map[string]any) (string, error) {
	translated := delimPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := delimPattern.FindStringSubmatch(match)
		switch {
		case sub[1] != "":
			return "{{" + prefixBareIdentifier(sub[1]) + "}}"
		case sub[2] != "":
			return "{{" + prefixBareIdentifier(sub[2]) + "}}"
		default:
			return "{{/*" + sub[3] + "*/}}"
		}
	})

	tmpl, err := template.New("ankaflow").Funcs(r.api.FuncMap()).Parse(translated)
	if err != nil {
		return "", fmt.Errorf("ankaflow: parsing template %q: %w", s, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, scope); err != nil {
		return "", fmt.Errorf("ankaflow: rendering template %q: %w", s, err)
	}
	return buf.String(), nil
}

func prefixBareIdentifier(expr string) string {
	trimmed := strings.TrimSpace(expr)
	head := trimmed
	tail := ""
	if i := strings.Index(trimmed, "|"); i >= 0 {
		head = strings.TrimSpace(trimmed[:i])
		tail = trimmed[i:]
	}
	if bareIdentifier.MatchString(head) && !templateKeywords[head] {
		return " ." + head + " " + tail
	}
	return " " + trimmed + " "
}

func stripJSONMarker(s string) (marker, body string, ok bool) {
	trimmed := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(trimmed, jsonMarker):
		return jsonMarker, strings.TrimSpace(strings.TrimPrefix(trimmed, jsonMarker)), true
	case strings.HasPrefix(trimmed, deprecatedJSONMarker):
		return deprecatedJSONMarker, strings.TrimSpace(strings.TrimPrefix(trimmed, deprecatedJSONMarker)), true
	default:
		return "", s, false
	}
}

func rejectNestedMarker(body string) error {
	if strings.Contains(body, jsonMarker) || strings.Contains(body, deprecatedJSONMarker) {
		return fmt.Errorf("ankaflow: nested @json/JSON> markers are not allowed in %q", body)
	}
	return nil
}

func inferType(s string) any {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true
	case "false":
		return false
	case "null", "none":
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
