package plan

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zinc-sig/easysweep/internal/param"
)

// ParamMap is a YAML mapping of parameter names to candidates that keeps the
// declaration order of its keys. A candidate list may be a sequence or a
// single scalar.
type ParamMap struct {
	Params []param.Parameter
}

// UnmarshalYAML decodes a mapping node in document order.
func (m *ParamMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of parameter names to values", node.Line)
	}

	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return fmt.Errorf("line %d: parameter name must be a non-empty string", key.Line)
		}
		if seen[key.Value] {
			return fmt.Errorf("line %d: parameter %q declared twice", key.Line, key.Value)
		}
		seen[key.Value] = true

		candidates, err := decodeCandidates(val)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", key.Value, err)
		}
		m.Params = append(m.Params, param.Parameter{Name: key.Value, Candidates: candidates})
	}
	return nil
}

// Names returns the parameter names in order.
func (m ParamMap) Names() []string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	return names
}

func decodeCandidates(node *yaml.Node) ([]param.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		v, err := decodeValue(node)
		if err != nil {
			return nil, err
		}
		return []param.Value{v}, nil
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return nil, fmt.Errorf("line %d: empty candidate list", node.Line)
		}
		values := make([]param.Value, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: candidates must be scalars", item.Line)
			}
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("line %d: expected a value or a list of values", node.Line)
	}
}

// decodeValue maps YAML scalars onto candidate kinds. Numbers keep the
// spelling of the document, strings wrapped in quotes become pre-quoted
// values and null is a bare flag.
func decodeValue(node *yaml.Node) (param.Value, error) {
	switch node.ShortTag() {
	case "!!int", "!!float":
		if v, err := param.NumberLiteral(node.Value); err == nil {
			return v, nil
		}
		return param.Text(node.Value), nil
	case "!!null":
		return param.Text(""), nil
	case "!!str":
		s := node.Value
		if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
			return param.Quoted(s[1 : len(s)-1]), nil
		}
		return param.Text(s), nil
	case "!!bool":
		return param.Text(strings.ToLower(node.Value)), nil
	default:
		return param.Value{}, fmt.Errorf("line %d: unsupported value %q (%s)", node.Line, node.Value, node.ShortTag())
	}
}
