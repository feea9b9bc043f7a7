package output

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML writes absent lists as null so that YAML distinguishes an
// unavailable pool from an empty one, like JSON does.
func (r Row) MarshalYAML() (any, error) {
	type plain Row

	var node yaml.Node

	err := node.Encode(plain(r))
	if err != nil {
		return nil, fmt.Errorf("encode row %q: %w", r.PlotID, err)
	}

	absent := map[string]bool{
		"species_pool": r.SpeciesPool == nil,
		"accumulation": r.Accumulation == nil,
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		if absent[node.Content[i].Value] {
			node.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		}
	}

	return &node, nil
}
