package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/pathmap/internal/graph"
	"github.com/rendis/pathmap/pkg/schema"
)

// validateSemantic checks references between the sections of a dataset.
// Errors: duplicate node ids, edges naming unknown nodes.
// Warnings: unknown categories, nodes without a curated position, and
// position or detail entries for nodes that do not exist.
func validateSemantic(ds *schema.Dataset) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]bool, len(ds.Nodes))
	for i, n := range ds.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if ids[n.ID] {
			result.AddNodeError(path+".id", schema.ErrCodeValidation, n.ID,
				fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		ids[n.ID] = true

		if n.Type != "" && !graph.Category(n.Type).Known() {
			result.AddWarning(path+".type", schema.ErrCodeValidation,
				fmt.Sprintf("node %q has unknown category %q; default style applies", n.ID, n.Type))
		}
		if _, ok := ds.Positions[n.ID]; !ok {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("node %q has no position; fallback coordinate applies", n.ID))
		}
	}

	for i, e := range ds.Edges {
		if !ids[e.From] {
			result.AddNodeError(fmt.Sprintf("edges[%d].from", i), schema.ErrCodeValidation, e.From,
				fmt.Sprintf("references unknown node %q", e.From))
		}
		if !ids[e.To] {
			result.AddNodeError(fmt.Sprintf("edges[%d].to", i), schema.ErrCodeValidation, e.To,
				fmt.Sprintf("references unknown node %q", e.To))
		}
	}

	for _, id := range sortedKeys(ds.Positions) {
		if !ids[id] {
			result.AddWarning("positions."+id, schema.ErrCodeValidation,
				fmt.Sprintf("position given for unknown node %q", id))
		}
	}
	for _, id := range sortedKeys(ds.Details) {
		if !ids[id] {
			result.AddWarning("details."+id, schema.ErrCodeValidation,
				fmt.Sprintf("detail record given for unknown node %q", id))
		}
	}

	return result
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
