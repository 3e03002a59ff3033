package validation

import (
	"fmt"
	"strings"

	"github.com/rendis/pathmap/internal/graph"
	"github.com/rendis/pathmap/pkg/schema"
)

// validateGraph builds the graph and reports structural warnings. Cycles are
// permitted by the model but unusual for a stage progression, so they only
// warn. Nodes unreachable from any start-category node also warn.
func validateGraph(ds *schema.Dataset) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	g, err := graph.FromDataset(ds)
	if err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if stuck := g.CycleNodes(); len(stuck) > 0 {
		result.AddWarning("edges", schema.ErrCodeCycleDetected,
			fmt.Sprintf("graph contains a cycle through %s", strings.Join(stuck, ", ")))
	}

	var starts []string
	for _, n := range g.Nodes() {
		if n.Category == graph.CategoryStart {
			starts = append(starts, n.ID)
		}
	}
	if len(starts) == 0 {
		if g.Len() > 0 {
			result.AddWarning("nodes", schema.ErrCodeValidation, "dataset has no start node")
		}
		return result
	}

	reachable := make(map[string]bool, g.Len())
	queue := append([]string(nil), starts...)
	for _, s := range starts {
		reachable[s] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.Successors(id) {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	for i, n := range g.Nodes() {
		if !reachable[n.ID] {
			result.AddWarning(fmt.Sprintf("nodes[%d]", i), schema.ErrCodeValidation,
				fmt.Sprintf("node %q is unreachable from any start node", n.ID))
		}
	}

	return result
}
