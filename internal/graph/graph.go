// Package graph holds the canonical node and edge collections of a pathway
// diagram. A Graph is immutable once built; a new dataset yields a new Graph.
package graph

import (
	"sort"

	"github.com/rendis/pathmap/pkg/schema"
)

// Category is the semantic classification of a stage.
type Category string

const (
	CategoryStart    Category = "start"
	CategoryDecision Category = "decision"
	CategoryProcess  Category = "process"
	CategoryEnd      Category = "end"
)

// Categories lists the known categories in legend order.
var Categories = []Category{CategoryStart, CategoryDecision, CategoryProcess, CategoryEnd}

// Known reports whether c is one of the four defined categories.
func (c Category) Known() bool {
	switch c {
	case CategoryStart, CategoryDecision, CategoryProcess, CategoryEnd:
		return true
	}
	return false
}

// Node is a stage in the process graph.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

// Edge is a directed transition between two stages.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a validated set of nodes and directed edges.
// Node and edge order follow insertion order.
type Graph struct {
	nodes   []Node
	edges   []Edge
	index   map[string]int
	forward map[string][]string
	reverse map[string][]string
}

// New builds a Graph from a batch of nodes and edges. It fails with a
// VALIDATION_ERROR on an empty or duplicate node ID, or on an edge that
// references an unknown node; no partial graph is returned.
func New(nodes []Node, edges []Edge) (*Graph, error) {
	b := NewBuilder()
	for _, n := range nodes {
		if err := b.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := b.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// Nodes returns a copy of the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Has reports whether a node with the given ID exists.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Successors returns the targets of id's outgoing edges in edge order.
func (g *Graph) Successors(id string) []string {
	return append([]string(nil), g.forward[id]...)
}

// Predecessors returns the sources of id's incoming edges in edge order.
func (g *Graph) Predecessors(id string) []string {
	return append([]string(nil), g.reverse[id]...)
}

// Roots returns the nodes without incoming edges, in node order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, n := range g.nodes {
		if len(g.reverse[n.ID]) == 0 {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Columns groups nodes by topological depth (longest path from a root),
// using Kahn's algorithm. Within a column nodes keep insertion order.
// Nodes that sit on or behind a cycle are collected into one trailing column.
func (g *Graph) Columns() [][]string {
	inDegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n.ID] = len(g.reverse[n.ID])
	}

	depth := make(map[string]int, len(g.nodes))
	queue := g.Roots()
	visited := make(map[string]bool, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited[id] = true
		for _, next := range g.forward[id] {
			if d := depth[id] + 1; d > depth[next] {
				depth[next] = d
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	maxDepth := -1
	for id := range visited {
		if depth[id] > maxDepth {
			maxDepth = depth[id]
		}
	}

	columns := make([][]string, maxDepth+1)
	var trapped []string
	for _, n := range g.nodes {
		if !visited[n.ID] {
			trapped = append(trapped, n.ID)
			continue
		}
		columns[depth[n.ID]] = append(columns[depth[n.ID]], n.ID)
	}
	if len(trapped) > 0 {
		columns = append(columns, trapped)
	}
	return columns
}

// HasCycle reports whether the edges form at least one directed cycle.
func (g *Graph) HasCycle() bool {
	return len(g.CycleNodes()) > 0
}

// CycleNodes returns, sorted, the IDs of nodes that Kahn's algorithm could
// not order: members of a cycle and anything reachable only through one.
func (g *Graph) CycleNodes() []string {
	inDegree := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		inDegree[n.ID] = len(g.reverse[n.ID])
	}
	queue := g.Roots()
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.forward[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	var stuck []string
	for id, deg := range inDegree {
		if deg > 0 {
			stuck = append(stuck, id)
		}
	}
	sort.Strings(stuck)
	return stuck
}

// FromDataset converts a dataset document into a Graph. Node types map to
// categories verbatim; unknown category names are kept so that the layout
// compiler can fall back to its default style.
func FromDataset(ds *schema.Dataset) (*Graph, error) {
	if ds == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "dataset is nil")
	}
	nodes := make([]Node, 0, len(ds.Nodes))
	for _, n := range ds.Nodes {
		nodes = append(nodes, Node{ID: n.ID, Label: n.Label, Category: Category(n.Type)})
	}
	edges := make([]Edge, 0, len(ds.Edges))
	for _, e := range ds.Edges {
		edges = append(edges, Edge{From: e.From, To: e.To})
	}
	return New(nodes, edges)
}
