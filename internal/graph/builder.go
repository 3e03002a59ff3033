package graph

import "github.com/rendis/pathmap/pkg/schema"

// Builder accumulates nodes and edges one at a time. Each Add call validates
// eagerly so that the first bad input is reported with its position.
type Builder struct {
	nodes []Node
	edges []Edge
	index map[string]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// AddNode registers a node. Empty and duplicate IDs are rejected.
func (b *Builder) AddNode(n Node) error {
	if n.ID == "" {
		return schema.NewErrorf(schema.ErrCodeValidation, "node at index %d has empty id", len(b.nodes))
	}
	if _, exists := b.index[n.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeValidation, "duplicate node id %q", n.ID).
			WithNode(n.ID)
	}
	b.index[n.ID] = len(b.nodes)
	b.nodes = append(b.nodes, n)
	return nil
}

// AddEdge registers a directed edge. Both endpoints must already be added.
func (b *Builder) AddEdge(e Edge) error {
	for _, id := range []string{e.From, e.To} {
		if _, ok := b.index[id]; !ok {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"edge %d (%s -> %s) references unknown node %q", len(b.edges), e.From, e.To, id).
				WithNode(id).
				WithDetails(map[string]any{"edge_index": len(b.edges), "from": e.From, "to": e.To})
		}
	}
	b.edges = append(b.edges, e)
	return nil
}

// Build freezes the accumulated nodes and edges into a Graph.
// The Builder can keep being used; later additions do not affect the result.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		nodes:   make([]Node, len(b.nodes)),
		edges:   make([]Edge, len(b.edges)),
		index:   make(map[string]int, len(b.nodes)),
		forward: make(map[string][]string, len(b.nodes)),
		reverse: make(map[string][]string, len(b.nodes)),
	}
	copy(g.nodes, b.nodes)
	copy(g.edges, b.edges)
	for id, i := range b.index {
		g.index[id] = i
	}
	for _, e := range g.edges {
		g.forward[e.From] = append(g.forward[e.From], e.To)
		g.reverse[e.To] = append(g.reverse[e.To], e.From)
	}
	return g, nil
}
