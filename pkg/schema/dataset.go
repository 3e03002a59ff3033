package schema

// Dataset is the serializable form of a pathway diagram: the graph, its
// curated coordinates and the detail content shown on selection.
// It is accepted as JSON or YAML.
type Dataset struct {
	Title     string                    `json:"title,omitempty" yaml:"title,omitempty"`
	Nodes     []NodeDefinition          `json:"nodes" yaml:"nodes"`
	Edges     []EdgeDefinition          `json:"edges" yaml:"edges"`
	Positions map[string]Coordinate     `json:"positions,omitempty" yaml:"positions,omitempty"`
	Details   map[string]DetailDocument `json:"details,omitempty" yaml:"details,omitempty"`
}

// NodeDefinition describes one stage. Type holds the category name.
type NodeDefinition struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"` // start | decision | process | end
}

// EdgeDefinition is a directed transition between two stages.
type EdgeDefinition struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Coordinate is a fixed layout-space position.
type Coordinate struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DetailDocument is the descriptive content for a stage.
type DetailDocument struct {
	Title        string   `json:"title" yaml:"title"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Duration     string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Requirements string   `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	NextSteps    string   `json:"next_steps,omitempty" yaml:"next_steps,omitempty"`
	Pros         []string `json:"pros,omitempty" yaml:"pros,omitempty"`
	Cons         []string `json:"cons,omitempty" yaml:"cons,omitempty"`
}
