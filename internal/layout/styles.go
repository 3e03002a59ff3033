package layout

import "github.com/rendis/pathmap/internal/graph"

// NodeHeight is the nominal box height used for bounds and anchor geometry.
const NodeHeight = 44

// Style is the visual intent for a node box.
type Style struct {
	Border   string `json:"border"`
	Fill     string `json:"fill"`
	Text     string `json:"text"`
	Bold     bool   `json:"bold,omitempty"`
	Radius   int    `json:"radius"`
	MinWidth int    `json:"min_width"`
}

// StyleTable maps categories to styles. Default is used for any category
// without an entry.
type StyleTable struct {
	ByCategory map[graph.Category]Style
	Default    Style
}

// Resolve returns the style for c and whether it came from the table.
func (t StyleTable) Resolve(c graph.Category) (Style, bool) {
	if s, ok := t.ByCategory[c]; ok {
		return s, true
	}
	return t.Default, false
}

// DefaultStyles returns the stock palette: green start, blue decision,
// amber process, red end. Unmapped categories render as decisions.
func DefaultStyles() StyleTable {
	decision := Style{Border: "#3b82f6", Fill: "#eff6ff", Text: "#1e40af", Radius: 8, MinWidth: 140}
	return StyleTable{
		ByCategory: map[graph.Category]Style{
			graph.CategoryStart:    {Border: "#10b981", Fill: "#ecfdf5", Text: "#065f46", Bold: true, Radius: 12, MinWidth: 120},
			graph.CategoryDecision: decision,
			graph.CategoryProcess:  {Border: "#f59e0b", Fill: "#fef3c7", Text: "#92400e", Radius: 8, MinWidth: 120},
			graph.CategoryEnd:      {Border: "#dc2626", Fill: "#fef2f2", Text: "#991b1b", Radius: 8, MinWidth: 140},
		},
		Default: decision,
	}
}

// legendNames are the header legend captions per category.
var legendNames = map[graph.Category]string{
	graph.CategoryStart:    "Start",
	graph.CategoryDecision: "Options",
	graph.CategoryProcess:  "Process",
	graph.CategoryEnd:      "Outcomes",
}

// DefaultViewport matches the stock client: fit with 100 units of padding,
// zoom clamped to [0.5, 2].
var DefaultViewport = Viewport{FitPadding: 100, MinZoom: 0.5, MaxZoom: 2}
