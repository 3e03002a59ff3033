package diagram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rendis/pathmap/internal/graph"
	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/pkg/schema"
)

// callbackPattern is a JavaScript identifier or dotted path.
var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// ValidateCallback rejects click callbacks that are not plain identifiers.
func ValidateCallback(name string) error {
	if name == "" || callbackPattern.MatchString(name) {
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "click callback %q is not an identifier", name)
}

// MermaidOptions tune RenderMermaid.
type MermaidOptions struct {
	// ClickCallback, when set, adds a `click <id> <callback>` line per node so
	// an embedding page can open the detail panel. Values rejected by
	// ValidateCallback are ignored.
	ClickCallback string
	// Selected is highlighted with the "selected" class.
	Selected string
}

// RenderMermaid renders a layout as a left-to-right Mermaid flowchart.
// Node order, edge order and class definitions follow the layout exactly.
func RenderMermaid(l *layout.Layout, opts MermaidOptions) string {
	var b strings.Builder

	b.WriteString("graph LR\n")
	if l.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", singleLine(l.Title))
	}

	for _, n := range l.Nodes {
		fmt.Fprintf(&b, "    %s\n", mermaidNodeDef(n))
	}
	for _, e := range l.Edges {
		fmt.Fprintf(&b, "    %s --> %s\n", mermaidSafeID(e.Source), mermaidSafeID(e.Target))
	}

	b.WriteString("\n")
	for _, c := range mermaidClasses(l) {
		fmt.Fprintf(&b, "    classDef %s %s\n", c.name, c.def)
	}
	if opts.Selected != "" {
		b.WriteString("    classDef selected stroke-width:4px\n")
	}

	for _, n := range l.Nodes {
		fmt.Fprintf(&b, "    class %s %s\n", mermaidSafeID(n.ID), mermaidClassName(n.Category))
	}
	if opts.Selected != "" && l.Has(opts.Selected) {
		fmt.Fprintf(&b, "    class %s selected\n", mermaidSafeID(opts.Selected))
	}

	if opts.ClickCallback != "" && ValidateCallback(opts.ClickCallback) == nil {
		for _, n := range l.Nodes {
			fmt.Fprintf(&b, "    click %s %s %q\n", mermaidSafeID(n.ID), opts.ClickCallback, "Show details")
		}
	}

	return b.String()
}

type mermaidClass struct {
	name, def string
}

// mermaidClasses returns one classDef per category present in the layout,
// in first-appearance order.
func mermaidClasses(l *layout.Layout) []mermaidClass {
	seen := make(map[graph.Category]bool)
	var out []mermaidClass
	for _, n := range l.Nodes {
		if seen[n.Category] {
			continue
		}
		seen[n.Category] = true
		s := n.Style
		def := fmt.Sprintf("fill:%s,stroke:%s,color:%s,stroke-width:2px", s.Fill, s.Border, s.Text)
		if s.Bold {
			def += ",font-weight:bold"
		}
		out = append(out, mermaidClass{name: mermaidClassName(n.Category), def: def})
	}
	return out
}

func mermaidClassName(c graph.Category) string {
	if c == "" {
		return "cat_default"
	}
	return "cat_" + mermaidSafeID(string(c))
}

// mermaidNodeDef returns a node definition whose shape follows the category.
func mermaidNodeDef(n layout.RenderNode) string {
	id := mermaidSafeID(n.ID)
	label := mermaidEscapeLabel(firstLine(n.Label))

	switch n.Category {
	case graph.CategoryStart:
		return fmt.Sprintf("%s([\"%s\"])", id, label)
	case graph.CategoryEnd:
		return fmt.Sprintf("%s[[\"%s\"]]", id, label)
	case graph.CategoryProcess:
		return fmt.Sprintf("%s[\"%s\"]", id, label)
	default:
		return fmt.Sprintf("%s(\"%s\")", id, label)
	}
}

// mermaidSafeID maps a node ID to a Mermaid identifier. ASCII letters and
// digits are kept, "_" becomes "__" and any other rune becomes "_<hex>_", so
// distinct IDs never share an identifier.
func mermaidSafeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_':
			b.WriteString("__")
		default:
			b.WriteByte('_')
			b.WriteString(strconv.FormatInt(int64(r), 16))
			b.WriteByte('_')
		}
	}
	return b.String()
}

// singleLine folds line breaks so a value cannot start a new statement.
func singleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

// mermaidEscapeLabel replaces double quotes, which would end the label.
func mermaidEscapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
