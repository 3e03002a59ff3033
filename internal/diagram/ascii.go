package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rendis/pathmap/internal/graph"
	"github.com/rendis/pathmap/internal/layout"
)

// categoryTag is the short marker printed under each box label.
func categoryTag(c graph.Category) string {
	switch c {
	case graph.CategoryStart:
		return "[START]"
	case graph.CategoryDecision:
		return "[OPTION]"
	case graph.CategoryProcess:
		return "[PROCESS]"
	case graph.CategoryEnd:
		return "[OUTCOME]"
	default:
		return ""
	}
}

// RenderASCII renders a layout as text: one row of boxes per column
// (topological depth), followed by the edge list. The selected node, if any,
// is marked with an asterisk.
func RenderASCII(l *layout.Layout, selected string) string {
	var b strings.Builder

	if l.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", l.Title)
	}

	for i, column := range l.Columns {
		var boxes []asciiBox
		for _, id := range column {
			n, ok := l.Node(id)
			if !ok {
				continue
			}
			boxes = append(boxes, makeBox(n, n.ID == selected))
		}
		renderBoxRow(&b, boxes)
		if i < len(l.Columns)-1 {
			b.WriteString("       │\n")
			b.WriteString("       ▼\n")
		}
	}

	if len(l.Edges) > 0 {
		b.WriteString("\n--- edges ---\n")
		for _, e := range l.Edges {
			fmt.Fprintf(&b, "  %s ─→ %s\n", e.Source, e.Target)
		}
	}

	return b.String()
}

type asciiBox struct {
	lines []string
	width int
}

func makeBox(n layout.RenderNode, selected bool) asciiBox {
	label := firstLine(n.Label)
	if selected {
		label = "* " + label
	}
	content := []string{label}
	if tag := categoryTag(n.Category); tag != "" {
		content = append(content, tag)
	}

	maxLen := 0
	for _, line := range content {
		maxLen = max(maxLen, utf8.RuneCountInString(line))
	}
	width := maxLen + 4

	lines := []string{"┌" + strings.Repeat("─", width-2) + "┐"}
	for _, c := range content {
		pad := strings.Repeat(" ", maxLen-utf8.RuneCountInString(c))
		lines = append(lines, "│ "+c+pad+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")
	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	height := 0
	for _, box := range boxes {
		height = max(height, len(box.lines))
	}
	for row := 0; row < height; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}
