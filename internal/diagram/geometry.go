// Package diagram renders a compiled layout.Layout as Mermaid, ASCII, SVG or PNG.
package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rendis/pathmap/internal/layout"
)

// approximate glyph advance for the 13px sans-serif labels
const charWidth = 7

// boxWidth returns the rendered width of a node box: its style's minimum,
// widened to fit the label.
func boxWidth(n layout.RenderNode) float64 {
	return float64(max(n.Style.MinWidth, utf8.RuneCountInString(n.Label)*charWidth+24))
}

// anchorPoint returns the coordinate of a side of a node box.
func anchorPoint(n layout.RenderNode, a layout.Anchor) (float64, float64) {
	x, y := n.Position.X, n.Position.Y
	w, h := boxWidth(n), float64(layout.NodeHeight)
	switch a {
	case layout.AnchorRight:
		return x + w, y + h/2
	case layout.AnchorTop:
		return x + w/2, y
	case layout.AnchorBottom:
		return x + w/2, y + h
	default:
		return x, y + h/2
	}
}

// stepPath returns an orthogonal "smoothstep" path between two anchor points:
// out horizontally, across vertically at the midpoint, then in horizontally.
func stepPath(sx, sy, tx, ty float64) string {
	if sy == ty {
		return fmt.Sprintf("M %s %s H %s", num(sx), num(sy), num(tx))
	}
	mx := (sx + tx) / 2
	return fmt.Sprintf("M %s %s H %s V %s H %s", num(sx), num(sy), num(mx), num(ty), num(tx))
}

func num(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
