package diagram

import (
	"fmt"
	"html"
	"strings"

	"github.com/rendis/pathmap/internal/layout"
)

// SVGOptions tune RenderSVG.
type SVGOptions struct {
	// Selected node gets the "selected" class and a thicker border.
	Selected string
	// Padding around the layout bounds; zero uses the layout viewport padding.
	Padding float64
}

// RenderSVG renders a layout as a standalone SVG document. Every node group
// carries data-node-id so a page script can turn clicks into selections.
func RenderSVG(l *layout.Layout, opts SVGOptions) string {
	pad := opts.Padding
	if pad == 0 {
		pad = l.Viewport.FitPadding
	}
	bounds := svgBounds(l)
	minX, minY := bounds.MinX-pad, bounds.MinY-pad
	w, h := bounds.Width()+2*pad, bounds.Height()+2*pad

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" class="pathmap" viewBox="%s %s %s %s" data-min-zoom="%s" data-max-zoom="%s">`,
		num(minX), num(minY), num(w), num(h), num(l.Viewport.MinZoom), num(l.Viewport.MaxZoom))
	b.WriteString("\n")
	if l.Title != "" {
		fmt.Fprintf(&b, "  <title>%s</title>\n", html.EscapeString(l.Title))
	}

	// one arrow marker per edge colour
	b.WriteString("  <defs>\n")
	for _, c := range edgeColors(l) {
		fmt.Fprintf(&b, `    <marker id="%s" viewBox="0 0 10 10" refX="10" refY="5" markerWidth="8" markerHeight="8" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z" fill="%s"/></marker>`,
			markerID(c), html.EscapeString(c))
		b.WriteString("\n")
	}
	b.WriteString("  </defs>\n")

	b.WriteString("  <g class=\"edges\">\n")
	for _, e := range l.Edges {
		src, okS := l.Node(e.Source)
		dst, okT := l.Node(e.Target)
		if !okS || !okT {
			continue
		}
		sx, sy := anchorPoint(src, e.SourceAnchor)
		tx, ty := anchorPoint(dst, e.TargetAnchor)
		color := src.Style.Border
		fmt.Fprintf(&b, `    <path id="%s" class="edge %s" d="%s" fill="none" stroke="%s" stroke-width="%d" marker-end="url(#%s)" data-source="%s" data-target="%s"/>`,
			html.EscapeString(e.ID), html.EscapeString(e.Connector), stepPath(sx, sy, tx, ty),
			html.EscapeString(color), e.StrokeWidth, markerID(color),
			html.EscapeString(e.Source), html.EscapeString(e.Target))
		b.WriteString("\n")
	}
	b.WriteString("  </g>\n")

	b.WriteString("  <g class=\"nodes\">\n")
	for _, n := range l.Nodes {
		writeSVGNode(&b, n, n.ID == opts.Selected)
	}
	b.WriteString("  </g>\n")
	b.WriteString("</svg>\n")
	return b.String()
}

func writeSVGNode(b *strings.Builder, n layout.RenderNode, selected bool) {
	s := n.Style
	w := boxWidth(n)
	class := "node cat-" + string(n.Category)
	stroke := 2
	if selected {
		class += " selected"
		stroke = 4
	}
	weight := "normal"
	if s.Bold {
		weight = "bold"
	}
	id := html.EscapeString(n.ID)

	fmt.Fprintf(b, `    <g class="%s" data-node-id="%s" tabindex="0" role="button" aria-label="%s">`,
		html.EscapeString(class), id, html.EscapeString(n.Label))
	fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%d" rx="%d" fill="%s" stroke="%s" stroke-width="%d"/>`,
		num(n.Position.X), num(n.Position.Y), num(w), layout.NodeHeight, s.Radius,
		html.EscapeString(s.Fill), html.EscapeString(s.Border), stroke)
	fmt.Fprintf(b, `<text x="%s" y="%s" text-anchor="middle" dominant-baseline="central" font-size="13" font-weight="%s" fill="%s">%s</text>`,
		num(n.Position.X+w/2), num(n.Position.Y+float64(layout.NodeHeight)/2), weight,
		html.EscapeString(s.Text), html.EscapeString(firstLine(n.Label)))
	b.WriteString("</g>\n")
}

// svgBounds is layout.Bounds widened to the rendered box widths.
func svgBounds(l *layout.Layout) layout.Rect {
	r := l.Bounds()
	for _, n := range l.Nodes {
		r.MaxX = max(r.MaxX, n.Position.X+boxWidth(n))
	}
	return r
}

func edgeColors(l *layout.Layout) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range l.Edges {
		src, ok := l.Node(e.Source)
		if !ok || seen[src.Style.Border] {
			continue
		}
		seen[src.Style.Border] = true
		out = append(out, src.Style.Border)
	}
	return out
}

func markerID(color string) string {
	return "arrow-" + strings.TrimPrefix(strings.ToLower(color), "#")
}
