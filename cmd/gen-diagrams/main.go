// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/pathmap/internal/content"
	"github.com/rendis/pathmap/internal/dataset"
	"github.com/rendis/pathmap/internal/diagram"
	"github.com/rendis/pathmap/internal/graph"
	"github.com/rendis/pathmap/internal/layout"
)

func main() {
	ds := dataset.Bundled()
	g, err := graph.FromDataset(ds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "graph error: %v\n", err)
		os.Exit(1)
	}
	l := layout.Compile(g, layout.PositionsFromDataset(ds), layout.DefaultStyles(), layout.Options{
		Title:   ds.Title,
		Details: content.FromDataset(ds),
	})

	outDir := filepath.Join("docs", "assets")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	// cpge is highlighted so the samples show the selected style.
	const selected = "cpge"

	ascii := diagram.RenderASCII(l, selected)
	write(outDir, "diagram-ascii.txt", []byte(ascii))
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	mermaid := diagram.RenderMermaid(l, diagram.MermaidOptions{Selected: selected, ClickCallback: "showDetails"})
	write(outDir, "diagram-mermaid.md", []byte("```mermaid\n"+mermaid+"\n```\n"))
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	svg := diagram.RenderSVG(l, diagram.SVGOptions{Selected: selected})
	write(outDir, "diagram-sample.svg", []byte(svg))
	fmt.Printf("=== SVG ===\nWritten: %s (%d bytes)\n", filepath.Join(outDir, "diagram-sample.svg"), len(svg))

	png, imgErr := diagram.RenderImage(context.Background(), l)
	if imgErr != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", imgErr)
		return
	}
	pngPath := filepath.Join(outDir, "diagram-sample.png")
	write(outDir, "diagram-sample.png", png)
	fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
}

func write(dir, name string, data []byte) {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", name, err)
	}
}
