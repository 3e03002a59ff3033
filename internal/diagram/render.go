package diagram

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/pkg/schema"
)

// Format names an output format.
type Format string

const (
	FormatASCII   Format = "ascii"
	FormatMermaid Format = "mermaid"
	FormatSVG     Format = "svg"
	FormatPNG     Format = "png"
	FormatJSON    Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{FormatASCII, FormatMermaid, FormatSVG, FormatPNG, FormatJSON}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatASCII, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown render format %q", s).
		WithDetails(map[string]any{"supported": Formats})
}

// ContentType returns the MIME type of a format.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	case FormatJSON:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Binary reports whether the format is not text.
func (f Format) Binary() bool { return f == FormatPNG }

// Options are shared by every renderer that supports them.
type Options struct {
	Selected      string
	ClickCallback string
}

// Render dispatches to the renderer for f.
func Render(ctx context.Context, l *layout.Layout, f Format, opts Options) ([]byte, error) {
	switch f {
	case FormatASCII, "":
		return []byte(RenderASCII(l, opts.Selected)), nil
	case FormatMermaid:
		return []byte(RenderMermaid(l, MermaidOptions{Selected: opts.Selected, ClickCallback: opts.ClickCallback})), nil
	case FormatSVG:
		return []byte(RenderSVG(l, SVGOptions{Selected: opts.Selected})), nil
	case FormatPNG:
		return RenderImage(ctx, l)
	case FormatJSON:
		out, err := json.MarshalIndent(l, "", "  ")
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeRender, "marshal layout: %s", err.Error()).WithCause(err)
		}
		return append(out, '\n'), nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown render format %q", f)
	}
}
