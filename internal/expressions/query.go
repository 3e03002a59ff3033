package expressions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/pathmap/internal/content"
	"github.com/rendis/pathmap/internal/layout"
	"github.com/rendis/pathmap/pkg/schema"
)

// Language names accepted by Querier.
const (
	LangCEL  = "cel"
	LangExpr = "expr"
	LangJQ   = "jq"
)

// Querier filters layout nodes with predicates and runs jq over the layout.
type Querier struct {
	predicates map[string]Engine
	jq         *GoJQEngine
}

// NewQuerier wires the three engines.
func NewQuerier() (*Querier, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Querier{
		predicates: map[string]Engine{
			LangCEL:  celEngine,
			LangExpr: NewExprEngine(),
		},
		jq: NewGoJQEngine(),
	}, nil
}

// NodeEnv is the variable set a predicate sees for one node.
func NodeEnv(n layout.RenderNode, column, inDegree, outDegree int, detail *content.DetailRecord) map[string]any {
	env := map[string]any{
		"id":         n.ID,
		"label":      n.Label,
		"category":   string(n.Category),
		"x":          n.Position.X,
		"y":          n.Position.Y,
		"column":     int64(column),
		"in_degree":  int64(inDegree),
		"out_degree": int64(outDegree),
		"has_detail": detail != nil,
		"detail":     map[string]any{},
	}
	if detail != nil {
		env["detail"] = map[string]any{
			"title":        detail.Title,
			"description":  detail.Description,
			"duration":     detail.Duration,
			"requirements": detail.Requirements,
			"next_steps":   detail.NextSteps,
			"pros":         toAnySlice(detail.Pros),
			"cons":         toAnySlice(detail.Cons),
		}
	}
	return env
}

// FilterNodes returns the layout nodes, in layout order, for which the
// predicate evaluates to true. lang is "cel" (default) or "expr".
// A predicate that yields a non-boolean is an EXPRESSION_ERROR.
func (q *Querier) FilterNodes(ctx context.Context, lang, where string, l *layout.Layout, details content.Lookup) ([]layout.RenderNode, error) {
	if lang == "" {
		lang = LangCEL
	}
	engine, ok := q.predicates[strings.ToLower(lang)]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExpression, "unsupported predicate language %q", lang).
			WithDetails(map[string]any{"supported": []string{LangCEL, LangExpr}})
	}

	columns := columnIndex(l)
	in, out := degrees(l)

	matched := make([]layout.RenderNode, 0)
	for _, n := range l.Nodes {
		var detail *content.DetailRecord
		if details != nil {
			if d, ok := details.Detail(n.ID); ok {
				detail = &d
			}
		}
		res, err := engine.Evaluate(ctx, where, NodeEnv(n, columns[n.ID], in[n.ID], out[n.ID], detail))
		if err != nil {
			return nil, err
		}
		keep, ok := res.(bool)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeExpression,
				"predicate %q returned %T, want bool", where, res).WithNode(n.ID)
		}
		if keep {
			matched = append(matched, n)
		}
	}
	return matched, nil
}

// QueryLayout runs a jq expression over the JSON form of the layout.
func (q *Querier) QueryLayout(ctx context.Context, expression string, l *layout.Layout) (any, error) {
	doc, err := toDocument(l)
	if err != nil {
		return nil, err
	}
	return q.jq.Evaluate(ctx, expression, doc)
}

// toDocument converts v into the map/slice/float64 shape gojq expects.
func toDocument(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal query document: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal query document: %w", err)
	}
	return doc, nil
}

func columnIndex(l *layout.Layout) map[string]int {
	idx := make(map[string]int, len(l.Nodes))
	for c, ids := range l.Columns {
		for _, id := range ids {
			idx[id] = c
		}
	}
	return idx
}

func degrees(l *layout.Layout) (in, out map[string]int) {
	in = make(map[string]int, len(l.Nodes))
	out = make(map[string]int, len(l.Nodes))
	for _, e := range l.Edges {
		out[e.Source]++
		in[e.Target]++
	}
	return in, out
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
