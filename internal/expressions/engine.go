// Package expressions evaluates user-supplied node predicates (CEL or Expr)
// and jq queries over a compiled layout.
package expressions

import (
	"context"

	"github.com/rendis/pathmap/pkg/schema"
)

// Engine evaluates one expression language.
// Three implementations: CEL and Expr (node predicates), GoJQ (layout queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

func expressionError(lang, stage, expression string, err error) *schema.PathmapError {
	return schema.NewErrorf(schema.ErrCodeExpression, "%s %s error in %q: %s", lang, stage, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression, "language": lang})
}
