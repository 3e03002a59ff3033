package expressions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rendis/pathmap/pkg/schema"
)

// celVariables is the typed environment of node predicates.
var celVariables = map[string]*cel.Type{
	"id":         cel.StringType,
	"label":      cel.StringType,
	"category":   cel.StringType,
	"x":          cel.DoubleType,
	"y":          cel.DoubleType,
	"column":     cel.IntType,
	"in_degree":  cel.IntType,
	"out_degree": cel.IntType,
	"has_detail": cel.BoolType,
	"detail":     cel.MapType(cel.StringType, cel.DynType),
}

// CELEngine evaluates node predicates written in Common Expression Language.
// Compiled programs are cached and shared across goroutines.
type CELEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a CEL engine whose environment exposes the node
// fields produced by NodeEnv.
func NewCELEngine() (*CELEngine, error) {
	opts := make([]cel.EnvOption, 0, len(celVariables))
	for name, typ := range celVariables {
		opts = append(opts, cel.Variable(name, typ))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &CELEngine{env: env, cache: make(map[string]cel.Program)}, nil
}

func (e *CELEngine) Name() string { return LangCEL }

// Evaluate compiles (or fetches from cache) expression and runs it against data.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeExpression, "empty CEL expression")
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, buildActivation(data))
	if err != nil {
		return nil, expressionError(LangCEL, "evaluation", expression, err)
	}
	return out.Value(), nil
}

func (e *CELEngine) getOrCompile(expression string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, expressionError(LangCEL, "compile", expression, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, expressionError(LangCEL, "program", expression, err)
	}

	e.cache[expression] = prg
	return prg, nil
}

// buildActivation fills every declared variable so a sparse data map never
// triggers a missing-attribute error.
func buildActivation(data map[string]any) map[string]any {
	activation := make(map[string]any, len(celVariables))
	for name, typ := range celVariables {
		if v, ok := data[name]; ok && v != nil {
			activation[name] = v
			continue
		}
		switch typ {
		case cel.StringType:
			activation[name] = ""
		case cel.DoubleType:
			activation[name] = 0.0
		case cel.IntType:
			activation[name] = int64(0)
		case cel.BoolType:
			activation[name] = false
		default:
			activation[name] = map[string]any{}
		}
	}
	return activation
}

var _ Engine = (*CELEngine)(nil)
