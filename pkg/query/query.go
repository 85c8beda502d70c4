// Package query filters the loaded bookmark tree with CEL expressions over
// a single variable, node, whose fields carry the index wire names.
//
//	node.type == "bookmark" && node.uri.contains("example.org")
//	node.todo_state == 1 && node.parent_id == "cloud"
//	node.tags.split(",").exists(t, t == "go")
//
// Filtering is local to the snapshot; nothing is sent to the backend.
package query

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"github.com/vctfence/scrapbee/pkg/model"
)

// ErrInvalidFilter reports an expression that does not compile to a bool.
var ErrInvalidFilter = errors.New("invalid filter")

// Engine compiles and caches filter programs.
type Engine struct {
	env      *cel.Env
	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewEngine creates an engine with the node variable declared.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("node", cel.MapType(cel.StringType, cel.DynType)),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Engine{env: env, prgCache: make(map[string]cel.Program)}, nil
}

// Compile checks expr and caches its program. The expression must yield a
// bool.
func (e *Engine) Compile(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: expression yields %s, want bool", ErrInvalidFilter, t)
	}
	prg, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	e.prgCache[expr] = prg
	return prg, nil
}

// Match evaluates expr against n.
func (e *Engine) Match(expr string, n *model.Node) (bool, error) {
	prg, err := e.Compile(expr)
	if err != nil {
		return false, err
	}
	return eval(prg, n)
}

// Filter returns the nodes for which expr holds, keeping their order. An
// empty expression matches everything.
func (e *Engine) Filter(expr string, nodes []*model.Node) ([]*model.Node, error) {
	if expr == "" {
		return nodes, nil
	}
	prg, err := e.Compile(expr)
	if err != nil {
		return nil, err
	}
	var out []*model.Node
	for _, n := range nodes {
		ok, err := eval(prg, n)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.UUID, err)
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func eval(prg cel.Program, n *model.Node) (bool, error) {
	out, _, err := prg.Eval(map[string]any{"node": Activation(n)})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not bool")
	}
	return val, nil
}

// Activation exposes n to expressions. Every known field is present; absent
// values read as zero.
func Activation(n *model.Node) map[string]any {
	var todo int64
	if n.TodoState != nil {
		todo = int64(*n.TodoState)
	}
	return map[string]any{
		"name":             n.Name,
		"uuid":             n.UUID,
		"uri":              n.URI,
		"pos":              n.Position(),
		"icon":             n.Icon,
		"parent_id":        n.ParentID,
		"type":             string(n.Type),
		"tags":             n.Tags,
		"date_added":       deref(n.DateAdded),
		"date_modified":    deref(n.DateModified),
		"content_modified": deref(n.ContentModified),
		"todo_state":       todo,
		"details":          n.Details,
		"todo_date":        n.TodoDate,
		"has_notes":        n.NotesAttached(),
		"has_comments":     n.CommentsAttached(),
		"content_type":     n.ContentType,
		"byte_length":      deref(n.ByteLength),
		"external":         n.External,
		"external_id":      n.ExternalID,
	}
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
