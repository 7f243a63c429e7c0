// Package filter narrows graph snapshots with Risor expressions.
//
// An expression is evaluated once per node with the node's fields bound as
// globals:
//
//	id      canonical ID ("lib/p.ts#counter")
//	name    display name ("Repo.items")
//	member  bare member name ("items")
//	class   enclosing class, "" for top-level providers and consumers
//	kind    "provider" or "consumer"
//	file    source file relative to the analysed root
//	line    1-based declaration line
//
// A node is kept when the result is truthy. Edges pointing at dropped nodes
// are removed with them.
package filter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"

	"github.com/jward/provgraph/internal/graph"
)

// Filter is a compiled node predicate.
type Filter struct {
	expr string
	log  *slog.Logger
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used to report dropped nodes.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) {
		f.log = l
	}
}

// New validates expr by evaluating it against an empty node. An empty or
// blank expression keeps every node.
func New(expr string, opts ...Option) (*Filter, error) {
	f := &Filter{
		expr: strings.TrimSpace(expr),
		log:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.expr == "" {
		return f, nil
	}
	if _, err := f.eval(context.Background(), graph.NodeView{}); err != nil {
		return nil, err
	}
	return f, nil
}

// Expr returns the expression source.
func (f *Filter) Expr() string {
	return f.expr
}

// Match reports whether v satisfies the expression.
func (f *Filter) Match(ctx context.Context, v graph.NodeView) (bool, error) {
	if f.expr == "" {
		return true, nil
	}
	result, err := f.eval(ctx, v)
	if err != nil {
		return false, err
	}
	return result.IsTruthy(), nil
}

// Apply returns the nodes of s that match, in their original order.
func (f *Filter) Apply(ctx context.Context, s graph.Snapshot) (graph.Snapshot, error) {
	if f.expr == "" {
		return s, nil
	}

	keep := make(map[string]bool)
	for _, v := range s.Nodes() {
		ok, err := f.Match(ctx, v)
		if err != nil {
			return graph.Snapshot{}, fmt.Errorf("filter: node %s: %w", v.ID, err)
		}
		if ok {
			keep[v.ID] = true
		} else {
			f.log.Debug("filtered out", "node", v.ID)
		}
	}

	out := graph.Snapshot{
		Providers: retain(s.Providers, keep),
		Consumers: retain(s.Consumers, keep),
	}
	f.log.Debug("filter applied",
		"expr", f.expr,
		"kept", len(out.Providers)+len(out.Consumers),
		"total", len(s.Providers)+len(s.Consumers),
	)
	return out, nil
}

func retain(nodes []graph.NodeView, keep map[string]bool) []graph.NodeView {
	out := make([]graph.NodeView, 0, len(nodes))
	for _, v := range nodes {
		if !keep[v.ID] {
			continue
		}
		for _, a := range graph.Accesses {
			targets := v.Targets(a)
			if len(targets) == 0 {
				continue
			}
			var kept []string
			for _, t := range targets {
				if keep[t] {
					kept = append(kept, t)
				}
			}
			v.SetTargets(a, kept)
		}
		out = append(out, v)
	}
	return out
}

func (f *Filter) eval(ctx context.Context, v graph.NodeView) (object.Object, error) {
	result, err := risor.Eval(ctx, f.expr,
		risor.WithGlobal("id", object.NewString(v.ID)),
		risor.WithGlobal("name", object.NewString(v.Name)),
		risor.WithGlobal("member", object.NewString(v.Member)),
		risor.WithGlobal("class", object.NewString(v.Class)),
		risor.WithGlobal("kind", object.NewString(v.Kind)),
		risor.WithGlobal("file", object.NewString(v.File)),
		risor.WithGlobal("line", object.NewInt(int64(v.Line))),
	)
	if err != nil {
		return nil, fmt.Errorf("filter: %q: %w", f.expr, err)
	}
	if result == nil {
		return object.Nil, nil
	}
	return result, nil
}
