// Package visit walks provider initializers and consumer bodies, records a
// graph edge for every watch/listen/read call it finds, and follows one
// level of forwarding from a provider to the function or class that
// actually computes its value.
package visit

import (
	"fmt"
	"log/slog"

	"github.com/jward/provgraph/internal/graph"
	"github.com/jward/provgraph/internal/resolve"
	"github.com/jward/provgraph/internal/semantic"
)

// DefaultBuildMethod is the method of a notifier class that computes the
// provider's state.
const DefaultBuildMethod = "build"

// Visitor records dependencies into a Graph.
type Visitor struct {
	fw          *semantic.Framework
	graph       *graph.Graph
	resolver    *resolve.Resolver
	buildMethod string
	log         *slog.Logger
}

// Option configures a Visitor.
type Option func(*Visitor)

// WithBuildMethod sets the method walked when a provider forwards to a
// class.
func WithBuildMethod(name string) Option {
	return func(v *Visitor) {
		if name != "" {
			v.buildMethod = name
		}
	}
}

// WithLogger sets the logger used for non-fatal findings.
func WithLogger(l *slog.Logger) Option {
	return func(v *Visitor) {
		if l != nil {
			v.log = l
		}
	}
}

// New returns a Visitor writing into g.
func New(fw *semantic.Framework, g *graph.Graph, opts ...Option) *Visitor {
	v := &Visitor{
		fw:          fw,
		graph:       g,
		resolver:    resolve.New(fw),
		buildMethod: DefaultBuildMethod,
		log:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// sink is the node receiving edges: a provider or a consumer.
type sink interface {
	Add(graph.Access, *graph.ProviderNode)
}

// VisitProvider records the dependencies of the provider d.
func (v *Visitor) VisitProvider(d *semantic.Decl) error {
	node := v.graph.Provider(d)
	body := v.definingBody(d)
	if body == nil {
		return nil
	}
	if err := v.walk(body, &node.Edges); err != nil {
		return fmt.Errorf("provider %s: %w", d.DisplayName(), err)
	}
	return nil
}

// VisitConsumer records the dependencies of the consumer class d.
func (v *Visitor) VisitConsumer(d *semantic.Decl) error {
	node := v.graph.Consumer(d)
	for _, m := range d.Members {
		if m.Body == nil {
			continue
		}
		if err := v.walk(m.Body, &node.Edges); err != nil {
			return fmt.Errorf("consumer %s: %w", d.Name, err)
		}
	}
	return nil
}

// definingBody decides, once and before walking, where the provider's
// value is computed. A framework construction whose first positional
// argument names a function or a class is followed to that function's body
// or to the class's build method; anything else is walked in place.
func (v *Visitor) definingBody(d *semantic.Decl) semantic.Node {
	args, ok := v.construction(d.Body)
	if !ok {
		return d.Body
	}
	first, ok := semantic.Positional(args)
	if !ok {
		return d.Body
	}
	target := v.forwardTarget(first)
	if target == nil {
		return d.Body
	}

	switch target.Kind {
	case semantic.KindVariable:
		return target.Body.(*semantic.Closure).Body
	case semantic.KindFunction:
		if target.Body == nil {
			v.log.Debug("forwarded function has no body",
				slog.String("provider", d.DisplayName()),
				slog.String("function", string(target.ID)))
		}
		return target.Body
	case semantic.KindClass:
		build := target.Member(v.buildMethod)
		if build == nil || build.Body == nil {
			v.log.Debug("forwarded class has no build method",
				slog.String("provider", d.DisplayName()),
				slog.String("class", string(target.ID)),
				slog.String("method", v.buildMethod))
			return nil
		}
		return build.Body
	}
	return d.Body
}

// forwardTarget returns the function or class a constructor argument
// refers to, or nil when the argument is inline. A variable initialized
// with a function literal counts as a function.
func (v *Visitor) forwardTarget(arg semantic.Node) *semantic.Decl {
	switch a := arg.(type) {
	case *semantic.Ident:
		if forwardable(a.Decl) {
			return a.Decl
		}
	case *semantic.Qualified:
		// Class.new tear-off.
		if a.Member.Name == "new" && a.Prefix.Decl != nil && a.Prefix.Decl.Kind == semantic.KindClass {
			return a.Prefix.Decl
		}
		if forwardable(a.Member.Decl) {
			return a.Member.Decl
		}
	}
	return nil
}

func forwardable(d *semantic.Decl) bool {
	if d == nil {
		return false
	}
	switch d.Kind {
	case semantic.KindFunction, semantic.KindClass:
		return true
	case semantic.KindVariable:
		_, ok := d.Body.(*semantic.Closure)
		return ok
	}
	return false
}

// construction reports whether n invokes a framework constructor or factory
// and returns its arguments.
func (v *Visitor) construction(n semantic.Node) ([]semantic.Arg, bool) {
	switch c := n.(type) {
	case *semantic.Call:
		if v.fw.OwnsDecl(semantic.RootDecl(c.Callee)) {
			return c.Args, true
		}
	case *semantic.MethodCall:
		if v.fw.OwnsDecl(semantic.RootDecl(c.Receiver)) {
			return c.Args, true
		}
	}
	return nil, false
}

func (v *Visitor) walk(body semantic.Node, to sink) error {
	var err error
	semantic.Walk(body, func(n semantic.Node) bool {
		if err != nil {
			return false
		}
		err = v.record(n, to)
		return err == nil
	})
	return err
}

// record adds an edge when n is an access call on a framework receiver.
func (v *Visitor) record(n semantic.Node, to sink) error {
	call, ok := n.(*semantic.MethodCall)
	if !ok {
		return nil
	}
	access, ok := graph.ParseAccess(call.Name)
	if !ok || !v.fw.Owns(semantic.TypeOf(call.Receiver)) {
		return nil
	}
	arg, ok := semantic.Positional(call.Args)
	if !ok {
		return nil
	}
	target, err := v.resolver.Resolve(arg)
	if err != nil {
		return err
	}
	to.Add(access, v.graph.Provider(target))
	return nil
}
