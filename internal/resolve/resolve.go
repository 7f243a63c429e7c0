// Package resolve recovers the canonical provider declaration denoted by
// the argument of a watch/listen/read call.
package resolve

import (
	"errors"
	"fmt"

	"github.com/jward/provgraph/internal/semantic"
)

// ErrUnsupported is matched by every resolution failure.
var ErrUnsupported = errors.New("unsupported expression")

// UnsupportedError reports an expression that does not reduce to a
// provider. Analysis stops at the first one.
type UnsupportedError struct {
	Expr  string
	Shape string
	Pos   semantic.Pos
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported expression %q (%s)", e.Pos, e.Expr, e.Shape)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

func unsupported(n semantic.Node) error {
	e := &UnsupportedError{Shape: semantic.Shape(n)}
	if n != nil {
		e.Expr = n.String()
		e.Pos = n.Pos()
	}
	return e
}

// Resolver maps provider expressions to declarations.
type Resolver struct {
	fw *semantic.Framework
}

// New returns a Resolver that treats fw's declarations as modifiers rather
// than providers.
func New(fw *semantic.Framework) *Resolver {
	return &Resolver{fw: fw}
}

// Resolve returns the declaration of the provider expr denotes.
func (r *Resolver) Resolve(expr semantic.Node) (*semantic.Decl, error) {
	switch e := expr.(type) {
	case *semantic.Member:
		// Family collections exposed as computed properties resolve to the
		// property itself; framework properties (.future, .notifier) are
		// modifiers on the target.
		if r.accessor(e.Decl) {
			return e.Decl, nil
		}
		if e.Target == nil {
			return nil, unsupported(expr)
		}
		return r.Resolve(e.Target)

	case *semantic.Qualified:
		if r.qualifiesMember(e.Prefix) && r.accessor(e.Member.Decl) {
			return e.Member.Decl, nil
		}
		return r.Resolve(e.Prefix)

	case *semantic.Ident:
		if r.accessor(e.Decl) {
			return e.Decl, nil
		}
		return nil, unsupported(expr)

	case *semantic.Call:
		if e.New || e.Callee == nil {
			return nil, unsupported(expr)
		}
		return r.Resolve(e.Callee)

	case *semantic.MethodCall:
		if e.Receiver == nil {
			return nil, unsupported(expr)
		}
		return r.Resolve(e.Receiver)
	}
	return nil, unsupported(expr)
}

// accessor reports whether a reference to d reads provider state. Values
// imported from packages outside the project and the framework have no
// visible declaration and are taken as accessors; framework declarations
// never are.
func (r *Resolver) accessor(d *semantic.Decl) bool {
	if d == nil || r.fw.OwnsDecl(d) {
		return false
	}
	return d.IsAccessor() || d.Kind == semantic.KindExternal
}

// qualifiesMember reports whether prefix.member names the member itself:
// the prefix is a class name or a namespace alias rather than a provider.
func (r *Resolver) qualifiesMember(prefix *semantic.Ident) bool {
	if semantic.UpperInitial(prefix.Name) {
		return true
	}
	return prefix.Decl != nil && prefix.Decl.Kind == semantic.KindNamespace
}
