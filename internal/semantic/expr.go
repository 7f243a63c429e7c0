package semantic

import "strings"

// Node is a resolved syntax node. The set of implementations is closed:
// Ident, Qualified, Member, Call, MethodCall, Closure and Other.
type Node interface {
	Pos() Pos
	String() string
	node()
}

// Ident is a bare identifier.
type Ident struct {
	At   Pos
	Name string
	Decl *Decl // nil when the identifier does not resolve
	Type *Type
}

// Qualified is an identifier qualified by another identifier: a class name,
// a namespace alias or a variable (prefix.member).
type Qualified struct {
	At     Pos
	Prefix *Ident
	Member *Ident
}

// Member is a property access on an arbitrary expression (target.name).
type Member struct {
	At     Pos
	Target Node
	Name   string
	Decl   *Decl
	Type   *Type
}

// Call invokes an expression: a function, a family, or a constructor when
// New is set.
type Call struct {
	At     Pos
	Callee Node
	Args   []Arg
	New    bool
	Type   *Type
}

// MethodCall invokes a method on an explicit receiver.
type MethodCall struct {
	At       Pos
	Receiver Node
	Name     string
	Args     []Arg
	Type     *Type
}

// Closure is an inline function literal.
type Closure struct {
	At     Pos
	Params []*Decl
	Body   Node
}

// Other is any syntax outside the variants above. Kind is the front-end's
// name for it; Children holds its resolved sub-expressions and statements.
type Other struct {
	At       Pos
	Kind     string
	Text     string
	Children []Node
}

// Arg is a call argument. Name is empty for positional arguments.
type Arg struct {
	Name  string
	Value Node
}

func (n *Ident) Pos() Pos      { return n.At }
func (n *Qualified) Pos() Pos  { return n.At }
func (n *Member) Pos() Pos     { return n.At }
func (n *Call) Pos() Pos       { return n.At }
func (n *MethodCall) Pos() Pos { return n.At }
func (n *Closure) Pos() Pos    { return n.At }
func (n *Other) Pos() Pos      { return n.At }

func (*Ident) node()      {}
func (*Qualified) node()  {}
func (*Member) node()     {}
func (*Call) node()       {}
func (*MethodCall) node() {}
func (*Closure) node()    {}
func (*Other) node()      {}

func (n *Ident) String() string     { return n.Name }
func (n *Qualified) String() string { return n.Prefix.Name + "." + n.Member.Name }
func (n *Member) String() string    { return n.Target.String() + "." + n.Name }

func (n *Call) String() string {
	s := n.Callee.String() + "(" + argsString(n.Args) + ")"
	if n.New {
		return "new " + s
	}
	return s
}

func (n *MethodCall) String() string {
	return n.Receiver.String() + "." + n.Name + "(" + argsString(n.Args) + ")"
}

func (n *Closure) String() string {
	names := make([]string, len(n.Params))
	for i, p := range n.Params {
		names[i] = p.Name
	}
	return "(" + strings.Join(names, ", ") + ") => ..."
}

func (n *Other) String() string {
	if n.Text != "" {
		return n.Text
	}
	return "<" + n.Kind + ">"
}

func argsString(args []Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		v := "<nil>"
		if a.Value != nil {
			v = a.Value.String()
		}
		if a.Name != "" {
			v = a.Name + ": " + v
		}
		parts[i] = v
	}
	return strings.Join(parts, ", ")
}

// Positional returns the first positional argument, skipping named ones.
func Positional(args []Arg) (Node, bool) {
	for _, a := range args {
		if a.Name == "" && a.Value != nil {
			return a.Value, true
		}
	}
	return nil, false
}

// Shape names the variant of n.
func Shape(n Node) string {
	switch n := n.(type) {
	case *Ident:
		return "identifier"
	case *Qualified:
		return "qualified identifier"
	case *Member:
		return "member access"
	case *Call:
		if n.New {
			return "constructor call"
		}
		return "call"
	case *MethodCall:
		return "method call"
	case *Closure:
		return "closure"
	case *Other:
		return n.Kind
	case nil:
		return "nil"
	}
	return "unknown"
}

// TypeOf returns the static type of n, or nil if it is unknown.
func TypeOf(n Node) *Type {
	switch n := n.(type) {
	case *Ident:
		if n.Type == nil && n.Decl != nil {
			return n.Decl.Type
		}
		return n.Type
	case *Qualified:
		return TypeOf(n.Member)
	case *Member:
		return n.Type
	case *Call:
		return n.Type
	case *MethodCall:
		return n.Type
	}
	return nil
}

// RootDecl returns the declaration an expression chain starts from, for
// example Provider in Provider.autoDispose.family.
func RootDecl(n Node) *Decl {
	switch e := n.(type) {
	case *Ident:
		return e.Decl
	case *Qualified:
		if e.Member.Decl != nil {
			return e.Member.Decl
		}
		return e.Prefix.Decl
	case *Member:
		if e.Decl != nil {
			return e.Decl
		}
		return RootDecl(e.Target)
	case *Call:
		return RootDecl(e.Callee)
	case *MethodCall:
		return RootDecl(e.Receiver)
	}
	return nil
}

// Children returns the direct sub-nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	switch n := n.(type) {
	case *Qualified:
		out = append(out, n.Prefix, n.Member)
	case *Member:
		out = append(out, n.Target)
	case *Call:
		out = append(out, n.Callee)
		out = appendArgs(out, n.Args)
	case *MethodCall:
		out = append(out, n.Receiver)
		out = appendArgs(out, n.Args)
	case *Closure:
		if n.Body != nil {
			out = append(out, n.Body)
		}
	case *Other:
		out = append(out, n.Children...)
	}
	return out
}

func appendArgs(out []Node, args []Arg) []Node {
	for _, a := range args {
		if a.Value != nil {
			out = append(out, a.Value)
		}
	}
	return out
}

// Walk visits n and its descendants depth-first in source order. When fn
// returns false the children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}
