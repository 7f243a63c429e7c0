package frontend

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/provgraph/internal/semantic"
)

// skipped syntax carries no expressions worth walking.
var skipped = map[string]bool{
	"comment":                true,
	"type_annotation":        true,
	"type_arguments":         true,
	"type_parameters":        true,
	"type_identifier":        true,
	"predefined_type":        true,
	"accessibility_modifier": true,
	"override_modifier":      true,
	"decorator":              true,
	"import_statement":       true,
	"type_alias_declaration": true,
	"interface_declaration":  true,
	"hash_bang_line":         true,
}

// scope is a lexical scope inside a body. File-level names are looked up
// through the Program once the chain is exhausted.
type scope struct {
	parent *scope
	names  map[string]*semantic.Decl
	class  *semantic.Decl
}

func (s *scope) child() *scope {
	return &scope{parent: s, names: make(map[string]*semantic.Decl), class: s.class}
}

func (s *scope) lookup(name string) (*semantic.Decl, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if d, ok := sc.names[name]; ok {
			return d, true
		}
	}
	return nil, false
}

// ensureBody converts the body of a project declaration once.
func (p *Program) ensureBody(d *semantic.Decl) {
	f, ok := p.owner[d]
	if !ok || p.converted[d] {
		return
	}
	key := nameKey{f, "body " + string(d.ID)}
	if !p.enter(key) {
		return
	}
	defer p.leave(key)

	syn := f.syntax[d]
	c := &converter{p: p, f: f}
	s := &scope{names: map[string]*semantic.Decl{}, class: d.Enclosing}

	switch d.Kind {
	case semantic.KindVariable, semantic.KindField:
		if syn.value != nil {
			d.Body = c.expr(syn.value, s)
		}
	case semantic.KindFunction, semantic.KindMethod, semantic.KindGetter:
		inner := s.child()
		params := c.declareParams(syn.params, inner)
		if ref := p.buildRefParam(d, params); ref != nil {
			ref.Type = p.refType(p.frameworkBase(d.Enclosing).Package)
		}
		p.params[d] = params
		if syn.body != nil {
			d.Body = c.expr(syn.body, inner)
		}
	}
	p.converted[d] = true
}

// buildRefParam returns the unannotated parameter receiving the ref
// object in build(context, ref) of a class extending a framework class, or
// nil. Other members reach the ref through this.ref.
func (p *Program) buildRefParam(d *semantic.Decl, params []*semantic.Decl) *semantic.Decl {
	if d.Kind != semantic.KindMethod || d.Static || d.Name != widgetBuildMethod {
		return nil
	}
	if len(params) <= refSlot || params[refSlot].Type != nil {
		return nil
	}
	if p.frameworkBase(d.Enclosing) == nil {
		return nil
	}
	return params[refSlot]
}

// paramsOf returns the parameters of a function-like declaration.
func (p *Program) paramsOf(d *semantic.Decl) []*semantic.Decl {
	p.ensureBody(d)
	if params, ok := p.params[d]; ok {
		return params
	}
	if closure, ok := d.Body.(*semantic.Closure); ok {
		return closure.Params
	}
	return nil
}

// A consumer widget builds through build(context, ref).
const (
	widgetBuildMethod = "build"
	refSlot           = 1
)

// converter turns one file's syntax into semantic nodes.
type converter struct {
	p *Program
	f *File
}

func (c *converter) lookup(name string, s *scope) *semantic.Decl {
	if d, ok := s.lookup(name); ok {
		return d
	}
	return c.p.lookupFile(c.f, name)
}

func (c *converter) expr(n *sitter.Node, s *scope) semantic.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier":
		name := c.f.text(n)
		return &semantic.Ident{At: c.f.pos(n), Name: name, Decl: c.lookup(name, s)}
	case "this":
		return &semantic.Other{At: c.f.pos(n), Kind: "this", Text: "this"}
	case "parenthesized_expression", "non_null_expression", "satisfies_expression", "as_expression":
		if inner := firstNamed(n); inner != nil {
			return c.expr(inner, s)
		}
		return nil
	case "type_assertion":
		if n.NamedChildCount() > 0 {
			return c.expr(n.NamedChild(int(n.NamedChildCount())-1), s)
		}
		return nil
	case "member_expression":
		return c.member(n, s)
	case "call_expression":
		return c.call(n, s)
	case "new_expression":
		return c.construct(n, s)
	case "arrow_function", "function_expression", "function", "generator_function":
		return c.closure(n, s, nil)
	case "statement_block":
		return c.block(n, s)
	case "lexical_declaration", "variable_declaration":
		return c.locals(n, s)
	case "function_declaration", "generator_function_declaration":
		return c.localFunction(n, s)
	}
	if skipped[n.Type()] {
		return nil
	}
	return c.other(n, s)
}

func (c *converter) other(n *sitter.Node, s *scope) semantic.Node {
	o := &semantic.Other{At: c.f.pos(n), Kind: n.Type(), Text: c.f.snippet(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := c.expr(n.NamedChild(i), s); child != nil {
			o.Children = append(o.Children, child)
		}
	}
	return o
}

// member converts a.b. An identifier prefix gives a Qualified node, with
// the member bound when the prefix is a namespace or a class; this.b is
// bound to a class member; anything else is a Member on the converted
// target.
func (c *converter) member(n *sitter.Node, s *scope) semantic.Node {
	at := c.f.pos(n)
	obj := n.ChildByFieldName("object")
	prop := n.ChildByFieldName("property")
	if obj == nil || prop == nil {
		return c.other(n, s)
	}
	name := c.f.text(prop)

	switch obj.Type() {
	case "identifier":
		prefix := c.expr(obj, s).(*semantic.Ident)
		return &semantic.Qualified{
			At:     at,
			Prefix: prefix,
			Member: &semantic.Ident{At: c.f.pos(prop), Name: name, Decl: c.p.memberOf(prefix.Decl, name)},
		}
	case "this":
		d, t := c.p.thisMember(s.class, name)
		return &semantic.Member{At: at, Target: c.expr(obj, s), Name: name, Decl: d, Type: t}
	}

	target := c.expr(obj, s)
	m := &semantic.Member{At: at, Target: target, Name: name}
	m.Decl = c.p.memberOf(declOf(target), name)
	if m.Decl == nil {
		if t := semantic.TypeOf(target); t != nil && t.Decl != nil && t.Decl.Kind == semantic.KindClass {
			m.Decl = t.Decl.Member(name)
		}
	}
	if m.Decl != nil {
		m.Type = c.p.declType(m.Decl)
	}
	return m
}

// call converts a call. A call through a member that does not name a
// value-like declaration is a method call on the member's target.
func (c *converter) call(n *sitter.Node, s *scope) semantic.Node {
	at := c.f.pos(n)
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return c.other(n, s)
	}
	callee := c.expr(fn, s)
	if callee == nil {
		return c.other(n, s)
	}
	argsNode := n.ChildByFieldName("arguments")

	if fn.Type() == "member_expression" && !callable(declOf(callee)) {
		var receiver semantic.Node
		var name string
		switch m := callee.(type) {
		case *semantic.Qualified:
			receiver, name = m.Prefix, m.Member.Name
		case *semantic.Member:
			receiver, name = m.Target, m.Name
		}
		if receiver != nil {
			root := semantic.RootDecl(receiver)
			mc := &semantic.MethodCall{At: at, Receiver: receiver, Name: name}
			mc.Args = c.args(argsNode, s, c.constructionPackage(root))
			if root != nil && root.Kind == semantic.KindExternal {
				mc.Type = c.p.calleeType(root)
			}
			return mc
		}
	}

	root := semantic.RootDecl(callee)
	call := &semantic.Call{At: at, Callee: callee, Type: c.p.calleeType(root)}
	call.Args = c.args(argsNode, s, c.constructionPackage(root))
	return call
}

func (c *converter) construct(n *sitter.Node, s *scope) semantic.Node {
	ctor := n.ChildByFieldName("constructor")
	if ctor == nil {
		return c.other(n, s)
	}
	callee := c.expr(ctor, s)
	if callee == nil {
		return c.other(n, s)
	}
	root := semantic.RootDecl(callee)
	call := &semantic.Call{At: c.f.pos(n), Callee: callee, New: true, Type: declaredAs(declOf(callee))}
	call.Args = c.args(n.ChildByFieldName("arguments"), s, c.constructionPackage(root))
	return call
}

// constructionPackage returns the framework package root belongs to, or ""
// when a call through root is not a framework construction. Only symbols
// imported from the framework construct; inherited members do not.
func (c *converter) constructionPackage(root *semantic.Decl) string {
	if root == nil || root.Kind != semantic.KindExternal || !c.p.fw.OwnsDecl(root) {
		return ""
	}
	return root.Package
}

// args converts call arguments. In a framework construction the first
// parameter of the function computing the value receives the ref object,
// whether the function is inline or referenced by name.
func (c *converter) args(n *sitter.Node, s *scope, framework string) []semantic.Arg {
	if n == nil {
		return nil
	}
	var out []semantic.Arg
	for i := 0; i < int(n.NamedChildCount()); i++ {
		a := n.NamedChild(i)
		if a.Type() == "comment" {
			continue
		}
		first := len(out) == 0 && framework != ""
		var value semantic.Node
		switch {
		case first && isFunctionSyntax(a):
			value = c.closure(a, s, c.p.refType(framework))
		default:
			value = c.expr(a, s)
		}
		if value == nil {
			continue
		}
		if first {
			c.typeForwarded(value, c.p.refType(framework))
		}
		out = append(out, semantic.Arg{Value: value})
	}
	return out
}

// typeForwarded gives the first parameter of a function referenced by name
// its contextual type, unless it is annotated.
func (c *converter) typeForwarded(arg semantic.Node, t *semantic.Type) {
	var d *semantic.Decl
	switch a := arg.(type) {
	case *semantic.Ident:
		d = a.Decl
	case *semantic.Qualified:
		d = a.Member.Decl
	}
	if d == nil {
		return
	}
	switch d.Kind {
	case semantic.KindFunction, semantic.KindVariable:
	default:
		return
	}
	if params := c.p.paramsOf(d); len(params) > 0 && params[0].Type == nil {
		params[0].Type = t
	}
}

func (c *converter) closure(n *sitter.Node, s *scope, first *semantic.Type) *semantic.Closure {
	inner := s.child()
	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = n.ChildByFieldName("parameter")
	}
	decls := c.declareParams(params, inner)
	if first != nil && len(decls) > 0 && decls[0].Type == nil {
		decls[0].Type = first
	}
	return &semantic.Closure{
		At:     c.f.pos(n),
		Params: decls,
		Body:   c.expr(n.ChildByFieldName("body"), inner),
	}
}

// declareParams declares the parameters in n into s. n is a
// formal_parameters list or a lone identifier.
func (c *converter) declareParams(n *sitter.Node, s *scope) []*semantic.Decl {
	if n == nil {
		return nil
	}
	if n.Type() == "identifier" {
		return []*semantic.Decl{c.declareLocal(n, semantic.KindParameter, s)}
	}
	var out []*semantic.Decl
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		switch p.Type() {
		case "required_parameter", "optional_parameter":
			pattern := p.ChildByFieldName("pattern")
			if pattern == nil {
				continue
			}
			if pattern.Type() != "identifier" {
				// Destructured parameters bind names but have no single type.
				c.declarePattern(pattern, semantic.KindParameter, s)
				continue
			}
			d := c.declareLocal(pattern, semantic.KindParameter, s)
			if typ := p.ChildByFieldName("type"); typ != nil {
				d.Type = c.p.annotationType(c.f, typ)
			}
			out = append(out, d)
		case "identifier":
			out = append(out, c.declareLocal(p, semantic.KindParameter, s))
		default:
			c.declarePattern(p, semantic.KindParameter, s)
		}
	}
	return out
}

// declarePattern declares every name bound by a destructuring pattern.
func (c *converter) declarePattern(n *sitter.Node, kind semantic.Kind, s *scope) {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		c.declareLocal(n, kind, s)
		return
	case "pair_pattern":
		if v := n.ChildByFieldName("value"); v != nil {
			c.declarePattern(v, kind, s)
		}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.declarePattern(n.NamedChild(i), kind, s)
	}
}

func (c *converter) declareLocal(n *sitter.Node, kind semantic.Kind, s *scope) *semantic.Decl {
	name := c.f.text(n)
	at := c.f.pos(n)
	d := &semantic.Decl{
		ID:   semantic.ID(fmt.Sprintf("%s#%s@%d:%d", c.f.Path, name, at.Line, at.Col)),
		Name: name,
		Kind: kind,
		Pos:  at,
	}
	s.names[name] = d
	return d
}

// block converts a statement block in a fresh scope. Declarations are
// hoisted so closures may refer to bindings declared after them.
func (c *converter) block(n *sitter.Node, s *scope) semantic.Node {
	inner := s.child()
	for i := 0; i < int(n.NamedChildCount()); i++ {
		stmt := n.NamedChild(i)
		switch stmt.Type() {
		case "lexical_declaration", "variable_declaration":
			for j := 0; j < int(stmt.NamedChildCount()); j++ {
				if name := stmt.NamedChild(j).ChildByFieldName("name"); name != nil {
					c.declarePattern(name, semantic.KindLocal, inner)
				}
			}
		case "function_declaration", "generator_function_declaration":
			if name := stmt.ChildByFieldName("name"); name != nil {
				c.declareLocal(name, semantic.KindLocal, inner)
			}
		}
	}

	o := &semantic.Other{At: c.f.pos(n), Kind: "block", Text: c.f.snippet(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := c.expr(n.NamedChild(i), inner); child != nil {
			o.Children = append(o.Children, child)
		}
	}
	return o
}

// locals converts a local declaration. Each local records its initializer
// and a type from its annotation or its initializer.
func (c *converter) locals(n *sitter.Node, s *scope) semantic.Node {
	o := &semantic.Other{At: c.f.pos(n), Kind: "declaration", Text: c.f.snippet(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		var init semantic.Node
		if value := d.ChildByFieldName("value"); value != nil {
			init = c.expr(value, s)
			if init != nil {
				o.Children = append(o.Children, init)
			}
		}
		name := d.ChildByFieldName("name")
		if name == nil {
			continue
		}
		if name.Type() != "identifier" {
			if _, ok := s.names[c.f.text(name)]; !ok {
				c.declarePattern(name, semantic.KindLocal, s)
			}
			continue
		}
		local, ok := s.names[c.f.text(name)]
		if !ok {
			local = c.declareLocal(name, semantic.KindLocal, s)
		}
		local.Body = init
		if typ := d.ChildByFieldName("type"); typ != nil {
			local.Type = c.p.annotationType(c.f, typ)
		} else {
			local.Type = semantic.TypeOf(init)
		}
	}
	return o
}

func (c *converter) localFunction(n *sitter.Node, s *scope) semantic.Node {
	closure := c.closure(n, s, nil)
	if name := n.ChildByFieldName("name"); name != nil {
		local, ok := s.names[c.f.text(name)]
		if !ok {
			local = c.declareLocal(name, semantic.KindLocal, s)
		}
		local.Body = closure
	}
	return closure
}

func isFunctionSyntax(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

// callable reports whether calling through d invokes d itself rather than
// a method on its receiver.
func callable(d *semantic.Decl) bool {
	if d == nil {
		return false
	}
	switch d.Kind {
	case semantic.KindVariable, semantic.KindField, semantic.KindGetter, semantic.KindFunction, semantic.KindClass:
		return true
	}
	return false
}

// declOf returns the declaration an identifier-like node is bound to.
func declOf(n semantic.Node) *semantic.Decl {
	switch e := n.(type) {
	case *semantic.Ident:
		return e.Decl
	case *semantic.Qualified:
		return e.Member.Decl
	case *semantic.Member:
		return e.Decl
	}
	return nil
}
