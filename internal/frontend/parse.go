// Package frontend is the semantic resolver for TypeScript and TSX sources.
//
// Resolution runs in two phases. Parse reads one file with tree-sitter and
// collects its imports, exports and declarations; it touches no other file
// and is safe to run in parallel. A Program then links the parsed files:
// module specifiers are resolved, declared types are computed, and bodies
// are converted into the semantic expression model with every identifier
// bound to its declaration.
package frontend

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/provgraph/internal/semantic"
)

// File is one parsed source file.
type File struct {
	Path string // slash-separated, relative to the analysed root
	Lang string

	src  []byte
	tree *sitter.Tree

	imports map[string]importBinding // keyed by local name
	exports []exportEntry
	decls   map[string]*semantic.Decl // top-level declarations by name
	aliases map[string]*sitter.Node   // type aliases

	order  []*semantic.Decl // top-level declarations and static members
	all    []*semantic.Decl // every declaration with syntax, members included
	syntax map[*semantic.Decl]*declSyntax
}

type importBinding struct {
	module string
	name   string // imported name; "default", or "*" for a namespace import
	pos    semantic.Pos
}

// exportEntry is one exported name. For "export * from" entries name is
// empty; for "export * as ns from" local is "*".
type exportEntry struct {
	name  string
	local string
	from  string
}

// declSyntax holds the syntax nodes a declaration is linked from.
type declSyntax struct {
	typ    *sitter.Node // type annotation, or return type of a function
	value  *sitter.Node // initializer
	params *sitter.Node
	body   *sitter.Node
	super  *sitter.Node // extends expression of a class
}

// Parse parses src and collects the file's declarations. rel must be the
// slash-separated path relative to the analysed root; it prefixes every
// declaration ID.
func Parse(ctx context.Context, rel string, src []byte) (*File, error) {
	lang, ok := LanguageForFile(rel)
	if !ok {
		return nil, fmt.Errorf("frontend: unsupported file %q", rel)
	}
	grammar, _ := GrammarForLanguage(lang)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("frontend: parse %s: %w", rel, err)
	}

	f := &File{
		Path:    rel,
		Lang:    lang,
		src:     src,
		tree:    tree,
		imports: make(map[string]importBinding),
		decls:   make(map[string]*semantic.Decl),
		aliases: make(map[string]*sitter.Node),
		syntax:  make(map[*semantic.Decl]*declSyntax),
	}
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		f.topLevel(root.NamedChild(i))
	}
	return f, nil
}

// HasSyntaxErrors reports whether tree-sitter had to recover from errors.
func (f *File) HasSyntaxErrors() bool {
	return f.tree.RootNode().HasError()
}

// Decls returns the top-level declarations and static class members in
// source order.
func (f *File) Decls() []*semantic.Decl {
	return f.order
}

// topLevel collects the declarations introduced by statement n and returns
// their names.
func (f *File) topLevel(n *sitter.Node) []string {
	switch n.Type() {
	case "import_statement":
		f.collectImport(n)
	case "export_statement":
		f.collectExport(n)
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			d := n.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			name := d.ChildByFieldName("name")
			if name == nil || name.Type() != "identifier" {
				continue
			}
			f.declare(f.text(name), semantic.KindVariable, name, &declSyntax{
				typ:   d.ChildByFieldName("type"),
				value: d.ChildByFieldName("value"),
			})
			names = append(names, f.text(name))
		}
		return names
	case "function_declaration", "generator_function_declaration":
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		f.declare(f.text(name), semantic.KindFunction, name, &declSyntax{
			typ:    n.ChildByFieldName("return_type"),
			params: n.ChildByFieldName("parameters"),
			body:   n.ChildByFieldName("body"),
		})
		return []string{f.text(name)}
	case "class_declaration", "abstract_class_declaration", "class":
		if name := f.collectClass(n); name != "" {
			return []string{name}
		}
	case "type_alias_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			f.aliases[f.text(name)] = n.ChildByFieldName("value")
		}
	}
	return nil
}

func (f *File) collectImport(n *sitter.Node) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}
	module := unquote(f.text(source))
	clause := namedChildOfType(n, "import_clause")
	if clause == nil {
		return
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			f.imports[f.text(c)] = importBinding{module: module, name: "default", pos: f.pos(c)}
		case "namespace_import":
			if alias := namedChildOfType(c, "identifier"); alias != nil {
				f.imports[f.text(alias)] = importBinding{module: module, name: "*", pos: f.pos(alias)}
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil {
					continue
				}
				local := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = alias
				}
				f.imports[f.text(local)] = importBinding{module: module, name: unquote(f.text(name)), pos: f.pos(local)}
			}
		}
	}
}

func (f *File) collectExport(n *sitter.Node) {
	isDefault := hasToken(n, "default")

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		for _, name := range f.topLevel(decl) {
			if isDefault {
				f.exports = append(f.exports, exportEntry{name: "default", local: name})
				continue
			}
			f.exports = append(f.exports, exportEntry{name: name, local: name})
		}
		return
	}

	if value := n.ChildByFieldName("value"); value != nil {
		if value.Type() == "identifier" {
			f.exports = append(f.exports, exportEntry{name: "default", local: f.text(value)})
			return
		}
		// An anonymous default export is a declaration named "default".
		f.declare("default", semantic.KindVariable, value, &declSyntax{value: value})
		f.exports = append(f.exports, exportEntry{name: "default", local: "default"})
		return
	}

	var from string
	if source := n.ChildByFieldName("source"); source != nil {
		from = unquote(f.text(source))
	}

	if clause := namedChildOfType(n, "export_clause"); clause != nil {
		for i := 0; i < int(clause.NamedChildCount()); i++ {
			spec := clause.NamedChild(i)
			if spec.Type() != "export_specifier" {
				continue
			}
			name := spec.ChildByFieldName("name")
			if name == nil {
				continue
			}
			exported := name
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = alias
			}
			f.exports = append(f.exports, exportEntry{
				name:  unquote(f.text(exported)),
				local: unquote(f.text(name)),
				from:  from,
			})
		}
		return
	}

	if from == "" {
		return
	}
	if ns := namedChildOfType(n, "namespace_export"); ns != nil {
		if alias := ns.NamedChild(0); alias != nil {
			f.exports = append(f.exports, exportEntry{name: unquote(f.text(alias)), local: "*", from: from})
		}
		return
	}
	if hasToken(n, "*") {
		f.exports = append(f.exports, exportEntry{from: from})
	}
}

// collectClass declares a class and its members and returns its name.
func (f *File) collectClass(n *sitter.Node) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := f.text(nameNode)
	cls := f.declare(name, semantic.KindClass, nameNode, &declSyntax{super: extendsOf(n)})

	body := n.ChildByFieldName("body")
	if body == nil {
		return name
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		switch m.Type() {
		case "public_field_definition", "field_definition":
			memberName := m.ChildByFieldName("name")
			if memberName == nil {
				memberName = m.ChildByFieldName("property")
			}
			if memberName == nil {
				continue
			}
			f.member(cls, f.text(memberName), semantic.KindField, hasToken(m, "static"), memberName, &declSyntax{
				typ:   m.ChildByFieldName("type"),
				value: m.ChildByFieldName("value"),
			})
		case "method_definition":
			memberName := m.ChildByFieldName("name")
			if memberName == nil || hasToken(m, "set") {
				continue
			}
			kind := semantic.KindMethod
			if hasToken(m, "get") {
				kind = semantic.KindGetter
			}
			params := m.ChildByFieldName("parameters")
			f.member(cls, f.text(memberName), kind, hasToken(m, "static"), memberName, &declSyntax{
				typ:    m.ChildByFieldName("return_type"),
				params: params,
				body:   m.ChildByFieldName("body"),
			})
			if f.text(memberName) == "constructor" {
				f.parameterProperties(cls, params)
			}
		}
	}
	return name
}

// parameterProperties declares the fields introduced by constructor
// parameters carrying an accessibility or readonly modifier.
func (f *File) parameterProperties(cls *semantic.Decl, params *sitter.Node) {
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() != "required_parameter" && p.Type() != "optional_parameter" {
			continue
		}
		if namedChildOfType(p, "accessibility_modifier") == nil && !hasToken(p, "readonly") {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil || pattern.Type() != "identifier" {
			continue
		}
		f.member(cls, f.text(pattern), semantic.KindField, false, pattern, &declSyntax{typ: p.ChildByFieldName("type")})
	}
}

func (f *File) declare(name string, kind semantic.Kind, at *sitter.Node, syn *declSyntax) *semantic.Decl {
	d := &semantic.Decl{
		ID:   semantic.ID(f.Path + "#" + name),
		Name: name,
		Kind: kind,
		Pos:  f.pos(at),
	}
	if _, dup := f.decls[name]; !dup {
		f.decls[name] = d
	}
	f.order = append(f.order, d)
	f.all = append(f.all, d)
	f.syntax[d] = syn
	return d
}

func (f *File) member(cls *semantic.Decl, name string, kind semantic.Kind, static bool, at *sitter.Node, syn *declSyntax) *semantic.Decl {
	if cls.Member(name) != nil {
		return nil
	}
	d := &semantic.Decl{
		ID:        semantic.ID(f.Path + "#" + cls.Name + "." + name),
		Name:      name,
		Kind:      kind,
		Static:    static,
		Enclosing: cls,
		Pos:       f.pos(at),
	}
	cls.Members = append(cls.Members, d)
	if static {
		f.order = append(f.order, d)
	}
	f.all = append(f.all, d)
	f.syntax[d] = syn
	return d
}

// extendsOf returns the expression a class extends, or nil.
func extendsOf(class *sitter.Node) *sitter.Node {
	heritage := namedChildOfType(class, "class_heritage")
	if heritage == nil {
		return nil
	}
	for i := 0; i < int(heritage.NamedChildCount()); i++ {
		c := heritage.NamedChild(i)
		switch c.Type() {
		case "extends_clause":
			if v := c.ChildByFieldName("value"); v != nil {
				return v
			}
			return c.NamedChild(0)
		case "implements_clause":
		default:
			return c
		}
	}
	return nil
}

func (f *File) text(n *sitter.Node) string {
	return n.Content(f.src)
}

func (f *File) pos(n *sitter.Node) semantic.Pos {
	p := n.StartPoint()
	return semantic.Pos{File: f.Path, Line: int(p.Row) + 1, Col: int(p.Column) + 1}
}

// snippet is n's source text on one line, shortened for messages.
func (f *File) snippet(n *sitter.Node) string {
	s := strings.Join(strings.Fields(f.text(n)), " ")
	if r := []rune(s); len(r) > 60 {
		s = string(r[:57]) + "..."
	}
	return s
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}

func namedChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

// firstNamed returns the first named child that is not a comment.
func firstNamed(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}

// hasToken reports whether n has an anonymous child token of the given
// text, such as "static" or "default".
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}
