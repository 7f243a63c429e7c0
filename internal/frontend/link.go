package frontend

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/provgraph/internal/semantic"
)

// maxSuperDepth bounds supertype walks through malformed class hierarchies.
const maxSuperDepth = 32

// Program links a set of parsed files.
type Program struct {
	fw    *semantic.Framework
	files map[string]*File
	paths []string
	owner map[*semantic.Decl]*File
	log   *slog.Logger

	externals  map[semantic.ID]*semantic.Decl
	namespaces map[nameKey]*semantic.Decl
	scopes     map[nameKey]*semantic.Decl
	exported   map[nameKey]*semantic.Decl
	params     map[*semantic.Decl][]*semantic.Decl

	typed      map[*semantic.Decl]bool
	converted  map[*semantic.Decl]bool
	inProgress map[any]bool
}

type nameKey struct {
	file *File
	name string
}

// Option configures a Program.
type Option func(*Program)

// WithLogger sets the logger used for linking diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Program) {
		if l != nil {
			p.log = l
		}
	}
}

// NewProgram returns a Program over files. Declarations owned by fw's
// packages are the framework vocabulary.
func NewProgram(fw *semantic.Framework, files []*File, opts ...Option) *Program {
	p := &Program{
		fw:         fw,
		files:      make(map[string]*File, len(files)),
		owner:      make(map[*semantic.Decl]*File),
		log:        slog.New(slog.DiscardHandler),
		externals:  make(map[semantic.ID]*semantic.Decl),
		namespaces: make(map[nameKey]*semantic.Decl),
		scopes:     make(map[nameKey]*semantic.Decl),
		exported:   make(map[nameKey]*semantic.Decl),
		params:     make(map[*semantic.Decl][]*semantic.Decl),
		typed:      make(map[*semantic.Decl]bool),
		converted:  make(map[*semantic.Decl]bool),
		inProgress: make(map[any]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, f := range files {
		p.files[f.Path] = f
		p.paths = append(p.paths, f.Path)
		for d := range f.syntax {
			p.owner[d] = f
		}
	}
	sort.Strings(p.paths)
	return p
}

// Link resolves every file and returns one unit per file in path order.
func (p *Program) Link(ctx context.Context) ([]*semantic.Unit, error) {
	// Bodies read declared types and supertypes, so those come first.
	for _, path := range p.paths {
		for _, d := range p.files[path].all {
			p.declType(d)
		}
	}

	units := make([]*semantic.Unit, 0, len(p.paths))
	for _, path := range p.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := p.files[path]
		for _, d := range f.all {
			p.ensureBody(d)
		}
		units = append(units, &semantic.Unit{Path: path, Decls: f.order})
		p.log.Debug("linked file", slog.String("path", path), slog.Int("decls", len(f.order)))
	}
	return units, nil
}

// enter marks key as being computed and reports false on re-entry.
func (p *Program) enter(key any) bool {
	if p.inProgress[key] {
		return false
	}
	p.inProgress[key] = true
	return true
}

func (p *Program) leave(key any) {
	delete(p.inProgress, key)
}

// ---------------------------------------------------------------------------
// Modules and names
// ---------------------------------------------------------------------------

// resolveModule maps an import specifier to a project file, or to a package
// name when the specifier is not relative. Both are empty for a relative
// specifier naming no known file.
func (p *Program) resolveModule(from, spec string) (file string, pkg string) {
	if !strings.HasPrefix(spec, ".") {
		return "", spec
	}
	base := path.Join(path.Dir(from), spec)
	for _, c := range moduleCandidates(base) {
		if _, ok := p.files[c]; ok {
			return c, ""
		}
	}
	return "", ""
}

func moduleCandidates(base string) []string {
	out := []string{base}
	switch ext := path.Ext(base); ext {
	case ".js", ".jsx", ".mjs", ".cjs":
		stem := strings.TrimSuffix(base, ext)
		for _, e := range moduleExtensions {
			out = append(out, stem+e)
		}
	}
	for _, e := range moduleExtensions {
		out = append(out, base+e)
	}
	for _, e := range moduleExtensions {
		out = append(out, base+"/index"+e)
	}
	return out
}

// external interns the declaration name exported by package pkg, so every
// file importing it shares one identity.
func (p *Program) external(pkg, name string) *semantic.Decl {
	id := semantic.ID(pkg + "#" + name)
	if d, ok := p.externals[id]; ok {
		return d
	}
	d := &semantic.Decl{ID: id, Name: name, Kind: semantic.KindExternal, Package: pkg}
	p.externals[id] = d
	return d
}

// lookupFile resolves a name at file level: a local declaration or an
// import binding.
func (p *Program) lookupFile(f *File, name string) *semantic.Decl {
	key := nameKey{f, name}
	if d, ok := p.scopes[key]; ok {
		return d
	}
	var d *semantic.Decl
	if local, ok := f.decls[name]; ok {
		d = local
	} else if imp, ok := f.imports[name]; ok {
		if imp.name == "*" {
			d = p.namespace(f, name, imp.module, imp.pos)
		} else {
			d = p.importedDecl(f, imp.module, imp.name)
		}
	}
	p.scopes[key] = d
	return d
}

func (p *Program) namespace(f *File, alias, spec string, at semantic.Pos) *semantic.Decl {
	key := nameKey{f, "*" + alias}
	if d, ok := p.namespaces[key]; ok {
		return d
	}
	file, pkg := p.resolveModule(f.Path, spec)
	d := &semantic.Decl{
		ID:      semantic.ID(f.Path + "#" + alias),
		Name:    alias,
		Kind:    semantic.KindNamespace,
		Module:  file,
		Package: pkg,
		Pos:     at,
	}
	if pkg != "" {
		d.Module = pkg
	}
	p.namespaces[key] = d
	return d
}

func (p *Program) importedDecl(f *File, spec, name string) *semantic.Decl {
	file, pkg := p.resolveModule(f.Path, spec)
	switch {
	case file != "":
		return p.exportOf(p.files[file], name)
	case pkg != "":
		return p.external(pkg, name)
	}
	return nil
}

// exportOf returns the declaration f exports under name, following
// re-exports. Cyclic re-exports resolve to nil.
func (p *Program) exportOf(f *File, name string) *semantic.Decl {
	key := nameKey{f, name}
	if d, ok := p.exported[key]; ok {
		return d
	}
	if !p.enter(key) {
		return nil
	}
	d := p.findExport(f, name)
	p.leave(key)
	p.exported[key] = d
	return d
}

func (p *Program) findExport(f *File, name string) *semantic.Decl {
	for _, e := range f.exports {
		if e.name != name {
			continue
		}
		switch {
		case e.from == "":
			return p.lookupFile(f, e.local)
		case e.local == "*":
			return p.namespace(f, e.name, e.from, semantic.Pos{})
		default:
			return p.importedDecl(f, e.from, e.local)
		}
	}
	if name == "default" {
		return nil
	}
	for _, e := range f.exports {
		if e.name != "" {
			continue
		}
		if d := p.importedDecl(f, e.from, name); d != nil {
			return d
		}
	}
	return nil
}

// memberOf returns the declaration named by d.name when d is a namespace
// or a class.
func (p *Program) memberOf(d *semantic.Decl, name string) *semantic.Decl {
	if d == nil {
		return nil
	}
	switch d.Kind {
	case semantic.KindNamespace:
		if d.Package != "" {
			return p.external(d.Package, name)
		}
		if f, ok := p.files[d.Module]; ok {
			return p.exportOf(f, name)
		}
	case semantic.KindClass:
		return d.Member(name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// declType returns the static type of a project declaration, computing it
// on first use. Classes get their supertype recorded as a side effect.
func (p *Program) declType(d *semantic.Decl) *semantic.Type {
	if d == nil {
		return nil
	}
	f, ok := p.owner[d]
	if !ok || p.typed[d] {
		return d.Type
	}
	if !p.enter(d) {
		return nil
	}
	syn := f.syntax[d]
	switch d.Kind {
	case semantic.KindClass:
		if syn.super != nil {
			d.Super = declaredAs(p.valueDecl(f, syn.super))
			if d.Super == nil {
				d.Super = p.annotationType(f, syn.super)
			}
		}
	case semantic.KindVariable, semantic.KindField:
		if syn.typ != nil {
			d.Type = p.annotationType(f, syn.typ)
		} else if syn.value != nil {
			d.Type = p.inferType(f, syn.value)
		}
	case semantic.KindGetter:
		d.Type = p.returnType(d)
	}
	p.leave(d)
	p.typed[d] = true
	return d.Type
}

// returnType is the annotated return type of a function, getter or method,
// or the type of its only returned expression.
func (p *Program) returnType(d *semantic.Decl) *semantic.Type {
	f, ok := p.owner[d]
	if !ok {
		return nil
	}
	syn := f.syntax[d]
	if syn.typ != nil {
		return p.annotationType(f, syn.typ)
	}
	key := nameKey{f, "return " + string(d.ID)}
	if syn.body == nil || !p.enter(key) {
		return nil
	}
	defer p.leave(key)
	if syn.body.Type() != "statement_block" {
		return p.inferType(f, syn.body)
	}
	var only *sitter.Node
	for i := 0; i < int(syn.body.NamedChildCount()); i++ {
		stmt := syn.body.NamedChild(i)
		if stmt.Type() != "return_statement" {
			continue
		}
		if only != nil {
			return nil
		}
		only = stmt
	}
	if only == nil {
		return nil
	}
	if value := firstNamed(only); value != nil {
		return p.inferType(f, value)
	}
	return nil
}

// annotationType resolves a type annotation to the symbol it names.
func (p *Program) annotationType(f *File, n *sitter.Node) *semantic.Type {
	switch n.Type() {
	case "type_annotation", "parenthesized_type", "readonly_type":
		if inner := firstNamed(n); inner != nil {
			return p.annotationType(f, inner)
		}
	case "generic_type":
		if name := n.ChildByFieldName("name"); name != nil {
			return p.annotationType(f, name)
		}
	case "type_identifier", "identifier":
		name := f.text(n)
		if alias, ok := f.aliases[name]; ok && alias != nil {
			key := nameKey{f, "type " + name}
			if !p.enter(key) {
				return nil
			}
			defer p.leave(key)
			return p.annotationType(f, alias)
		}
		return declaredAs(p.lookupFile(f, name))
	case "nested_type_identifier":
		module := n.ChildByFieldName("module")
		name := n.ChildByFieldName("name")
		if module == nil || name == nil || module.Type() != "identifier" {
			return nil
		}
		return declaredAs(p.memberOf(p.lookupFile(f, f.text(module)), f.text(name)))
	}
	return nil
}

// inferType computes the type of an initializer from its syntax: a
// constructor names its class, a call takes its type from the root of the
// callee, and an identifier or member aliases its declaration.
func (p *Program) inferType(f *File, n *sitter.Node) *semantic.Type {
	switch n.Type() {
	case "new_expression":
		return declaredAs(p.valueDecl(f, n.ChildByFieldName("constructor")))
	case "call_expression":
		return p.calleeType(p.calleeRoot(f, n.ChildByFieldName("function")))
	case "identifier", "member_expression":
		return p.declType(p.valueDecl(f, n))
	case "as_expression":
		if t := n.NamedChild(1); t != nil {
			if typ := p.annotationType(f, t); typ != nil {
				return typ
			}
		}
		if inner := firstNamed(n); inner != nil {
			return p.inferType(f, inner)
		}
	case "parenthesized_expression", "non_null_expression", "satisfies_expression":
		if inner := firstNamed(n); inner != nil {
			return p.inferType(f, inner)
		}
	}
	return nil
}

// calleeType is the type produced by calling through root.
func (p *Program) calleeType(root *semantic.Decl) *semantic.Type {
	if root == nil {
		return nil
	}
	switch root.Kind {
	case semantic.KindExternal:
		return declaredAs(root)
	case semantic.KindFunction, semantic.KindMethod:
		return p.returnType(root)
	case semantic.KindVariable, semantic.KindField, semantic.KindGetter:
		return p.declType(root)
	}
	return nil
}

// valueDecl resolves an identifier or a member chain through namespaces
// and classes at file level.
func (p *Program) valueDecl(f *File, n *sitter.Node) *semantic.Decl {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return p.lookupFile(f, f.text(n))
	case "member_expression":
		obj := n.ChildByFieldName("object")
		prop := n.ChildByFieldName("property")
		if obj == nil || prop == nil {
			return nil
		}
		return p.memberOf(p.valueDecl(f, obj), f.text(prop))
	case "parenthesized_expression", "non_null_expression":
		if inner := firstNamed(n); inner != nil {
			return p.valueDecl(f, inner)
		}
	}
	return nil
}

// calleeRoot returns the declaration a callee chain starts from:
// Provider in Provider.autoDispose.family, items in Repo.items.
func (p *Program) calleeRoot(f *File, n *sitter.Node) *semantic.Decl {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return p.lookupFile(f, f.text(n))
	case "member_expression":
		if d := p.valueDecl(f, n); d != nil {
			return d
		}
		return p.calleeRoot(f, n.ChildByFieldName("object"))
	case "call_expression":
		return p.calleeRoot(f, n.ChildByFieldName("function"))
	case "parenthesized_expression", "non_null_expression":
		if inner := firstNamed(n); inner != nil {
			return p.calleeRoot(f, inner)
		}
	}
	return nil
}

// superOf returns the supertype of a class.
func (p *Program) superOf(cls *semantic.Decl) *semantic.Type {
	p.declType(cls)
	return cls.Super
}

// frameworkBase returns the first framework class in cls's supertype chain.
func (p *Program) frameworkBase(cls *semantic.Decl) *semantic.Decl {
	for depth := 0; cls != nil && depth < maxSuperDepth; depth++ {
		super := p.superOf(cls)
		if super == nil || super.Decl == nil {
			return nil
		}
		if p.fw.OwnsDecl(super.Decl) {
			return super.Decl
		}
		if super.Decl.Kind != semantic.KindClass {
			return nil
		}
		cls = super.Decl
	}
	return nil
}

// thisMember resolves this.name inside cls: a declared member of cls or a
// project superclass, or a member inherited from a framework class.
func (p *Program) thisMember(cls *semantic.Decl, name string) (*semantic.Decl, *semantic.Type) {
	for depth := 0; cls != nil && depth < maxSuperDepth; depth++ {
		if m := cls.Member(name); m != nil {
			return m, p.declType(m)
		}
		super := p.superOf(cls)
		if super == nil || super.Decl == nil {
			return nil, nil
		}
		if p.fw.OwnsDecl(super.Decl) {
			d := p.inherited(super.Decl, name)
			return d, &semantic.Type{Name: name, Decl: d}
		}
		if super.Decl.Kind != semantic.KindClass {
			return nil, nil
		}
		cls = super.Decl
	}
	return nil, nil
}

// inherited interns the member name of the framework class base. Its
// declaration is unknown, so it is modelled as a field of the framework.
func (p *Program) inherited(base *semantic.Decl, name string) *semantic.Decl {
	id := semantic.ID(base.Package + "#" + base.Name + "." + name)
	if d, ok := p.externals[id]; ok {
		return d
	}
	d := &semantic.Decl{ID: id, Name: name, Kind: semantic.KindField, Package: base.Package, Enclosing: base}
	p.externals[id] = d
	return d
}

// refType is the type given to unannotated parameters that receive the
// framework's ref object.
func (p *Program) refType(pkg string) *semantic.Type {
	return declaredAs(p.external(pkg, "Ref"))
}

func declaredAs(d *semantic.Decl) *semantic.Type {
	if d == nil {
		return nil
	}
	switch d.Kind {
	case semantic.KindClass, semantic.KindExternal:
		return &semantic.Type{Name: d.Name, Decl: d}
	}
	return nil
}
