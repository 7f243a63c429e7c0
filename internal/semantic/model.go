// Package semantic is the resolved program model the analysis runs on.
// A front-end (see internal/frontend) produces Units whose expressions
// already carry the declarations they reference and their static types;
// the classifier, resolver and visitor never look at source text.
package semantic

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ID is the canonical identity of a declaration. Two references to the same
// declaration always carry the same ID, however they are spelled.
type ID string

// Kind classifies a declaration.
type Kind uint8

const (
	KindVariable Kind = iota + 1
	KindField
	KindGetter
	KindFunction
	KindClass
	KindMethod
	KindParameter
	KindLocal
	KindNamespace
	KindExternal
)

var kindNames = map[Kind]string{
	KindVariable:  "variable",
	KindField:     "field",
	KindGetter:    "getter",
	KindFunction:  "function",
	KindClass:     "class",
	KindMethod:    "method",
	KindParameter: "parameter",
	KindLocal:     "local",
	KindNamespace: "namespace",
	KindExternal:  "external",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Pos is a 1-based source position.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Decl is a declaration site.
type Decl struct {
	ID     ID
	Name   string
	Kind   Kind
	Static bool

	// Enclosing is the class declaring a member, nil for top-level code.
	Enclosing *Decl

	// Package is the package specifier for declarations living outside the
	// analysed project. Empty for project declarations.
	Package string

	// Module is the module a namespace alias stands for.
	Module string

	Type  *Type // declared or inferred static type, nil if unknown
	Super *Type // supertype of a class

	// Body is the initializer of a variable or field, or the body of a
	// function, getter or method. Nil when the declaration has none.
	Body Node

	Members []*Decl

	Pos Pos
}

// IsAccessor reports whether d is a state accessor. An accessor is its own
// backing variable: a reference to it reads the declaration itself.
func (d *Decl) IsAccessor() bool {
	if d == nil {
		return false
	}
	switch d.Kind {
	case KindVariable, KindField, KindGetter:
		return true
	}
	return false
}

// IsStaticMember reports whether d is a static member of a class.
func (d *Decl) IsStaticMember() bool {
	return d != nil && d.Static && d.Enclosing != nil
}

// ClassName returns the enclosing class name of a static member, or "".
func (d *Decl) ClassName() string {
	if !d.IsStaticMember() {
		return ""
	}
	return d.Enclosing.Name
}

// DisplayName is "Class.member" for static members and the bare name
// otherwise.
func (d *Decl) DisplayName() string {
	if c := d.ClassName(); c != "" {
		return c + "." + d.Name
	}
	return d.Name
}

// Member looks up a class member by name.
func (d *Decl) Member(name string) *Decl {
	for _, m := range d.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (d *Decl) String() string {
	if d == nil {
		return "<nil>"
	}
	return string(d.ID)
}

// Type is a resolved static type: the symbol the type expression names.
type Type struct {
	Name string
	Decl *Decl
}

func (t *Type) String() string {
	if t == nil {
		return "<unknown>"
	}
	return t.Name
}

// Unit is one resolved source file: its top-level declarations followed by
// class-static members, in source order.
type Unit struct {
	Path  string
	Decls []*Decl
}

// UpperInitial reports whether s starts with an upper-case letter.
func UpperInitial(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsUpper(r)
}
