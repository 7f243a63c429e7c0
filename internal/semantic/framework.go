package semantic

import "strings"

// DefaultPackages are the package specifiers of the Riverpod family.
var DefaultPackages = []string{"riverpod", "flutter_riverpod", "hooks_riverpod"}

// Framework answers whether a symbol belongs to the target framework's
// packages.
type Framework struct {
	packages []string
}

// NewFramework returns a Framework owning the given package specifiers and
// their sub-paths.
func NewFramework(packages ...string) *Framework {
	f := &Framework{}
	for _, p := range packages {
		p = strings.TrimSuffix(strings.TrimSpace(p), "/")
		if p != "" {
			f.packages = append(f.packages, p)
		}
	}
	return f
}

// Packages returns the configured specifiers.
func (f *Framework) Packages() []string {
	return append([]string(nil), f.packages...)
}

// OwnsPackage reports whether the package specifier pkg is a framework
// package.
func (f *Framework) OwnsPackage(pkg string) bool {
	if pkg == "" {
		return false
	}
	for _, p := range f.packages {
		if pkg == p || strings.HasPrefix(pkg, p+"/") {
			return true
		}
	}
	return false
}

// OwnsDecl reports whether d is declared by a framework package.
func (f *Framework) OwnsDecl(d *Decl) bool {
	return d != nil && f.OwnsPackage(d.Package)
}

// Owns reports whether the type t resolves to a framework symbol.
func (f *Framework) Owns(t *Type) bool {
	return t != nil && f.OwnsDecl(t.Decl)
}
