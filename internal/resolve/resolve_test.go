package resolve

import (
	"errors"
	"testing"

	"github.com/jward/provgraph/internal/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fw = semantic.NewFramework("riverpod")

	providerType = &semantic.Type{
		Name: "Provider",
		Decl: &semantic.Decl{ID: "riverpod#Provider", Name: "Provider", Kind: semantic.KindExternal, Package: "riverpod"},
	}

	counter = &semantic.Decl{ID: "lib/counter.ts#counter", Name: "counter", Kind: semantic.KindVariable, Type: providerType}
	family  = &semantic.Decl{ID: "lib/todo.ts#todoFamily", Name: "todoFamily", Kind: semantic.KindVariable, Type: providerType}

	repo     = &semantic.Decl{ID: "lib/repo.ts#Repo", Name: "Repo", Kind: semantic.KindClass}
	repoItem = &semantic.Decl{ID: "lib/repo.ts#Repo.items", Name: "items", Kind: semantic.KindField, Static: true, Enclosing: repo, Type: providerType}
	repoGet  = &semantic.Decl{ID: "lib/repo.ts#Repo.byId", Name: "byId", Kind: semantic.KindGetter, Static: true, Enclosing: repo, Type: providerType}

	nsAlias = &semantic.Decl{ID: "lib/home.ts#p", Name: "p", Kind: semantic.KindNamespace, Module: "lib/counter.ts"}

	// future is a framework property exposed on every provider.
	future = &semantic.Decl{ID: "riverpod#future", Name: "future", Kind: semantic.KindGetter, Package: "riverpod"}
)

func ident(d *semantic.Decl) *semantic.Ident {
	return &semantic.Ident{Name: d.Name, Decl: d, Type: d.Type}
}

func num(text string) semantic.Node {
	return &semantic.Other{Kind: "number", Text: text}
}

func TestResolve_Shapes(t *testing.T) {
	r := New(fw)

	tests := []struct {
		name string
		expr semantic.Node
		want *semantic.Decl
	}{
		{"bare identifier", ident(counter), counter},
		{
			"family call",
			&semantic.Call{Callee: ident(family), Args: []semantic.Arg{{Value: num("42")}}},
			family,
		},
		{
			"modifier through qualified identifier",
			&semantic.Qualified{Prefix: ident(counter), Member: &semantic.Ident{Name: "notifier"}},
			counter,
		},
		{
			"static member through class name",
			&semantic.Qualified{Prefix: ident(repo), Member: ident(repoItem)},
			repoItem,
		},
		{
			"static getter through class name",
			&semantic.Qualified{Prefix: ident(repo), Member: ident(repoGet)},
			repoGet,
		},
		{
			"provider through namespace alias",
			&semantic.Qualified{Prefix: ident(nsAlias), Member: ident(counter)},
			counter,
		},
		{
			"framework property on family call",
			&semantic.Member{
				Target: &semantic.Call{Callee: ident(family), Args: []semantic.Arg{{Value: num("1")}}},
				Name:   "future",
				Decl:   future,
			},
			family,
		},
		{
			"computed family collection",
			&semantic.Member{
				Target: &semantic.Call{Callee: &semantic.Ident{Name: "makeRepo"}},
				Name:   "byId",
				Decl:   repoGet,
			},
			repoGet,
		},
		{
			"select chain",
			&semantic.MethodCall{
				Receiver: ident(counter),
				Name:     "select",
				Args:     []semantic.Arg{{Value: &semantic.Closure{}}},
			},
			counter,
		},
		{
			"family then select",
			&semantic.MethodCall{
				Receiver: &semantic.Call{Callee: ident(family), Args: []semantic.Arg{{Value: num("7")}}},
				Name:     "select",
			},
			family,
		},
		{
			"static family invoked through class",
			&semantic.Call{Callee: &semantic.Qualified{Prefix: ident(repo), Member: ident(repoItem)}},
			repoItem,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.expr)
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}
}

func TestResolve_FamilyArgumentsCarryNoIdentity(t *testing.T) {
	r := New(fw)
	a, err := r.Resolve(&semantic.Call{Callee: ident(family), Args: []semantic.Arg{{Value: num("42")}}})
	require.NoError(t, err)
	b, err := r.Resolve(&semantic.Call{Callee: ident(family), Args: []semantic.Arg{{Value: num("7")}}})
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestResolve_ModifierChainMatchesDirect(t *testing.T) {
	r := New(fw)
	direct, err := r.Resolve(ident(counter))
	require.NoError(t, err)
	chained, err := r.Resolve(&semantic.MethodCall{
		Receiver: ident(counter),
		Name:     "select",
		Args:     []semantic.Arg{{Value: &semantic.Ident{Name: "f"}}},
	})
	require.NoError(t, err)
	assert.Same(t, direct, chained)
}

func TestResolve_PackageImports(t *testing.T) {
	r := New(fw)
	shared := &semantic.Decl{ID: "@app/state#shared", Name: "shared", Kind: semantic.KindExternal, Package: "@app/state"}
	ns := &semantic.Decl{ID: "a.ts#lib", Name: "lib", Kind: semantic.KindNamespace, Module: "@app/lib", Package: "@app/lib"}
	items := &semantic.Decl{ID: "@app/lib#items", Name: "items", Kind: semantic.KindExternal, Package: "@app/lib"}

	got, err := r.Resolve(ident(shared))
	require.NoError(t, err)
	assert.Same(t, shared, got)

	got, err = r.Resolve(&semantic.Call{Callee: ident(shared), Args: []semantic.Arg{{Value: num("1")}}})
	require.NoError(t, err)
	assert.Same(t, shared, got)

	got, err = r.Resolve(&semantic.Qualified{Prefix: ident(ns), Member: ident(items)})
	require.NoError(t, err)
	assert.Same(t, items, got)

	// Framework symbols are never providers.
	_, err = r.Resolve(ident(providerType.Decl))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestResolve_Unsupported(t *testing.T) {
	r := New(fw)
	fn := &semantic.Decl{ID: "a.ts#helper", Name: "helper", Kind: semantic.KindFunction}
	local := &semantic.Decl{ID: "a.ts#build.p", Name: "p", Kind: semantic.KindLocal}

	tests := []struct {
		name  string
		expr  semantic.Node
		shape string
	}{
		{"numeric literal", &semantic.Other{Kind: "number", Text: "42", At: semantic.Pos{File: "a.ts", Line: 3, Col: 14}}, "number"},
		{"unresolved identifier", &semantic.Ident{Name: "missing"}, "identifier"},
		{"function reference", ident(fn), "identifier"},
		{"local alias", ident(local), "identifier"},
		{"closure", &semantic.Closure{}, "closure"},
		{"constructor call", &semantic.Call{Callee: ident(repo), New: true}, "constructor call"},
		{"class name", ident(repo), "identifier"},
		{"lowercase qualified with non provider prefix", &semantic.Qualified{Prefix: &semantic.Ident{Name: "obj"}, Member: ident(counter)}, "identifier"},
		{"nil", nil, "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.expr)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrUnsupported))

			var ue *UnsupportedError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tt.shape, ue.Shape)
		})
	}
}

func TestUnsupportedError_Message(t *testing.T) {
	_, err := New(fw).Resolve(&semantic.Other{Kind: "number", Text: "42", At: semantic.Pos{File: "a.ts", Line: 3, Col: 14}})
	require.Error(t, err)
	assert.Equal(t, `a.ts:3:14: unsupported expression "42" (number)`, err.Error())
}
