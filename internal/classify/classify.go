// Package classify partitions a unit's declarations into providers and
// consumer components.
package classify

import "github.com/jward/provgraph/internal/semantic"

// DefaultConsumerBases are the framework base classes of consumer
// components.
var DefaultConsumerBases = []string{
	"ConsumerWidget",
	"ConsumerStatefulWidget",
	"ConsumerState",
	"HookConsumerWidget",
	"StatefulHookConsumerWidget",
}

// Result holds the classified declarations in unit order.
type Result struct {
	Providers []*semantic.Decl
	Consumers []*semantic.Decl
}

// Classifier recognises providers and consumers.
type Classifier struct {
	fw    *semantic.Framework
	bases map[string]bool
}

// New returns a Classifier. An empty bases list means DefaultConsumerBases.
func New(fw *semantic.Framework, bases ...string) *Classifier {
	if len(bases) == 0 {
		bases = DefaultConsumerBases
	}
	c := &Classifier{fw: fw, bases: make(map[string]bool, len(bases))}
	for _, b := range bases {
		c.bases[b] = true
	}
	return c
}

// Classify scans the unit's declarations. Declarations without resolved
// type information are left out.
func (c *Classifier) Classify(u *semantic.Unit) Result {
	var r Result
	for _, d := range u.Decls {
		switch {
		case c.IsProvider(d):
			r.Providers = append(r.Providers, d)
		case c.IsConsumer(d):
			r.Consumers = append(r.Consumers, d)
		}
	}
	return r
}

// IsProvider reports whether d is a top-level or static variable-like
// declaration whose declared type is a framework symbol.
func (c *Classifier) IsProvider(d *semantic.Decl) bool {
	if !d.IsAccessor() {
		return false
	}
	if d.Enclosing != nil && !d.Static {
		return false
	}
	return c.fw.Owns(d.Type)
}

// IsConsumer reports whether d is a class extending one of the consumer
// bases declared by the framework.
func (c *Classifier) IsConsumer(d *semantic.Decl) bool {
	if d.Kind != semantic.KindClass || d.Super == nil || d.Super.Decl == nil {
		return false
	}
	return c.bases[d.Super.Decl.Name] && c.fw.Owns(d.Super)
}
