// Package graph holds the provider dependency graph: one node per canonical
// declaration, accumulating watch/listen/read edges from every call site
// that references it.
package graph

import (
	"fmt"

	"github.com/jward/provgraph/internal/semantic"
)

// Access is one of the three provider access operations.
type Access uint8

const (
	Watch Access = iota + 1
	Listen
	Read
)

// Accesses lists the operations in rendering order.
var Accesses = []Access{Watch, Listen, Read}

func (a Access) String() string {
	switch a {
	case Watch:
		return "watch"
	case Listen:
		return "listen"
	case Read:
		return "read"
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

// ParseAccess maps an access method name to its Access.
func ParseAccess(name string) (Access, bool) {
	switch name {
	case "watch":
		return Watch, true
	case "listen":
		return Listen, true
	case "read":
		return Read, true
	}
	return 0, false
}

// Edges are the outgoing dependencies of a node, in discovery order.
// Duplicates are kept: two call sites produce two edges.
type Edges struct {
	Watch  []*ProviderNode
	Listen []*ProviderNode
	Read   []*ProviderNode
}

// Add appends an edge of kind a to target.
func (e *Edges) Add(a Access, target *ProviderNode) {
	switch a {
	case Watch:
		e.Watch = append(e.Watch, target)
	case Listen:
		e.Listen = append(e.Listen, target)
	case Read:
		e.Read = append(e.Read, target)
	default:
		panic(fmt.Sprintf("graph: unknown access %d", a))
	}
}

// List returns the edges of kind a.
func (e *Edges) List(a Access) []*ProviderNode {
	switch a {
	case Watch:
		return e.Watch
	case Listen:
		return e.Listen
	case Read:
		return e.Read
	}
	return nil
}

// Len returns the total number of edges.
func (e *Edges) Len() int {
	return len(e.Watch) + len(e.Listen) + len(e.Read)
}

// ProviderNode is a provider declaration.
type ProviderNode struct {
	ID    semantic.ID
	Name  string // member name
	Class string // enclosing class of a static member, or ""
	Pos   semantic.Pos
	Edges
}

// DisplayName is "Class.name" for static members, else the bare name.
func (n *ProviderNode) DisplayName() string {
	if n.Class != "" {
		return n.Class + "." + n.Name
	}
	return n.Name
}

// ConsumerNode is a consumer component declaration. Its edges always point
// at providers; consumers are never edge targets.
type ConsumerNode struct {
	ID   semantic.ID
	Name string
	Pos  semantic.Pos
	Edges
}

// Graph is the memoized registry of nodes. It is owned by a single
// analysis run and is not safe for concurrent mutation.
type Graph struct {
	providers map[semantic.ID]*ProviderNode
	consumers map[semantic.ID]*ConsumerNode

	providerOrder []*ProviderNode
	consumerOrder []*ConsumerNode
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		providers: make(map[semantic.ID]*ProviderNode),
		consumers: make(map[semantic.ID]*ConsumerNode),
	}
}

// Provider returns the node for d, creating it on first use. Repeated calls
// with the same declaration identity return the same node.
func (g *Graph) Provider(d *semantic.Decl) *ProviderNode {
	if n, ok := g.providers[d.ID]; ok {
		return n
	}
	n := &ProviderNode{
		ID:    d.ID,
		Name:  d.Name,
		Class: d.ClassName(),
		Pos:   d.Pos,
	}
	g.providers[d.ID] = n
	g.providerOrder = append(g.providerOrder, n)
	return n
}

// Consumer returns the node for d, creating it on first use.
func (g *Graph) Consumer(d *semantic.Decl) *ConsumerNode {
	if n, ok := g.consumers[d.ID]; ok {
		return n
	}
	n := &ConsumerNode{ID: d.ID, Name: d.Name, Pos: d.Pos}
	g.consumers[d.ID] = n
	g.consumerOrder = append(g.consumerOrder, n)
	return n
}

// LookupProvider returns the provider node with the given identity.
func (g *Graph) LookupProvider(id semantic.ID) (*ProviderNode, bool) {
	n, ok := g.providers[id]
	return n, ok
}

// LookupConsumer returns the consumer node with the given identity.
func (g *Graph) LookupConsumer(id semantic.ID) (*ConsumerNode, bool) {
	n, ok := g.consumers[id]
	return n, ok
}

// Providers returns provider nodes in creation order.
func (g *Graph) Providers() []*ProviderNode {
	return append([]*ProviderNode(nil), g.providerOrder...)
}

// Consumers returns consumer nodes in creation order.
func (g *Graph) Consumers() []*ConsumerNode {
	return append([]*ConsumerNode(nil), g.consumerOrder...)
}

// EdgeCount returns the number of edges across all nodes.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, n := range g.providerOrder {
		total += n.Len()
	}
	for _, n := range g.consumerOrder {
		total += n.Len()
	}
	return total
}
