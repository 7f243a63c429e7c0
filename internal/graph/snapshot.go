package graph

// Node kinds in a Snapshot.
const (
	KindProvider = "provider"
	KindConsumer = "consumer"
)

// Snapshot is a read-only, serialisable view of a finished Graph. Renderers
// and the store work on snapshots, never on the live graph.
type Snapshot struct {
	Providers []NodeView `json:"providers"`
	Consumers []NodeView `json:"consumers"`
}

// NodeView describes one node. Edge lists hold target node IDs in discovery
// order; use Snapshot.Index to map them back to nodes.
type NodeView struct {
	ID     string   `json:"id"`
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	Member string   `json:"member"`
	Class  string   `json:"class,omitempty"`
	File   string   `json:"file,omitempty"`
	Line   int      `json:"line,omitempty"`
	Watch  []string `json:"watch,omitempty"`
	Listen []string `json:"listen,omitempty"`
	Read   []string `json:"read,omitempty"`
}

// Targets returns the edge list of kind a.
func (v *NodeView) Targets(a Access) []string {
	switch a {
	case Watch:
		return v.Watch
	case Listen:
		return v.Listen
	case Read:
		return v.Read
	}
	return nil
}

// SetTargets replaces the edge list of kind a.
func (v *NodeView) SetTargets(a Access, ids []string) {
	switch a {
	case Watch:
		v.Watch = ids
	case Listen:
		v.Listen = ids
	case Read:
		v.Read = ids
	}
}

// Snapshot captures the current graph.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Providers: make([]NodeView, 0, len(g.providerOrder)),
		Consumers: make([]NodeView, 0, len(g.consumerOrder)),
	}
	for _, n := range g.providerOrder {
		v := NodeView{
			ID:     string(n.ID),
			Kind:   KindProvider,
			Name:   n.DisplayName(),
			Member: n.Name,
			Class:  n.Class,
			File:   n.Pos.File,
			Line:   n.Pos.Line,
		}
		fillTargets(&v, &n.Edges)
		s.Providers = append(s.Providers, v)
	}
	for _, n := range g.consumerOrder {
		v := NodeView{
			ID:     string(n.ID),
			Kind:   KindConsumer,
			Name:   n.Name,
			Member: n.Name,
			File:   n.Pos.File,
			Line:   n.Pos.Line,
		}
		fillTargets(&v, &n.Edges)
		s.Consumers = append(s.Consumers, v)
	}
	return s
}

func fillTargets(v *NodeView, e *Edges) {
	for _, a := range Accesses {
		list := e.List(a)
		if len(list) == 0 {
			continue
		}
		ids := make([]string, len(list))
		for i, t := range list {
			ids[i] = string(t.ID)
		}
		v.SetTargets(a, ids)
	}
}

// Nodes returns consumers followed by providers.
func (s Snapshot) Nodes() []NodeView {
	out := make([]NodeView, 0, len(s.Consumers)+len(s.Providers))
	out = append(out, s.Consumers...)
	return append(out, s.Providers...)
}

// Index maps node IDs to their views.
func (s Snapshot) Index() map[string]NodeView {
	idx := make(map[string]NodeView, len(s.Providers)+len(s.Consumers))
	for _, v := range s.Nodes() {
		idx[v.ID] = v
	}
	return idx
}

// EdgeCount returns the number of edges in the snapshot.
func (s Snapshot) EdgeCount() int {
	total := 0
	for _, v := range s.Nodes() {
		total += len(v.Watch) + len(v.Listen) + len(v.Read)
	}
	return total
}
