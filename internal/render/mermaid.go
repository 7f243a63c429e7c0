package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jward/provgraph/internal/graph"
)

var mermaidArrows = map[graph.Access]string{
	graph.Watch:  "==>",
	graph.Listen: "-->",
	graph.Read:   "-.->",
}

// Mermaid writes s as a Mermaid flowchart. Consumers are circles,
// providers are subroutine boxes, providers sharing a class are grouped in
// a subgraph, and arrows run from a dependency to its dependent.
func Mermaid(w io.Writer, s graph.Snapshot) error {
	bw := bufio.NewWriter(w)
	l := newLayout(s)

	fmt.Fprintln(bw, "flowchart TB")
	writeMermaidLegend(bw)

	for _, v := range l.loose {
		writeMermaidNode(bw, "  ", l.ids[v.ID], v)
	}
	for i, g := range l.groups {
		fmt.Fprintf(bw, "  subgraph group_%d [%s]\n", i+1, mermaidLabel(g.class))
		for _, v := range g.nodes {
			writeMermaidNode(bw, "    ", l.ids[v.ID], v)
		}
		fmt.Fprintln(bw, "  end")
	}
	for _, e := range l.edges(s) {
		fmt.Fprintf(bw, "  %s %s %s\n", e.from, mermaidArrows[e.access], e.to)
	}
	return bw.Flush()
}

func writeMermaidLegend(w io.Writer) {
	fmt.Fprintln(w, "  subgraph legend [Legend]")
	fmt.Fprintln(w, "    direction LR")
	fmt.Fprintln(w, "    legend_consumer((consumer))")
	fmt.Fprintln(w, "    legend_provider[[provider]]")
	for _, a := range graph.Accesses {
		fmt.Fprintf(w, "    legend_%s_from[dependency] %s|%s| legend_%s_to[dependent]\n",
			a, mermaidArrows[a], a, a)
	}
	fmt.Fprintln(w, "  end")
}

func writeMermaidNode(w io.Writer, indent, id string, v graph.NodeView) {
	label := mermaidLabel(v.Name)
	if v.Kind == graph.KindConsumer {
		fmt.Fprintf(w, "%s%s((%s))\n", indent, id, label)
		return
	}
	fmt.Fprintf(w, "%s%s[[%s]]\n", indent, id, label)
}

// mermaidLabel quotes a label, escaping characters Mermaid would parse.
func mermaidLabel(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "#quot;") + `"`
}
