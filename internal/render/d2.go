package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jward/provgraph/internal/graph"
)

var d2EdgeStyles = map[graph.Access]string{
	graph.Watch:  "style.stroke-width: 3",
	graph.Listen: "style.stroke-width: 1",
	graph.Read:   "style.stroke-dash: 3",
}

// D2 writes s as a D2 diagram. Providers sharing a class are nested in a
// container named after the class.
func D2(w io.Writer, s graph.Snapshot) error {
	bw := bufio.NewWriter(w)
	l := newLayout(s)

	// Edges address grouped nodes through their container.
	paths := make(map[string]string, len(l.ids))
	for _, v := range l.loose {
		paths[l.ids[v.ID]] = l.ids[v.ID]
	}

	fmt.Fprintln(bw, "direction: down")
	for _, v := range l.loose {
		writeD2Node(bw, "", l.ids[v.ID], v)
	}
	for i, g := range l.groups {
		container := fmt.Sprintf("group_%d", i+1)
		fmt.Fprintf(bw, "%s: {\n", container)
		fmt.Fprintf(bw, "  label: %s\n", d2String(g.class))
		for _, v := range g.nodes {
			id := l.ids[v.ID]
			paths[id] = container + "." + id
			writeD2Node(bw, "  ", id, v)
		}
		fmt.Fprintln(bw, "}")
	}
	for _, e := range l.edges(s) {
		fmt.Fprintf(bw, "%s -> %s: %s {%s}\n", paths[e.from], paths[e.to], e.access, d2EdgeStyles[e.access])
	}
	return bw.Flush()
}

func writeD2Node(w io.Writer, indent, id string, v graph.NodeView) {
	shape := "rectangle"
	if v.Kind == graph.KindConsumer {
		shape = "circle"
	}
	fmt.Fprintf(w, "%s%s: %s {shape: %s}\n", indent, id, d2String(v.Name), shape)
}

func d2String(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
