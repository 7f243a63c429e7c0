// Package render writes graph snapshots as diagrams.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/jward/provgraph/internal/graph"
)

// Format names an output format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatD2      Format = "d2"
	FormatJSON    Format = "json"
)

var writers = map[Format]func(io.Writer, graph.Snapshot) error{
	FormatMermaid: Mermaid,
	FormatD2:      D2,
	FormatJSON:    JSON,
}

// Formats returns the supported format names, sorted.
func Formats() []string {
	out := make([]string, 0, len(writers))
	for f := range writers {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// ParseFormat validates a format name. The empty string means Mermaid.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatMermaid, nil
	}
	f := Format(strings.ToLower(s))
	if _, ok := writers[f]; !ok {
		return "", fmt.Errorf("unknown format %q (want one of %s)", s, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// Write renders s to w in format f.
func Write(w io.Writer, f Format, s graph.Snapshot) error {
	fn, ok := writers[f]
	if !ok {
		return fmt.Errorf("unknown format %q", f)
	}
	return fn(w, s)
}

// JSON writes s as indented JSON.
func JSON(w io.Writer, s graph.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// layout is the presentation order shared by the diagram writers:
// ungrouped nodes first, then one group per enclosing class in first-seen
// order. Same-named classes in different files get separate groups.
type layout struct {
	loose  []graph.NodeView
	groups []group
	ids    map[string]string // canonical ID -> diagram ID
	known  map[string]bool
}

type group struct {
	class string
	nodes []graph.NodeView
}

func newLayout(s graph.Snapshot) *layout {
	l := &layout{ids: make(map[string]string), known: make(map[string]bool)}
	used := make(map[string]bool)
	byClass := make(map[string]int)

	for _, v := range s.Nodes() {
		l.known[v.ID] = true
		l.ids[v.ID] = uniqueID(sanitizeID(v.ID), used)
		if v.Class == "" {
			l.loose = append(l.loose, v)
			continue
		}
		key := classKey(v)
		i, ok := byClass[key]
		if !ok {
			i = len(l.groups)
			byClass[key] = i
			l.groups = append(l.groups, group{class: v.Class})
		}
		l.groups[i].nodes = append(l.groups[i].nodes, v)
	}
	return l
}

// classKey identifies the enclosing class of a static member: its ID up to
// the member name, "lib/repo.ts#Repo" for "lib/repo.ts#Repo.items".
func classKey(v graph.NodeView) string {
	if i := strings.LastIndexByte(v.ID, '.'); i > strings.IndexByte(v.ID, '#') {
		return v.ID[:i]
	}
	return v.Class
}

// edge is one rendered arrow, from the dependency to the dependent.
type edge struct {
	from, to string
	access   graph.Access
}

// edges lists every edge of s whose target is present.
func (l *layout) edges(s graph.Snapshot) []edge {
	var out []edge
	for _, v := range s.Nodes() {
		for _, a := range graph.Accesses {
			for _, target := range v.Targets(a) {
				if !l.known[target] {
					continue
				}
				out = append(out, edge{from: l.ids[target], to: l.ids[v.ID], access: a})
			}
		}
	}
	return out
}

// sanitizeID maps a canonical ID to an identifier diagram languages accept.
func sanitizeID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
			continue
		}
		sb.WriteByte('_')
	}
	s := sb.String()
	if s == "" || unicode.IsDigit(rune(s[0])) {
		s = "n_" + s
	}
	return s
}

func uniqueID(base string, used map[string]bool) string {
	id := base
	for i := 2; used[id]; i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	used[id] = true
	return id
}
