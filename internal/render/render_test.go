package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/provgraph/internal/graph"
)

func sampleSnapshot() graph.Snapshot {
	return graph.Snapshot{
		Consumers: []graph.NodeView{
			{ID: "ui/home.tsx#Home", Kind: graph.KindConsumer, Name: "Home", Member: "Home",
				Watch: []string{"lib/p.ts#total"}, Read: []string{"lib/p.ts#counter"}},
		},
		Providers: []graph.NodeView{
			{ID: "lib/p.ts#counter", Kind: graph.KindProvider, Name: "counter", Member: "counter"},
			{ID: "lib/p.ts#total", Kind: graph.KindProvider, Name: "total", Member: "total",
				Watch: []string{"lib/p.ts#counter", "lib/repo.ts#Repo.items"}, Listen: []string{"lib/p.ts#counter"}},
			{ID: "lib/repo.ts#Repo.items", Kind: graph.KindProvider, Name: "Repo.items", Member: "items", Class: "Repo"},
		},
	}
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatMermaid, false},
		{"mermaid", FormatMermaid, false},
		{"D2", FormatD2, false},
		{"json", FormatJSON, false},
		{"svg", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "d2, json, mermaid")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, Write(&buf, Format("svg"), sampleSnapshot()))
	assert.Zero(t, buf.Len())
}

func TestMermaid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatMermaid, sampleSnapshot()))

	want := []string{
		"flowchart TB",
		"  subgraph legend [Legend]",
		"    direction LR",
		"    legend_consumer((consumer))",
		"    legend_provider[[provider]]",
		"    legend_watch_from[dependency] ==>|watch| legend_watch_to[dependent]",
		"    legend_listen_from[dependency] -->|listen| legend_listen_to[dependent]",
		"    legend_read_from[dependency] -.->|read| legend_read_to[dependent]",
		"  end",
		`  ui_home_tsx_Home(("Home"))`,
		`  lib_p_ts_counter[["counter"]]`,
		`  lib_p_ts_total[["total"]]`,
		`  subgraph group_1 ["Repo"]`,
		`    lib_repo_ts_Repo_items[["Repo.items"]]`,
		"  end",
		"  lib_p_ts_total ==> ui_home_tsx_Home",
		"  lib_p_ts_counter -.-> ui_home_tsx_Home",
		"  lib_p_ts_counter ==> lib_p_ts_total",
		"  lib_repo_ts_Repo_items ==> lib_p_ts_total",
		"  lib_p_ts_counter --> lib_p_ts_total",
	}
	assert.Equal(t, want, lines(buf.String()))
}

func TestMermaid_DuplicateEdgesKept(t *testing.T) {
	s := graph.Snapshot{Providers: []graph.NodeView{
		{ID: "a.ts#a", Kind: graph.KindProvider, Name: "a"},
		{ID: "a.ts#b", Kind: graph.KindProvider, Name: "b", Watch: []string{"a.ts#a", "a.ts#a"}},
	}}
	var buf bytes.Buffer
	require.NoError(t, Mermaid(&buf, s))
	assert.Equal(t, 2, strings.Count(buf.String(), "a_ts_a ==> a_ts_b"))
}

func TestMermaid_SkipsMissingTargets(t *testing.T) {
	s := graph.Snapshot{Providers: []graph.NodeView{
		{ID: "a.ts#b", Kind: graph.KindProvider, Name: "b", Watch: []string{"gone.ts#x"}},
	}}
	var buf bytes.Buffer
	require.NoError(t, Mermaid(&buf, s))
	assert.NotContains(t, buf.String(), "gone")
}

func TestMermaid_SameNameDifferentFiles(t *testing.T) {
	s := graph.Snapshot{Providers: []graph.NodeView{
		{ID: "a.ts#counter", Kind: graph.KindProvider, Name: "counter"},
		{ID: "b.ts#counter", Kind: graph.KindProvider, Name: "counter", Read: []string{"a.ts#counter"}},
	}}
	var buf bytes.Buffer
	require.NoError(t, Mermaid(&buf, s))
	out := buf.String()
	assert.Contains(t, out, `a_ts_counter[["counter"]]`)
	assert.Contains(t, out, `b_ts_counter[["counter"]]`)
	assert.Contains(t, out, "a_ts_counter -.-> b_ts_counter")
}

func TestMermaid_EscapesQuotes(t *testing.T) {
	s := graph.Snapshot{Providers: []graph.NodeView{{ID: "a.ts#q", Kind: graph.KindProvider, Name: `say "hi"`}}}
	var buf bytes.Buffer
	require.NoError(t, Mermaid(&buf, s))
	assert.Contains(t, buf.String(), `a_ts_q[["say #quot;hi#quot;"]]`)
}

func TestLayout_GroupsByClassIdentity(t *testing.T) {
	s := graph.Snapshot{Providers: []graph.NodeView{
		{ID: "a.ts#A.x", Kind: graph.KindProvider, Name: "A.x", Member: "x", Class: "A"},
		{ID: "b.ts#A.y", Kind: graph.KindProvider, Name: "A.y", Member: "y", Class: "A"},
		{ID: "a.ts#A.z", Kind: graph.KindProvider, Name: "A.z", Member: "z", Class: "A"},
	}}
	l := newLayout(s)
	require.Len(t, l.groups, 2)
	assert.Equal(t, []string{"a.ts#A.x", "a.ts#A.z"}, []string{l.groups[0].nodes[0].ID, l.groups[0].nodes[1].ID})
	assert.Len(t, l.groups[1].nodes, 1)
	assert.Equal(t, "b.ts#A.y", l.groups[1].nodes[0].ID)

	var buf bytes.Buffer
	require.NoError(t, Mermaid(&buf, s))
	assert.Equal(t, 2, strings.Count(buf.String(), `["A"]`))

	assert.Equal(t, "lib/repo.ts#Repo", classKey(graph.NodeView{ID: "lib/repo.ts#Repo.items", Class: "Repo"}))
}

func TestD2(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatD2, sampleSnapshot()))

	want := []string{
		"direction: down",
		`ui_home_tsx_Home: "Home" {shape: circle}`,
		`lib_p_ts_counter: "counter" {shape: rectangle}`,
		`lib_p_ts_total: "total" {shape: rectangle}`,
		"group_1: {",
		`  label: "Repo"`,
		`  lib_repo_ts_Repo_items: "Repo.items" {shape: rectangle}`,
		"}",
		"lib_p_ts_total -> ui_home_tsx_Home: watch {style.stroke-width: 3}",
		"lib_p_ts_counter -> ui_home_tsx_Home: read {style.stroke-dash: 3}",
		"lib_p_ts_counter -> lib_p_ts_total: watch {style.stroke-width: 3}",
		"group_1.lib_repo_ts_Repo_items -> lib_p_ts_total: watch {style.stroke-width: 3}",
		"lib_p_ts_counter -> lib_p_ts_total: listen {style.stroke-width: 1}",
	}
	assert.Equal(t, want, lines(buf.String()))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleSnapshot()))

	var got graph.Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleSnapshot(), got)
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"providers\""))
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "lib_p_ts_Repo_items", sanitizeID("lib/p.ts#Repo.items"))
	assert.Equal(t, "n_1x", sanitizeID("1x"))
	assert.Equal(t, "n_", sanitizeID(""))

	used := map[string]bool{}
	assert.Equal(t, "a_b", uniqueID("a_b", used))
	assert.Equal(t, "a_b_2", uniqueID("a_b", used))
	assert.Equal(t, "a_b_3", uniqueID("a_b", used))
}
