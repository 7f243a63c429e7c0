package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/provgraph/internal/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot() graph.Snapshot {
	return graph.Snapshot{
		Providers: []graph.NodeView{
			{ID: "lib/p.ts#counter", Kind: graph.KindProvider, Name: "counter", Member: "counter", File: "lib/p.ts", Line: 3},
			{ID: "lib/p.ts#total", Kind: graph.KindProvider, Name: "total", Member: "total", File: "lib/p.ts", Line: 5,
				Watch:  []string{"lib/p.ts#counter", "lib/repo.ts#Repo.items", "lib/p.ts#counter"},
				Listen: []string{"lib/p.ts#counter"}},
			{ID: "lib/repo.ts#Repo.items", Kind: graph.KindProvider, Name: "Repo.items", Member: "items", Class: "Repo",
				File: "lib/repo.ts", Line: 9},
		},
		Consumers: []graph.NodeView{
			{ID: "ui/home.tsx#Home", Kind: graph.KindConsumer, Name: "Home", Member: "Home", File: "ui/home.tsx", Line: 12,
				Watch: []string{"lib/p.ts#total"}, Read: []string{"lib/p.ts#counter"}},
		},
	}
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"nodes", "edges", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestMigrate_ForeignKeysOn(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.db.Exec("INSERT INTO edges (owner_id, target_id, access, ordinal) VALUES ('nope', 'x', 'watch', 0)")
	assert.Error(t, err)
}

// =============================================================================
// Metadata
// =============================================================================

func TestMetadata_Unset(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	v, err := s.GetMetadata("missing")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestMetadata_SetAndReplace(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SetMetadata("k", "one"))
	require.NoError(t, s.SetMetadata("k", "two"))
	v, err := s.GetMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

// =============================================================================
// Snapshots
// =============================================================================

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	want := testSnapshot()
	require.NoError(t, s.SaveSnapshot(want, "/src/app"))

	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSnapshot_DuplicateEdgesPreserved(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(testSnapshot(), "/src/app"))

	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, got.Providers, 3)
	assert.Equal(t, []string{"lib/p.ts#counter", "lib/repo.ts#Repo.items", "lib/p.ts#counter"}, got.Providers[1].Watch)

	nodes, edges, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, 4, nodes)
	assert.Equal(t, 6, edges)
}

func TestSnapshot_SaveReplacesPrevious(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(testSnapshot(), "/first"))

	second := graph.Snapshot{
		Providers: []graph.NodeView{{ID: "a.ts#a", Kind: graph.KindProvider, Name: "a", Member: "a"}},
		Consumers: []graph.NodeView{},
	}
	require.NoError(t, s.SaveSnapshot(second, "/second"))

	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, second, got)

	root, err := s.GetMetadata(MetaRoot)
	require.NoError(t, err)
	assert.Equal(t, "/second", root)
}

func TestSnapshot_Empty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Empty(t, got.Providers)
	assert.Empty(t, got.Consumers)
	assert.NotNil(t, got.Providers)
}

func TestSnapshot_DanglingTargetKept(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	snap := graph.Snapshot{
		Providers: []graph.NodeView{{ID: "a.ts#b", Kind: graph.KindProvider, Name: "b", Member: "b", Read: []string{"gone.ts#x"}}},
		Consumers: []graph.NodeView{},
	}
	require.NoError(t, s.SaveSnapshot(snap, "/src"))

	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestSnapshot_DuplicateNodeIDFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(testSnapshot(), "/src"))

	bad := graph.Snapshot{Providers: []graph.NodeView{
		{ID: "a.ts#a", Kind: graph.KindProvider, Name: "a", Member: "a"},
		{ID: "a.ts#a", Kind: graph.KindProvider, Name: "a", Member: "a"},
	}}
	require.Error(t, s.SaveSnapshot(bad, "/src"))

	// The failed save rolls back, leaving the previous graph in place.
	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, testSnapshot(), got)
}

func TestSnapshot_Metadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, s.SaveSnapshot(testSnapshot(), "/src/app"))

	root, err := s.GetMetadata(MetaRoot)
	require.NoError(t, err)
	assert.Equal(t, "/src/app", root)

	at, err := s.GetMetadata(MetaAnalyzedAt)
	require.NoError(t, err)
	ts, err := time.Parse(time.RFC3339, at)
	require.NoError(t, err)
	assert.False(t, ts.Before(before.Truncate(time.Second)))

	hash, err := s.GetMetadata(MetaGraphHash)
	require.NoError(t, err)
	assert.Equal(t, SnapshotHash(testSnapshot()), hash)
}

// =============================================================================
// Hashing
// =============================================================================

func TestSnapshotHash_Deterministic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SnapshotHash(testSnapshot()), SnapshotHash(testSnapshot()))
	assert.Len(t, SnapshotHash(testSnapshot()), 64)
}

func TestSnapshotHash_IgnoresLines(t *testing.T) {
	t.Parallel()
	moved := testSnapshot()
	moved.Providers[0].Line = 40
	assert.Equal(t, SnapshotHash(testSnapshot()), SnapshotHash(moved))
}

func TestSnapshotHash_EdgesMatter(t *testing.T) {
	t.Parallel()
	changed := testSnapshot()
	changed.Consumers[0].Read = nil
	assert.NotEqual(t, SnapshotHash(testSnapshot()), SnapshotHash(changed))

	swapped := testSnapshot()
	swapped.Consumers[0].Watch, swapped.Consumers[0].Read = swapped.Consumers[0].Read, swapped.Consumers[0].Watch
	assert.NotEqual(t, SnapshotHash(testSnapshot()), SnapshotHash(swapped))
}
