package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jward/provgraph/internal/graph"
)

// Metadata keys written by SaveSnapshot.
const (
	MetaRoot       = "root"
	MetaAnalyzedAt = "analyzed_at"
	MetaGraphHash  = "graph_hash"
)

// SaveSnapshot replaces the stored graph with snap inside one transaction.
// root is the analysed directory; it is recorded alongside the analysis
// time and the snapshot hash.
func (s *Store) SaveSnapshot(snap graph.Snapshot, root string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM edges", "DELETE FROM nodes"} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("save snapshot: clear: %w", err)
		}
	}

	nodeStmt, err := tx.Prepare(
		"INSERT INTO nodes (id, kind, name, member, class, file, line, ordinal) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("save snapshot: prepare nodes: %w", err)
	}
	defer nodeStmt.Close()

	edgeStmt, err := tx.Prepare(
		"INSERT INTO edges (owner_id, target_id, access, ordinal) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("save snapshot: prepare edges: %w", err)
	}
	defer edgeStmt.Close()

	ordinal := 0
	for _, nodes := range [][]graph.NodeView{snap.Providers, snap.Consumers} {
		for _, v := range nodes {
			if _, err := nodeStmt.Exec(v.ID, v.Kind, v.Name, v.Member,
				nullString(v.Class), nullString(v.File), nullInt(v.Line), ordinal); err != nil {
				return fmt.Errorf("save snapshot: node %s: %w", v.ID, err)
			}
			ordinal++
		}
	}
	// Edges go in after every node so owners always exist.
	for _, nodes := range [][]graph.NodeView{snap.Providers, snap.Consumers} {
		for _, v := range nodes {
			for _, a := range graph.Accesses {
				for i, target := range v.Targets(a) {
					if _, err := edgeStmt.Exec(v.ID, target, a.String(), i); err != nil {
						return fmt.Errorf("save snapshot: edge %s -> %s: %w", v.ID, target, err)
					}
				}
			}
		}
	}

	for key, value := range map[string]string{
		MetaRoot:       root,
		MetaAnalyzedAt: time.Now().UTC().Format(time.RFC3339),
		MetaGraphHash:  SnapshotHash(snap),
	} {
		if err := setMetadata(tx, key, value); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot rebuilds the stored graph. Nodes and edges come back in the
// order they were saved.
func (s *Store) LoadSnapshot() (graph.Snapshot, error) {
	snap := graph.Snapshot{Providers: []graph.NodeView{}, Consumers: []graph.NodeView{}}

	rows, err := s.db.Query("SELECT id, kind, name, member, class, file, line FROM nodes ORDER BY ordinal")
	if err != nil {
		return snap, fmt.Errorf("load snapshot: nodes: %w", err)
	}
	type slot struct {
		kind  string
		index int
	}
	slots := make(map[string]slot)
	for rows.Next() {
		var v graph.NodeView
		var class, file sql.NullString
		var line sql.NullInt64
		if err := rows.Scan(&v.ID, &v.Kind, &v.Name, &v.Member, &class, &file, &line); err != nil {
			rows.Close()
			return snap, fmt.Errorf("load snapshot: scan node: %w", err)
		}
		v.Class, v.File, v.Line = class.String, file.String, int(line.Int64)
		switch v.Kind {
		case graph.KindProvider:
			slots[v.ID] = slot{v.Kind, len(snap.Providers)}
			snap.Providers = append(snap.Providers, v)
		case graph.KindConsumer:
			slots[v.ID] = slot{v.Kind, len(snap.Consumers)}
			snap.Consumers = append(snap.Consumers, v)
		default:
			rows.Close()
			return snap, fmt.Errorf("load snapshot: node %s has unknown kind %q", v.ID, v.Kind)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("load snapshot: nodes: %w", err)
	}

	rows, err = s.db.Query("SELECT owner_id, target_id, access FROM edges ORDER BY id")
	if err != nil {
		return snap, fmt.Errorf("load snapshot: edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var owner, target, access string
		if err := rows.Scan(&owner, &target, &access); err != nil {
			return snap, fmt.Errorf("load snapshot: scan edge: %w", err)
		}
		a, ok := graph.ParseAccess(access)
		if !ok {
			return snap, fmt.Errorf("load snapshot: edge %s -> %s has unknown access %q", owner, target, access)
		}
		sl, ok := slots[owner]
		if !ok {
			return snap, fmt.Errorf("load snapshot: edge owner %s not found", owner)
		}
		v := &snap.Providers
		if sl.kind == graph.KindConsumer {
			v = &snap.Consumers
		}
		node := &(*v)[sl.index]
		node.SetTargets(a, append(node.Targets(a), target))
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("load snapshot: edges: %w", err)
	}
	return snap, nil
}

// Counts returns the number of stored nodes and edges.
func (s *Store) Counts() (nodes, edges int, err error) {
	if err := s.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&nodes); err != nil {
		return 0, 0, fmt.Errorf("count nodes: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("count edges: %w", err)
	}
	return nodes, edges, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
