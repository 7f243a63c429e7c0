package store

import (
	"crypto/sha256"
	"fmt"

	"github.com/jward/provgraph/internal/graph"
)

// SnapshotHash computes a deterministic hash of a snapshot's nodes and
// edges. Node order and edge order are part of the identity; source line
// numbers are not, so moving a declaration within its file keeps the hash.
func SnapshotHash(snap graph.Snapshot) string {
	h := sha256.New()
	for _, nodes := range [][]graph.NodeView{snap.Providers, snap.Consumers} {
		for _, v := range nodes {
			fmt.Fprintf(h, "node:%s:%s:%s:%s:%s:%s\n", v.Kind, v.ID, v.Name, v.Member, v.Class, v.File)
			for _, a := range graph.Accesses {
				for _, target := range v.Targets(a) {
					fmt.Fprintf(h, "edge:%s:%s\n", a, target)
				}
			}
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
