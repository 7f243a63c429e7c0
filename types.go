package provgraph

import (
	"github.com/jward/provgraph/internal/graph"
	"github.com/jward/provgraph/internal/resolve"
	"github.com/jward/provgraph/internal/store"
)

// Public type aliases for internal types used in the Engine API. These are
// Go type aliases (=), identical to the internal types at compile time.

type Store = store.Store
type Snapshot = graph.Snapshot
type NodeView = graph.NodeView

// Node kinds of a NodeView.
const (
	KindProvider = graph.KindProvider
	KindConsumer = graph.KindConsumer
)

// ErrUnsupported is matched by the error of a run aborted on an access
// argument that does not denote a provider.
var ErrUnsupported = resolve.ErrUnsupported

// OpenStore opens and migrates the snapshot database at path.
func OpenStore(path string) (*Store, error) {
	s, err := store.NewStore(path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
