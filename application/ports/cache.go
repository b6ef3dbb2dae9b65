package ports

import (
	"context"
	"time"

	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
)

// TreeCache is the local cache layer over node records. Misses are normal,
// not errors; reads never block on the network. Invalidation is push-based:
// the tree engine calls the Invalidate methods after every structural write.
type TreeCache interface {
	// GetNode returns a cached node record, with a hit flag
	GetNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, bool)

	// GetChildren returns a cached children list for a folder
	// (the root sentinel keys the top-level list)
	GetChildren(ctx context.Context, folderID valueobjects.NodeID) ([]*entities.Node, bool)

	// GetBreadcrumb returns a cached root-first ancestor path keyed by the
	// deepest node's id
	GetBreadcrumb(ctx context.Context, id valueobjects.NodeID) ([]*entities.Node, bool)

	// PutNode stores a node record
	PutNode(ctx context.Context, node *entities.Node)

	// PutChildren stores a children list
	PutChildren(ctx context.Context, folderID valueobjects.NodeID, nodes []*entities.Node)

	// PutBreadcrumb stores an ancestor path under the deepest node's id
	PutBreadcrumb(ctx context.Context, id valueobjects.NodeID, path []*entities.Node)

	// Invalidate drops the node entry and any breadcrumb containing the node
	Invalidate(ctx context.Context, id valueobjects.NodeID)

	// InvalidateChildren drops a folder's children list
	InvalidateChildren(ctx context.Context, folderID valueobjects.NodeID)
}

// DurableStore is the injectable durable cache tier: a per-session store
// that survives process restarts within the same client session. Keys are
// built by the cache layer's typed key builder, never ad hoc concatenation.
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}
