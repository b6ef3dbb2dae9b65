package ports

import (
	"context"

	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
)

// NodeQuery filters a store query. A nil ParentID means "no parent filter";
// a pointer to the root sentinel selects top-level nodes.
type NodeQuery struct {
	ParentID *valueobjects.NodeID
	Kind     *entities.NodeKind
	Owner    string
	Limit    int
}

// NodeStore is the contract with the persistent record store. It is the
// external collaborator boundary: implementations live in infrastructure and
// the engine never assumes multi-record transactions from it.
type NodeStore interface {
	// Get retrieves a node by id, returning a NotFound error when missing
	Get(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error)

	// Query returns nodes matching the filter
	Query(ctx context.Context, q NodeQuery) ([]*entities.Node, error)

	// Insert persists a new node record
	Insert(ctx context.Context, node *entities.Node) error

	// Update overwrites an existing node record
	Update(ctx context.Context, node *entities.Node) error

	// Delete removes a node record
	Delete(ctx context.Context, id valueobjects.NodeID) error

	// Scan returns every node record; the reconcile path reads the whole
	// tree to recompute child sets from parent_id ground truth
	Scan(ctx context.Context) ([]*entities.Node, error)
}
