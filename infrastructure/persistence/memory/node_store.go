// Package memory provides an in-memory NodeStore used by tests and
// local development. It mirrors the DynamoDB store's contract,
// including NotFound semantics and per-record (not transactional)
// writes, and can inject faults to exercise partial failure paths.
package memory

import (
	"context"
	"sort"
	"sync"

	"cardtree-backend/application/ports"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
	appErrors "cardtree-backend/pkg/errors"
)

// FaultFunc lets tests fail specific operations. It receives the
// operation name ("get", "insert", "update", "delete", "query", "scan")
// and the node id involved, and returns a non-nil error to inject.
type FaultFunc func(op string, id valueobjects.NodeID) error

// NodeStore is an in-memory ports.NodeStore
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[string]*entities.Node
	fault FaultFunc

	// write counters for assertions on write amplification
	Inserts int
	Updates int
	Deletes int
}

// NewNodeStore creates an empty in-memory store
func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[string]*entities.Node)}
}

// SetFault installs a fault injector; nil clears it
func (s *NodeStore) SetFault(fault FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fault
}

func (s *NodeStore) injected(op string, id valueobjects.NodeID) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, id)
}

// Get retrieves a node by id
func (s *NodeStore) Get(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.injected("get", id); err != nil {
		return nil, err
	}
	node, ok := s.nodes[id.String()]
	if !ok {
		return nil, appErrors.NewNotFoundError("node").WithDetail("node_id", id.String())
	}
	return clone(node), nil
}

// Query returns nodes matching the filter, ordered by id for
// deterministic tests
func (s *NodeStore) Query(ctx context.Context, q ports.NodeQuery) ([]*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.injected("query", valueobjects.NodeID{}); err != nil {
		return nil, err
	}

	var matched []*entities.Node
	for _, node := range s.nodes {
		if q.ParentID != nil && !node.ParentID().Equals(*q.ParentID) {
			continue
		}
		if q.Kind != nil && node.Kind() != *q.Kind {
			continue
		}
		if q.Owner != "" && node.Owner() != q.Owner {
			continue
		}
		matched = append(matched, clone(node))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID().String() < matched[j].ID().String()
	})
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Insert persists a new node record
func (s *NodeStore) Insert(ctx context.Context, node *entities.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("insert", node.ID()); err != nil {
		return err
	}
	if _, exists := s.nodes[node.ID().String()]; exists {
		return appErrors.NewValidationError("node already exists").
			WithDetail("node_id", node.ID().String())
	}
	s.nodes[node.ID().String()] = clone(node)
	s.Inserts++
	return nil
}

// Update overwrites an existing node record
func (s *NodeStore) Update(ctx context.Context, node *entities.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("update", node.ID()); err != nil {
		return err
	}
	if _, exists := s.nodes[node.ID().String()]; !exists {
		return appErrors.NewNotFoundError("node").WithDetail("node_id", node.ID().String())
	}
	s.nodes[node.ID().String()] = clone(node)
	s.Updates++
	return nil
}

// Delete removes a node record
func (s *NodeStore) Delete(ctx context.Context, id valueobjects.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("delete", id); err != nil {
		return err
	}
	delete(s.nodes, id.String())
	s.Deletes++
	return nil
}

// Scan returns every node record
func (s *NodeStore) Scan(ctx context.Context) ([]*entities.Node, error) {
	return s.Query(ctx, ports.NodeQuery{})
}

// Len returns the number of stored records
func (s *NodeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// clone copies a node so callers never share mutable state with the store
func clone(node *entities.Node) *entities.Node {
	copied, err := entities.ReconstructNode(
		node.ID(),
		node.Kind(),
		node.Owner(),
		node.Content(),
		node.ParentID(),
		node.ChildIDs(),
		node.CreatedAt(),
		node.UpdatedAt(),
		node.Version(),
	)
	if err != nil {
		// Stored nodes were valid when written; reconstruction cannot fail.
		panic(err)
	}
	return copied
}
