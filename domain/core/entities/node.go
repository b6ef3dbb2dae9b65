package entities

import (
	"time"

	"cardtree-backend/domain/core/valueobjects"
	"cardtree-backend/domain/events"
	pkgerrors "cardtree-backend/pkg/errors"
)

// NodeKind discriminates folders from cards
type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindCard   NodeKind = "card"
)

// IsValid reports whether the kind is one of the known discriminators
func (k NodeKind) IsValid() bool {
	return k == KindFolder || k == KindCard
}

// Node is the single entity for both cards and folders, discriminated by kind.
// Folders may carry children; cards are leaves but still carry a parent.
// parentID and childIDs form a bidirectional link pair whose sole writer is
// the tree consistency engine.
type Node struct {
	id        valueobjects.NodeID
	kind      NodeKind
	parentID  valueobjects.NodeID // zero value = attached at top level
	childIDs  []valueobjects.NodeID
	content   valueobjects.NodeContent
	owner     string
	createdAt time.Time
	updatedAt time.Time
	version   int

	// Domain events raised during this entity's lifetime
	events []events.DomainEvent
}

// NewNode creates a new node under the given parent (RootID for top level)
func NewNode(kind NodeKind, owner string, content valueobjects.NodeContent, parentID valueobjects.NodeID) (*Node, error) {
	return NewNodeWithID(valueobjects.NewNodeID(), kind, owner, content, parentID)
}

// NewNodeWithID creates a new node with a caller-supplied id. The HTTP
// layer generates ids up front so a create response can echo the id
// without waiting on the write path.
func NewNodeWithID(id valueobjects.NodeID, kind NodeKind, owner string, content valueobjects.NodeContent, parentID valueobjects.NodeID) (*Node, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("node ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.NewValidationError("kind must be folder or card")
	}
	if owner == "" {
		return nil, pkgerrors.NewValidationError("owner cannot be empty")
	}
	if content.IsEmpty() {
		return nil, pkgerrors.NewValidationError("content cannot be empty")
	}

	now := time.Now()
	node := &Node{
		id:        id,
		kind:      kind,
		parentID:  parentID,
		childIDs:  []valueobjects.NodeID{},
		content:   content,
		owner:     owner,
		createdAt: now,
		updatedAt: now,
		version:   1,
		events:    []events.DomainEvent{},
	}

	node.addEvent(events.NewNodeCreated(node.id, string(kind), owner, parentID, now))

	return node, nil
}

// ReconstructNode rebuilds a node from store data with preserved timestamps.
// No events are raised; the data is taken as-is, including a parent/children
// pair that may have drifted (reconcile is the repair path).
func ReconstructNode(
	id valueobjects.NodeID,
	kind NodeKind,
	owner string,
	content valueobjects.NodeContent,
	parentID valueobjects.NodeID,
	childIDs []valueobjects.NodeID,
	createdAt, updatedAt time.Time,
	version int,
) (*Node, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("node ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.NewValidationError("kind must be folder or card")
	}
	if version < 1 {
		version = 1
	}

	ids := make([]valueobjects.NodeID, len(childIDs))
	copy(ids, childIDs)

	return &Node{
		id:        id,
		kind:      kind,
		parentID:  parentID,
		childIDs:  ids,
		content:   content,
		owner:     owner,
		createdAt: createdAt,
		updatedAt: updatedAt,
		version:   version,
		events:    []events.DomainEvent{},
	}, nil
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Kind returns the node's discriminator
func (n *Node) Kind() NodeKind {
	return n.kind
}

// IsFolder reports whether the node may contain children
func (n *Node) IsFolder() bool {
	return n.kind == KindFolder
}

// ParentID returns the parent reference; zero value means top level
func (n *Node) ParentID() valueobjects.NodeID {
	return n.parentID
}

// IsTopLevel reports whether the node sits at the root
func (n *Node) IsTopLevel() bool {
	return n.parentID.IsZero()
}

// ChildIDs returns a copy of the direct child references
func (n *Node) ChildIDs() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, len(n.childIDs))
	copy(ids, n.childIDs)
	return ids
}

// HasChild reports whether id is a direct child reference
func (n *Node) HasChild(id valueobjects.NodeID) bool {
	for _, c := range n.childIDs {
		if c.Equals(id) {
			return true
		}
	}
	return false
}

// ChildCount returns the number of direct child references
func (n *Node) ChildCount() int {
	return len(n.childIDs)
}

// Content returns the node's display metadata
func (n *Node) Content() valueobjects.NodeContent {
	return n.content
}

// Owner returns the creating principal's identifier
func (n *Node) Owner() string {
	return n.owner
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last structurally mutated
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// Version returns the node's version for optimistic concurrency
func (n *Node) Version() int {
	return n.version
}

// UpdateContent replaces the node's display metadata
func (n *Node) UpdateContent(content valueobjects.NodeContent) error {
	if content.IsEmpty() {
		return pkgerrors.NewValidationError("content cannot be empty")
	}
	if content.Equals(n.content) {
		return nil
	}

	n.content = content
	n.touch()
	return nil
}

// SetParent rewires the node's parent reference. A true no-op (same parent)
// leaves updated_at untouched and raises no event.
func (n *Node) SetParent(newParentID valueobjects.NodeID) {
	if n.parentID.Equals(newParentID) {
		return
	}

	oldParent := n.parentID
	n.parentID = newParentID
	n.touch()

	n.addEvent(events.NewNodeMoved(n.id, oldParent, newParentID, n.updatedAt))
}

// AddChild appends a child reference. Only folders accept children.
// Adding an already-present child is a no-op so the pair stays a set.
func (n *Node) AddChild(id valueobjects.NodeID) error {
	if n.kind != KindFolder {
		return pkgerrors.NewInvalidKindError("cannot add children to a card")
	}
	if id.IsZero() {
		return pkgerrors.NewValidationError("child ID cannot be empty")
	}
	if id.Equals(n.id) {
		return pkgerrors.NewCycleDetectedError(n.id.String(), id.String())
	}
	if n.HasChild(id) {
		return nil
	}

	n.childIDs = append(n.childIDs, id)
	n.touch()
	return nil
}

// RemoveChild drops a child reference, reporting whether it was present
func (n *Node) RemoveChild(id valueobjects.NodeID) bool {
	for i, c := range n.childIDs {
		if c.Equals(id) {
			n.childIDs = append(n.childIDs[:i], n.childIDs[i+1:]...)
			n.touch()
			return true
		}
	}
	return false
}

// ReplaceChildren overwrites the child set wholesale. This is the reconcile
// path: child_ids recomputed from parent_id ground truth.
func (n *Node) ReplaceChildren(ids []valueobjects.NodeID) error {
	if n.kind != KindFolder && len(ids) > 0 {
		return pkgerrors.NewInvalidKindError("cannot assign children to a card")
	}

	replaced := make([]valueobjects.NodeID, len(ids))
	copy(replaced, ids)
	n.childIDs = replaced
	n.touch()
	return nil
}

// Clone returns an independent copy of the node. The child list is
// copied and the clone starts with an empty event list, so mutating
// either copy never leaks into the other.
func (n *Node) Clone() *Node {
	ids := make([]valueobjects.NodeID, len(n.childIDs))
	copy(ids, n.childIDs)

	return &Node{
		id:        n.id,
		kind:      n.kind,
		parentID:  n.parentID,
		childIDs:  ids,
		content:   n.content,
		owner:     n.owner,
		createdAt: n.createdAt,
		updatedAt: n.updatedAt,
		version:   n.version,
		events:    []events.DomainEvent{},
	}
}

// MarkDeleted raises the deletion event; the engine performs the store delete
func (n *Node) MarkDeleted() {
	n.addEvent(events.NewNodeDeleted(n.id, n.parentID, n.owner, time.Now()))
}

// GetUncommittedEvents returns all uncommitted domain events
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (n *Node) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}

func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}

func (n *Node) touch() {
	n.updatedAt = time.Now()
	n.version++
}
