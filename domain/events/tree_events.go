package events

import (
	"time"

	"cardtree-backend/domain/core/valueobjects"
)

// NodeCreated is raised when a new card or folder is created
type NodeCreated struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	Kind     string              `json:"kind"`
	Owner    string              `json:"owner"`
	ParentID valueobjects.NodeID `json:"parent_id"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(nodeID valueobjects.NodeID, kind, owner string, parentID valueobjects.NodeID, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "tree.node_created",
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:   nodeID,
		Kind:     kind,
		Owner:    owner,
		ParentID: parentID,
	}
}

// NodeMoved is raised when a node is rewired to a new parent
type NodeMoved struct {
	BaseEvent
	NodeID    valueobjects.NodeID `json:"node_id"`
	OldParent valueobjects.NodeID `json:"old_parent_id"`
	NewParent valueobjects.NodeID `json:"new_parent_id"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(nodeID, oldParent, newParent valueobjects.NodeID, timestamp time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "tree.node_moved",
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:    nodeID,
		OldParent: oldParent,
		NewParent: newParent,
	}
}

// NodeDeleted is raised when a node is removed from the tree
type NodeDeleted struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	ParentID valueobjects.NodeID `json:"parent_id"`
	Owner    string              `json:"owner"`
}

// NewNodeDeleted creates a NodeDeleted event
func NewNodeDeleted(nodeID, parentID valueobjects.NodeID, owner string, timestamp time.Time) NodeDeleted {
	return NodeDeleted{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "tree.node_deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:   nodeID,
		ParentID: parentID,
		Owner:    owner,
	}
}

// TreeDriftDetected is raised when a multi-step mutation fails partway,
// leaving parent_id/child_ids out of sync pending a reconcile. It carries
// full context for operators per the drift-reporting policy.
type TreeDriftDetected struct {
	BaseEvent
	NodeID         valueobjects.NodeID `json:"node_id"`
	FailedStep     string              `json:"failed_step"`
	CompletedSteps []string            `json:"completed_steps"`
	Reason         string              `json:"reason"`
}

// NewTreeDriftDetected creates a TreeDriftDetected event
func NewTreeDriftDetected(nodeID valueobjects.NodeID, failedStep string, completedSteps []string, reason string, timestamp time.Time) TreeDriftDetected {
	return TreeDriftDetected{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   "tree.drift_detected",
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:         nodeID,
		FailedStep:     failedStep,
		CompletedSteps: completedSteps,
		Reason:         reason,
	}
}

// TreeRepaired is raised when a reconcile pass finishes
type TreeRepaired struct {
	BaseEvent
	FoldersRewritten int      `json:"folders_rewritten"`
	OrphanedNodes    []string `json:"orphaned_nodes,omitempty"`
	MisparentedNodes []string `json:"misparented_nodes,omitempty"`
}

// NewTreeRepaired creates a TreeRepaired event
func NewTreeRepaired(foldersRewritten int, orphaned, misparented []string, timestamp time.Time) TreeRepaired {
	return TreeRepaired{
		BaseEvent: BaseEvent{
			AggregateID: "tree",
			EventType:   "tree.repaired",
			Timestamp:   timestamp,
			Version:     1,
		},
		FoldersRewritten: foldersRewritten,
		OrphanedNodes:    orphaned,
		MisparentedNodes: misparented,
	}
}

// NavigationOccurred is raised when a session's current folder changes
type NavigationOccurred struct {
	BaseEvent
	FolderID  valueobjects.NodeID `json:"folder_id"`
	SessionID string              `json:"session_id"`
	Sequence  uint64              `json:"sequence"`
}

// NewNavigationOccurred creates a NavigationOccurred event
func NewNavigationOccurred(folderID valueobjects.NodeID, sessionID string, sequence uint64, timestamp time.Time) NavigationOccurred {
	aggregate := folderID.String()
	if aggregate == "" {
		aggregate = "root"
	}
	return NavigationOccurred{
		BaseEvent: BaseEvent{
			AggregateID: aggregate,
			EventType:   "navigation.folder_opened",
			Timestamp:   timestamp,
			Version:     1,
		},
		FolderID:  folderID,
		SessionID: sessionID,
		Sequence:  sequence,
	}
}
