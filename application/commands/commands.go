// Package commands defines the write-side commands accepted by the
// tree: node creation, moves, deletes, and reconciliation sweeps.
package commands

import (
	"errors"

	"cardtree-backend/domain/core/entities"
)

// CreateNodeCommand creates a folder or card under a parent folder.
// An empty ParentID places the node at the top level.
type CreateNodeCommand struct {
	NodeID      string `json:"node_id" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=folder card"`
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Owner       string `json:"owner" validate:"required"`
	ParentID    string `json:"parent_id"`
}

// Validate validates the command
func (cmd CreateNodeCommand) Validate() error {
	if cmd.NodeID == "" {
		return errors.New("node ID is required")
	}
	if !entities.NodeKind(cmd.Kind).IsValid() {
		return errors.New("kind must be 'folder' or 'card'")
	}
	if cmd.Title == "" {
		return errors.New("title is required")
	}
	if cmd.Owner == "" {
		return errors.New("owner is required")
	}
	return nil
}

// MoveNodeCommand reparents a node. An empty NewParentID moves it to
// the top level.
type MoveNodeCommand struct {
	NodeID      string `json:"node_id" validate:"required"`
	NewParentID string `json:"new_parent_id"`
}

// Validate validates the command
func (cmd MoveNodeCommand) Validate() error {
	if cmd.NodeID == "" {
		return errors.New("node ID is required")
	}
	return nil
}

// DeleteNodeCommand removes a node. Folder deletion behavior depends on
// the configured delete policy.
type DeleteNodeCommand struct {
	NodeID string `json:"node_id" validate:"required"`
}

// Validate validates the command
func (cmd DeleteNodeCommand) Validate() error {
	if cmd.NodeID == "" {
		return errors.New("node ID is required")
	}
	return nil
}

// ReconcileTreeCommand triggers a full consistency sweep.
type ReconcileTreeCommand struct {
	RequestedBy string `json:"requested_by"`
}

// Validate validates the command
func (cmd ReconcileTreeCommand) Validate() error {
	return nil
}
