// Package handlers contains the command handlers. Each handler adapts
// a command's transport-level fields into domain types and delegates
// the structural work to the tree service.
package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cardtree-backend/application/commands"
	"cardtree-backend/application/services"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
)

// CreateNodeHandler handles node creation commands
type CreateNodeHandler struct {
	tree   *services.TreeService
	logger *zap.Logger
}

// NewCreateNodeHandler creates a new handler instance
func NewCreateNodeHandler(tree *services.TreeService, logger *zap.Logger) *CreateNodeHandler {
	return &CreateNodeHandler{tree: tree, logger: logger}
}

// Handle executes the create node command
func (h *CreateNodeHandler) Handle(ctx context.Context, cmd commands.CreateNodeCommand) (*entities.Node, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	nodeID, err := valueobjects.NewNodeIDFromString(cmd.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node ID: %w", err)
	}
	parentID, err := parseOptionalID(cmd.ParentID)
	if err != nil {
		return nil, err
	}

	return h.tree.CreateNode(ctx, services.CreateNodeInput{
		ID:          nodeID,
		Kind:        entities.NodeKind(cmd.Kind),
		Title:       cmd.Title,
		Description: cmd.Description,
		Owner:       cmd.Owner,
		ParentID:    parentID,
	})
}

// MoveNodeHandler handles node move commands
type MoveNodeHandler struct {
	tree   *services.TreeService
	logger *zap.Logger
}

// NewMoveNodeHandler creates a new handler instance
func NewMoveNodeHandler(tree *services.TreeService, logger *zap.Logger) *MoveNodeHandler {
	return &MoveNodeHandler{tree: tree, logger: logger}
}

// Handle executes the move node command
func (h *MoveNodeHandler) Handle(ctx context.Context, cmd commands.MoveNodeCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	nodeID, err := valueobjects.NewNodeIDFromString(cmd.NodeID)
	if err != nil {
		return fmt.Errorf("invalid node ID: %w", err)
	}
	newParentID, err := parseOptionalID(cmd.NewParentID)
	if err != nil {
		return err
	}

	return h.tree.MoveNode(ctx, nodeID, newParentID)
}

// DeleteNodeHandler handles node deletion commands
type DeleteNodeHandler struct {
	tree   *services.TreeService
	logger *zap.Logger
}

// NewDeleteNodeHandler creates a new handler instance
func NewDeleteNodeHandler(tree *services.TreeService, logger *zap.Logger) *DeleteNodeHandler {
	return &DeleteNodeHandler{tree: tree, logger: logger}
}

// Handle executes the delete node command
func (h *DeleteNodeHandler) Handle(ctx context.Context, cmd commands.DeleteNodeCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	nodeID, err := valueobjects.NewNodeIDFromString(cmd.NodeID)
	if err != nil {
		return fmt.Errorf("invalid node ID: %w", err)
	}

	return h.tree.DeleteNode(ctx, nodeID)
}

// ReconcileTreeHandler handles reconciliation sweep commands
type ReconcileTreeHandler struct {
	tree   *services.TreeService
	logger *zap.Logger
}

// NewReconcileTreeHandler creates a new handler instance
func NewReconcileTreeHandler(tree *services.TreeService, logger *zap.Logger) *ReconcileTreeHandler {
	return &ReconcileTreeHandler{tree: tree, logger: logger}
}

// Handle executes the reconcile command and returns the sweep report
func (h *ReconcileTreeHandler) Handle(ctx context.Context, cmd commands.ReconcileTreeCommand) (*services.ReconcileReport, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}
	if cmd.RequestedBy != "" {
		h.logger.Info("reconcile requested", zap.String("requested_by", cmd.RequestedBy))
	}
	return h.tree.Reconcile(ctx)
}

// parseOptionalID maps an empty string to the top-level sentinel.
func parseOptionalID(raw string) (valueobjects.NodeID, error) {
	if raw == "" {
		return valueobjects.RootID, nil
	}
	id, err := valueobjects.NewNodeIDFromString(raw)
	if err != nil {
		return valueobjects.NodeID{}, fmt.Errorf("invalid parent ID: %w", err)
	}
	return id, nil
}
