// Package handlers contains the HTTP request handlers for the tree API.
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardtree-backend/application/commands"
	"cardtree-backend/application/commands/bus"
	"cardtree-backend/application/queries"
	querybus "cardtree-backend/application/queries/bus"
	"cardtree-backend/pkg/auth"
	"cardtree-backend/pkg/common"
	appErrors "cardtree-backend/pkg/errors"
	"cardtree-backend/pkg/utils"
)

const maxBodyBytes = 64 * 1024

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *appErrors.ErrorHandler
	logger     *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *appErrors.ErrorHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=folder card"`
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
	ParentID    string `json:"parent_id,omitempty"`
}

// MoveNodeRequest represents the request body for moving a node
type MoveNodeRequest struct {
	NewParentID string `json:"new_parent_id"`
}

// CreateNodeResponse represents the response for creating a node
type CreateNodeResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	userCtx, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		common.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	nodeID := uuid.New().String()
	cmd := commands.CreateNodeCommand{
		NodeID:      nodeID,
		Kind:        req.Kind,
		Title:       req.Title,
		Description: req.Description,
		Owner:       userCtx.UserID,
		ParentID:    req.ParentID,
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, CreateNodeResponse{
		ID:      nodeID,
		Message: "node created",
	})
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	nodeID := pathParam(r, "nodeID")

	result, err := h.queryBus.Ask(r.Context(), queries.GetNodeQuery{NodeID: nodeID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// MoveNode handles PUT /nodes/{nodeID}/parent
func (h *NodeHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	nodeID := pathParam(r, "nodeID")

	var req MoveNodeRequest
	if err := common.ParseJSONBody(r, &req, maxBodyBytes); err != nil {
		common.RespondError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	cmd := commands.MoveNodeCommand{
		NodeID:      nodeID,
		NewParentID: req.NewParentID,
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{
		"id":      nodeID,
		"message": "node moved",
	})
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID := pathParam(r, "nodeID")

	cmd := commands.DeleteNodeCommand{NodeID: nodeID}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{
		"id":      nodeID,
		"message": "node deleted",
	})
}

// GetBreadcrumb handles GET /nodes/{nodeID}/breadcrumb
func (h *NodeHandler) GetBreadcrumb(w http.ResponseWriter, r *http.Request) {
	nodeID := pathParam(r, "nodeID")

	result, err := h.queryBus.Ask(r.Context(), queries.GetBreadcrumbQuery{NodeID: nodeID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}
