// Package handlers contains the query handlers backing the read side.
package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cardtree-backend/application/loaders"
	"cardtree-backend/application/queries"
	"cardtree-backend/application/services"
	"cardtree-backend/domain/core/valueobjects"
)

// GetNodeHandler resolves single node lookups through the cache-backed loader
type GetNodeHandler struct {
	loader *loaders.NodeLoader
	logger *zap.Logger
}

// NewGetNodeHandler creates a new handler instance
func NewGetNodeHandler(loader *loaders.NodeLoader, logger *zap.Logger) *GetNodeHandler {
	return &GetNodeHandler{loader: loader, logger: logger}
}

// Handle executes the query
func (h *GetNodeHandler) Handle(ctx context.Context, query queries.GetNodeQuery) (*queries.NodeResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	id, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node ID: %w", err)
	}
	node, err := h.loader.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	result := queries.ToNodeResult(node)
	return &result, nil
}

// ListChildrenHandler lists a folder's children, cache-first
type ListChildrenHandler struct {
	loader *loaders.NodeLoader
	logger *zap.Logger
}

// NewListChildrenHandler creates a new handler instance
func NewListChildrenHandler(loader *loaders.NodeLoader, logger *zap.Logger) *ListChildrenHandler {
	return &ListChildrenHandler{loader: loader, logger: logger}
}

// Handle executes the query
func (h *ListChildrenHandler) Handle(ctx context.Context, query queries.ListChildrenQuery) (*queries.ListChildrenResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	folderID := valueobjects.RootID
	if query.FolderID != "" {
		var err error
		folderID, err = valueobjects.NewNodeIDFromString(query.FolderID)
		if err != nil {
			return nil, fmt.Errorf("invalid folder ID: %w", err)
		}
	}

	children, err := h.loader.GetChildren(ctx, folderID)
	if err != nil {
		return nil, err
	}

	total := len(children)
	if query.Limit > 0 && len(children) > query.Limit {
		children = children[:query.Limit]
	}

	result := &queries.ListChildrenResult{
		FolderID: folderID.String(),
		Children: make([]queries.NodeResult, 0, len(children)),
		Total:    total,
	}
	for _, child := range children {
		result.Children = append(result.Children, queries.ToNodeResult(child))
	}
	return result, nil
}

// GetBreadcrumbHandler resolves ancestor paths
type GetBreadcrumbHandler struct {
	breadcrumbs *services.BreadcrumbService
	logger      *zap.Logger
}

// NewGetBreadcrumbHandler creates a new handler instance
func NewGetBreadcrumbHandler(breadcrumbs *services.BreadcrumbService, logger *zap.Logger) *GetBreadcrumbHandler {
	return &GetBreadcrumbHandler{breadcrumbs: breadcrumbs, logger: logger}
}

// Handle executes the query
func (h *GetBreadcrumbHandler) Handle(ctx context.Context, query queries.GetBreadcrumbQuery) (*queries.BreadcrumbResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	id, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node ID: %w", err)
	}

	path, err := h.breadcrumbs.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &queries.BreadcrumbResult{
		Path: make([]queries.BreadcrumbEntry, 0, len(path)),
	}
	for _, node := range path {
		result.Path = append(result.Path, queries.BreadcrumbEntry{
			ID:    node.ID().String(),
			Kind:  string(node.Kind()),
			Title: node.Content().Title(),
		})
	}
	return result, nil
}
