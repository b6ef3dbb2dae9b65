// Package queries defines the read-side queries: single node lookup,
// folder listings, and breadcrumb resolution.
package queries

import (
	"errors"
	"time"

	"cardtree-backend/domain/core/entities"
)

// GetNodeQuery fetches a single node by id
type GetNodeQuery struct {
	NodeID string
}

// Validate validates the GetNodeQuery
func (q GetNodeQuery) Validate() error {
	if q.NodeID == "" {
		return errors.New("node ID is required")
	}
	return nil
}

// ListChildrenQuery lists the children of a folder. An empty FolderID
// lists the top level.
type ListChildrenQuery struct {
	FolderID string
	Limit    int
}

// Validate validates the ListChildrenQuery
func (q ListChildrenQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit must be non-negative")
	}
	return nil
}

// GetBreadcrumbQuery resolves the ancestor path of a node
type GetBreadcrumbQuery struct {
	NodeID string
}

// Validate validates the GetBreadcrumbQuery
func (q GetBreadcrumbQuery) Validate() error {
	if q.NodeID == "" {
		return errors.New("node ID is required")
	}
	return nil
}

// NodeResult is the read model for a single node
type NodeResult struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	ParentID    string   `json:"parent_id,omitempty"`
	ChildIDs    []string `json:"child_ids,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Owner       string   `json:"owner"`
	Version     int      `json:"version"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// ListChildrenResult is the read model for a folder listing
type ListChildrenResult struct {
	FolderID string       `json:"folder_id,omitempty"`
	Children []NodeResult `json:"children"`
	Total    int          `json:"total"`
}

// BreadcrumbResult is the read model for an ancestor path, root first
type BreadcrumbResult struct {
	Path []BreadcrumbEntry `json:"path"`
}

// BreadcrumbEntry is one hop in a breadcrumb path
type BreadcrumbEntry struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

// ToNodeResult maps a node entity into its read model
func ToNodeResult(node *entities.Node) NodeResult {
	childIDs := node.ChildIDs()
	ids := make([]string, 0, len(childIDs))
	for _, id := range childIDs {
		ids = append(ids, id.String())
	}
	return NodeResult{
		ID:          node.ID().String(),
		Kind:        string(node.Kind()),
		ParentID:    node.ParentID().String(),
		ChildIDs:    ids,
		Title:       node.Content().Title(),
		Description: node.Content().Description(),
		Owner:       node.Owner(),
		Version:     node.Version(),
		CreatedAt:   node.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   node.UpdatedAt().Format(time.RFC3339),
	}
}
