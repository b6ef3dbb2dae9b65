package cache

import (
	"cardtree-backend/domain/core/valueobjects"
)

// Cache keys are built here and nowhere else. The previous generation keyed
// the durable tier with ad hoc string concatenation at call sites, which
// invited collisions; every key now goes through these builders.

const (
	nodeKeyPrefix       = "node_"
	childrenKeyPrefix   = "folder_"
	breadcrumbKeyPrefix = "breadcrumb_"

	// rootKeySuffix keys the top-level children list, which has no folder id
	rootKeySuffix = "root"
)

// NodeKey builds the cache key for a single node record
func NodeKey(id valueobjects.NodeID) string {
	return nodeKeyPrefix + id.String()
}

// ChildrenKey builds the cache key for a folder's children list.
// The root sentinel keys the top-level list.
func ChildrenKey(folderID valueobjects.NodeID) string {
	if folderID.IsZero() {
		return childrenKeyPrefix + rootKeySuffix
	}
	return childrenKeyPrefix + folderID.String()
}

// BreadcrumbKey builds the cache key for an ancestor path, keyed by the
// deepest node's id
func BreadcrumbKey(id valueobjects.NodeID) string {
	return breadcrumbKeyPrefix + id.String()
}
