package aggregates

import (
	"sort"

	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
)

// TreeSnapshot is an in-memory view over the full node set, used by the
// reconcile path and by integrity checks. The snapshot treats parent_id as
// ground truth; stored child_ids are what it audits.
type TreeSnapshot struct {
	nodes map[valueobjects.NodeID]*entities.Node
}

// RebuildPlan describes what a reconcile pass must change
type RebuildPlan struct {
	// DesiredChildren maps each folder to the child set recomputed purely
	// from the nodes' parent_id values
	DesiredChildren map[valueobjects.NodeID][]valueobjects.NodeID

	// StaleFolders are folders whose stored child_ids differ from the
	// recomputed set and need an overwrite
	StaleFolders []valueobjects.NodeID

	// OrphanedNodes have a parent_id pointing at a node that does not exist
	OrphanedNodes []valueobjects.NodeID

	// MisparentedNodes have a parent_id pointing at a card
	MisparentedNodes []valueobjects.NodeID
}

// NewTreeSnapshot builds a snapshot from a flat node list
func NewTreeSnapshot(nodes []*entities.Node) *TreeSnapshot {
	m := make(map[valueobjects.NodeID]*entities.Node, len(nodes))
	for _, n := range nodes {
		if n != nil {
			m[n.ID()] = n
		}
	}
	return &TreeSnapshot{nodes: m}
}

// Node returns the node with the given id, if present
func (t *TreeSnapshot) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the snapshot
func (t *TreeSnapshot) Len() int {
	return len(t.nodes)
}

// Nodes returns all nodes in the snapshot in unspecified order
func (t *TreeSnapshot) Nodes() []*entities.Node {
	out := make([]*entities.Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	return out
}

// Descendants walks the descendant closure of id through stored child_ids,
// folders only, iteratively with a visited set. The walk terminates even if
// the stored graph is cyclic or self-referential; maxNodes bounds the result.
func (t *TreeSnapshot) Descendants(id valueobjects.NodeID, maxNodes int) []valueobjects.NodeID {
	visited := make(map[valueobjects.NodeID]bool)
	var out []valueobjects.NodeID

	stack := []valueobjects.NodeID{id}
	visited[id] = true

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, ok := t.nodes[current]
		if !ok || !node.IsFolder() {
			continue
		}

		for _, child := range node.ChildIDs() {
			if visited[child] {
				continue
			}
			visited[child] = true
			out = append(out, child)
			if maxNodes > 0 && len(out) >= maxNodes {
				return out
			}
			stack = append(stack, child)
		}
	}

	return out
}

// IsDescendant reports whether candidate appears in the descendant closure
// of ancestor (per stored child_ids)
func (t *TreeSnapshot) IsDescendant(ancestor, candidate valueobjects.NodeID) bool {
	for _, id := range t.Descendants(ancestor, 0) {
		if id.Equals(candidate) {
			return true
		}
	}
	return false
}

// ComputeRebuildPlan recomputes every folder's child set from parent_id
// ground truth and diffs it against what the folders currently store.
func (t *TreeSnapshot) ComputeRebuildPlan() *RebuildPlan {
	plan := &RebuildPlan{
		DesiredChildren: make(map[valueobjects.NodeID][]valueobjects.NodeID),
	}

	// Every folder gets an entry, even when it should end up empty,
	// so stale child_ids on childless folders are still overwritten.
	for id, n := range t.nodes {
		if n.IsFolder() {
			plan.DesiredChildren[id] = []valueobjects.NodeID{}
		}
	}

	for id, n := range t.nodes {
		parentID := n.ParentID()
		if parentID.IsZero() {
			continue
		}

		parent, ok := t.nodes[parentID]
		if !ok {
			plan.OrphanedNodes = append(plan.OrphanedNodes, id)
			continue
		}
		if !parent.IsFolder() {
			plan.MisparentedNodes = append(plan.MisparentedNodes, id)
			continue
		}

		plan.DesiredChildren[parentID] = append(plan.DesiredChildren[parentID], id)
	}

	for folderID, desired := range plan.DesiredChildren {
		folder := t.nodes[folderID]
		if !sameIDSet(folder.ChildIDs(), desired) {
			plan.StaleFolders = append(plan.StaleFolders, folderID)
		}
	}

	sortIDs(plan.StaleFolders)
	sortIDs(plan.OrphanedNodes)
	sortIDs(plan.MisparentedNodes)

	return plan
}

// sameIDSet compares two id slices as sets
func sameIDSet(a, b []valueobjects.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[valueobjects.NodeID]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

// sortIDs orders ids deterministically for stable reports
func sortIDs(ids []valueobjects.NodeID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
