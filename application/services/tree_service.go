// Package services contains application services coordinating domain
// operations across the node store, the cache layer, and telemetry.
package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cardtree-backend/application/loaders"
	"cardtree-backend/application/ports"
	"cardtree-backend/domain/config"
	"cardtree-backend/domain/core/aggregates"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/validators"
	"cardtree-backend/domain/core/valueobjects"
	"cardtree-backend/domain/events"
	appErrors "cardtree-backend/pkg/errors"
)

// TreeService enforces tree structure invariants across every mutation.
// All writes to the node store flow through it so that parent_id and
// child_ids stay consistent, cycles are rejected up front, and partial
// failures are surfaced for the reconciler instead of silently ignored.
type TreeService struct {
	store     ports.NodeStore
	cache     ports.TreeCache
	loader    *loaders.NodeLoader
	eventBus  ports.EventBus
	validator *validators.NodeValidator
	cfg       *config.DomainConfig
	logger    *zap.Logger

	// muts serializes mutations per node and per parent. The store writes
	// are full-item read-modify-writes, so two unserialized mutations
	// touching the same parent would drop each other's child links.
	muts *keyMutex
}

// NewTreeService creates the consistency engine with its injected dependencies.
func NewTreeService(
	store ports.NodeStore,
	cache ports.TreeCache,
	loader *loaders.NodeLoader,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *TreeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeService{
		store:     store,
		cache:     cache,
		loader:    loader,
		eventBus:  eventBus,
		validator: validators.NewNodeValidatorWithConfig(cfg),
		cfg:       cfg,
		logger:    logger,
		muts:      newKeyMutex(),
	}
}

// CreateNodeInput carries the fields for a node creation request. A
// zero ID lets the entity generate one.
type CreateNodeInput struct {
	ID          valueobjects.NodeID
	Kind        entities.NodeKind
	Title       string
	Description string
	Owner       string
	ParentID    valueobjects.NodeID
}

// CreateNode validates the input, verifies the parent is an existing
// folder, and writes the node record plus the parent's child_ids entry.
func (s *TreeService) CreateNode(ctx context.Context, input CreateNodeInput) (*entities.Node, error) {
	if err := s.validator.ValidateKind(string(input.Kind)); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateTitle(input.Title); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateDescription(input.Description); err != nil {
		return nil, err
	}

	unlock := s.muts.Lock(input.ParentID.String())
	defer unlock()

	var parent *entities.Node
	if !input.ParentID.IsZero() {
		var err error
		parent, err = s.loader.GetNode(ctx, input.ParentID)
		if err != nil {
			return nil, err
		}
		if err := s.validator.ValidateParentable(parent); err != nil {
			return nil, err
		}
	}

	content, err := valueobjects.NewNodeContentWithConfig(input.Title, input.Description, s.cfg)
	if err != nil {
		return nil, err
	}

	var node *entities.Node
	if input.ID.IsZero() {
		node, err = entities.NewNode(input.Kind, input.Owner, content, input.ParentID)
	} else {
		node, err = entities.NewNodeWithID(input.ID, input.Kind, input.Owner, content, input.ParentID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, node); err != nil {
		return nil, appErrors.NewStoreUnavailableError("insert_node", err)
	}

	if parent != nil {
		if err := parent.AddChild(node.ID()); err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, parent); err != nil {
			s.reportDrift(ctx, node.ID(), "link_parent", []string{"insert_node"}, err)
			return nil, appErrors.NewPartialMutationError("link_parent", []string{"insert_node"}, err)
		}
	}

	s.cache.PutNode(ctx, node)
	s.dropCached(ctx, input.ParentID)

	s.publishEvents(ctx, node)
	s.logger.Info("node created",
		zap.String("node_id", node.ID().String()),
		zap.String("kind", string(node.Kind())),
		zap.String("parent_id", input.ParentID.String()),
	)
	return node, nil
}

// MoveNode reparents a node. The operation resolves both endpoints,
// rejects self-parenting and descendant cycles before touching the
// store, and then updates the old parent, the new parent, and the node
// itself in that order. A failure after the first write returns a
// partial mutation error and reports drift for the reconciler.
func (s *TreeService) MoveNode(ctx context.Context, nodeID, newParentID valueobjects.NodeID) error {
	if nodeID.Equals(newParentID) {
		return appErrors.NewCycleDetectedError(nodeID.String(), newParentID.String())
	}

	for {
		node, err := s.loader.GetNode(ctx, nodeID)
		if err != nil {
			return err
		}
		oldParentID := node.ParentID()

		unlock := s.muts.Lock(nodeID.String(), oldParentID.String(), newParentID.String())

		node, err = s.loader.GetNode(ctx, nodeID)
		if err != nil {
			unlock()
			return err
		}
		if !node.ParentID().Equals(oldParentID) {
			// Raced with another move of this node; retake the locks
			// against the parent it actually sits under now.
			unlock()
			continue
		}

		err = s.moveLocked(ctx, node, newParentID)
		unlock()
		return err
	}
}

func (s *TreeService) moveLocked(ctx context.Context, node *entities.Node, newParentID valueobjects.NodeID) error {
	nodeID := node.ID()

	var newParent *entities.Node
	if !newParentID.IsZero() {
		var err error
		newParent, err = s.loader.GetNode(ctx, newParentID)
		if err != nil {
			return err
		}
		if err := s.validator.ValidateParentable(newParent); err != nil {
			return err
		}
	}

	if node.IsFolder() && !newParentID.IsZero() {
		inSubtree, err := s.subtreeContains(ctx, node, newParentID)
		if err != nil {
			return err
		}
		if inSubtree {
			return appErrors.NewCycleDetectedError(nodeID.String(), newParentID.String())
		}
	}

	oldParentID := node.ParentID()
	if oldParentID.Equals(newParentID) {
		// Already in place. No writes, no cache churn.
		return nil
	}

	var completed []string

	if !oldParentID.IsZero() {
		oldParent, err := s.loader.GetNode(ctx, oldParentID)
		if err != nil && !appErrors.IsNotFound(err) {
			return err
		}
		// A missing old parent is pre-existing drift; skip the unlink
		// and let the reconciler deal with it.
		if oldParent != nil && oldParent.RemoveChild(nodeID) {
			if err := s.store.Update(ctx, oldParent); err != nil {
				return appErrors.NewStoreUnavailableError("unlink_old_parent", err)
			}
			completed = append(completed, "unlink_old_parent")
		}
	}

	if newParent != nil {
		if err := newParent.AddChild(nodeID); err != nil {
			return err
		}
		if err := s.store.Update(ctx, newParent); err != nil {
			if len(completed) > 0 {
				s.dropCached(ctx, oldParentID)
				s.reportDrift(ctx, nodeID, "link_new_parent", completed, err)
				return appErrors.NewPartialMutationError("link_new_parent", completed, err)
			}
			return appErrors.NewStoreUnavailableError("link_new_parent", err)
		}
		completed = append(completed, "link_new_parent")
	}

	node.SetParent(newParentID)
	if err := s.store.Update(ctx, node); err != nil {
		if len(completed) > 0 {
			s.dropCached(ctx, oldParentID, newParentID)
			s.reportDrift(ctx, nodeID, "update_node", completed, err)
			return appErrors.NewPartialMutationError("update_node", completed, err)
		}
		return appErrors.NewStoreUnavailableError("update_node", err)
	}

	s.dropCached(ctx, nodeID, oldParentID, newParentID)

	s.publishEvents(ctx, node)
	s.logger.Info("node moved",
		zap.String("node_id", nodeID.String()),
		zap.String("old_parent_id", oldParentID.String()),
		zap.String("new_parent_id", newParentID.String()),
	)
	return nil
}

// DeleteNode removes a node. Non-empty folders are rejected or cascaded
// depending on the configured delete policy. Cascaded subtrees are
// removed deepest-first so that a partial failure never leaves a record
// whose parent is already gone.
func (s *TreeService) DeleteNode(ctx context.Context, nodeID valueobjects.NodeID) error {
	for {
		node, err := s.loader.GetNode(ctx, nodeID)
		if err != nil {
			return err
		}
		parentID := node.ParentID()

		unlock := s.muts.Lock(nodeID.String(), parentID.String())

		node, err = s.loader.GetNode(ctx, nodeID)
		if err != nil {
			unlock()
			return err
		}
		if !node.ParentID().Equals(parentID) {
			unlock()
			continue
		}

		err = s.deleteLocked(ctx, node)
		unlock()
		return err
	}
}

func (s *TreeService) deleteLocked(ctx context.Context, node *entities.Node) error {
	nodeID := node.ID()

	var cascade []*entities.Node
	var err error
	if node.IsFolder() && node.ChildCount() > 0 {
		switch s.cfg.DeletePolicy {
		case config.DeletePolicyCascade:
			cascade, err = s.collectSubtree(ctx, node)
			if err != nil {
				return err
			}
		default:
			return appErrors.NewValidationError(
				fmt.Sprintf("folder %s is not empty", nodeID.String()))
		}
	}

	var completed []string

	// Deepest-first so every surviving record still has a live parent.
	for i := len(cascade) - 1; i >= 0; i-- {
		desc := cascade[i]
		if err := s.store.Delete(ctx, desc.ID()); err != nil {
			step := fmt.Sprintf("delete_descendant:%s", desc.ID().String())
			if len(completed) > 0 {
				s.reportDrift(ctx, nodeID, step, completed, err)
				return appErrors.NewPartialMutationError(step, completed, err)
			}
			return appErrors.NewStoreUnavailableError(step, err)
		}
		completed = append(completed, fmt.Sprintf("delete_descendant:%s", desc.ID().String()))
		s.dropCached(ctx, desc.ID())
	}

	if err := s.store.Delete(ctx, nodeID); err != nil {
		if len(completed) > 0 {
			s.reportDrift(ctx, nodeID, "delete_node", completed, err)
			return appErrors.NewPartialMutationError("delete_node", completed, err)
		}
		return appErrors.NewStoreUnavailableError("delete_node", err)
	}
	completed = append(completed, "delete_node")

	parentID := node.ParentID()
	if !parentID.IsZero() {
		parent, err := s.loader.GetNode(ctx, parentID)
		if err != nil && !appErrors.IsNotFound(err) {
			s.dropCached(ctx, nodeID)
			s.reportDrift(ctx, nodeID, "unlink_parent", completed, err)
			return appErrors.NewPartialMutationError("unlink_parent", completed, err)
		}
		if parent != nil && parent.RemoveChild(nodeID) {
			if err := s.store.Update(ctx, parent); err != nil {
				s.dropCached(ctx, nodeID)
				s.reportDrift(ctx, nodeID, "unlink_parent", completed, err)
				return appErrors.NewPartialMutationError("unlink_parent", completed, err)
			}
		}
	}

	s.dropCached(ctx, nodeID, parentID)

	node.MarkDeleted()
	s.publishEvents(ctx, node)
	s.logger.Info("node deleted",
		zap.String("node_id", nodeID.String()),
		zap.Int("cascaded", len(cascade)),
	)
	return nil
}

// ReconcileReport summarizes one reconciliation sweep.
type ReconcileReport struct {
	NodesScanned     int
	FoldersRewritten int
	OrphanedNodes    []string
	MisparentedNodes []string
	Errors           []string
}

// Reconcile scans the full node set, recomputes every folder's
// child_ids from the parent_id pointers, and rewrites the folders that
// drifted. parent_id is the source of truth. The sweep is idempotent:
// a second pass over a repaired tree rewrites nothing.
func (s *TreeService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	nodes, err := s.store.Scan(ctx)
	if err != nil {
		return nil, appErrors.NewStoreUnavailableError("scan_nodes", err)
	}

	snapshot := aggregates.NewTreeSnapshot(nodes)
	plan := snapshot.ComputeRebuildPlan()

	report := &ReconcileReport{
		NodesScanned:     snapshot.Len(),
		OrphanedNodes:    idsToStrings(plan.OrphanedNodes),
		MisparentedNodes: idsToStrings(plan.MisparentedNodes),
	}

	for _, folderID := range plan.StaleFolders {
		folder, ok := snapshot.Node(folderID)
		if !ok {
			continue
		}
		if err := folder.ReplaceChildren(plan.DesiredChildren[folderID]); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("rewrite %s: %v", folderID.String(), err))
			continue
		}
		if err := s.store.Update(ctx, folder); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("rewrite %s: %v", folderID.String(), err))
			continue
		}
		report.FoldersRewritten++
		s.dropCached(ctx, folderID)
	}

	for _, id := range plan.OrphanedNodes {
		s.logger.Warn("orphaned node detected", zap.String("node_id", id.String()))
	}
	for _, id := range plan.MisparentedNodes {
		s.logger.Warn("node parented under a card", zap.String("node_id", id.String()))
	}

	if s.eventBus != nil {
		repaired := events.NewTreeRepaired(
			report.FoldersRewritten,
			report.OrphanedNodes,
			report.MisparentedNodes,
			time.Now(),
		)
		if err := s.eventBus.Publish(ctx, repaired); err != nil {
			s.logger.Warn("failed to publish reconcile telemetry", zap.Error(err))
		}
	}

	s.logger.Info("reconcile sweep complete",
		zap.Int("nodes_scanned", report.NodesScanned),
		zap.Int("folders_rewritten", report.FoldersRewritten),
		zap.Int("orphaned", len(report.OrphanedNodes)),
		zap.Int("misparented", len(report.MisparentedNodes)),
	)
	return report, nil
}

// subtreeContains walks the descendant closure of root looking for
// target. The walk is iterative with a visited set so it terminates
// even when the stored tree already contains a cycle.
func (s *TreeService) subtreeContains(ctx context.Context, root *entities.Node, target valueobjects.NodeID) (bool, error) {
	visited := map[string]struct{}{root.ID().String(): {}}
	stack := append([]valueobjects.NodeID(nil), root.ChildIDs()...)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[id.String()]; seen {
			continue
		}
		visited[id.String()] = struct{}{}

		if len(visited) > s.cfg.MaxDescendantNodes {
			return false, appErrors.NewMalformedTreeError(root.ID().String(), len(visited))
		}
		if id.Equals(target) {
			return true, nil
		}

		child, err := s.loader.GetNode(ctx, id)
		if err != nil {
			if appErrors.IsNotFound(err) {
				// Dangling child_ids entry. Reconcile will clean it up.
				continue
			}
			return false, err
		}
		if child.IsFolder() {
			stack = append(stack, child.ChildIDs()...)
		}
	}
	return false, nil
}

// collectSubtree gathers the descendants of root in breadth-first
// order, nearest first, for cascade deletion.
func (s *TreeService) collectSubtree(ctx context.Context, root *entities.Node) ([]*entities.Node, error) {
	visited := map[string]struct{}{root.ID().String(): {}}
	queue := append([]valueobjects.NodeID(nil), root.ChildIDs()...)
	var collected []*entities.Node

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, seen := visited[id.String()]; seen {
			continue
		}
		visited[id.String()] = struct{}{}

		if len(visited) > s.cfg.MaxDescendantNodes {
			return nil, appErrors.NewMalformedTreeError(root.ID().String(), len(visited))
		}

		node, err := s.loader.GetNode(ctx, id)
		if err != nil {
			if appErrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		collected = append(collected, node)
		if node.IsFolder() {
			queue = append(queue, node.ChildIDs()...)
		}
	}
	return collected, nil
}

// dropCached drops the node entries and children lists for the given
// ids after their store records changed, so the next read rebuilds them
// from the store. The root sentinel has no node entry of its own.
func (s *TreeService) dropCached(ctx context.Context, ids ...valueobjects.NodeID) {
	for _, id := range ids {
		if !id.IsZero() {
			s.cache.Invalidate(ctx, id)
		}
		s.cache.InvalidateChildren(ctx, id)
	}
}

func (s *TreeService) reportDrift(ctx context.Context, nodeID valueobjects.NodeID, failedStep string, completed []string, cause error) {
	s.logger.Error("partial mutation, tree drift pending reconcile",
		zap.String("node_id", nodeID.String()),
		zap.String("failed_step", failedStep),
		zap.Strings("completed_steps", completed),
		zap.Error(cause),
	)
	if s.eventBus == nil {
		return
	}
	drift := events.NewTreeDriftDetected(nodeID, failedStep, completed, cause.Error(), time.Now())
	if err := s.eventBus.Publish(ctx, drift); err != nil {
		s.logger.Warn("failed to publish drift telemetry", zap.Error(err))
	}
}

func (s *TreeService) publishEvents(ctx context.Context, node *entities.Node) {
	pending := node.GetUncommittedEvents()
	if len(pending) == 0 || s.eventBus == nil {
		node.MarkEventsAsCommitted()
		return
	}
	if err := s.eventBus.PublishBatch(ctx, pending); err != nil {
		s.logger.Warn("failed to publish domain events",
			zap.String("node_id", node.ID().String()),
			zap.Error(err),
		)
	}
	node.MarkEventsAsCommitted()
}

func idsToStrings(ids []valueobjects.NodeID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
