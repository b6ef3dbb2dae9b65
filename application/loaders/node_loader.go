package loaders

import (
	"context"

	"cardtree-backend/application/ports"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"

	"go.uber.org/zap"
)

// MetricsRecorder receives cache effectiveness signals. It is a narrow
// interface so the loader does not care which metrics backend is wired.
type MetricsRecorder interface {
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
}

// noopMetrics is used when no recorder is wired
type noopMetrics struct{}

func (noopMetrics) RecordCacheHit(string)  {}
func (noopMetrics) RecordCacheMiss(string) {}

// NodeLoader is the cache-first read path over the node store. Each cache
// miss triggers exactly one store fetch per key; concurrent callers join the
// outstanding fetch instead of duplicating it.
type NodeLoader struct {
	store   ports.NodeStore
	cache   ports.TreeCache
	logger  *zap.Logger
	metrics MetricsRecorder

	nodes    *Group[valueobjects.NodeID, *entities.Node]
	children *Group[valueobjects.NodeID, []*entities.Node]
}

// NewNodeLoader creates a loader; metrics may be nil
func NewNodeLoader(store ports.NodeStore, cache ports.TreeCache, metrics MetricsRecorder, logger *zap.Logger) *NodeLoader {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	l := &NodeLoader{
		store:   store,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}

	l.nodes = NewGroup(l.fetchNode, logger)
	l.children = NewGroup(l.fetchChildren, logger)

	return l
}

// GetNode returns the node record, serving from cache when fresh
func (l *NodeLoader) GetNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	if node, ok := l.cache.GetNode(ctx, id); ok {
		l.metrics.RecordCacheHit("node")
		return node, nil
	}
	l.metrics.RecordCacheMiss("node")

	return l.nodes.Do(ctx, id)
}

// GetChildren returns a folder's direct children (root sentinel for the
// top-level list), serving from cache when fresh
func (l *NodeLoader) GetChildren(ctx context.Context, folderID valueobjects.NodeID) ([]*entities.Node, error) {
	if nodes, ok := l.cache.GetChildren(ctx, folderID); ok {
		l.metrics.RecordCacheHit("children")
		return nodes, nil
	}
	l.metrics.RecordCacheMiss("children")

	return l.children.Do(ctx, folderID)
}

// fetchNode is the coalesced store read for one node
func (l *NodeLoader) fetchNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	node, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	l.cache.PutNode(ctx, node)
	return node, nil
}

// fetchChildren is the coalesced store read for one folder's children
func (l *NodeLoader) fetchChildren(ctx context.Context, folderID valueobjects.NodeID) ([]*entities.Node, error) {
	parent := folderID
	nodes, err := l.store.Query(ctx, ports.NodeQuery{ParentID: &parent})
	if err != nil {
		return nil, err
	}

	l.cache.PutChildren(ctx, folderID, nodes)
	for _, node := range nodes {
		l.cache.PutNode(ctx, node)
	}

	l.logger.Debug("children loaded from store",
		zap.String("folder_id", folderID.String()),
		zap.Int("count", len(nodes)),
	)

	return nodes, nil
}
