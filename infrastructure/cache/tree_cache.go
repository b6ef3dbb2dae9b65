package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"cardtree-backend/application/ports"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"

	"go.uber.org/zap"
)

// TreeCache is the two-tier local cache layer: an in-process map plus an
// optional durable per-session tier behind the ports.DurableStore interface.
// Reads are synchronous; the durable tier is only consulted on a memory miss
// and rehydrates the memory tier on a hit. Writes through the tree engine
// invalidate entries explicitly; TTLs exist only to age out untouched data.
type TreeCache struct {
	memory  *MemoryTier
	durable ports.DurableStore // may be nil: memory-only sessions
	logger  *zap.Logger

	nodeTTL       time.Duration
	childrenTTL   time.Duration
	breadcrumbTTL time.Duration

	// crumbIndex maps a node id to the breadcrumb keys whose cached paths
	// contain that node, so a structural change to one node can drop every
	// affected path without scanning the tiers
	mu         sync.Mutex
	crumbIndex map[string]map[string]struct{}
}

var _ ports.TreeCache = (*TreeCache)(nil)

// Options configures cache TTLs
type Options struct {
	NodeTTL       time.Duration
	ChildrenTTL   time.Duration
	BreadcrumbTTL time.Duration
}

// DefaultOptions returns the standard TTLs: children lists age out after
// five minutes, breadcrumb paths after ten
func DefaultOptions() Options {
	return Options{
		NodeTTL:       5 * time.Minute,
		ChildrenTTL:   5 * time.Minute,
		BreadcrumbTTL: 10 * time.Minute,
	}
}

// NewTreeCache creates the cache layer. durable may be nil.
func NewTreeCache(durable ports.DurableStore, opts Options, logger *zap.Logger) *TreeCache {
	if opts.NodeTTL <= 0 {
		opts.NodeTTL = DefaultOptions().NodeTTL
	}
	if opts.ChildrenTTL <= 0 {
		opts.ChildrenTTL = DefaultOptions().ChildrenTTL
	}
	if opts.BreadcrumbTTL <= 0 {
		opts.BreadcrumbTTL = DefaultOptions().BreadcrumbTTL
	}

	return &TreeCache{
		memory:        NewMemoryTier(),
		durable:       durable,
		logger:        logger,
		nodeTTL:       opts.NodeTTL,
		childrenTTL:   opts.ChildrenTTL,
		breadcrumbTTL: opts.BreadcrumbTTL,
		crumbIndex:    make(map[string]map[string]struct{}),
	}
}

// GetNode returns a cached node record. The caller gets a private copy;
// cached entries never alias entities the engine may go on to mutate.
func (c *TreeCache) GetNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, bool) {
	key := NodeKey(id)

	if v, ok := c.memory.Get(key); ok {
		if node, ok := v.(*entities.Node); ok {
			return node.Clone(), true
		}
	}

	if node, ok := c.durableNode(ctx, key); ok {
		c.memory.Set(key, node, c.nodeTTL)
		return node.Clone(), true
	}

	return nil, false
}

// GetChildren returns a cached children list
func (c *TreeCache) GetChildren(ctx context.Context, folderID valueobjects.NodeID) ([]*entities.Node, bool) {
	key := ChildrenKey(folderID)

	if v, ok := c.memory.Get(key); ok {
		if nodes, ok := v.([]*entities.Node); ok {
			return cloneNodes(nodes), true
		}
	}

	if nodes, ok := c.durableList(ctx, key); ok {
		c.memory.Set(key, nodes, c.childrenTTL)
		return cloneNodes(nodes), true
	}

	return nil, false
}

// GetBreadcrumb returns a cached ancestor path
func (c *TreeCache) GetBreadcrumb(ctx context.Context, id valueobjects.NodeID) ([]*entities.Node, bool) {
	key := BreadcrumbKey(id)

	if v, ok := c.memory.Get(key); ok {
		if path, ok := v.([]*entities.Node); ok {
			return cloneNodes(path), true
		}
	}

	if path, ok := c.durableList(ctx, key); ok {
		c.memory.Set(key, path, c.breadcrumbTTL)
		return cloneNodes(path), true
	}

	return nil, false
}

// PutNode stores a node record in both tiers
func (c *TreeCache) PutNode(ctx context.Context, node *entities.Node) {
	if node == nil {
		return
	}
	key := NodeKey(node.ID())
	c.memory.Set(key, node.Clone(), c.nodeTTL)
	c.durableSet(ctx, key, encodeNodes([]*entities.Node{node}), c.nodeTTL)
}

// PutChildren stores a children list in both tiers
func (c *TreeCache) PutChildren(ctx context.Context, folderID valueobjects.NodeID, nodes []*entities.Node) {
	key := ChildrenKey(folderID)
	c.memory.Set(key, cloneNodes(nodes), c.childrenTTL)
	c.durableSet(ctx, key, encodeNodes(nodes), c.childrenTTL)
}

// PutBreadcrumb stores an ancestor path and indexes its members for
// push invalidation
func (c *TreeCache) PutBreadcrumb(ctx context.Context, id valueobjects.NodeID, path []*entities.Node) {
	key := BreadcrumbKey(id)
	c.memory.Set(key, cloneNodes(path), c.breadcrumbTTL)
	c.durableSet(ctx, key, encodeNodes(path), c.breadcrumbTTL)

	c.mu.Lock()
	for _, member := range path {
		memberID := member.ID().String()
		if c.crumbIndex[memberID] == nil {
			c.crumbIndex[memberID] = make(map[string]struct{})
		}
		c.crumbIndex[memberID][key] = struct{}{}
	}
	c.mu.Unlock()
}

// Invalidate drops the node entry and every breadcrumb path containing it
func (c *TreeCache) Invalidate(ctx context.Context, id valueobjects.NodeID) {
	nodeKey := NodeKey(id)
	c.memory.Delete(nodeKey)
	c.durableRemove(ctx, nodeKey)

	c.mu.Lock()
	keys := c.crumbIndex[id.String()]
	delete(c.crumbIndex, id.String())
	c.mu.Unlock()

	for key := range keys {
		c.memory.Delete(key)
		c.durableRemove(ctx, key)
	}
}

// InvalidateChildren drops a folder's children list
func (c *TreeCache) InvalidateChildren(ctx context.Context, folderID valueobjects.NodeID) {
	key := ChildrenKey(folderID)
	c.memory.Delete(key)
	c.durableRemove(ctx, key)
}

func cloneNodes(nodes []*entities.Node) []*entities.Node {
	out := make([]*entities.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		out = append(out, n.Clone())
	}
	return out
}

// durable tier plumbing; a failing durable tier degrades to memory-only

func (c *TreeCache) durableNode(ctx context.Context, key string) (*entities.Node, bool) {
	nodes, ok := c.durableList(ctx, key)
	if !ok || len(nodes) != 1 {
		return nil, false
	}
	return nodes[0], true
}

func (c *TreeCache) durableList(ctx context.Context, key string) ([]*entities.Node, bool) {
	if c.durable == nil {
		return nil, false
	}

	data, found, err := c.durable.Get(ctx, key)
	if err != nil {
		c.logger.Warn("durable cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	nodes, err := decodeNodes(data)
	if err != nil {
		c.logger.Warn("durable cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		c.durableRemove(ctx, key)
		return nil, false
	}
	return nodes, true
}

func (c *TreeCache) durableSet(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if c.durable == nil || data == nil {
		return
	}
	if err := c.durable.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("durable cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *TreeCache) durableRemove(ctx context.Context, key string) {
	if c.durable == nil {
		return
	}
	if err := c.durable.Remove(ctx, key); err != nil {
		c.logger.Warn("durable cache remove failed", zap.String("key", key), zap.Error(err))
	}
}

// nodeRecord is the durable tier's serialized node shape
type nodeRecord struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	ParentID    string    `json:"parent_id,omitempty"`
	ChildIDs    []string  `json:"child_ids,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

func encodeNodes(nodes []*entities.Node) []byte {
	records := make([]nodeRecord, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		rec := nodeRecord{
			ID:          n.ID().String(),
			Kind:        string(n.Kind()),
			ParentID:    n.ParentID().String(),
			Title:       n.Content().Title(),
			Description: n.Content().Description(),
			Owner:       n.Owner(),
			CreatedAt:   n.CreatedAt(),
			UpdatedAt:   n.UpdatedAt(),
			Version:     n.Version(),
		}
		for _, child := range n.ChildIDs() {
			rec.ChildIDs = append(rec.ChildIDs, child.String())
		}
		records = append(records, rec)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil
	}
	return data
}

func decodeNodes(data []byte) ([]*entities.Node, error) {
	var records []nodeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	nodes := make([]*entities.Node, 0, len(records))
	for _, rec := range records {
		id, err := valueobjects.NewNodeIDFromString(rec.ID)
		if err != nil {
			return nil, err
		}

		parentID := valueobjects.RootID
		if rec.ParentID != "" {
			parentID, err = valueobjects.NewNodeIDFromString(rec.ParentID)
			if err != nil {
				return nil, err
			}
		}

		childIDs := make([]valueobjects.NodeID, 0, len(rec.ChildIDs))
		for _, raw := range rec.ChildIDs {
			childID, err := valueobjects.NewNodeIDFromString(raw)
			if err != nil {
				return nil, err
			}
			childIDs = append(childIDs, childID)
		}

		node, err := entities.ReconstructNode(
			id,
			entities.NodeKind(rec.Kind),
			rec.Owner,
			valueobjects.ReconstructNodeContent(rec.Title, rec.Description),
			parentID,
			childIDs,
			rec.CreatedAt,
			rec.UpdatedAt,
			rec.Version,
		)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}
