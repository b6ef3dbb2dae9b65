package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardtree-backend/application/loaders"
	"cardtree-backend/application/ports"
	"cardtree-backend/domain/config"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
	treecache "cardtree-backend/infrastructure/cache"
	"cardtree-backend/infrastructure/persistence/memory"
	appErrors "cardtree-backend/pkg/errors"
)

func newBreadcrumbFixture(t *testing.T, cfg *config.DomainConfig) (*BreadcrumbService, *memory.NodeStore) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	logger := zap.NewNop()
	store := memory.NewNodeStore()
	cache := treecache.NewTreeCache(nil, treecache.DefaultOptions(), logger)
	loader := loaders.NewNodeLoader(store, cache, nil, logger)
	return NewBreadcrumbService(loader, cache, cfg, logger), store
}

func insertChain(t *testing.T, store *memory.NodeStore, titles ...string) []*entities.Node {
	t.Helper()
	ctx := context.Background()
	parent := valueobjects.RootID
	var chain []*entities.Node
	for _, title := range titles {
		content, err := valueobjects.NewNodeContent(title, "")
		require.NoError(t, err)
		node, err := entities.ReconstructNode(
			valueobjects.NewNodeID(), entities.KindFolder, "owner-1",
			content, parent, nil, time.Now(), time.Now(), 1,
		)
		require.NoError(t, err)
		require.NoError(t, store.Insert(ctx, node))
		if !parent.IsZero() {
			prev := chain[len(chain)-1]
			require.NoError(t, prev.AddChild(node.ID()))
			require.NoError(t, store.Update(ctx, prev))
		}
		chain = append(chain, node)
		parent = node.ID()
	}
	return chain
}

func TestBreadcrumb_RootFirstOrder(t *testing.T) {
	svc, store := newBreadcrumbFixture(t, nil)
	chain := insertChain(t, store, "A", "B", "C")

	path, err := svc.Resolve(context.Background(), chain[2].ID())
	require.NoError(t, err)
	require.Len(t, path, 3)
	for i, node := range chain {
		assert.True(t, path[i].ID().Equals(node.ID()), "path must run top level first")
	}
}

func TestBreadcrumb_TopLevelIsEmpty(t *testing.T) {
	svc, _ := newBreadcrumbFixture(t, nil)

	path, err := svc.Resolve(context.Background(), valueobjects.RootID)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBreadcrumb_MissingNode(t *testing.T) {
	svc, _ := newBreadcrumbFixture(t, nil)

	_, err := svc.Resolve(context.Background(), valueobjects.NewNodeID())
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestBreadcrumb_SecondResolveHitsCache(t *testing.T) {
	svc, store := newBreadcrumbFixture(t, nil)
	chain := insertChain(t, store, "A", "B", "C")
	ctx := context.Background()

	_, err := svc.Resolve(ctx, chain[2].ID())
	require.NoError(t, err)

	// Fail every store read; a cached path must still resolve.
	store.SetFault(func(op string, id valueobjects.NodeID) error {
		return appErrors.NewStoreUnavailableError(op, nil)
	})

	path, err := svc.Resolve(ctx, chain[2].ID())
	require.NoError(t, err)
	assert.Len(t, path, 3)
}

func TestBreadcrumb_DepthCap(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxTreeDepth = 2
	svc, store := newBreadcrumbFixture(t, cfg)
	chain := insertChain(t, store, "A", "B", "C")

	_, err := svc.Resolve(context.Background(), chain[2].ID())
	require.Error(t, err)
	assert.True(t, appErrors.IsMalformedTree(err))
}

// countingCache tallies node reads so tests can bound how far a walk got.
type countingCache struct {
	ports.TreeCache
	nodeReads int
}

func (c *countingCache) GetNode(ctx context.Context, id valueobjects.NodeID) (*entities.Node, bool) {
	c.nodeReads++
	return c.TreeCache.GetNode(ctx, id)
}

func TestBreadcrumb_ParentCycleFailsAfterOneLap(t *testing.T) {
	logger := zap.NewNop()
	store := memory.NewNodeStore()
	counting := &countingCache{TreeCache: treecache.NewTreeCache(nil, treecache.DefaultOptions(), logger)}
	loader := loaders.NewNodeLoader(store, counting, nil, logger)
	svc := NewBreadcrumbService(loader, counting, config.DefaultDomainConfig(), logger)

	chain := insertChain(t, store, "A", "B")
	ctx := context.Background()

	// Point A's parent back at B, forming a parent cycle.
	chain[0].SetParent(chain[1].ID())
	require.NoError(t, store.Update(ctx, chain[0]))

	_, err := svc.Resolve(ctx, chain[1].ID())
	require.Error(t, err)
	assert.True(t, appErrors.IsMalformedTree(err))
	assert.LessOrEqual(t, counting.nodeReads, 3,
		"walk must stop after one lap of the cycle, well short of the depth cap")
}
