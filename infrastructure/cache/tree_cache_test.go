package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
)

// fakeDurable is an in-memory ports.DurableStore for exercising the
// two-tier paths without DynamoDB.
type fakeDurable struct {
	mu      sync.Mutex
	entries map[string][]byte
	fail    bool
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{entries: make(map[string][]byte)}
}

func (d *fakeDurable) Get(ctx context.Context, key string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return nil, false, assert.AnError
	}
	data, ok := d.entries[key]
	return data, ok, nil
}

func (d *fakeDurable) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return assert.AnError
	}
	d.entries[key] = value
	return nil
}

func (d *fakeDurable) Remove(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
	return nil
}

func newTestNode(t *testing.T, kind entities.NodeKind, title string, parentID valueobjects.NodeID) *entities.Node {
	t.Helper()
	content, err := valueobjects.NewNodeContent(title, "")
	require.NoError(t, err)
	node, err := entities.NewNode(kind, "owner-1", content, parentID)
	require.NoError(t, err)
	return node
}

func TestTreeCache_NodeRoundTrip(t *testing.T) {
	c := NewTreeCache(nil, DefaultOptions(), zap.NewNop())
	ctx := context.Background()

	node := newTestNode(t, entities.KindCard, "Note", valueobjects.RootID)

	_, ok := c.GetNode(ctx, node.ID())
	assert.False(t, ok)

	c.PutNode(ctx, node)
	got, ok := c.GetNode(ctx, node.ID())
	require.True(t, ok)
	assert.True(t, got.ID().Equals(node.ID()))

	c.Invalidate(ctx, node.ID())
	_, ok = c.GetNode(ctx, node.ID())
	assert.False(t, ok)
}

func TestTreeCache_ReturnedNodesDoNotAliasCachedEntries(t *testing.T) {
	c := NewTreeCache(nil, DefaultOptions(), zap.NewNop())
	ctx := context.Background()

	folder := newTestNode(t, entities.KindFolder, "Projects", valueobjects.RootID)
	card := newTestNode(t, entities.KindCard, "Note", folder.ID())
	require.NoError(t, folder.AddChild(card.ID()))

	c.PutNode(ctx, folder)
	c.PutChildren(ctx, valueobjects.RootID, []*entities.Node{folder})

	// Mutating a cached-and-returned node must not bleed into later
	// reads; a caller may abandon the mutation when its store write
	// fails.
	got, ok := c.GetNode(ctx, folder.ID())
	require.True(t, ok)
	require.True(t, got.RemoveChild(card.ID()))

	again, ok := c.GetNode(ctx, folder.ID())
	require.True(t, ok)
	assert.True(t, again.HasChild(card.ID()), "cache entry survives caller-side mutation")

	// Same isolation for the original passed to PutNode.
	require.True(t, folder.RemoveChild(card.ID()))
	again, ok = c.GetNode(ctx, folder.ID())
	require.True(t, ok)
	assert.True(t, again.HasChild(card.ID()))

	children, ok := c.GetChildren(ctx, valueobjects.RootID)
	require.True(t, ok)
	require.Len(t, children, 1)
	assert.True(t, children[0].HasChild(card.ID()))
}

func TestTreeCache_ChildrenKeyedByRootSentinel(t *testing.T) {
	c := NewTreeCache(nil, DefaultOptions(), zap.NewNop())
	ctx := context.Background()

	topLevel := []*entities.Node{newTestNode(t, entities.KindFolder, "A", valueobjects.RootID)}
	c.PutChildren(ctx, valueobjects.RootID, topLevel)

	got, ok := c.GetChildren(ctx, valueobjects.RootID)
	require.True(t, ok)
	assert.Len(t, got, 1)

	c.InvalidateChildren(ctx, valueobjects.RootID)
	_, ok = c.GetChildren(ctx, valueobjects.RootID)
	assert.False(t, ok)
}

func TestTreeCache_InvalidateDropsContainingBreadcrumbs(t *testing.T) {
	c := NewTreeCache(nil, DefaultOptions(), zap.NewNop())
	ctx := context.Background()

	top := newTestNode(t, entities.KindFolder, "Top", valueobjects.RootID)
	mid := newTestNode(t, entities.KindFolder, "Mid", top.ID())
	leaf := newTestNode(t, entities.KindFolder, "Leaf", mid.ID())
	other := newTestNode(t, entities.KindFolder, "Other", valueobjects.RootID)

	c.PutBreadcrumb(ctx, leaf.ID(), []*entities.Node{top, mid, leaf})
	c.PutBreadcrumb(ctx, mid.ID(), []*entities.Node{top, mid})
	c.PutBreadcrumb(ctx, other.ID(), []*entities.Node{other})

	// Invalidating a mid-path member drops every path containing it,
	// not just the one keyed by it.
	c.Invalidate(ctx, mid.ID())

	_, ok := c.GetBreadcrumb(ctx, leaf.ID())
	assert.False(t, ok)
	_, ok = c.GetBreadcrumb(ctx, mid.ID())
	assert.False(t, ok)

	_, ok = c.GetBreadcrumb(ctx, other.ID())
	assert.True(t, ok, "unrelated paths survive")
}

func TestTreeCache_MemoryEntriesExpire(t *testing.T) {
	opts := Options{NodeTTL: 10 * time.Millisecond}
	c := NewTreeCache(nil, opts, zap.NewNop())
	ctx := context.Background()

	node := newTestNode(t, entities.KindCard, "Note", valueobjects.RootID)
	c.PutNode(ctx, node)

	time.Sleep(25 * time.Millisecond)
	_, ok := c.GetNode(ctx, node.ID())
	assert.False(t, ok)
}

func TestTreeCache_DurableTierRehydratesMemory(t *testing.T) {
	durable := newFakeDurable()
	warm := NewTreeCache(durable, DefaultOptions(), zap.NewNop())
	ctx := context.Background()

	folder := newTestNode(t, entities.KindFolder, "Projects", valueobjects.RootID)
	card := newTestNode(t, entities.KindCard, "Note", folder.ID())
	require.NoError(t, folder.AddChild(card.ID()))

	warm.PutNode(ctx, folder)
	warm.PutChildren(ctx, folder.ID(), []*entities.Node{card})

	// A fresh cache over the same durable tier simulates a process restart.
	cold := NewTreeCache(durable, DefaultOptions(), zap.NewNop())

	got, ok := cold.GetNode(ctx, folder.ID())
	require.True(t, ok)
	assert.True(t, got.ID().Equals(folder.ID()))
	assert.True(t, got.HasChild(card.ID()))
	assert.Equal(t, "Projects", got.Content().Title())

	children, ok := cold.GetChildren(ctx, folder.ID())
	require.True(t, ok)
	require.Len(t, children, 1)
	assert.True(t, children[0].ParentID().Equals(folder.ID()))
}

func TestTreeCache_FailingDurableTierDegradesToMemory(t *testing.T) {
	durable := newFakeDurable()
	durable.fail = true
	c := NewTreeCache(durable, DefaultOptions(), zap.NewNop())
	ctx := context.Background()

	node := newTestNode(t, entities.KindCard, "Note", valueobjects.RootID)
	c.PutNode(ctx, node)

	got, ok := c.GetNode(ctx, node.ID())
	require.True(t, ok, "memory tier still serves despite durable failures")
	assert.True(t, got.ID().Equals(node.ID()))
}

func TestTreeCache_CorruptDurableEntryIsDropped(t *testing.T) {
	durable := newFakeDurable()
	c := NewTreeCache(durable, DefaultOptions(), zap.NewNop())
	ctx := context.Background()

	id := valueobjects.NewNodeID()
	durable.entries[NodeKey(id)] = []byte("{not json")

	_, ok := c.GetNode(ctx, id)
	assert.False(t, ok)

	_, found := durable.entries[NodeKey(id)]
	assert.False(t, found, "corrupt entry removed")
}

func TestKeys(t *testing.T) {
	id, err := valueobjects.NewNodeIDFromString("abc")
	require.NoError(t, err)

	assert.Equal(t, "node_abc", NodeKey(id))
	assert.Equal(t, "folder_abc", ChildrenKey(id))
	assert.Equal(t, "folder_root", ChildrenKey(valueobjects.RootID))
	assert.Equal(t, "breadcrumb_abc", BreadcrumbKey(id))
}
