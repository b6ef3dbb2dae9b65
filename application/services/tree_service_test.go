package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardtree-backend/application/loaders"
	"cardtree-backend/domain/config"
	treecache "cardtree-backend/infrastructure/cache"
	"cardtree-backend/infrastructure/messaging/local"
	"cardtree-backend/infrastructure/persistence/memory"

	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
	appErrors "cardtree-backend/pkg/errors"
)

type treeFixture struct {
	svc    *TreeService
	store  *memory.NodeStore
	cache  *treecache.TreeCache
	loader *loaders.NodeLoader
	bus    *local.Bus
}

func newTreeFixture(t *testing.T, cfg *config.DomainConfig) *treeFixture {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	logger := zap.NewNop()
	store := memory.NewNodeStore()
	cache := treecache.NewTreeCache(nil, treecache.DefaultOptions(), logger)
	bus := local.NewBus(logger)
	loader := loaders.NewNodeLoader(store, cache, nil, logger)
	svc := NewTreeService(store, cache, loader, bus, cfg, logger)
	return &treeFixture{svc: svc, store: store, cache: cache, loader: loader, bus: bus}
}

func (f *treeFixture) mustCreate(t *testing.T, kind entities.NodeKind, title string, parentID valueobjects.NodeID) *entities.Node {
	t.Helper()
	node, err := f.svc.CreateNode(context.Background(), CreateNodeInput{
		Kind:     kind,
		Title:    title,
		Owner:    "owner-1",
		ParentID: parentID,
	})
	require.NoError(t, err)
	return node
}

// storedNode reads straight from the store, bypassing the cache, so
// assertions see what was actually written.
func (f *treeFixture) storedNode(t *testing.T, id valueobjects.NodeID) *entities.Node {
	t.Helper()
	node, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return node
}

func TestCreateNode_UnderFolder(t *testing.T) {
	f := newTreeFixture(t, nil)

	folder := f.mustCreate(t, entities.KindFolder, "Projects", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Design notes", folder.ID())

	stored := f.storedNode(t, card.ID())
	assert.True(t, stored.ParentID().Equals(folder.ID()))

	parent := f.storedNode(t, folder.ID())
	assert.True(t, parent.HasChild(card.ID()), "parent child_ids must contain the new node")

	created := f.bus.OfType("tree.node_created")
	assert.Len(t, created, 2)
}

func TestCreateNode_TopLevel(t *testing.T) {
	f := newTreeFixture(t, nil)

	node := f.mustCreate(t, entities.KindCard, "Inbox note", valueobjects.RootID)

	stored := f.storedNode(t, node.ID())
	assert.True(t, stored.IsTopLevel())
	assert.Equal(t, 1, f.store.Inserts)
	assert.Equal(t, 0, f.store.Updates, "top-level creation must not touch any parent")
}

func TestCreateNode_UnderCardRejected(t *testing.T) {
	f := newTreeFixture(t, nil)

	card := f.mustCreate(t, entities.KindCard, "A card", valueobjects.RootID)

	_, err := f.svc.CreateNode(context.Background(), CreateNodeInput{
		Kind:     entities.KindCard,
		Title:    "Nested",
		Owner:    "owner-1",
		ParentID: card.ID(),
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsInvalidKind(err))
}

func TestCreateNode_MissingParent(t *testing.T) {
	f := newTreeFixture(t, nil)

	_, err := f.svc.CreateNode(context.Background(), CreateNodeInput{
		Kind:     entities.KindCard,
		Title:    "Lost",
		Owner:    "owner-1",
		ParentID: valueobjects.NewNodeID(),
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestCreateNode_InvalidKind(t *testing.T) {
	f := newTreeFixture(t, nil)

	_, err := f.svc.CreateNode(context.Background(), CreateNodeInput{
		Kind:  entities.NodeKind("document"),
		Title: "Bad",
		Owner: "owner-1",
	})
	require.Error(t, err)
}

func TestCreateNode_ParentLinkFailureIsPartial(t *testing.T) {
	f := newTreeFixture(t, nil)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Projects", valueobjects.RootID)

	boom := errors.New("throttled")
	f.store.SetFault(func(op string, id valueobjects.NodeID) error {
		if op == "update" && id.Equals(folder.ID()) {
			return boom
		}
		return nil
	})

	_, err := f.svc.CreateNode(ctx, CreateNodeInput{
		Kind:     entities.KindCard,
		Title:    "Doomed",
		Owner:    "owner-1",
		ParentID: folder.ID(),
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsPartialMutation(err), "node insert succeeded, parent link failed")

	drift := f.bus.OfType("tree.drift_detected")
	require.Len(t, drift, 1)
}

func TestMoveNode_RejectsSelfParent(t *testing.T) {
	f := newTreeFixture(t, nil)

	folder := f.mustCreate(t, entities.KindFolder, "Alpha", valueobjects.RootID)

	err := f.svc.MoveNode(context.Background(), folder.ID(), folder.ID())
	require.Error(t, err)
	assert.True(t, appErrors.IsCycleDetected(err))
}

func TestMoveNode_RejectsDescendantCycle(t *testing.T) {
	f := newTreeFixture(t, nil)

	a := f.mustCreate(t, entities.KindFolder, "A", valueobjects.RootID)
	b := f.mustCreate(t, entities.KindFolder, "B", a.ID())
	c := f.mustCreate(t, entities.KindFolder, "C", b.ID())

	err := f.svc.MoveNode(context.Background(), a.ID(), c.ID())
	require.Error(t, err)
	assert.True(t, appErrors.IsCycleDetected(err))

	// Nothing was written.
	stored := f.storedNode(t, a.ID())
	assert.True(t, stored.IsTopLevel())
}

func TestMoveNode_NoOpWhenAlreadyInPlace(t *testing.T) {
	f := newTreeFixture(t, nil)

	folder := f.mustCreate(t, entities.KindFolder, "Alpha", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", folder.ID())

	updatesBefore := f.store.Updates
	err := f.svc.MoveNode(context.Background(), card.ID(), folder.ID())
	require.NoError(t, err)
	assert.Equal(t, updatesBefore, f.store.Updates, "same-parent move must issue zero writes")
}

func TestMoveNode_BetweenFolders(t *testing.T) {
	f := newTreeFixture(t, nil)

	src := f.mustCreate(t, entities.KindFolder, "Source", valueobjects.RootID)
	dst := f.mustCreate(t, entities.KindFolder, "Dest", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", src.ID())

	err := f.svc.MoveNode(context.Background(), card.ID(), dst.ID())
	require.NoError(t, err)

	assert.False(t, f.storedNode(t, src.ID()).HasChild(card.ID()))
	assert.True(t, f.storedNode(t, dst.ID()).HasChild(card.ID()))
	assert.True(t, f.storedNode(t, card.ID()).ParentID().Equals(dst.ID()))

	moved := f.bus.OfType("tree.node_moved")
	assert.Len(t, moved, 1)
}

func TestMoveNode_ToTopLevel(t *testing.T) {
	f := newTreeFixture(t, nil)

	src := f.mustCreate(t, entities.KindFolder, "Source", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", src.ID())

	err := f.svc.MoveNode(context.Background(), card.ID(), valueobjects.RootID)
	require.NoError(t, err)

	assert.True(t, f.storedNode(t, card.ID()).IsTopLevel())
	assert.False(t, f.storedNode(t, src.ID()).HasChild(card.ID()))
}

func TestMoveNode_FirstWriteFailureIsNotPartial(t *testing.T) {
	f := newTreeFixture(t, nil)

	src := f.mustCreate(t, entities.KindFolder, "Source", valueobjects.RootID)
	dst := f.mustCreate(t, entities.KindFolder, "Dest", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", src.ID())

	f.store.SetFault(func(op string, id valueobjects.NodeID) error {
		if op == "update" && id.Equals(src.ID()) {
			return errors.New("throttled")
		}
		return nil
	})

	err := f.svc.MoveNode(context.Background(), card.ID(), dst.ID())
	require.Error(t, err)
	assert.True(t, appErrors.IsStoreUnavailable(err))
	assert.False(t, appErrors.IsPartialMutation(err), "nothing committed yet")
	assert.Empty(t, f.bus.OfType("tree.drift_detected"))
}

func TestMoveNode_FailedMoveLeavesCacheMatchingStore(t *testing.T) {
	f := newTreeFixture(t, nil)
	ctx := context.Background()

	src := f.mustCreate(t, entities.KindFolder, "Source", valueobjects.RootID)
	dst := f.mustCreate(t, entities.KindFolder, "Dest", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", src.ID())

	// Warm the cache with the source folder as the store holds it.
	warm, err := f.loader.GetNode(ctx, src.ID())
	require.NoError(t, err)
	require.True(t, warm.HasChild(card.ID()))

	// Fail the very first write of the move, the old parent's unlink.
	f.store.SetFault(func(op string, id valueobjects.NodeID) error {
		if op == "update" && id.Equals(src.ID()) {
			return errors.New("throttled")
		}
		return nil
	})
	err = f.svc.MoveNode(ctx, card.ID(), dst.ID())
	require.Error(t, err)
	require.True(t, appErrors.IsStoreUnavailable(err))

	// Nothing was committed, so cached reads must keep matching the
	// store: the source folder still lists the card.
	cached, ok := f.cache.GetNode(ctx, src.ID())
	require.True(t, ok)
	assert.True(t, cached.HasChild(card.ID()), "cache must not serve the abandoned mutation")

	f.store.SetFault(nil)
	assert.True(t, f.storedNode(t, src.ID()).HasChild(card.ID()))
}

func TestMoveNode_ConcurrentMovesIntoSameFolder(t *testing.T) {
	f := newTreeFixture(t, nil)
	ctx := context.Background()

	src := f.mustCreate(t, entities.KindFolder, "Source", valueobjects.RootID)
	dst := f.mustCreate(t, entities.KindFolder, "Dest", valueobjects.RootID)

	var cards []*entities.Node
	for i := 0; i < 8; i++ {
		cards = append(cards, f.mustCreate(t, entities.KindCard, fmt.Sprintf("Note %d", i), src.ID()))
	}

	// The destination's child_ids entry is rewritten wholesale on every
	// move, so unserialized movers would overwrite each other's links.
	var wg sync.WaitGroup
	errs := make(chan error, len(cards))
	for _, card := range cards {
		wg.Add(1)
		go func(id valueobjects.NodeID) {
			defer wg.Done()
			errs <- f.svc.MoveNode(ctx, id, dst.ID())
		}(card.ID())
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := f.storedNode(t, dst.ID())
	for _, card := range cards {
		assert.True(t, stored.HasChild(card.ID()))
		assert.True(t, f.storedNode(t, card.ID()).ParentID().Equals(dst.ID()))
	}
	assert.Equal(t, 0, f.storedNode(t, src.ID()).ChildCount())
}

func TestMoveNode_MidSequenceFailureReportsDrift(t *testing.T) {
	f := newTreeFixture(t, nil)
	ctx := context.Background()

	src := f.mustCreate(t, entities.KindFolder, "Source", valueobjects.RootID)
	dst := f.mustCreate(t, entities.KindFolder, "Dest", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", src.ID())

	f.store.SetFault(func(op string, id valueobjects.NodeID) error {
		if op == "update" && id.Equals(card.ID()) {
			return errors.New("throttled")
		}
		return nil
	})

	err := f.svc.MoveNode(ctx, card.ID(), dst.ID())
	require.Error(t, err)
	assert.True(t, appErrors.IsPartialMutation(err))

	drift := f.bus.OfType("tree.drift_detected")
	require.Len(t, drift, 1)

	// The store is now inconsistent until reconciled: both folders
	// changed but the node still points at the old parent.
	f.store.SetFault(nil)
	assert.True(t, f.storedNode(t, dst.ID()).HasChild(card.ID()))
	assert.True(t, f.storedNode(t, card.ID()).ParentID().Equals(src.ID()))
}

func TestDeleteNode_Card(t *testing.T) {
	f := newTreeFixture(t, nil)

	folder := f.mustCreate(t, entities.KindFolder, "Alpha", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", folder.ID())

	err := f.svc.DeleteNode(context.Background(), card.ID())
	require.NoError(t, err)

	_, err = f.store.Get(context.Background(), card.ID())
	assert.True(t, appErrors.IsNotFound(err))
	assert.False(t, f.storedNode(t, folder.ID()).HasChild(card.ID()))
}

func TestDeleteNode_RejectsNonEmptyFolder(t *testing.T) {
	f := newTreeFixture(t, nil)

	folder := f.mustCreate(t, entities.KindFolder, "Alpha", valueobjects.RootID)
	f.mustCreate(t, entities.KindCard, "Note", folder.ID())

	err := f.svc.DeleteNode(context.Background(), folder.ID())
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.Equal(t, 2, f.store.Len(), "nothing deleted")
}

func TestDeleteNode_CascadeRemovesSubtree(t *testing.T) {
	cfg := config.DefaultDomainConfig().WithDeletePolicy(config.DeletePolicyCascade)
	f := newTreeFixture(t, cfg)

	top := f.mustCreate(t, entities.KindFolder, "Top", valueobjects.RootID)
	mid := f.mustCreate(t, entities.KindFolder, "Mid", top.ID())
	f.mustCreate(t, entities.KindCard, "Leaf one", mid.ID())
	f.mustCreate(t, entities.KindCard, "Leaf two", mid.ID())
	sibling := f.mustCreate(t, entities.KindCard, "Survivor", valueobjects.RootID)

	err := f.svc.DeleteNode(context.Background(), top.ID())
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.Len())
	survivor := f.storedNode(t, sibling.ID())
	assert.True(t, survivor.IsTopLevel())

	deleted := f.bus.OfType("tree.node_deleted")
	assert.Len(t, deleted, 1, "one event for the requested delete")
}

func TestDeleteNode_EmptyFolderUnderRejectPolicy(t *testing.T) {
	f := newTreeFixture(t, nil)

	folder := f.mustCreate(t, entities.KindFolder, "Empty", valueobjects.RootID)

	err := f.svc.DeleteNode(context.Background(), folder.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.Len())
}

func TestReconcile_RepairsDriftedMove(t *testing.T) {
	f := newTreeFixture(t, nil)
	ctx := context.Background()

	src := f.mustCreate(t, entities.KindFolder, "Source", valueobjects.RootID)
	dst := f.mustCreate(t, entities.KindFolder, "Dest", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", src.ID())

	// Fail the final node update so both folders drift from the node's
	// parent pointer.
	f.store.SetFault(func(op string, id valueobjects.NodeID) error {
		if op == "update" && id.Equals(card.ID()) {
			return errors.New("throttled")
		}
		return nil
	})
	err := f.svc.MoveNode(ctx, card.ID(), dst.ID())
	require.True(t, appErrors.IsPartialMutation(err))
	f.store.SetFault(nil)

	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.NodesScanned)
	assert.Equal(t, 2, report.FoldersRewritten, "src regains the child, dst loses the phantom entry")

	// parent_id is ground truth: the card stays under src.
	assert.True(t, f.storedNode(t, src.ID()).HasChild(card.ID()))
	assert.False(t, f.storedNode(t, dst.ID()).HasChild(card.ID()))

	repaired := f.bus.OfType("tree.repaired")
	assert.Len(t, repaired, 1)
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newTreeFixture(t, nil)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Alpha", valueobjects.RootID)
	for i := 0; i < 3; i++ {
		f.mustCreate(t, entities.KindCard, fmt.Sprintf("Note %d", i), folder.ID())
	}

	first, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, first.FoldersRewritten, "consistent tree needs no repairs")

	second, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FoldersRewritten)
}

func TestReconcile_ReportsOrphans(t *testing.T) {
	f := newTreeFixture(t, nil)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Alpha", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", folder.ID())

	// Delete the folder record out from under the card, bypassing the
	// engine, to simulate external damage.
	require.NoError(t, f.store.Delete(ctx, folder.ID()))

	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{card.ID().String()}, report.OrphanedNodes)
}

func TestReconcile_ConvergesAfterRepeatedFaults(t *testing.T) {
	cfg := config.DefaultDomainConfig().WithDeletePolicy(config.DeletePolicyCascade)
	f := newTreeFixture(t, cfg)
	ctx := context.Background()

	a := f.mustCreate(t, entities.KindFolder, "A", valueobjects.RootID)
	b := f.mustCreate(t, entities.KindFolder, "B", valueobjects.RootID)
	var cards []*entities.Node
	for i := 0; i < 4; i++ {
		cards = append(cards, f.mustCreate(t, entities.KindCard, fmt.Sprintf("Note %d", i), a.ID()))
	}

	// Break two moves mid-sequence.
	for _, card := range cards[:2] {
		id := card.ID()
		f.store.SetFault(func(op string, faultID valueobjects.NodeID) error {
			if op == "update" && faultID.Equals(id) {
				return errors.New("throttled")
			}
			return nil
		})
		err := f.svc.MoveNode(ctx, id, b.ID())
		require.True(t, appErrors.IsPartialMutation(err))
	}
	f.store.SetFault(nil)

	_, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)

	// Every folder's child_ids now matches the parent pointers exactly.
	for _, folderID := range []valueobjects.NodeID{a.ID(), b.ID()} {
		folder := f.storedNode(t, folderID)
		for _, childID := range folder.ChildIDs() {
			child := f.storedNode(t, childID)
			assert.True(t, child.ParentID().Equals(folderID))
		}
	}
	for _, card := range cards {
		stored := f.storedNode(t, card.ID())
		parent := f.storedNode(t, stored.ParentID())
		assert.True(t, parent.HasChild(card.ID()))
	}
}
