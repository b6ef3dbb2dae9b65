package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardtree-backend/application/loaders"
	"cardtree-backend/domain/config"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
	appErrors "cardtree-backend/pkg/errors"
)

type navFixture struct {
	*treeFixture
	ctrl    *NavigationController
	locator *recordingLocator
}

type recordingLocator struct {
	current valueobjects.NodeID
	set     bool
}

func (l *recordingLocator) SetLocation(ctx context.Context, folderID valueobjects.NodeID) {
	l.current = folderID
	l.set = true
}

func (l *recordingLocator) Location(ctx context.Context) (valueobjects.NodeID, bool) {
	return l.current, l.set
}

func newNavFixture(t *testing.T) *navFixture {
	t.Helper()
	tf := newTreeFixture(t, config.DefaultDomainConfig())
	logger := zap.NewNop()
	loader := loaders.NewNodeLoader(tf.store, tf.cache, nil, logger)
	crumbs := NewBreadcrumbService(loader, tf.cache, config.DefaultDomainConfig(), logger)
	locator := &recordingLocator{}
	ctrl := NewNavigationController(loader, crumbs, locator, tf.bus, "session-1", logger)
	return &navFixture{treeFixture: tf, ctrl: ctrl, locator: locator}
}

func TestNavigateTo_Folder(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Projects", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", folder.ID())

	require.NoError(t, f.ctrl.NavigateTo(ctx, folder.ID()))

	state := f.ctrl.State()
	assert.True(t, state.FolderID.Equals(folder.ID()))
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
	require.Len(t, state.Children, 1)
	assert.True(t, state.Children[0].ID().Equals(card.ID()))
	require.Len(t, state.Breadcrumb, 1)
	assert.True(t, state.Breadcrumb[0].ID().Equals(folder.ID()))

	assert.True(t, f.locator.current.Equals(folder.ID()))
	assert.Len(t, f.bus.OfType("navigation.folder_opened"), 1)
}

func TestNavigateTo_CardRejected(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Projects", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", folder.ID())

	require.NoError(t, f.ctrl.NavigateTo(ctx, folder.ID()))
	err := f.ctrl.NavigateTo(ctx, card.ID())
	require.Error(t, err)
	assert.True(t, appErrors.IsInvalidKind(err))

	// The session stays where it was.
	state := f.ctrl.State()
	assert.True(t, state.FolderID.Equals(folder.ID()))
	assert.Error(t, state.Err)
	assert.Len(t, f.bus.OfType("navigation.folder_opened"), 1)
}

func TestNavigateTo_TopLevel(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	f.mustCreate(t, entities.KindFolder, "Projects", valueobjects.RootID)
	f.mustCreate(t, entities.KindCard, "Inbox", valueobjects.RootID)

	require.NoError(t, f.ctrl.NavigateTo(ctx, valueobjects.RootID))

	state := f.ctrl.State()
	assert.True(t, state.FolderID.IsZero())
	assert.Len(t, state.Children, 2)
	assert.Empty(t, state.Breadcrumb)
}

func TestNavigateToParent(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	outer := f.mustCreate(t, entities.KindFolder, "Outer", valueobjects.RootID)
	inner := f.mustCreate(t, entities.KindFolder, "Inner", outer.ID())

	require.NoError(t, f.ctrl.NavigateTo(ctx, inner.ID()))
	require.NoError(t, f.ctrl.NavigateToParent(ctx))
	assert.True(t, f.ctrl.State().FolderID.Equals(outer.ID()))

	require.NoError(t, f.ctrl.NavigateToParent(ctx))
	assert.True(t, f.ctrl.State().FolderID.IsZero())

	// At the top level going up is a no-op.
	seq := f.ctrl.State().Sequence
	require.NoError(t, f.ctrl.NavigateToParent(ctx))
	assert.Equal(t, seq, f.ctrl.State().Sequence)
}

func TestNavigateToParent_CurrentFolderDeleted(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Doomed", valueobjects.RootID)
	require.NoError(t, f.ctrl.NavigateTo(ctx, folder.ID()))

	require.NoError(t, f.svc.DeleteNode(ctx, folder.ID()))

	require.NoError(t, f.ctrl.NavigateToParent(ctx))
	assert.True(t, f.ctrl.State().FolderID.IsZero(), "deleted position falls back to the top level")
}

func TestResume_ReturnsToSavedLocation(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Projects", valueobjects.RootID)
	card := f.mustCreate(t, entities.KindCard, "Note", folder.ID())

	f.locator.SetLocation(ctx, folder.ID())

	require.NoError(t, f.ctrl.Resume(ctx))

	state := f.ctrl.State()
	assert.True(t, state.FolderID.Equals(folder.ID()))
	require.Len(t, state.Children, 1)
	assert.True(t, state.Children[0].ID().Equals(card.ID()))
}

func TestResume_NoSavedLocationStartsAtTopLevel(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	f.mustCreate(t, entities.KindCard, "Inbox", valueobjects.RootID)

	require.NoError(t, f.ctrl.Resume(ctx))

	state := f.ctrl.State()
	assert.True(t, state.FolderID.IsZero())
	assert.Len(t, state.Children, 1)
}

func TestResume_FallsBackWhenSavedFolderIsGone(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Doomed", valueobjects.RootID)
	f.locator.SetLocation(ctx, folder.ID())
	require.NoError(t, f.svc.DeleteNode(ctx, folder.ID()))

	require.NoError(t, f.ctrl.Resume(ctx))

	state := f.ctrl.State()
	assert.True(t, state.FolderID.IsZero(), "stale saved location falls back to the top level")
	assert.True(t, f.locator.current.IsZero(), "fallback position is saved for the next resume")
}

func TestNavigation_StaleResultDiscarded(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	a := f.mustCreate(t, entities.KindFolder, "A", valueobjects.RootID)
	b := f.mustCreate(t, entities.KindFolder, "B", valueobjects.RootID)
	f.mustCreate(t, entities.KindCard, "In A", a.ID())

	// Simulate a slow navigation into A that is overtaken by one into B.
	staleSeq := f.ctrl.begin(a.ID())
	require.NoError(t, f.ctrl.NavigateTo(ctx, b.ID()))

	children, err := f.ctrl.loader.GetChildren(ctx, a.ID())
	require.NoError(t, err)
	committed := f.ctrl.finish(staleSeq, a.ID(), children, nil)

	assert.False(t, committed, "superseded result must be discarded")
	assert.True(t, f.ctrl.State().FolderID.Equals(b.ID()))
}

func TestNavigation_SubscribeReceivesSnapshots(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Projects", valueobjects.RootID)

	var states []NavigationState
	f.ctrl.Subscribe(func(s NavigationState) {
		states = append(states, s)
	})
	require.Len(t, states, 1, "immediate snapshot on subscribe")

	require.NoError(t, f.ctrl.NavigateTo(ctx, folder.ID()))
	require.Len(t, states, 3, "loading snapshot then committed snapshot")
	assert.True(t, states[1].Loading)
	assert.False(t, states[2].Loading)
	assert.True(t, states[2].FolderID.Equals(folder.ID()))
}

func TestNavigation_Refresh(t *testing.T) {
	f := newNavFixture(t)
	ctx := context.Background()

	folder := f.mustCreate(t, entities.KindFolder, "Projects", valueobjects.RootID)
	require.NoError(t, f.ctrl.NavigateTo(ctx, folder.ID()))
	assert.Empty(t, f.ctrl.State().Children)

	f.mustCreate(t, entities.KindCard, "New note", folder.ID())
	require.NoError(t, f.ctrl.Refresh(ctx))
	assert.Len(t, f.ctrl.State().Children, 1)
}
