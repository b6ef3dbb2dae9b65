package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtree-backend/domain/core/valueobjects"
	pkgerrors "cardtree-backend/pkg/errors"
)

func mustContent(t *testing.T, title string) valueobjects.NodeContent {
	t.Helper()
	content, err := valueobjects.NewNodeContent(title, "")
	require.NoError(t, err)
	return content
}

func TestNewNode(t *testing.T) {
	node, err := NewNode(KindFolder, "owner-1", mustContent(t, "Projects"), valueobjects.RootID)
	require.NoError(t, err)

	assert.False(t, node.ID().IsZero())
	assert.True(t, node.IsFolder())
	assert.True(t, node.IsTopLevel())
	assert.Equal(t, 1, node.Version())

	events := node.GetUncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "tree.node_created", events[0].GetEventType())
}

func TestNewNode_Invalid(t *testing.T) {
	content := mustContent(t, "X")

	_, err := NewNode(NodeKind("document"), "owner-1", content, valueobjects.RootID)
	assert.Error(t, err)

	_, err = NewNode(KindCard, "", content, valueobjects.RootID)
	assert.Error(t, err)

	_, err = NewNodeWithID(valueobjects.RootID, KindCard, "owner-1", content, valueobjects.RootID)
	assert.Error(t, err, "the root sentinel is not a usable id")
}

func TestAddChild(t *testing.T) {
	folder, err := NewNode(KindFolder, "owner-1", mustContent(t, "F"), valueobjects.RootID)
	require.NoError(t, err)
	childID := valueobjects.NewNodeID()

	require.NoError(t, folder.AddChild(childID))
	assert.True(t, folder.HasChild(childID))

	// Duplicate add keeps the pair a set.
	require.NoError(t, folder.AddChild(childID))
	assert.Equal(t, 1, folder.ChildCount())
}

func TestAddChild_CardRejected(t *testing.T) {
	card, err := NewNode(KindCard, "owner-1", mustContent(t, "C"), valueobjects.RootID)
	require.NoError(t, err)

	err = card.AddChild(valueobjects.NewNodeID())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidKind(err))
}

func TestAddChild_SelfRejected(t *testing.T) {
	folder, err := NewNode(KindFolder, "owner-1", mustContent(t, "F"), valueobjects.RootID)
	require.NoError(t, err)

	err = folder.AddChild(folder.ID())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCycleDetected(err))
}

func TestRemoveChild(t *testing.T) {
	folder, err := NewNode(KindFolder, "owner-1", mustContent(t, "F"), valueobjects.RootID)
	require.NoError(t, err)
	childID := valueobjects.NewNodeID()
	require.NoError(t, folder.AddChild(childID))

	assert.True(t, folder.RemoveChild(childID))
	assert.False(t, folder.RemoveChild(childID), "second remove reports absence")
	assert.Equal(t, 0, folder.ChildCount())
}

func TestSetParent(t *testing.T) {
	node, err := NewNode(KindCard, "owner-1", mustContent(t, "C"), valueobjects.RootID)
	require.NoError(t, err)
	node.MarkEventsAsCommitted()

	versionBefore := node.Version()
	node.SetParent(node.ParentID())
	assert.Equal(t, versionBefore, node.Version(), "same-parent set is a true no-op")
	assert.Empty(t, node.GetUncommittedEvents())

	newParent := valueobjects.NewNodeID()
	node.SetParent(newParent)
	assert.True(t, node.ParentID().Equals(newParent))
	assert.False(t, node.IsTopLevel())

	events := node.GetUncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "tree.node_moved", events[0].GetEventType())
}

func TestReplaceChildren(t *testing.T) {
	folder, err := NewNode(KindFolder, "owner-1", mustContent(t, "F"), valueobjects.RootID)
	require.NoError(t, err)
	require.NoError(t, folder.AddChild(valueobjects.NewNodeID()))

	replacement := []valueobjects.NodeID{valueobjects.NewNodeID(), valueobjects.NewNodeID()}
	require.NoError(t, folder.ReplaceChildren(replacement))
	assert.Equal(t, 2, folder.ChildCount())

	// Clearing a card's (empty) child set is legal; assigning one is not.
	card, err := NewNode(KindCard, "owner-1", mustContent(t, "C"), valueobjects.RootID)
	require.NoError(t, err)
	require.NoError(t, card.ReplaceChildren(nil))
	assert.Error(t, card.ReplaceChildren(replacement))
}
