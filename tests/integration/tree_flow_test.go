// Package integration exercises the full command/query path the way
// the HTTP layer drives it: dispatch through the buses, persistence in
// a store, events on a bus.
package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cardtree-backend/application/commands"
	commandbus "cardtree-backend/application/commands/bus"
	commandhandlers "cardtree-backend/application/commands/handlers"
	"cardtree-backend/application/loaders"
	"cardtree-backend/application/queries"
	querybus "cardtree-backend/application/queries/bus"
	queryhandlers "cardtree-backend/application/queries/handlers"
	"cardtree-backend/application/services"
	"cardtree-backend/domain/config"
	treecache "cardtree-backend/infrastructure/cache"
	"cardtree-backend/infrastructure/messaging/local"
	"cardtree-backend/infrastructure/persistence/memory"
	appErrors "cardtree-backend/pkg/errors"
)

type stack struct {
	commandBus *commandbus.CommandBus
	queryBus   *querybus.QueryBus
	store      *memory.NodeStore
	bus        *local.Bus
}

// newStack wires the buses the same way the DI container does, with
// the in-memory store and local event bus standing in for AWS.
func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.DefaultDomainConfig()

	store := memory.NewNodeStore()
	cache := treecache.NewTreeCache(nil, treecache.DefaultOptions(), logger)
	bus := local.NewBus(logger)
	loader := loaders.NewNodeLoader(store, cache, nil, logger)
	tree := services.NewTreeService(store, cache, loader, bus, cfg, logger)
	crumbs := services.NewBreadcrumbService(loader, cache, cfg, logger)

	cb := commandbus.NewCommandBus()
	registerCommandHandlers(cb, tree, logger)

	qb := querybus.NewQueryBus()
	registerQueryHandlers(qb, loader, crumbs, logger)

	return &stack{commandBus: cb, queryBus: qb, store: store, bus: bus}
}

type commandFunc func(ctx context.Context, cmd commandbus.Command) error

func (f commandFunc) Handle(ctx context.Context, cmd commandbus.Command) error {
	return f(ctx, cmd)
}

type queryFunc func(ctx context.Context, q querybus.Query) (interface{}, error)

func (f queryFunc) Handle(ctx context.Context, q querybus.Query) (interface{}, error) {
	return f(ctx, q)
}

func registerCommandHandlers(cb *commandbus.CommandBus, tree *services.TreeService, logger *zap.Logger) {
	createHandler := commandhandlers.NewCreateNodeHandler(tree, logger)
	cb.Register(commands.CreateNodeCommand{}, commandFunc(func(ctx context.Context, cmd commandbus.Command) error {
		c, ok := cmd.(commands.CreateNodeCommand)
		if !ok {
			return fmt.Errorf("invalid command type")
		}
		_, err := createHandler.Handle(ctx, c)
		return err
	}))

	moveHandler := commandhandlers.NewMoveNodeHandler(tree, logger)
	cb.Register(commands.MoveNodeCommand{}, commandFunc(func(ctx context.Context, cmd commandbus.Command) error {
		c, ok := cmd.(commands.MoveNodeCommand)
		if !ok {
			return fmt.Errorf("invalid command type")
		}
		return moveHandler.Handle(ctx, c)
	}))

	deleteHandler := commandhandlers.NewDeleteNodeHandler(tree, logger)
	cb.Register(commands.DeleteNodeCommand{}, commandFunc(func(ctx context.Context, cmd commandbus.Command) error {
		c, ok := cmd.(commands.DeleteNodeCommand)
		if !ok {
			return fmt.Errorf("invalid command type")
		}
		return deleteHandler.Handle(ctx, c)
	}))

	reconcileHandler := commandhandlers.NewReconcileTreeHandler(tree, logger)
	cb.Register(commands.ReconcileTreeCommand{}, commandFunc(func(ctx context.Context, cmd commandbus.Command) error {
		c, ok := cmd.(commands.ReconcileTreeCommand)
		if !ok {
			return fmt.Errorf("invalid command type")
		}
		_, err := reconcileHandler.Handle(ctx, c)
		return err
	}))
}

func registerQueryHandlers(qb *querybus.QueryBus, loader *loaders.NodeLoader, crumbs *services.BreadcrumbService, logger *zap.Logger) {
	getNode := queryhandlers.NewGetNodeHandler(loader, logger)
	qb.Register(queries.GetNodeQuery{}, queryFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
		query, ok := q.(queries.GetNodeQuery)
		if !ok {
			return nil, fmt.Errorf("invalid query type")
		}
		return getNode.Handle(ctx, query)
	}))

	listChildren := queryhandlers.NewListChildrenHandler(loader, logger)
	qb.Register(queries.ListChildrenQuery{}, queryFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
		query, ok := q.(queries.ListChildrenQuery)
		if !ok {
			return nil, fmt.Errorf("invalid query type")
		}
		return listChildren.Handle(ctx, query)
	}))

	getCrumb := queryhandlers.NewGetBreadcrumbHandler(crumbs, logger)
	qb.Register(queries.GetBreadcrumbQuery{}, queryFunc(func(ctx context.Context, q querybus.Query) (interface{}, error) {
		query, ok := q.(queries.GetBreadcrumbQuery)
		if !ok {
			return nil, fmt.Errorf("invalid query type")
		}
		return getCrumb.Handle(ctx, query)
	}))
}

func (s *stack) createNode(t *testing.T, kind, title, parentID string) string {
	t.Helper()
	id := uuid.New().String()
	err := s.commandBus.Send(context.Background(), commands.CreateNodeCommand{
		NodeID:   id,
		Kind:     kind,
		Title:    title,
		Owner:    "owner-1",
		ParentID: parentID,
	})
	require.NoError(t, err)
	return id
}

func TestTreeFlow_CreateListMoveDelete(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	projects := s.createNode(t, "folder", "Projects", "")
	archive := s.createNode(t, "folder", "Archive", "")
	note := s.createNode(t, "card", "Design notes", projects)

	// Listing the folder shows the card.
	res, err := s.queryBus.Ask(ctx, queries.ListChildrenQuery{FolderID: projects})
	require.NoError(t, err)
	listing := res.(*queries.ListChildrenResult)
	require.Len(t, listing.Children, 1)
	assert.Equal(t, note, listing.Children[0].ID)

	// Breadcrumb runs top level first.
	res, err = s.queryBus.Ask(ctx, queries.GetBreadcrumbQuery{NodeID: note})
	require.NoError(t, err)
	crumb := res.(*queries.BreadcrumbResult)
	require.Len(t, crumb.Path, 2)
	assert.Equal(t, projects, crumb.Path[0].ID)
	assert.Equal(t, note, crumb.Path[1].ID)

	// Move the card and verify both listings changed.
	err = s.commandBus.Send(ctx, commands.MoveNodeCommand{NodeID: note, NewParentID: archive})
	require.NoError(t, err)

	res, err = s.queryBus.Ask(ctx, queries.ListChildrenQuery{FolderID: projects})
	require.NoError(t, err)
	assert.Empty(t, res.(*queries.ListChildrenResult).Children)

	res, err = s.queryBus.Ask(ctx, queries.ListChildrenQuery{FolderID: archive})
	require.NoError(t, err)
	require.Len(t, res.(*queries.ListChildrenResult).Children, 1)

	// Delete and confirm it is gone.
	err = s.commandBus.Send(ctx, commands.DeleteNodeCommand{NodeID: note})
	require.NoError(t, err)

	_, err = s.queryBus.Ask(ctx, queries.GetNodeQuery{NodeID: note})
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
}

func TestTreeFlow_TopLevelListing(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	s.createNode(t, "folder", "A", "")
	s.createNode(t, "card", "B", "")

	res, err := s.queryBus.Ask(ctx, queries.ListChildrenQuery{})
	require.NoError(t, err)
	listing := res.(*queries.ListChildrenResult)
	assert.Len(t, listing.Children, 2)
	assert.Equal(t, 2, listing.Total)
}

func TestTreeFlow_CycleRejectedThroughBus(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	outer := s.createNode(t, "folder", "Outer", "")
	inner := s.createNode(t, "folder", "Inner", outer)

	err := s.commandBus.Send(ctx, commands.MoveNodeCommand{NodeID: outer, NewParentID: inner})
	require.Error(t, err)
	assert.True(t, appErrors.IsCycleDetected(err))
}

func TestTreeFlow_ReconcileCommand(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	folder := s.createNode(t, "folder", "Projects", "")
	s.createNode(t, "card", "Note", folder)

	err := s.commandBus.Send(ctx, commands.ReconcileTreeCommand{RequestedBy: "test"})
	require.NoError(t, err)

	repaired := s.bus.OfType("tree.repaired")
	assert.Len(t, repaired, 1)
}

func TestTreeFlow_ValidationRejectedBeforeDispatch(t *testing.T) {
	s := newStack(t)

	err := s.commandBus.Send(context.Background(), commands.CreateNodeCommand{
		NodeID: uuid.New().String(),
		Kind:   "document",
		Title:  "Bad kind",
		Owner:  "owner-1",
	})
	require.Error(t, err)
}
