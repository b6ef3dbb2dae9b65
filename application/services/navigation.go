package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"cardtree-backend/application/loaders"
	"cardtree-backend/application/ports"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
	"cardtree-backend/domain/events"
	appErrors "cardtree-backend/pkg/errors"
)

// NavigationState is the observable snapshot of a navigation session:
// the current folder, its children, the breadcrumb down to it, and the
// loading/error flags for an in-flight transition.
type NavigationState struct {
	FolderID   valueobjects.NodeID
	Children   []*entities.Node
	Breadcrumb []*entities.Node
	Loading    bool
	Err        error
	Sequence   uint64
}

// StateListener receives state snapshots as they change.
type StateListener func(NavigationState)

// NavigationController drives one client session's position in the
// tree. Every navigation gets a sequence number; results arriving for
// a superseded sequence are discarded so that rapid navigation never
// surfaces stale children under the wrong folder.
type NavigationController struct {
	loader      *loaders.NodeLoader
	breadcrumbs *BreadcrumbService
	locator     ports.Locator
	eventBus    ports.EventBus
	logger      *zap.Logger
	sessionID   string

	mu        sync.Mutex
	seq       uint64
	state     NavigationState
	listeners []StateListener
}

// NewNavigationController creates a controller positioned at the top level.
func NewNavigationController(
	loader *loaders.NodeLoader,
	breadcrumbs *BreadcrumbService,
	locator ports.Locator,
	eventBus ports.EventBus,
	sessionID string,
	logger *zap.Logger,
) *NavigationController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NavigationController{
		loader:      loader,
		breadcrumbs: breadcrumbs,
		locator:     locator,
		eventBus:    eventBus,
		logger:      logger,
		sessionID:   sessionID,
	}
}

// Resume positions the session at the folder the locator last saved.
// A saved folder that has since been deleted, or turned out not to be a
// folder, falls back to the top level so a stale location never strands
// the session.
func (c *NavigationController) Resume(ctx context.Context) error {
	start := valueobjects.RootID
	if c.locator != nil {
		if saved, ok := c.locator.Location(ctx); ok {
			start = saved
		}
	}

	err := c.NavigateTo(ctx, start)
	if err == nil || start.IsZero() {
		return err
	}
	if appErrors.IsNotFound(err) || appErrors.IsInvalidKind(err) {
		c.logger.Info("saved location unusable, resuming at the top level",
			zap.String("folder_id", start.String()),
			zap.Error(err),
		)
		return c.NavigateTo(ctx, valueobjects.RootID)
	}
	return err
}

// Subscribe registers a listener for state changes. The listener is
// invoked synchronously with the current state, then on every change.
func (c *NavigationController) Subscribe(listener StateListener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, listener)
	snapshot := c.state
	c.mu.Unlock()
	listener(snapshot)
}

// State returns the current snapshot.
func (c *NavigationController) State() NavigationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NavigateTo moves the session into the given folder. The zero id is
// the top level. Navigating into a card is rejected. On failure the
// session stays where it was with the error exposed on the state.
func (c *NavigationController) NavigateTo(ctx context.Context, folderID valueobjects.NodeID) error {
	if !folderID.IsZero() {
		node, err := c.loader.GetNode(ctx, folderID)
		if err != nil {
			c.fail(folderID, err)
			return err
		}
		if !node.IsFolder() {
			err := appErrors.NewInvalidKindError("cannot navigate into a card").
				WithDetail("node_id", folderID.String())
			c.fail(folderID, err)
			return err
		}
	}

	seq := c.begin(folderID)

	children, err := c.loader.GetChildren(ctx, folderID)
	if err != nil {
		return c.finishErr(seq, folderID, err)
	}
	crumb, err := c.breadcrumbs.Resolve(ctx, folderID)
	if err != nil {
		return c.finishErr(seq, folderID, err)
	}

	if !c.finish(seq, folderID, children, crumb) {
		// A newer navigation superseded this one.
		return nil
	}

	if c.locator != nil {
		c.locator.SetLocation(ctx, folderID)
	}
	if c.eventBus != nil {
		event := events.NewNavigationOccurred(folderID, c.sessionID, seq, time.Now())
		if err := c.eventBus.Publish(ctx, event); err != nil {
			c.logger.Warn("failed to publish navigation telemetry", zap.Error(err))
		}
	}
	return nil
}

// NavigateToParent moves one level up. At the top level it is a no-op.
func (c *NavigationController) NavigateToParent(ctx context.Context) error {
	c.mu.Lock()
	current := c.state.FolderID
	c.mu.Unlock()

	if current.IsZero() {
		return nil
	}
	node, err := c.loader.GetNode(ctx, current)
	if err != nil {
		if appErrors.IsNotFound(err) {
			// The folder we were standing in is gone; fall back to the top.
			return c.NavigateTo(ctx, valueobjects.RootID)
		}
		return err
	}
	return c.NavigateTo(ctx, node.ParentID())
}

// Refresh re-fetches the current folder's children and breadcrumb.
func (c *NavigationController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	current := c.state.FolderID
	c.mu.Unlock()
	return c.NavigateTo(ctx, current)
}

// begin bumps the sequence and publishes the loading state.
func (c *NavigationController) begin(folderID valueobjects.NodeID) uint64 {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.state = NavigationState{
		FolderID:   c.state.FolderID,
		Children:   c.state.Children,
		Breadcrumb: c.state.Breadcrumb,
		Loading:    true,
		Sequence:   seq,
	}
	snapshot := c.state
	listeners := c.listeners
	c.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	return seq
}

// finish commits a completed navigation if its sequence is still the
// latest. Returns false when the result was stale and discarded.
func (c *NavigationController) finish(seq uint64, folderID valueobjects.NodeID, children, crumb []*entities.Node) bool {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding stale navigation result",
			zap.Uint64("sequence", seq),
			zap.String("folder_id", folderID.String()),
		)
		return false
	}
	c.state = NavigationState{
		FolderID:   folderID,
		Children:   children,
		Breadcrumb: crumb,
		Sequence:   seq,
	}
	snapshot := c.state
	listeners := c.listeners
	c.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
	return true
}

func (c *NavigationController) finishErr(seq uint64, folderID valueobjects.NodeID, err error) error {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return nil
	}
	// Keep the previous position; surface the error.
	c.state.Loading = false
	c.state.Err = err
	snapshot := c.state
	listeners := c.listeners
	c.mu.Unlock()

	c.logger.Warn("navigation failed",
		zap.String("folder_id", folderID.String()),
		zap.Error(err),
	)
	for _, l := range listeners {
		l(snapshot)
	}
	return err
}

// fail reports a navigation rejected before any fetch began.
func (c *NavigationController) fail(folderID valueobjects.NodeID, err error) {
	c.mu.Lock()
	c.state.Err = err
	snapshot := c.state
	listeners := c.listeners
	c.mu.Unlock()

	c.logger.Warn("navigation rejected",
		zap.String("folder_id", folderID.String()),
		zap.Error(err),
	)
	for _, l := range listeners {
		l(snapshot)
	}
}
