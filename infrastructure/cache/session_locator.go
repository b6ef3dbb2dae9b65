package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"cardtree-backend/application/ports"
	"cardtree-backend/domain/core/valueobjects"
)

const locationKey = "location"

// locationTTL bounds how long a resumed session trusts a stored position.
const locationTTL = 24 * time.Hour

// SessionLocator records the session's current folder so a restarted
// client can resume where it left off. When a durable store is attached
// the position survives process restarts; otherwise it lives in memory
// for the lifetime of the process.
type SessionLocator struct {
	durable ports.DurableStore
	logger  *zap.Logger

	mu      sync.RWMutex
	current valueobjects.NodeID
	set     bool
}

// NewSessionLocator creates a locator. durable may be nil.
func NewSessionLocator(durable ports.DurableStore, logger *zap.Logger) *SessionLocator {
	return &SessionLocator{
		durable: durable,
		logger:  logger,
	}
}

var _ ports.Locator = (*SessionLocator)(nil)

// SetLocation records the current folder. Durable write failures are
// logged and swallowed; the in-memory position is always updated.
func (l *SessionLocator) SetLocation(ctx context.Context, folderID valueobjects.NodeID) {
	l.mu.Lock()
	l.current = folderID
	l.set = true
	l.mu.Unlock()

	if l.durable == nil {
		return
	}
	if err := l.durable.Set(ctx, locationKey, []byte(folderID.String()), locationTTL); err != nil {
		l.logger.Warn("failed to persist session location",
			zap.String("folder_id", folderID.String()),
			zap.Error(err))
	}
}

// Location returns the recorded folder. The in-memory position wins;
// the durable tier is consulted only before the first SetLocation of
// this process, which is the session-resume path.
func (l *SessionLocator) Location(ctx context.Context) (valueobjects.NodeID, bool) {
	l.mu.RLock()
	if l.set {
		current := l.current
		l.mu.RUnlock()
		return current, true
	}
	l.mu.RUnlock()

	if l.durable == nil {
		return valueobjects.NodeID{}, false
	}

	raw, found, err := l.durable.Get(ctx, locationKey)
	if err != nil {
		l.logger.Warn("failed to read session location", zap.Error(err))
		return valueobjects.NodeID{}, false
	}
	if !found {
		return valueobjects.NodeID{}, false
	}
	if len(raw) == 0 {
		// The root sentinel serializes to the empty string.
		return valueobjects.RootID, true
	}

	id, err := valueobjects.NewNodeIDFromString(string(raw))
	if err != nil {
		l.logger.Warn("discarding malformed session location", zap.Error(err))
		_ = l.durable.Remove(ctx, locationKey)
		return valueobjects.NodeID{}, false
	}
	return id, true
}
