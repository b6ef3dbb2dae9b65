package services

import (
	"context"

	"go.uber.org/zap"

	"cardtree-backend/application/loaders"
	"cardtree-backend/application/ports"
	"cardtree-backend/domain/config"
	"cardtree-backend/domain/core/entities"
	"cardtree-backend/domain/core/valueobjects"
	appErrors "cardtree-backend/pkg/errors"
)

// BreadcrumbService resolves the ancestor path of a node, root first,
// ending at the node itself. Resolution is cache-first: a cached path
// for the node is returned as-is, and every parent hop consults the
// cache before the store.
type BreadcrumbService struct {
	loader *loaders.NodeLoader
	cache  ports.TreeCache
	cfg    *config.DomainConfig
	logger *zap.Logger
}

// NewBreadcrumbService creates the resolver.
func NewBreadcrumbService(loader *loaders.NodeLoader, cache ports.TreeCache, cfg *config.DomainConfig, logger *zap.Logger) *BreadcrumbService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreadcrumbService{loader: loader, cache: cache, cfg: cfg, logger: logger}
}

// Resolve returns the path from the top level down to id. The zero id
// denotes the top level itself and yields an empty path. The walk is
// capped at the configured maximum depth; exceeding it means the stored
// tree is malformed, not that the request was too ambitious.
func (s *BreadcrumbService) Resolve(ctx context.Context, id valueobjects.NodeID) ([]*entities.Node, error) {
	if id.IsZero() {
		return []*entities.Node{}, nil
	}

	if path, ok := s.cache.GetBreadcrumb(ctx, id); ok {
		if len(path) > 0 && path[len(path)-1].ID().Equals(id) {
			return path, nil
		}
		// Stale or mis-keyed entry. Drop it and rebuild.
		s.cache.Invalidate(ctx, id)
	}

	var reversed []*entities.Node
	visited := make(map[string]struct{})
	current := id
	for !current.IsZero() {
		// A revisited ancestor means the parent pointers form a cycle;
		// fail after one lap instead of walking out the depth cap.
		if _, seen := visited[current.String()]; seen {
			s.logger.Error("ancestor walk revisited a node",
				zap.String("node_id", id.String()),
				zap.String("revisited_id", current.String()),
				zap.Int("depth", len(reversed)),
			)
			return nil, appErrors.NewMalformedTreeError(id.String(), len(reversed))
		}
		visited[current.String()] = struct{}{}

		if len(reversed) >= s.cfg.MaxTreeDepth {
			s.logger.Error("ancestor walk exceeded depth cap",
				zap.String("node_id", id.String()),
				zap.Int("depth", len(reversed)),
			)
			return nil, appErrors.NewMalformedTreeError(id.String(), len(reversed))
		}

		node, err := s.loader.GetNode(ctx, current)
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, node)
		current = node.ParentID()
	}

	path := make([]*entities.Node, len(reversed))
	for i, node := range reversed {
		path[len(reversed)-1-i] = node
	}

	s.cache.PutBreadcrumb(ctx, id, path)
	return path, nil
}
