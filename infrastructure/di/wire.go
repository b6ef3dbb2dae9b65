//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"cardtree-backend/application/commands/bus"
	commandhandlers "cardtree-backend/application/commands/handlers"
	"cardtree-backend/application/loaders"
	"cardtree-backend/application/ports"
	querybus "cardtree-backend/application/queries/bus"
	"cardtree-backend/application/services"
	"cardtree-backend/infrastructure/config"
	"cardtree-backend/pkg/auth"
	"cardtree-backend/pkg/observability"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/wire"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config           *config.Config
	Logger           *zap.Logger
	DynamoDBClient   *awsdynamodb.Client
	NodeStore        ports.NodeStore
	DurableStore     ports.DurableStore
	RateLimiter      auth.RateLimiter
	Cache            ports.TreeCache
	NodeLoader       *loaders.NodeLoader
	EventBus         ports.EventBus
	Metrics          *observability.CloudWatchMetrics
	Tracer           *observability.Tracer
	TreeService      *services.TreeService
	Breadcrumbs      *services.BreadcrumbService
	ReconcileHandler *commandhandlers.ReconcileTreeHandler
	CommandBus       *bus.CommandBus
	QueryBus         *querybus.QueryBus
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideNodeStore,
	ProvideDurableStore,
	ProvideRateLimiter,
	ProvideTreeCache,
	ProvideMetrics,
	ProvideTracer,
	ProvideMetricsRecorder,
	ProvideEventBus,
	ProvideNodeLoader,
	ProvideTreeService,
	ProvideBreadcrumbService,
	ProvideReconcileHandler,
	ProvideCommandBus,
	ProvideQueryBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
