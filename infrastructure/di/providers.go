package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"cardtree-backend/application/commands"
	"cardtree-backend/application/commands/bus"
	commandhandlers "cardtree-backend/application/commands/handlers"
	"cardtree-backend/application/loaders"
	"cardtree-backend/application/ports"
	"cardtree-backend/application/queries"
	querybus "cardtree-backend/application/queries/bus"
	queryhandlers "cardtree-backend/application/queries/handlers"
	"cardtree-backend/application/services"
	"cardtree-backend/infrastructure/cache"
	"cardtree-backend/infrastructure/config"
	"cardtree-backend/infrastructure/messaging/eventbridge"
	"cardtree-backend/infrastructure/messaging/local"
	"cardtree-backend/infrastructure/persistence/dynamodb"
	"cardtree-backend/pkg/auth"
	"cardtree-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// backendSession scopes the server's shared durable cache tier. Client
// sessions get their own tier via Container.NewSession.
const backendSession = "backend"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideNodeStore creates the DynamoDB-backed node store
func ProvideNodeStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.NodeStore {
	return dynamodb.NewNodeStore(client, cfg.DynamoDBTable, logger)
}

// ProvideDurableStore creates the durable cache tier shared by the
// backend process. Returns nil when durable caching is disabled; the
// cache layer treats a nil tier as memory-only.
func ProvideDurableStore(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.DurableStore {
	if !cfg.DurableCaching {
		return nil
	}
	return dynamodb.NewDurableCache(client, cfg.DynamoDBTable, backendSession, logger)
}

// ProvideRateLimiter creates the DynamoDB-backed rate limiter. Counters
// must be shared across Lambda instances; outside Lambda a nil limiter
// lets the auth middleware fall back to its in-memory windows.
func ProvideRateLimiter(client *awsdynamodb.Client, cfg *config.Config) auth.RateLimiter {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
		return nil
	}
	return auth.NewDistributedRateLimiter(client, cfg.DynamoDBTable, 100, time.Minute, "API")
}

// ProvideTreeCache creates the cache layer with configured TTLs
func ProvideTreeCache(durable ports.DurableStore, cfg *config.Config, logger *zap.Logger) ports.TreeCache {
	return cache.NewTreeCache(durable, cache.Options{
		NodeTTL:       cfg.NodeTTL,
		ChildrenTTL:   cfg.ChildrenTTL,
		BreadcrumbTTL: cfg.BreadcrumbTTL,
	}, logger)
}

// ProvideMetrics creates the CloudWatch metrics recorder; nil when
// metrics are disabled
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.CloudWatchMetrics {
	if !cfg.EnableMetrics {
		return nil
	}
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
	return observability.NewCloudWatchMetrics(client, namespace, logger)
}

// ProvideTracer creates the X-Ray tracer; nil when tracing is disabled
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	if !cfg.EnableTracing {
		return nil
	}
	return observability.NewTracer("cardtree")
}

// ProvideMetricsRecorder adapts the optional CloudWatch recorder to the
// loader's narrow interface
func ProvideMetricsRecorder(metrics *observability.CloudWatchMetrics) loaders.MetricsRecorder {
	if metrics == nil {
		return observability.NoopMetrics{}
	}
	return metrics
}

// ProvideEventBus creates the event bus. Without a configured bus name
// events stay in-process, which is the local development mode.
func ProvideEventBus(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	if cfg.EventBusName == "" {
		return local.NewBus(logger)
	}
	return eventbridge.NewEventBridgePublisher(client, cfg.EventBusName, logger)
}

// ProvideNodeLoader creates the cache-first read path
func ProvideNodeLoader(store ports.NodeStore, treeCache ports.TreeCache, metrics loaders.MetricsRecorder, logger *zap.Logger) *loaders.NodeLoader {
	return loaders.NewNodeLoader(store, treeCache, metrics, logger)
}

// ProvideTreeService creates the tree consistency engine
func ProvideTreeService(
	store ports.NodeStore,
	treeCache ports.TreeCache,
	loader *loaders.NodeLoader,
	eventBus ports.EventBus,
	cfg *config.Config,
	logger *zap.Logger,
) *services.TreeService {
	return services.NewTreeService(store, treeCache, loader, eventBus, cfg.DomainConfig(), logger)
}

// ProvideBreadcrumbService creates the ancestor path resolver
func ProvideBreadcrumbService(loader *loaders.NodeLoader, treeCache ports.TreeCache, cfg *config.Config, logger *zap.Logger) *services.BreadcrumbService {
	return services.NewBreadcrumbService(loader, treeCache, cfg.DomainConfig(), logger)
}

// ProvideReconcileHandler exposes the typed reconcile handler so the
// maintenance binary can read the repair report directly
func ProvideReconcileHandler(tree *services.TreeService, logger *zap.Logger) *commandhandlers.ReconcileTreeHandler {
	return commandhandlers.NewReconcileTreeHandler(tree, logger)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) error
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) error {
	return a.handler(ctx, cmd)
}

// A registration failure means two handlers claimed the same message
// type, which is a wiring bug; stop startup instead of serving routes
// whose dispatch would fail.
func mustRegisterCommand(b *bus.CommandBus, cmd bus.Command, h bus.CommandHandler, logger *zap.Logger) {
	if err := b.Register(cmd, h); err != nil {
		logger.Fatal("command registration failed",
			zap.String("type", fmt.Sprintf("%T", cmd)),
			zap.Error(err),
		)
	}
}

func mustRegisterQuery(b *querybus.QueryBus, query querybus.Query, h querybus.QueryHandler, logger *zap.Logger) {
	if err := b.Register(query, h); err != nil {
		logger.Fatal("query registration failed",
			zap.String("type", fmt.Sprintf("%T", query)),
			zap.Error(err),
		)
	}
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	tree *services.TreeService,
	reconcileHandler *commandhandlers.ReconcileTreeHandler,
	logger *zap.Logger,
) *bus.CommandBus {
	commandBus := bus.NewCommandBus()

	createHandler := commandhandlers.NewCreateNodeHandler(tree, logger)
	mustRegisterCommand(commandBus, commands.CreateNodeCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			createCmd, ok := cmd.(commands.CreateNodeCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			_, err := createHandler.Handle(ctx, createCmd)
			return err
		},
	}, logger)

	moveHandler := commandhandlers.NewMoveNodeHandler(tree, logger)
	mustRegisterCommand(commandBus, commands.MoveNodeCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			moveCmd, ok := cmd.(commands.MoveNodeCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return moveHandler.Handle(ctx, moveCmd)
		},
	}, logger)

	deleteHandler := commandhandlers.NewDeleteNodeHandler(tree, logger)
	mustRegisterCommand(commandBus, commands.DeleteNodeCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			deleteCmd, ok := cmd.(commands.DeleteNodeCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return deleteHandler.Handle(ctx, deleteCmd)
		},
	}, logger)

	mustRegisterCommand(commandBus, commands.ReconcileTreeCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			reconcileCmd, ok := cmd.(commands.ReconcileTreeCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			_, err := reconcileHandler.Handle(ctx, reconcileCmd)
			return err
		},
	}, logger)

	return commandBus
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	loader *loaders.NodeLoader,
	breadcrumbs *services.BreadcrumbService,
	logger *zap.Logger,
) *querybus.QueryBus {
	queryBus := querybus.NewQueryBus()

	getNodeHandler := queryhandlers.NewGetNodeHandler(loader, logger)
	mustRegisterQuery(queryBus, queries.GetNodeQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			getQuery, ok := query.(queries.GetNodeQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getNodeHandler.Handle(ctx, getQuery)
		},
	}, logger)

	listChildrenHandler := queryhandlers.NewListChildrenHandler(loader, logger)
	mustRegisterQuery(queryBus, queries.ListChildrenQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListChildrenQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listChildrenHandler.Handle(ctx, listQuery)
		},
	}, logger)

	getBreadcrumbHandler := queryhandlers.NewGetBreadcrumbHandler(breadcrumbs, logger)
	mustRegisterQuery(queryBus, queries.GetBreadcrumbQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			crumbQuery, ok := query.(queries.GetBreadcrumbQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getBreadcrumbHandler.Handle(ctx, crumbQuery)
		},
	}, logger)

	return queryBus
}

// NewSession builds a per-session navigation controller. Each session
// gets its own locator backed by a session-scoped durable cache tier,
// so a restarted client resumes at its last folder.
func (c *Container) NewSession(ctx context.Context, sessionID string) *services.NavigationController {
	var durable ports.DurableStore
	if c.Config.DurableCaching {
		durable = dynamodb.NewDurableCache(c.DynamoDBClient, c.Config.DynamoDBTable, sessionID, c.Logger)
	}
	locator := cache.NewSessionLocator(durable, c.Logger)
	ctrl := services.NewNavigationController(
		c.NodeLoader,
		c.Breadcrumbs,
		locator,
		c.EventBus,
		sessionID,
		c.Logger,
	)
	if err := ctrl.Resume(ctx); err != nil {
		c.Logger.Warn("session resume failed, starting unpositioned",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
	return ctrl
}
