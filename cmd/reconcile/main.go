// Package main implements the Lambda handler for tree reconciliation.
// It runs on a schedule and in response to drift events, rebuilding
// folder child lists from the parent pointers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"cardtree-backend/application/commands"
	commandhandlers "cardtree-backend/application/commands/handlers"
	"cardtree-backend/infrastructure/config"
	"cardtree-backend/infrastructure/di"
	"cardtree-backend/pkg/observability"
)

// Global dependencies for Lambda performance optimization
var (
	reconciler *commandhandlers.ReconcileTreeHandler
	logger     *zap.Logger
	tracer     *observability.Tracer
)

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}

	reconciler = container.ReconcileHandler
	logger = container.Logger
	tracer = container.Tracer

	log.Println("Reconcile handler initialized successfully")
}

// ReconcileRequest represents a direct reconcile invocation
type ReconcileRequest struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

func runReconcile(ctx context.Context, requestedBy string) error {
	if tracer != nil {
		return tracer.TraceOperation(ctx, "reconcile", func(ctx context.Context) error {
			tracer.Annotate(ctx, "requested_by", requestedBy)
			return reconcileOnce(ctx, requestedBy)
		})
	}
	return reconcileOnce(ctx, requestedBy)
}

func reconcileOnce(ctx context.Context, requestedBy string) error {
	report, err := reconciler.Handle(ctx, commands.ReconcileTreeCommand{
		RequestedBy: requestedBy,
	})
	if err != nil {
		logger.Error("Reconcile failed", zap.Error(err))
		return err
	}

	logger.Info("Reconcile completed",
		zap.String("requested_by", requestedBy),
		zap.Int("nodes_scanned", report.NodesScanned),
		zap.Int("folders_rewritten", report.FoldersRewritten),
		zap.Int("orphaned_nodes", len(report.OrphanedNodes)),
		zap.Int("misparented_nodes", len(report.MisparentedNodes)),
		zap.Int("errors", len(report.Errors)),
	)

	for _, repairErr := range report.Errors {
		logger.Warn("Reconcile repair error", zap.String("error", repairErr))
	}

	return nil
}

// handler dispatches the supported invocation shapes: EventBridge
// schedules, TreeDriftDetected events, and direct requests.
func handler(ctx context.Context, event json.RawMessage) error {
	var cloudWatchEvent awsevents.CloudWatchEvent
	if err := json.Unmarshal(event, &cloudWatchEvent); err == nil && cloudWatchEvent.DetailType != "" {
		switch cloudWatchEvent.DetailType {
		case "Scheduled Event":
			return runReconcile(ctx, "schedule")
		case "TreeDriftDetected":
			var drift struct {
				NodeID     string `json:"aggregate_id"`
				FailedStep string `json:"failed_step"`
			}
			if err := json.Unmarshal(cloudWatchEvent.Detail, &drift); err != nil {
				return fmt.Errorf("failed to parse TreeDriftDetected event: %w", err)
			}
			logger.Info("Drift-triggered reconcile",
				zap.String("node_id", drift.NodeID),
				zap.String("failed_step", drift.FailedStep),
			)
			return runReconcile(ctx, "drift:"+drift.NodeID)
		default:
			logger.Warn("Ignoring unexpected event", zap.String("detail_type", cloudWatchEvent.DetailType))
			return nil
		}
	}

	var request ReconcileRequest
	if err := json.Unmarshal(event, &request); err == nil {
		requestedBy := request.RequestedBy
		if requestedBy == "" {
			requestedBy = "direct"
		}
		return runReconcile(ctx, requestedBy)
	}

	return fmt.Errorf("unable to parse event")
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		log.Println("Starting reconcile Lambda")
		lambda.Start(handler)
	} else {
		// Local testing mode
		log.Println("Running in local test mode")
		if err := runReconcile(context.Background(), "local"); err != nil {
			log.Fatalf("Reconcile failed: %v", err)
		}
	}
}
