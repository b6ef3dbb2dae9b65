// Package observability reports operational metrics. Cache hit rates
// and mutation outcomes go to CloudWatch; local runs use the no-op
// recorder instead.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

const flushInterval = 30 * time.Second

// CloudWatchMetrics batches metric data points and flushes them to
// CloudWatch periodically. Recording never blocks callers on the
// network; the flush happens on a background goroutine.
type CloudWatchMetrics struct {
	client    *cloudwatch.Client
	namespace string
	logger    *zap.Logger

	mu      sync.Mutex
	pending []types.MetricDatum

	done chan struct{}
	once sync.Once
}

// NewCloudWatchMetrics creates a recorder flushing into the given namespace
func NewCloudWatchMetrics(client *cloudwatch.Client, namespace string, logger *zap.Logger) *CloudWatchMetrics {
	m := &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		done:      make(chan struct{}),
	}
	go m.flushLoop()
	return m
}

// RecordCacheHit records a cache hit for the given entry kind
func (m *CloudWatchMetrics) RecordCacheHit(kind string) {
	m.record("CacheHit", kind, 1)
}

// RecordCacheMiss records a cache miss for the given entry kind
func (m *CloudWatchMetrics) RecordCacheMiss(kind string) {
	m.record("CacheMiss", kind, 1)
}

// RecordMutation records a tree mutation outcome
func (m *CloudWatchMetrics) RecordMutation(operation string, success bool) {
	name := "MutationSuccess"
	if !success {
		name = "MutationFailure"
	}
	m.record(name, operation, 1)
}

// RecordDuration records an operation latency
func (m *CloudWatchMetrics) RecordDuration(operation string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, types.MetricDatum{
		MetricName: aws.String("OperationLatency"),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       types.StandardUnitMilliseconds,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: []types.Dimension{
			{Name: aws.String("Operation"), Value: aws.String(operation)},
		},
	})
}

func (m *CloudWatchMetrics) record(name, dimension string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: []types.Dimension{
			{Name: aws.String("Kind"), Value: aws.String(dimension)},
		},
	})
}

func (m *CloudWatchMetrics) flushLoop() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Flush(context.Background())
		case <-m.done:
			m.Flush(context.Background())
			return
		}
	}
}

// Flush sends all pending data points. PutMetricData accepts at most
// 1000 datums per call, far above what a flush interval accumulates,
// but chunk anyway.
func (m *CloudWatchMetrics) Flush(ctx context.Context) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	const chunkSize = 1000
	for i := 0; i < len(pending); i += chunkSize {
		end := i + chunkSize
		if end > len(pending) {
			end = len(pending)
		}
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: pending[i:end],
		})
		if err != nil {
			m.logger.Warn("failed to flush metrics", zap.Error(err))
		}
	}
}

// Close stops the flush loop after a final flush
func (m *CloudWatchMetrics) Close() {
	m.once.Do(func() { close(m.done) })
}

// NoopMetrics discards everything; used in tests and local runs
type NoopMetrics struct{}

// RecordCacheHit implements the recorder interface
func (NoopMetrics) RecordCacheHit(kind string) {}

// RecordCacheMiss implements the recorder interface
func (NoopMetrics) RecordCacheMiss(kind string) {}

// RecordMutation implements the recorder interface
func (NoopMetrics) RecordMutation(operation string, success bool) {}

// RecordDuration implements the recorder interface
func (NoopMetrics) RecordDuration(operation string, d time.Duration) {}
