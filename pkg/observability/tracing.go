package observability

import (
	"context"
	"net/http"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer wraps X-Ray segments for the tree operations. All methods are
// safe to call without an open segment; they degrade to running the
// wrapped work untraced.
type Tracer struct {
	serviceName string
}

// NewTracer creates a tracer emitting segments under the given service name
func NewTracer(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// TraceHTTP wraps an HTTP handler so every request opens a segment named
// after the service
func (t *Tracer) TraceHTTP(handler http.Handler) http.Handler {
	return xray.Handler(xray.NewFixedSegmentNamer(t.serviceName), handler)
}

// TraceOperation runs fn inside a segment. Used by the maintenance
// entrypoints, which have no inbound HTTP segment to attach to.
func (t *Tracer) TraceOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, seg := xray.BeginSegment(ctx, t.serviceName+"."+name)
	err := fn(ctx)
	seg.Close(err)
	return err
}

// TraceStep runs fn inside a subsegment of the current segment
func (t *Tracer) TraceStep(ctx context.Context, name string, fn func(context.Context) error) error {
	return xray.Capture(ctx, name, fn)
}

// Annotate adds an indexed annotation to the current segment, if any
func (t *Tracer) Annotate(ctx context.Context, key, value string) {
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}
