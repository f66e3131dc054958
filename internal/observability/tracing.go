package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/danmuck/domainkit/internal/domain"

// Tracer returns the engine tracer from the global provider. Without an
// installed SDK the spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
