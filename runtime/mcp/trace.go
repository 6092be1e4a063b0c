package mcp

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// traceContext captures the trace context of ctx with the global propagator.
// It is empty unless the process installed a propagator and ctx carries a
// sampled span.
func traceContext(ctx context.Context) propagation.MapCarrier {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier
}

// withTraceMeta records carrier in params._meta for servers that never see
// HTTP headers (stdio).
func withTraceMeta(params map[string]any, carrier propagation.MapCarrier) {
	if len(carrier) == 0 {
		return
	}
	params["_meta"] = map[string]string(carrier)
}

func setTraceHeaders(header http.Header, carrier propagation.MapCarrier) {
	for k, v := range carrier {
		header.Set(k, v)
	}
}
