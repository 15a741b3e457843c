package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Detached is a span context held by value so work queued past the end of a request
// still joins the caller's trace.
type Detached struct {
	Traceparent string
	Tracestate  string
}

func Detach(ctx context.Context) Detached {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return Detached{Traceparent: carrier["traceparent"], Tracestate: carrier["tracestate"]}
}

// Empty reports whether no span was active when d was captured.
func (d Detached) Empty() bool { return d.Traceparent == "" }

// Attach returns parent carrying d's span context. Background work usually passes
// context.Background().
func (d Detached) Attach(parent context.Context) context.Context {
	if d.Empty() {
		return parent
	}
	carrier := propagation.MapCarrier{"traceparent": d.Traceparent}
	if d.Tracestate != "" {
		carrier["tracestate"] = d.Tracestate
	}
	return otel.GetTextMapPropagator().Extract(parent, carrier)
}
