package interceptors

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// TracingOptions selects the provider and propagators used for server spans.
// Zero values fall back to the otel globals.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

// ServerTracing instruments incoming RPCs through the otelgrpc stats handler.
type ServerTracing struct {
	options []otelgrpc.Option
}

func NewServerTracing(opts TracingOptions) *ServerTracing {
	var options []otelgrpc.Option
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	return &ServerTracing{options: options}
}

// ServerOption installs the handler. A nil receiver disables tracing.
func (t *ServerTracing) ServerOption() grpc.ServerOption {
	if t == nil {
		return grpc.EmptyServerOption{}
	}
	return grpc.StatsHandler(otelgrpc.NewServerHandler(t.options...))
}
