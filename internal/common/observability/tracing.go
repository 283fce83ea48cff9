package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"gov-decisions-workers/internal/common/config"
)

var errTracingDisabled = errors.New("tracing not enabled")

type tracing struct {
	provider *sdktrace.TracerProvider
}

func newTracing(serviceName string, cfg config.TracingConfig) (*tracing, error) {
	if !cfg.Enabled {
		return nil, errTracingDisabled
	}
	if cfg.JaegerEndpoint == "" {
		return nil, errors.New("tracing.jaeger_endpoint is empty")
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = serviceName
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(tp)
	return &tracing{provider: tp}, nil
}

func (t *tracing) shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
