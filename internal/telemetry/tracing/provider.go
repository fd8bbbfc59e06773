package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Configure installs a process-wide TracerProvider stamped with
// serviceName, so that Span/NewSpan record spans under that name. No
// span processor or exporter is registered on it, since this core has
// no OTLP exporter dependency of its own, and only the provider's
// Shutdown func is returned, not the provider itself.
func Configure(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
