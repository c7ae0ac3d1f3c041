package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// NewMeter returns a Meter scoped to serviceName, grounded on tracer.go's
// NewTracer shape: both pull from the process-wide otel provider set up by
// newTracerProvider / the composition root's metrics equivalent.
//
// nolint:ireturn // returning interface is intentional for OpenTelemetry metrics
func NewMeter(_ context.Context, serviceName string) metric.Meter {
	return otel.GetMeterProvider().Meter(serviceName)
}
