package otel

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// NewResource creates a new OpenTelemetry resource with service name and any
// extra attributes.
func NewResource(serviceName string, attrs ...attribute.KeyValue) *resource.Resource {
	kvs := make([]attribute.KeyValue, 0, len(attrs)+1)
	kvs = append(kvs, semconv.ServiceNameKey.String(serviceName))
	kvs = append(kvs, attrs...)
	return resource.NewWithAttributes(semconv.SchemaURL, kvs...)
}
