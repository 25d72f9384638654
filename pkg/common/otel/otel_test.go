package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
}

func TestNewResource(t *testing.T) {
	res := NewResource("cmdrunner", attributesFromMap(map[string]string{
		"host.name": "box",
		"k8s.pod":   "",
	})...)

	set := res.Set()
	name, ok := set.Value(semconv.ServiceNameKey)
	assert.True(t, ok)
	assert.Equal(t, "cmdrunner", name.AsString())

	host, ok := set.Value(attribute.Key("host.name"))
	assert.True(t, ok)
	assert.Equal(t, "box", host.AsString())

	_, ok = set.Value(attribute.Key("k8s.pod"))
	assert.False(t, ok)
}

func TestNoopProviders(t *testing.T) {
	p := NoopProviders()
	_, span := p.Tracer.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
}
