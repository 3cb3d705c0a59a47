package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/marmos91/labgate/internal/logger"
)

// useRecorder installs an in-memory span recorder as the global tracer.
func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	setTracer(provider.Tracer(instrumentationName), true)
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{Enabled: false})
	})
	return rec
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, IsEnabled())
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "labgate", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Enabled)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestLoginSpanPropagatesTraceToLogContext(t *testing.T) {
	rec := useRecorder(t)

	ctx := logger.WithContext(context.Background(), logger.NewLogContext("req-9", "10.1.1.1"))
	ctx, span := StartLoginSpan(ctx, "uni", "alice")

	lc := logger.FromContext(ctx)
	require.NotNil(t, lc)
	assert.Equal(t, TraceID(ctx), lc.TraceID)
	assert.NotEmpty(t, lc.TraceID)
	assert.Equal(t, "req-9", lc.RequestID)

	actx, aspan := StartAuthSpan(ctx, "Ldap", "alice")
	RecordError(actx, errors.New("directory down"))
	aspan.End()

	_, sspan := StartStepSpan(ctx, "HomeDirectory")
	sspan.End()
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "auth.Ldap", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String(AttrStrategy, "Ldap"))
	assert.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "session.HomeDirectory", ended[1].Name())
	assert.Equal(t, "labgate.login", ended[2].Name())
	assert.Equal(t, ended[2].SpanContext().TraceID(), ended[0].SpanContext().TraceID())
}
