package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "camlink", cfg.ServiceName)
	assert.Equal(t, "http://localhost:14268/api/traces", cfg.JaegerURL)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Enabled)
}

func TestInitDisabledIsNoOp(t *testing.T) {
	tp, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestStartSpan(t *testing.T) {
	_, span := StartSpan(context.Background(), "connect.attempt")
	require.NotNil(t, span)
	span.End()
}

func TestSpanHelpersAreSafeWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()

	AddSpanAttributes(ctx,
		StreamIDKey.String("cam1"),
		ProtocolKey.String("webrtc"),
		attribute.Int64("attempt", 1),
	)
	RecordError(ctx, errors.New("connect failed"))
}

func TestTraceHTTPRequest(t *testing.T) {
	_, span := TraceHTTPRequest(context.Background(), "GET", "/api/v1/streams")
	require.NotNil(t, span)
	span.End()
}

func TestTraceGatewayCall(t *testing.T) {
	_, span := TraceGatewayCall(context.Background(), "list_monitors")
	require.NotNil(t, span)
	span.End()
}
