package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestSetup_MetricsOnly(t *testing.T) {
	tel, err := Setup(context.Background(), Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		Metrics:        true,
	})
	require.NoError(t, err)
	require.NotNil(t, tel.meters)
	assert.Nil(t, tel.traces)
	assert.Nil(t, tel.LoggerProvider())

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetup_InsecureExporters(t *testing.T) {
	// Exporters connect lazily, so no collector is needed.
	tel, err := Setup(context.Background(), Config{
		ServiceName:      "test-service",
		TraceSampleRatio: 1,
		Traces:           &OTLPExporterConfig{Endpoint: "localhost:4317", Protocol: "grpc", Insecure: true},
		Logs:             &OTLPExporterConfig{Endpoint: "http://localhost:4318", Protocol: "http/protobuf", Insecure: true, Compression: "gzip"},
	})
	require.NoError(t, err)
	assert.NotNil(t, tel.traces)
	assert.NotNil(t, tel.LoggerProvider())
	assert.Nil(t, tel.meters)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Flushing against a missing collector may fail; only the call must return.
	_ = tel.Shutdown(ctx)
}

func TestSetup_RejectsUnknownProtocol(t *testing.T) {
	_, err := Setup(context.Background(), Config{
		Traces: &OTLPExporterConfig{Endpoint: "localhost:4317", Protocol: "thrift", Insecure: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported OTLP protocol")
}

func TestTelemetry_NilIsSafe(t *testing.T) {
	var tel *Telemetry
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestResolveExporterSettings(t *testing.T) {
	s, err := resolveExporterSettings(OTLPExporterConfig{
		Endpoint: "https://collector:4318", Protocol: "http", Insecure: true,
		Compression: "gzip", RetryEnabled: true, RetryMaxAttempts: 3,
	})
	require.NoError(t, err)
	assert.True(t, s.http)
	assert.True(t, s.endpointURL)
	assert.True(t, s.gzip)
	assert.True(t, s.retry)
	assert.Nil(t, s.tls)

	s, err = resolveExporterSettings(OTLPExporterConfig{Endpoint: "collector:4317"})
	require.NoError(t, err)
	assert.False(t, s.http)
	assert.False(t, s.retry)
	require.NotNil(t, s.tls)
}

func TestInitMetrics(t *testing.T) {
	tel, err := Setup(context.Background(), Config{ServiceName: "test-service", Metrics: true})
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics, err := InitMetrics(logger)
	require.NoError(t, err, "Should initialize metrics without error")
	require.NotNil(t, metrics, "Metrics should not be nil")

	require.NotNil(t, metrics.requestDuration, "Request duration metric should be initialized")
	require.NotNil(t, metrics.requestCounter, "Request counter should be initialized")
	require.NotNil(t, metrics.errorCounter, "Error counter should be initialized")
	require.NotNil(t, metrics.activeRequests, "Active requests counter should be initialized")
	require.NotNil(t, metrics.planJoins, "Plan joins histogram should be initialized")
	require.NotNil(t, metrics.executionDuration, "Execution duration histogram should be initialized")

	ctx := context.Background()
	metrics.RecordPlan(ctx, 2, 1, "orders")
	metrics.RecordExecution(ctx, 0, 4, 2, "postgres", false)
	metrics.RecordCompileError(ctx, "orders")
	metrics.RecordRequest(ctx, 0, false, "shop")

	refresh, err := InitSchemaRefreshMetrics(logger)
	require.NoError(t, err)
	refresh.RecordRefresh(ctx, "shop", "manual", "swapped", 0)
	refresh.RecordRefresh(ctx, "shop", "poll", "failed", 0)
}

func TestBuildTLSConfig_FileNotFound(t *testing.T) {
	// Missing CA file should surface a clear error.
	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: "/nonexistent/ca.pem",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read OTLP TLS CA file")
}

func TestBuildTLSConfig_InvalidCertFormat(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/ca.pem"

	// Write a non-PEM payload to trigger parse failure.
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse OTLP TLS CA file")
}

func TestBuildTLSConfig_MissingClientKeyPair(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/client.crt"

	// Only set the cert path to ensure missing key is rejected.
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSClientCertFile: path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTLP TLS client cert and key must both be set")
}

func TestTraceSamplerForRatio_Boundaries(t *testing.T) {
	never := traceSamplerForRatio(0)
	always := traceSamplerForRatio(1)

	decisionNever := never.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{1},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.Drop, decisionNever)

	decisionAlways := always.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{2},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decisionAlways)
}

func TestTraceSamplerForRatio_ParentAwareMidRange(t *testing.T) {
	sampler := traceSamplerForRatio(0.5)

	parentSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{3},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
	decisionSampledParent := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentSampled,
		TraceID:       trace.TraceID{4},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decisionSampledParent)

	parentNotSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{5},
		SpanID:  trace.SpanID{2},
		Remote:  true,
	}))
	decisionUnsampledParent := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentNotSampled,
		TraceID:       trace.TraceID{6},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.Drop, decisionUnsampledParent)
}
