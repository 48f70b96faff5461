package otelx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

func TestConfigFromEnvDefaults(t *testing.T) {
	withEnv(t, nil)
	cfg := ConfigFromEnv("availability-service")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "jaeger:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 1.0, cfg.SampleRatio)
	assert.Equal(t, "availability-service", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"OTEL_ENABLED":                "False",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4317",
		"OTEL_SAMPLING_RATIO":         "0.25",
	})
	cfg := ConfigFromEnv("svc")
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.SampleRatio)

	withEnv(t, map[string]string{"OTEL_SAMPLING_RATIO": "7"})
	assert.Equal(t, 1.0, ConfigFromEnv("svc").SampleRatio)

	withEnv(t, map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "https://collector:4317"})
	cfg = ConfigFromEnv("svc")
	assert.False(t, cfg.Insecure)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)

	withEnv(t, map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "https://collector:4317", "OTEL_EXPORTER_OTLP_INSECURE": "1"})
	assert.True(t, ConfigFromEnv("svc").Insecure)
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Config{ServiceName: "svc", ServiceVersion: "1.2.3", Environment: "staging"})
	got := map[string]string{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "svc", got["service.name"])
	assert.Equal(t, "1.2.3", got["service.version"])
	assert.Equal(t, "staging", got["deployment.environment"])

	assert.Len(t, resourceAttributes(Config{ServiceName: "svc"}), 1)
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEndSpanRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, span := tp.Tracer("test").Start(context.Background(), "ok")
	EndSpan(span, nil)
	_, span = tp.Tracer("test").Start(context.Background(), "failed")
	EndSpan(span, errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "boom", ended[1].Status().Description)
}
