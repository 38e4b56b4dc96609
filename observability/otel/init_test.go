package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken, =x,team=ledger")
	require.Equal(t, map[string]string{"api-key": "abc", "team": "ledger"}, headers)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", " collector:4318 ")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x=1")
	t.Setenv("OTEL_METRICS_EXPORTER", "OTLP")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "5000")

	cfg := ConfigFromEnv("pegvaultd", "dev")
	require.Equal(t, "collector:4318", cfg.Endpoint)
	require.False(t, cfg.Insecure)
	require.True(t, cfg.Metrics)
	require.True(t, cfg.Traces)
	require.Equal(t, "1", cfg.Headers["x"])
	require.Equal(t, 0.25, cfg.SampleRatio)
	require.Equal(t, 5*time.Second, cfg.MetricInterval)
}

func TestCollectorAddress(t *testing.T) {
	cases := []struct {
		cfg      Config
		addr     string
		insecure bool
	}{
		{Config{}, "localhost:4318", false},
		{Config{Endpoint: "collector:4318", Insecure: true}, "collector:4318", true},
		{Config{Endpoint: "https://otel.internal:4318/"}, "otel.internal:4318", false},
		{Config{Endpoint: "http://otel.internal:4318", Insecure: false}, "otel.internal:4318", true},
	}
	for _, tc := range cases {
		addr, insecure := tc.cfg.collector()
		require.Equal(t, tc.addr, addr, tc.cfg.Endpoint)
		require.Equal(t, tc.insecure, insecure, tc.cfg.Endpoint)
	}
}

func TestSampler(t *testing.T) {
	require.Equal(t, sdktrace.AlwaysSample().Description(), Config{}.sampler().Description())
	require.Equal(t, sdktrace.AlwaysSample().Description(), Config{SampleRatio: 1.5}.sampler().Description())
	require.Contains(t, Config{SampleRatio: 0.5}.sampler().Description(), "TraceIDRatioBased{0.5}")
}

func TestResourceAttributes(t *testing.T) {
	res, err := newResource(Config{ServiceName: "pegvaultd", Environment: "staging"})
	require.NoError(t, err)
	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "pegvaultd", attrs[string(semconv.ServiceNameKey)])
	require.Equal(t, "pegvault", attrs[string(semconv.ServiceNamespaceKey)])
	require.Equal(t, "staging", attrs[string(semconv.DeploymentEnvironmentKey)])
}

func TestStopperRunsInReverseAndJoinsErrors(t *testing.T) {
	var order []string
	errFirst := errors.New("first")
	s := stopper{
		func(context.Context) error { order = append(order, "traces"); return errFirst },
		func(context.Context) error { order = append(order, "metrics"); return nil },
	}
	err := s.stop(context.Background())
	require.ErrorIs(t, err, errFirst)
	require.Equal(t, []string{"metrics", "traces"}, order)
	require.NoError(t, stopper(nil).stop(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without a service name")
	}
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "pegvaultd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
