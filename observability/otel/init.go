package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	collectorAddr   = "localhost:4318"
	serviceNS       = "pegvault"
	defaultInterval = 15 * time.Second
)

// Config selects what Init exports and where.
type Config struct {
	ServiceName string
	Environment string
	// Endpoint is host:port of an OTLP/HTTP collector. An http:// or
	// https:// prefix is accepted and decides Insecure.
	Endpoint string
	Insecure bool
	Headers  map[string]string
	Traces   bool
	Metrics  bool
	// SampleRatio is the fraction of root spans kept. Values outside (0,1)
	// keep everything.
	SampleRatio    float64
	MetricInterval time.Duration
}

// ConfigFromEnv reads the OTEL_* variables the collector sidecar sets.
// Metrics go over OTLP only with OTEL_METRICS_EXPORTER=otlp; otherwise the
// daemon's /metrics endpoint is scraped.
func ConfigFromEnv(service, env string) Config {
	cfg := Config{
		ServiceName: service,
		Environment: env,
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		Headers:     ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Traces:      true,
		Metrics:     strings.EqualFold(strings.TrimSpace(os.Getenv("OTEL_METRICS_EXPORTER")), "otlp"),
	}
	if ratio, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("OTEL_TRACES_SAMPLER_ARG")), 64); err == nil {
		cfg.SampleRatio = ratio
	}
	if ms, err := strconv.ParseUint(strings.TrimSpace(os.Getenv("OTEL_METRIC_EXPORT_INTERVAL")), 10, 64); err == nil && ms > 0 {
		cfg.MetricInterval = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// collector returns the exporter address with any scheme removed.
func (c Config) collector() (addr string, insecure bool) {
	addr, insecure = c.Endpoint, c.Insecure
	switch {
	case strings.HasPrefix(addr, "http://"):
		addr, insecure = strings.TrimPrefix(addr, "http://"), true
	case strings.HasPrefix(addr, "https://"):
		addr, insecure = strings.TrimPrefix(addr, "https://"), false
	}
	addr = strings.TrimSuffix(addr, "/")
	if addr == "" {
		addr = collectorAddr
	}
	return addr, insecure
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

func newResource(c Config) (*resource.Resource, error) {
	own := resource.NewSchemaless(
		semconv.ServiceNameKey.String(c.ServiceName),
		semconv.ServiceNamespaceKey.String(serviceNS),
	)
	if c.Environment != "" {
		env := resource.NewSchemaless(semconv.DeploymentEnvironmentKey.String(c.Environment))
		merged, err := resource.Merge(own, env)
		if err != nil {
			return nil, err
		}
		own = merged
	}
	return resource.Merge(resource.Default(), own)
}

// stopper unwinds providers in reverse start order.
type stopper []func(context.Context) error

func (s stopper) stop(ctx context.Context) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		errs = append(errs, s[i](ctx))
	}
	return errors.Join(errs...)
}

func startTracing(ctx context.Context, c Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	addr, insecure := c.collector()
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(addr), otlptracehttp.WithHeaders(c.Headers)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(c.sampler()),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(2*time.Second)),
	), nil
}

func startMetrics(ctx context.Context, c Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	addr, insecure := c.collector()
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(addr), otlpmetrichttp.WithHeaders(c.Headers)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	interval := c.MetricInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	), nil
}

// Init installs global providers and the W3C propagators for pegvaultd.
// The returned func flushes and stops whatever was started.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		return nil, errors.New("otel: service name required")
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	var started stopper
	if cfg.Traces {
		tp, err := startTracing(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		started = append(started, tp.Shutdown)
	}
	if cfg.Metrics {
		mp, err := startMetrics(ctx, cfg, res)
		if err != nil {
			_ = started.stop(ctx)
			return nil, err
		}
		otel.SetMeterProvider(mp)
		started = append(started, mp.Shutdown)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return started.stop, nil
}

// ParseHeaders reads a comma separated key=value list. Pairs without a key
// or an equals sign are dropped.
func ParseHeaders(raw string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' }) {
		key, value, ok := strings.Cut(field, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}
