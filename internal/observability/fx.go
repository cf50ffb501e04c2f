package observability

import (
	"github.com/smallbiznis/redevance/internal/observability/logger"
	"github.com/smallbiznis/redevance/internal/observability/metrics"
	"github.com/smallbiznis/redevance/internal/observability/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideStoreLoggerConfig,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.EnforcementWithConfig,
	),
	fx.Invoke(ensureTracingProvider),
	fx.Invoke(ensurePrometheusMetrics),
)

func ensureTracingProvider(_ trace.TracerProvider) {}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		Version:      cfg.Version,
		Level:        cfg.LogLevel,
		Format:       cfg.LogFormat,
		Caller:       true,
		StackOnError: cfg.Debug(),
	}
}

func provideStoreLoggerConfig(cfg Config) logger.GormLoggerConfig {
	level := gormlogger.Warn
	switch cfg.StoreLogLevel {
	case "silent":
		level = gormlogger.Silent
	case "error":
		level = gormlogger.Error
	case "info":
		level = gormlogger.Info
	}
	return logger.GormLoggerConfig{
		Level:                level,
		SlowThreshold:        cfg.StoreSlowQuery,
		IgnoreRecordNotFound: true,
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

// Enforcement and scheduler collectors register on the default registry served at /metrics.
func ensurePrometheusMetrics(cfg metrics.Config, _ *metrics.EnforcementMetrics) {
	metrics.SchedulerWithConfig(cfg)
}
