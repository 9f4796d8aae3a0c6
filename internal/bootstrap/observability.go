package bootstrap

import (
	"log/slog"

	"github.com/target/mmk-ui-web/config"
	"github.com/target/mmk-ui-web/internal/observability/statsd"
)

// BuildMetrics returns the StatsD client. Dial failures are logged and yield a
// client that drops every metric, so metrics never block startup.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		client, _ = statsd.NewClient(statsd.Config{Prefix: cfg.Prefix, Logger: logger})
	}
	return client
}
