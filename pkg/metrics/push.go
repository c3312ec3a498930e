package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Publish pushes the default registry to a Pushgateway. The ETL is a batch
// job with no scrape endpoint, so push is the only way metrics leave the
// process. A push failure is logged and swallowed: observability must never
// fail a run that already committed.
func Publish(gatewayURL, job string, logger *slog.Logger) {
	if gatewayURL == "" {
		return
	}

	err := push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		Push()
	if err != nil {
		logger.Warn("Failed to push metrics to gateway", "url", gatewayURL, "error", err)
	}
}
