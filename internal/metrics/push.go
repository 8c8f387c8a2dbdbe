package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the default registry to a Prometheus Pushgateway. Short-lived
// commands use it because they exit before a scrape could happen.
func Push(url, job string) error {
	return PushFrom(prometheus.DefaultGatherer, url, job)
}

// PushFrom sends the metrics of g to a Pushgateway under job.
func PushFrom(g prometheus.Gatherer, url, job string) error {
	if err := push.New(url, job).Gatherer(g).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
