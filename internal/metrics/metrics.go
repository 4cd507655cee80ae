package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests             *prometheus.CounterVec
	RequestSeconds       *prometheus.HistogramVec
	RestrictionsWarnings prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_requests_total",
			Help: "Total number of geocoding requests sent to the provider, by operation and outcome.",
		}, []string{"operation", "status"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocoding_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		RestrictionsWarnings: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_restrictions_only_requests_total",
			Help: "Requests that carried component restrictions without an address or place ID.",
		}),
	}
}

// WriteTextfile dumps every metric gathered from g into path using the
// node_exporter textfile format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
