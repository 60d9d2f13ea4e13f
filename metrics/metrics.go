// Package metrics records archive indexing and serving measurements in
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "safearchive"

// Prom implements safearchive.Metrics backed by Prometheus collectors.
type Prom struct {
	resolves       *prometheus.CounterVec
	verifyDuration *prometheus.HistogramVec
	indexedFiles   *prometheus.GaugeVec
	indexDuration  *prometheus.GaugeVec
	indexRuns      *prometheus.CounterVec
}

// NewProm creates collectors under namespace and registers them with reg.
// A nil reg registers with the default registry.
func NewProm(namespace string, reg prometheus.Registerer) (*Prom, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prom{
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "Request decisions by archive, outcome and reason",
		}, []string{"archive", "outcome", "reason"}),
		verifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verify_duration_seconds",
			Help:      "Time spent recomputing fingerprints at serve time",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"archive"}),
		indexedFiles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_files",
			Help:      "Files seen by the last index run, by kind",
		}, []string{"archive", "kind"}),
		indexDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_duration_seconds",
			Help:      "Duration of the last index run",
		}, []string{"archive"}),
		indexRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_runs_total",
			Help:      "Completed index runs",
		}, []string{"archive"}),
	}
	for _, c := range []prometheus.Collector{p.resolves, p.verifyDuration, p.indexedFiles, p.indexDuration, p.indexRuns} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveIndex records a completed index run.
func (p *Prom) ObserveIndex(archive string, fingerprinted, safe int, duration time.Duration) {
	p.indexedFiles.WithLabelValues(archive, "fingerprinted").Set(float64(fingerprinted))
	p.indexedFiles.WithLabelValues(archive, "safe").Set(float64(safe))
	p.indexDuration.WithLabelValues(archive).Set(duration.Seconds())
	p.indexRuns.WithLabelValues(archive).Inc()
}

// ObserveResolve records one request decision. Verification time is only
// observed when a fingerprint was recomputed.
func (p *Prom) ObserveResolve(archive, outcome, reason string, verify time.Duration) {
	p.resolves.WithLabelValues(archive, outcome, reason).Inc()
	if verify > 0 {
		p.verifyDuration.WithLabelValues(archive).Observe(verify.Seconds())
	}
}

// Handler exposes the metrics gathered by g.
// A nil g uses the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
