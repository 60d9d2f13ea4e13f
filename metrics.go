package safearchive

import "time"

// Metrics receives indexing and serving measurements.
//
// The archive argument is the archive's URL name. Implementations must be
// safe for concurrent use.
type Metrics interface {
	ObserveIndex(archive string, fingerprinted, safe int, duration time.Duration)
	ObserveResolve(archive, outcome, reason string, verify time.Duration)
}

// NoopMetrics implements Metrics without recording anything.
type NoopMetrics struct{}

func (NoopMetrics) ObserveIndex(string, int, int, time.Duration)         {}
func (NoopMetrics) ObserveResolve(string, string, string, time.Duration) {}
