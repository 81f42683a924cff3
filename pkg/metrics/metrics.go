// Package metrics holds the Prometheus collectors shared across the scan station.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

//nolint: gochecknoglobals
var (
	// Acquisitions counts stream acquisitions per slot and result ("ok" or "failed").
	Acquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairscan",
		Name:      "stream_acquisitions_total",
		Help:      "Camera stream acquisitions by slot and result.",
	}, []string{"slot", "result"})

	// DecodeAttempts counts authorized decode attempts per slot and result ("hit" or "miss").
	DecodeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairscan",
		Name:      "decode_attempts_total",
		Help:      "Decode attempts on the aim window by slot and result.",
	}, []string{"slot", "result"})

	// Cycles counts settled scan cycles per outcome.
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairscan",
		Name:      "cycles_total",
		Help:      "Completed pairing cycles by verification outcome.",
	}, []string{"outcome"})

	// Resets counts full resets per reason.
	Resets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairscan",
		Name:      "resets_total",
		Help:      "Full resets of the scan controller by reason.",
	}, []string{"reason"})

	// ScanDuration observes the time from start to settled outcome.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pairscan",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a pairing cycle from start until the outcome settled.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	})
)
