// Package metrics exposes the engine's Prometheus counters/gauges and a
// minimal fasthttp status endpoint, carried as part of the ambient stack
// alongside logging and configuration.
//
// The collectors below are registered with the default registry at init;
// no code in this module updates them, so /metrics reports each at its
// initial (zero) value.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ProjectionsRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fdkrecon",
		Name:      "projections_read_total",
		Help:      "Projections read from the source collaborator, by device.",
	}, []string{"device"})

	SubvolumesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fdkrecon",
		Name:      "subvolumes_completed_total",
		Help:      "Subvolumes reconstructed and handed to the sink, by device.",
	}, []string{"device"})

	PipelineErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fdkrecon",
		Name:      "pipeline_errors_total",
		Help:      "Fatal errors observed in a pipeline stage, by stage name.",
	}, []string{"stage"})

	DevicePoolOutstanding = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fdkrecon",
		Name:      "device_pool_outstanding",
		Help:      "Outstanding device memory pool handles, by device and element kind.",
	}, []string{"device", "kind"})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fdkrecon",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of a full reconstruction run.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(ProjectionsRead, SubvolumesCompleted, PipelineErrors, DevicePoolOutstanding, RunDuration)
}
