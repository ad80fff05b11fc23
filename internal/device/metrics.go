package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bodkin_device_dispatches_total",
		Help: "Total number of kernel dispatches issued",
	}, []string{"kernel"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bodkin_device_dispatch_duration_seconds",
		Help:    "Wall time from dispatch to synchronous join, per kernel",
		Buckets: prometheus.DefBuckets,
	}, []string{"kernel"})

	abortedDispatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bodkin_device_aborted_dispatches_total",
		Help: "Dispatches issued while the control flag already signalled abort",
	})

	bufferBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bodkin_device_buffer_bytes",
		Help: "Current total size of live device buffers in bytes",
	})
)
