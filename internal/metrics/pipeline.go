// Package metrics provides Prometheus metrics for the capture and
// inference pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "perceptd",
		Subsystem: "capture",
		Name:      "frames_completed_total",
		Help:      "Capture buffers dequeued with valid frame data",
	})

	cyclesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "perceptd",
		Subsystem: "pipeline",
		Name:      "cycles_dropped_total",
		Help:      "Capture cycles abandoned before producing a detection",
	}, []string{"stage", "reason"})

	bufferRequeues = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "perceptd",
		Subsystem: "capture",
		Name:      "buffer_requeues_total",
		Help:      "Buffers handed back to the driver for reuse",
	})

	poolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "perceptd",
		Subsystem: "capture",
		Name:      "buffer_pool_size",
		Help:      "Number of kernel-allocated capture buffers",
	})

	inferences = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "perceptd",
		Subsystem: "inference",
		Name:      "invocations_total",
		Help:      "Completed model invocations",
	})

	inferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "perceptd",
		Subsystem: "inference",
		Name:      "duration_seconds",
		Help:      "Model invoke duration",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// Local cache for API status access.
	pipelineCache   = PipelineCounters{}
	pipelineCacheMu sync.RWMutex
)

// PipelineCounters holds current counter values for the status endpoint.
type PipelineCounters struct {
	FramesCompleted uint64
	CyclesDropped   uint64
	Inferences      uint64
}

// FrameCompleted records one successfully dequeued capture buffer.
func FrameCompleted() {
	framesCompleted.Inc()
	updateCache(func(c *PipelineCounters) { c.FramesCompleted++ })
}

// CycleDropped records one abandoned capture cycle.
func CycleDropped(stage, reason string) {
	cyclesDropped.WithLabelValues(stage, reason).Inc()
	updateCache(func(c *PipelineCounters) { c.CyclesDropped++ })
}

// BufferRequeued records one buffer returned to the driver.
func BufferRequeued() {
	bufferRequeues.Inc()
}

// SetPoolSize records the allocated buffer pool size.
func SetPoolSize(n int) {
	poolSize.Set(float64(n))
}

// InferenceCompleted records one model invocation and its duration.
func InferenceCompleted(seconds float64) {
	inferences.Inc()
	inferenceDuration.Observe(seconds)
	updateCache(func(c *PipelineCounters) { c.Inferences++ })
}

// GetPipelineCounters returns a snapshot of the pipeline counters.
func GetPipelineCounters() PipelineCounters {
	pipelineCacheMu.RLock()
	defer pipelineCacheMu.RUnlock()
	return pipelineCache
}

func updateCache(fn func(*PipelineCounters)) {
	pipelineCacheMu.Lock()
	fn(&pipelineCache)
	pipelineCacheMu.Unlock()
}
