package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription pipeline
type Metrics struct {
	// Capture metrics
	SamplesCaptured prometheus.Counter
	BatchesReceived prometheus.Counter

	// Chunk metrics
	ChunksFilled  prometheus.Counter
	ChunksDropped prometheus.Counter
	ChunksSkipped prometheus.Counter

	// Inference metrics
	InferenceRequests  prometheus.Counter
	InferenceSuccesses prometheus.Counter
	InferenceFailures  prometheus.Counter
	InferenceDuration  prometheus.Histogram
	InferenceBusy      prometheus.Gauge

	// Transcript metrics
	SegmentsProduced prometheus.Counter

	// Export metrics
	ExportsWritten *prometheus.CounterVec
	ExportErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		SamplesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_samples_captured_total",
			Help: "Total number of audio samples captured",
		}),
		BatchesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_batches_received_total",
			Help: "Total number of frame batches delivered by the capture source",
		}),

		// Chunk metrics
		ChunksFilled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_chunks_filled_total",
			Help: "Total number of chunk buffers filled to capacity",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_chunks_dropped_total",
			Help: "Total number of chunks dropped because inference was busy",
		}),
		ChunksSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_chunks_skipped_total",
			Help: "Total number of chunks skipped by the voice-activity gate",
		}),

		// Inference metrics
		InferenceRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_inference_requests_total",
			Help: "Total number of inference runs started",
		}),
		InferenceSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_inference_successes_total",
			Help: "Total number of successful inference runs",
		}),
		InferenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_inference_failures_total",
			Help: "Total number of failed inference runs",
		}),
		InferenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcriber_inference_duration_seconds",
			Help:    "Duration of inference runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		InferenceBusy: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "transcriber_inference_busy",
			Help: "Whether an inference run is currently in flight (0 or 1)",
		}),

		// Transcript metrics
		SegmentsProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_segments_produced_total",
			Help: "Total number of transcript segments produced",
		}),

		// Export metrics
		ExportsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_exports_written_total",
			Help: "Total number of artifacts written per format",
		}, []string{"format"}),
		ExportErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_export_errors_total",
			Help: "Total number of export failures per format",
		}, []string{"format"}),
	}
}

// RecordBatch records one delivered frame batch
func (m *Metrics) RecordBatch(samples int) {
	m.BatchesReceived.Inc()
	m.SamplesCaptured.Add(float64(samples))
}

// RecordChunkFilled increments the filled-chunk counter
func (m *Metrics) RecordChunkFilled() {
	m.ChunksFilled.Inc()
}

// RecordChunkDropped increments the dropped-chunk counter
func (m *Metrics) RecordChunkDropped() {
	m.ChunksDropped.Inc()
}

// RecordChunkSkipped increments the gate-skipped counter
func (m *Metrics) RecordChunkSkipped() {
	m.ChunksSkipped.Inc()
}

// RecordInferenceStart marks the dispatcher busy and counts the request
func (m *Metrics) RecordInferenceStart() {
	m.InferenceRequests.Inc()
	m.InferenceBusy.Set(1)
}

// RecordInferenceSuccess records a completed inference run
func (m *Metrics) RecordInferenceSuccess(durationSeconds float64, segments int) {
	m.InferenceSuccesses.Inc()
	m.InferenceDuration.Observe(durationSeconds)
	m.SegmentsProduced.Add(float64(segments))
	m.InferenceBusy.Set(0)
}

// RecordInferenceFailure records a failed inference run
func (m *Metrics) RecordInferenceFailure(durationSeconds float64) {
	m.InferenceFailures.Inc()
	m.InferenceDuration.Observe(durationSeconds)
	m.InferenceBusy.Set(0)
}

// RecordExport records one artifact write attempt per format
func (m *Metrics) RecordExport(format string, err error) {
	if err != nil {
		m.ExportErrors.WithLabelValues(format).Inc()
		return
	}
	m.ExportsWritten.WithLabelValues(format).Inc()
}
