package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the live translator pipeline.
type Metrics struct {
	// VAD metrics
	VADTicks           prometheus.Counter
	VADSpeakingTicks   prometheus.Counter
	VADSilenceTimeouts prometheus.Counter
	VADNoiseFloor      prometheus.Gauge

	// Recorder metrics
	ChunksEmitted    prometheus.Counter
	ChunksRebuffered prometheus.Counter
	RecorderRestarts prometheus.Counter
	ChunkDuration    prometheus.Histogram
	ChunkSize        prometheus.Histogram

	// Container repair metrics
	RepairsHeaderCached prometheus.Counter
	RepairsPrepended    prometheus.Counter
	RepairsFailed       prometheus.Counter

	// Dispatch metrics
	DispatchRequests  prometheus.Counter
	DispatchSuccesses prometheus.Counter
	DispatchFailures  prometheus.Counter
	DispatchDuration  prometheus.Histogram

	// Sentence metrics
	SegmentsApplied    prometheus.Counter
	DuplicateSegments  prometheus.Counter
	SentencesFinalized prometheus.Counter

	// Playback metrics
	PlaybackRequests prometheus.Counter
	PlaybackBlocked  prometheus.Counter
	PlaybackFailures prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// VAD metrics
		VADTicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_vad_ticks_total",
			Help: "Total number of VAD sampling ticks",
		}),
		VADSpeakingTicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_vad_speaking_ticks_total",
			Help: "Total number of VAD ticks classified as speech",
		}),
		VADSilenceTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_vad_silence_timeouts_total",
			Help: "Total number of silence timeouts fired",
		}),
		VADNoiseFloor: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "translator_vad_noise_floor",
			Help: "Current adaptive noise floor (RMS)",
		}),

		// Recorder metrics
		ChunksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_chunks_emitted_total",
			Help: "Total number of audio chunks emitted for dispatch",
		}),
		ChunksRebuffered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_chunks_rebuffered_total",
			Help: "Total number of flushes kept buffered below dispatch thresholds",
		}),
		RecorderRestarts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_recorder_restarts_total",
			Help: "Total number of encoder session restarts",
		}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "translator_chunk_duration_seconds",
			Help:    "Duration of emitted audio chunks",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 12), // 0.5s to 6s
		}),
		ChunkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "translator_chunk_size_bytes",
			Help:    "Size of emitted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Container repair metrics
		RepairsHeaderCached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_repairs_header_cached_total",
			Help: "Total number of init segments cached from headered chunks",
		}),
		RepairsPrepended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_repairs_prepended_total",
			Help: "Total number of headerless fragments repaired by prepending",
		}),
		RepairsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_repairs_failed_total",
			Help: "Total number of fragments that could not be repaired",
		}),

		// Dispatch metrics
		DispatchRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_dispatch_requests_total",
			Help: "Total number of chunks dispatched to the translation backend",
		}),
		DispatchSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_dispatch_successes_total",
			Help: "Total number of successful dispatch responses",
		}),
		DispatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_dispatch_failures_total",
			Help: "Total number of failed dispatches (chunk discarded)",
		}),
		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "translator_dispatch_duration_seconds",
			Help:    "Duration of dispatch round trips",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Sentence metrics
		SegmentsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_segments_applied_total",
			Help: "Total number of speech segments applied to the accumulator",
		}),
		DuplicateSegments: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_duplicate_segments_total",
			Help: "Total number of segments whose transcription was suppressed as duplicate",
		}),
		SentencesFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_sentences_finalized_total",
			Help: "Total number of finalized transcript sentences",
		}),

		// Playback metrics
		PlaybackRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_playback_requests_total",
			Help: "Total number of synthesis playback requests",
		}),
		PlaybackBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_playback_blocked_total",
			Help: "Total number of play attempts blocked by autoplay policy",
		}),
		PlaybackFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "translator_playback_failures_total",
			Help: "Total number of playback failures other than autoplay blocks",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "translator_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "translator_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "translator_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordVADTick records one sampling tick and its classification.
func (m *Metrics) RecordVADTick(speaking bool, noiseFloor float64) {
	m.VADTicks.Inc()
	if speaking {
		m.VADSpeakingTicks.Inc()
	}
	m.VADNoiseFloor.Set(noiseFloor)
}

// RecordSilenceTimeout increments the silence timeout counter.
func (m *Metrics) RecordSilenceTimeout() {
	m.VADSilenceTimeouts.Inc()
}

// RecordChunkEmitted records an emitted chunk.
func (m *Metrics) RecordChunkEmitted(durationSeconds float64, sizeBytes int) {
	m.ChunksEmitted.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordChunkRebuffered increments the re-buffer counter.
func (m *Metrics) RecordChunkRebuffered() {
	m.ChunksRebuffered.Inc()
}

// RecordRecorderRestart increments the restart counter.
func (m *Metrics) RecordRecorderRestart() {
	m.RecorderRestarts.Inc()
}

// RecordRepair records one container repair outcome.
func (m *Metrics) RecordRepair(headerCached, prepended bool) {
	if headerCached {
		m.RepairsHeaderCached.Inc()
	}
	if prepended {
		m.RepairsPrepended.Inc()
	}
}

// RecordRepairFailure increments the failed repair counter.
func (m *Metrics) RecordRepairFailure() {
	m.RepairsFailed.Inc()
}

// RecordDispatchRequest increments the dispatch requests counter.
func (m *Metrics) RecordDispatchRequest() {
	m.DispatchRequests.Inc()
}

// RecordDispatchSuccess records a successful dispatch.
func (m *Metrics) RecordDispatchSuccess(durationSeconds float64) {
	m.DispatchSuccesses.Inc()
	m.DispatchDuration.Observe(durationSeconds)
}

// RecordDispatchFailure records a failed dispatch.
func (m *Metrics) RecordDispatchFailure(durationSeconds float64) {
	m.DispatchFailures.Inc()
	m.DispatchDuration.Observe(durationSeconds)
}

// RecordSegment records one applied segment.
func (m *Metrics) RecordSegment(duplicate bool) {
	m.SegmentsApplied.Inc()
	if duplicate {
		m.DuplicateSegments.Inc()
	}
}

// RecordSentenceFinalized increments the finalized sentence counter.
func (m *Metrics) RecordSentenceFinalized() {
	m.SentencesFinalized.Inc()
}

// RecordPlaybackRequest increments the playback requests counter.
func (m *Metrics) RecordPlaybackRequest() {
	m.PlaybackRequests.Inc()
}

// RecordPlaybackBlocked increments the autoplay block counter.
func (m *Metrics) RecordPlaybackBlocked() {
	m.PlaybackBlocked.Inc()
}

// RecordPlaybackFailure increments the playback failure counter.
func (m *Metrics) RecordPlaybackFailure() {
	m.PlaybackFailures.Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
