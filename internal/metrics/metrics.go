package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat engine metrics
var (
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "engine",
			Name:      "frames_total",
			Help:      "Frames applied to the conversation by event type",
		},
		[]string{"event"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "engine",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded by the parser or the reconciler",
		},
		[]string{"reason"},
	)

	FieldsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "engine",
			Name:      "fields_ignored_total",
			Help:      "Unusable fields inside otherwise applied frames",
		},
		[]string{"field"},
	)

	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "engine",
			Name:      "streams_total",
			Help:      "Finished sends by terminal state",
		},
		[]string{"outcome"},
	)

	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aura",
			Subsystem: "engine",
			Name:      "stream_duration_seconds",
			Help:      "Wall time from send to terminal state",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	PersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "engine",
			Name:      "persist_errors_total",
			Help:      "Failed writes to a persistence slot",
		},
		[]string{"slot"},
	)

	ResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "assistant",
			Name:      "responses_total",
			Help:      "Frame streams produced by the assistant endpoint",
		},
		[]string{"responder", "status"},
	)
)

// RecordFrame counts an applied frame.
func RecordFrame(event string) {
	FramesTotal.WithLabelValues(event).Inc()
}

// RecordDroppedFrames counts n discarded frames.
func RecordDroppedFrames(reason string, n int) {
	if n <= 0 {
		return
	}
	FramesDropped.WithLabelValues(reason).Add(float64(n))
}

// RecordIgnoredField counts an unusable field of an applied frame.
func RecordIgnoredField(field string) {
	FieldsIgnored.WithLabelValues(field).Inc()
}

// RecordStream records a finished send.
func RecordStream(outcome string, durationSec float64) {
	StreamsTotal.WithLabelValues(outcome).Inc()
	StreamDuration.WithLabelValues(outcome).Observe(durationSec)
}

// RecordPersistError counts a failed slot write.
func RecordPersistError(slot string) {
	PersistErrors.WithLabelValues(slot).Inc()
}

// RecordResponse counts a produced frame stream.
func RecordResponse(responder, status string) {
	ResponsesTotal.WithLabelValues(responder, status).Inc()
}
