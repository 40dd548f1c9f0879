// Package metrics holds the Prometheus instruments for the turn loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure kinds recorded by RecordFailure.
const (
	FailureDevice                   = "device"
	FailureIO                       = "io"
	FailureTranscriptionUnavailable = "transcription_unavailable"
	FailureTranscriptionEmpty       = "transcription_empty"
	FailureDialogue                 = "dialogue"
	FailureSynthesis                = "synthesis"
)

// Metrics contains all Prometheus metrics for the voice chat loop.
type Metrics struct {
	TurnsStarted     prometheus.Counter
	TurnOutcomes     *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
	Failures         *prometheus.CounterVec
	RejectedTriggers prometheus.Counter
	ClipBytes        prometheus.Histogram
}

// New creates the metrics and registers them with reg. A nil reg
// registers with a fresh private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		TurnsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_turns_started_total",
			Help: "Total number of turns started",
		}),
		TurnOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicechat_turn_outcomes_total",
			Help: "Completed turns by outcome",
		}, []string{"outcome"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voicechat_step_duration_seconds",
			Help:    "Duration of each turn step",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"step"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicechat_failures_total",
			Help: "Contained per-turn failures by kind",
		}, []string{"kind"}),
		RejectedTriggers: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_rejected_triggers_total",
			Help: "Begin-turn triggers rejected while a turn was in flight",
		}),
		ClipBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicechat_clip_bytes",
			Help:    "Size of persisted clips in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 8), // 16KB to 2MB
		}),
	}
}

// RecordTurnStarted increments the turns started counter.
func (m *Metrics) RecordTurnStarted() {
	if m == nil {
		return
	}
	m.TurnsStarted.Inc()
}

// RecordOutcome counts a finished turn.
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.TurnOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveStep records how long a step took.
func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordFailure counts a contained failure.
func (m *Metrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind).Inc()
}

// RecordRejectedTrigger counts a trigger refused because a turn was busy.
func (m *Metrics) RecordRejectedTrigger() {
	if m == nil {
		return
	}
	m.RejectedTriggers.Inc()
}

// RecordClip records the size of a persisted clip.
func (m *Metrics) RecordClip(bytes int64) {
	if m == nil {
		return
	}
	m.ClipBytes.Observe(float64(bytes))
}
