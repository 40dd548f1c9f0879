package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordTurnStarted()
	m.RecordTurnStarted()
	m.RecordOutcome("continue")
	m.RecordFailure(FailureDialogue)
	m.RecordFailure(FailureDialogue)
	m.RecordRejectedTrigger()
	m.ObserveStep("capture", 5*time.Second)
	m.RecordClip(160044)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TurnsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnOutcomes.WithLabelValues("continue")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Failures.WithLabelValues(FailureDialogue)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTriggers))

	n, err := testutil.GatherAndCount(reg, "voicechat_step_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTurnStarted()
		m.RecordOutcome("exit")
		m.ObserveStep("dialogue", time.Second)
		m.RecordFailure(FailureIO)
		m.RecordRejectedTrigger()
		m.RecordClip(1)
	})
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
		New(nil)
	})
}
