package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OracleCall(nil)
	m.OracleCall(errors.New("boom"))
	m.OracleCall(nil)
	m.EventsStored(3)
	m.EventsStored(0)
	m.Normalized("admitted")
	m.Reminder(nil)
	m.ObserveTask("reminders", nil, time.Second)

	assert.InDelta(t, 2, testutil.ToFloat64(m.oracleCalls.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.oracleCalls.WithLabelValues("error")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.eventsStored), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.normalized.WithLabelValues("admitted")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.taskDuration))
}

func TestMetricsReuseRegistered(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg)
	b := New(reg)

	a.EventsStored(1)
	b.EventsStored(1)
	assert.InDelta(t, 2, testutil.ToFloat64(a.eventsStored), 0)
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.OracleCall(nil)
		m.Normalized("admitted")
		m.EventsStored(1)
		m.MessageProcessed("empty")
		m.Reminder(nil)
		m.MirrorPush(nil)
		m.ObserveTask("x", nil, time.Second)
	})
}
