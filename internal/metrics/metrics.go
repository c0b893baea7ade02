// Package metrics exposes Prometheus collectors for the extraction pipeline,
// the reminder cycle and the scheduled tasks.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "calendarbot"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	oracleCalls       *prometheus.CounterVec
	normalized        *prometheus.CounterVec
	eventsStored      prometheus.Counter
	messagesProcessed *prometheus.CounterVec
	reminders         *prometheus.CounterVec
	mirrorPushes      *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
}

// New registers the collectors with reg. Collectors already registered
// under the same name are reused.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Extraction oracle calls by result.",
		}, []string{"result"}),
		normalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_normalized_total",
			Help:      "Extracted event candidates by normalization outcome.",
		}, []string{"outcome"}),
		eventsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_stored_total",
			Help:      "Events newly added to the event store.",
		}),
		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Source messages handled by the pipeline.",
		}, []string{"outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reminder dispatch attempts by result.",
		}, []string{"result"}),
		mirrorPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_pushes_total",
			Help:      "External calendar pushes by result.",
		}, []string{"result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of scheduled task runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task", "status"}),
	}

	m.oracleCalls = register(reg, m.oracleCalls)
	m.normalized = register(reg, m.normalized)
	m.eventsStored = register(reg, m.eventsStored)
	m.messagesProcessed = register(reg, m.messagesProcessed)
	m.reminders = register(reg, m.reminders)
	m.mirrorPushes = register(reg, m.mirrorPushes)
	m.taskDuration = register(reg, m.taskDuration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// OracleCall counts one oracle call.
func (m *Metrics) OracleCall(err error) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(result(err)).Inc()
}

// Normalized counts one normalization outcome, e.g. "admitted" or "too_old".
func (m *Metrics) Normalized(outcome string) {
	if m == nil {
		return
	}
	m.normalized.WithLabelValues(outcome).Inc()
}

// EventsStored adds n newly stored events.
func (m *Metrics) EventsStored(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsStored.Add(float64(n))
}

// MessageProcessed counts one pipeline outcome: "skipped", "empty" or "extracted".
func (m *Metrics) MessageProcessed(outcome string) {
	if m == nil {
		return
	}
	m.messagesProcessed.WithLabelValues(outcome).Inc()
}

// Reminder counts one reminder dispatch.
func (m *Metrics) Reminder(err error) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(result(err)).Inc()
}

// MirrorPush counts one external calendar push.
func (m *Metrics) MirrorPush(err error) {
	if m == nil {
		return
	}
	m.mirrorPushes.WithLabelValues(result(err)).Inc()
}

// ObserveTask records a scheduled task run.
func (m *Metrics) ObserveTask(task string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(task, result(err)).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
