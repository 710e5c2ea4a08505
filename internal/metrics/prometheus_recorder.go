package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "companion"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	notifications   *prom.CounterVec
	tickDuration    *prom.HistogramVec
	persistFailures *prom.CounterVec
	journalFailures prom.Counter
	activeReminders prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications delivered to the timeline by source",
		}, []string{"source"}),
		tickDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of scheduled job executions",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"job"}),
		persistFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Data file writes that failed after retries, by store",
		}, []string{"store"}),
		journalFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "journal_failures_total",
			Help:      "Notifications that could not be written to the journal",
		}),
		activeReminders: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "active_reminders",
			Help:      "Scheduled (not completed) reminders",
		}),
	}
	reg.MustRegister(pr.notifications, pr.tickDuration, pr.persistFailures, pr.journalFailures, pr.activeReminders)
	return pr
}

func (p *PrometheusRecorder) IncNotification(source string) {
	if p == nil {
		return
	}
	p.notifications.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) ObserveTickDuration(job string, d time.Duration) {
	if p == nil {
		return
	}
	p.tickDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPersistFailure(store string) {
	if p == nil {
		return
	}
	p.persistFailures.WithLabelValues(store).Inc()
}

func (p *PrometheusRecorder) IncJournalFailure() {
	if p == nil {
		return
	}
	p.journalFailures.Inc()
}

func (p *PrometheusRecorder) SetActiveReminders(n int) {
	if p == nil {
		return
	}
	p.activeReminders.Set(float64(n))
}
