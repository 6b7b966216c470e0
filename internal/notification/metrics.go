package notification

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records dispatcher activity. A nil *Metrics records nothing.
type Metrics struct {
	sweeps       *prometheus.CounterVec
	claimed      prometheus.Counter
	outcomes     *prometheus.CounterVec
	sendDuration prometheus.Histogram
	purged       prometheus.Counter
}

// NewMetrics creates the dispatcher collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webot",
			Subsystem: "reminders",
			Name:      "sweeps_total",
			Help:      "Dispatcher sweeps by result.",
		}, []string{"result"}),
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webot",
			Subsystem: "reminders",
			Name:      "claimed_total",
			Help:      "Reminder jobs claimed for delivery.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webot",
			Subsystem: "reminders",
			Name:      "completed_total",
			Help:      "Reminder jobs by final status.",
		}, []string{"status"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "webot",
			Subsystem: "reminders",
			Name:      "send_duration_seconds",
			Help:      "Time spent in the delivery channel.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webot",
			Subsystem: "reminders",
			Name:      "purged_total",
			Help:      "Terminal reminder jobs deleted by retention.",
		}),
	}

	for _, c := range []prometheus.Collector{m.sweeps, m.claimed, m.outcomes, m.sendDuration, m.purged} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register reminder metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeSweep(err error, claimed int) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweeps.WithLabelValues(result).Inc()
	m.claimed.Add(float64(claimed))
}

func (m *Metrics) observeOutcome(status Status) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeSend(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sendDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observePurge(n int64) {
	if m == nil {
		return
	}
	m.purged.Add(float64(n))
}
