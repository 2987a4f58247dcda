package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the register's sync instrumentation. Pending/escalated are
// gauges refreshed from the store; the rest are monotonic.
type Collector struct {
	PendingSales   prometheus.Gauge
	EscalatedSales prometheus.Gauge
	SalesQueued    prometheus.Counter
	SalesDirect    prometheus.Counter
	ReplaySuccess  prometheus.Counter
	ReplayFailure  prometheus.Counter
	DrainDuration  prometheus.Histogram
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		PendingSales: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tillpoint_pending_sales",
			Help: "Queued sales not yet acknowledged by the server.",
		}),
		EscalatedSales: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tillpoint_escalated_sales",
			Help: "Queued sales past the attempt escalation threshold.",
		}),
		SalesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tillpoint_sales_queued_total",
			Help: "Sales captured into the offline queue.",
		}),
		SalesDirect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tillpoint_sales_direct_total",
			Help: "Sales confirmed on the direct online path.",
		}),
		ReplaySuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tillpoint_replay_success_total",
			Help: "Queued sales acknowledged during a drain.",
		}),
		ReplayFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tillpoint_replay_failure_total",
			Help: "Replay attempts that failed and were rescheduled.",
		}),
		DrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tillpoint_drain_duration_seconds",
			Help:    "Wall time of a full drain pass.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.PendingSales, c.EscalatedSales, c.SalesQueued, c.SalesDirect,
		c.ReplaySuccess, c.ReplayFailure, c.DrainDuration)
	return c
}
