// ============================================================================
// Workforce Metrics - Prometheus collector
// ============================================================================
//
// Exposes per-tick engine output for scraping:
//
//   1. Counters (cumulative):
//      - workforce_ticks_total
//      - workforce_tasks_completed_total
//      - workforce_intents_rejected_total
//      - workforce_intents_dropped_total
//      - workforce_warnings_total{severity}
//      - workforce_events_total{topic}
//
//   2. Gauges (latest tick):
//      - workforce_tick
//      - workforce_queue_depth
//      - workforce_utilization
//      - workforce_p95_wait_hours
//      - workforce_headcount
//      - workforce_average_morale / workforce_average_fatigue
//      - workforce_payroll_day_cost
//
//   3. Histogram:
//      - workforce_tick_duration_seconds: wall time spent in Engine.Step
//
// Example queries:
//
//   rate(workforce_tasks_completed_total[5m])
//   workforce_queue_depth > 25
//
// The collector owns its registry so several engines (or tests) can run in
// one process without duplicate registration.
// ============================================================================

package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/workforce-engine/workforce"
)

// Collector records tick results as Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	ticks          prometheus.Counter
	tasksCompleted prometheus.Counter
	rejected       prometheus.Counter
	dropped        prometheus.Counter
	warnings       *prometheus.CounterVec
	events         *prometheus.CounterVec

	tick         prometheus.Gauge
	queueDepth   prometheus.Gauge
	utilization  prometheus.Gauge
	p95Wait      prometheus.Gauge
	headcount    prometheus.Gauge
	morale       prometheus.Gauge
	fatigue      prometheus.Gauge
	payrollDay   prometheus.Gauge
	tickDuration prometheus.Histogram
}

// NewCollector creates a collector with its own registry. The Go runtime
// and process collectors are registered alongside.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workforce_ticks_total",
			Help: "Total number of committed ticks",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workforce_tasks_completed_total",
			Help: "Total number of tasks completed",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workforce_intents_rejected_total",
			Help: "Total number of intents rejected by validation",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workforce_intents_dropped_total",
			Help: "Total number of raise intents dropped by eligibility gating",
		}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workforce_warnings_total",
			Help: "Total number of warnings raised, by severity",
		}, []string{"severity"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workforce_events_total",
			Help: "Total number of telemetry events, by topic",
		}, []string{"topic"}),
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workforce_tick",
			Help: "Latest committed tick",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workforce_queue_depth",
			Help: "Tasks still queued after the latest tick",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workforce_utilization",
			Help: "Consumed over available minutes in the latest tick",
		}),
		p95Wait: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workforce_p95_wait_hours",
			Help: "95th percentile task wait time in hours",
		}),
		headcount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workforce_headcount",
			Help: "Employees on the roster",
		}),
		morale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workforce_average_morale",
			Help: "Average employee morale",
		}),
		fatigue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workforce_average_fatigue",
			Help: "Average employee fatigue",
		}),
		payrollDay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workforce_payroll_day_cost",
			Help: "Labor cost accumulated in the current payroll day",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "workforce_tick_duration_seconds",
			Help:    "Wall time spent computing one tick",
			Buckets: prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.ticks, c.tasksCompleted, c.rejected, c.dropped, c.warnings, c.events,
		c.tick, c.queueDepth, c.utilization, c.p95Wait, c.headcount,
		c.morale, c.fatigue, c.payrollDay, c.tickDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveTick records one committed tick.
func (c *Collector) ObserveTick(res *workforce.TickResult, elapsed time.Duration) {
	c.ticks.Inc()
	c.tasksCompleted.Add(float64(res.KPI.TasksCompleted))
	c.rejected.Add(float64(len(res.Rejected)))
	c.dropped.Add(float64(len(res.Dropped)))
	for _, w := range res.Warnings {
		c.warnings.WithLabelValues(string(w.Severity)).Inc()
	}

	c.tick.Set(float64(res.State.Tick))
	c.queueDepth.Set(float64(res.KPI.QueueDepth))
	c.utilization.Set(res.KPI.Utilization)
	c.p95Wait.Set(res.KPI.P95WaitTimeHours)
	c.headcount.Set(float64(len(res.State.Employees)))
	c.morale.Set(res.KPI.AverageMorale)
	c.fatigue.Set(res.KPI.AverageFatigue)
	cost, _ := res.State.Payroll.Totals.TotalLaborCost.Float64()
	c.payrollDay.Set(cost)
	c.tickDuration.Observe(elapsed.Seconds())
}

// Publish counts events by topic.
func (c *Collector) Publish(_ context.Context, events []workforce.Event) error {
	for _, ev := range events {
		c.events.WithLabelValues(ev.Topic).Inc()
	}
	return nil
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry for extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

var _ Sink = (*Collector)(nil)
