package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeSolved     = "solved"
	OutcomeUnsolvable = "unsolvable"
	OutcomeInvalid    = "invalid_input"
)

// SchedulerCollector bundles Prometheus metrics describing scheduling runs.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	Runs              *prometheus.CounterVec
	RunDurations      *prometheus.HistogramVec
	Problems          *prometheus.CounterVec
	PassesScheduled   *prometheus.GaugeVec
	PassesUnscheduled *prometheus.GaugeVec
	BatteryCapacity   prometheus.Gauge
}

// NewSchedulerCollector registers scheduling metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "passplan_schedule_runs_total",
		Help: "Total number of scheduling runs, labeled by solver and outcome.",
	}, []string{"solver", "outcome"}), "passplan_schedule_runs_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "passplan_schedule_run_duration_seconds",
		Help:    "Duration of scheduling runs in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"solver"}), "passplan_schedule_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	problems, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "passplan_schedule_problems_total",
		Help: "Problems reported by scheduling runs, labeled by solver and severity.",
	}, []string{"solver", "severity"}), "passplan_schedule_problems_total")
	if err != nil {
		return nil, err
	}

	scheduled, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "passplan_passes_scheduled",
		Help: "Passes that received a viable profile in the latest run.",
	}, []string{"solver"}), "passplan_passes_scheduled")
	if err != nil {
		return nil, err
	}

	unscheduled, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "passplan_passes_unscheduled",
		Help: "Passes left without a viable profile in the latest run, including passes never reached.",
	}, []string{"solver"}), "passplan_passes_unscheduled")
	if err != nil {
		return nil, err
	}

	capacity, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "passplan_battery_capacity_joules",
		Help: "Battery capacity ceiling used by the latest run.",
	}), "passplan_battery_capacity_joules")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:          gatherer,
		Runs:              runs,
		RunDurations:      durations,
		Problems:          problems,
		PassesScheduled:   scheduled,
		PassesUnscheduled: unscheduled,
		BatteryCapacity:   capacity,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SchedulerCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordRun records a completed run. problems maps severity names to counts.
func (c *SchedulerCollector) RecordRun(solver string, elapsed time.Duration, solvable bool, scheduled, unscheduled int, problems map[string]int) {
	if c == nil {
		return
	}
	outcome := OutcomeSolved
	if !solvable {
		outcome = OutcomeUnsolvable
	}
	if c.Runs != nil {
		c.Runs.WithLabelValues(solver, outcome).Inc()
	}
	if c.RunDurations != nil {
		c.RunDurations.WithLabelValues(solver).Observe(elapsed.Seconds())
	}
	if c.Problems != nil {
		for severity, n := range problems {
			c.Problems.WithLabelValues(solver, severity).Add(float64(n))
		}
	}
	if c.PassesScheduled != nil {
		c.PassesScheduled.WithLabelValues(solver).Set(float64(scheduled))
	}
	if c.PassesUnscheduled != nil {
		c.PassesUnscheduled.WithLabelValues(solver).Set(float64(unscheduled))
	}
}

// RecordInvalid records a run rejected because of malformed input.
func (c *SchedulerCollector) RecordInvalid(solver string) {
	if c == nil || c.Runs == nil {
		return
	}
	c.Runs.WithLabelValues(solver, OutcomeInvalid).Inc()
}

// SetBatteryCapacity updates the battery capacity gauge.
func (c *SchedulerCollector) SetBatteryCapacity(joules float64) {
	if c == nil || c.BatteryCapacity == nil {
		return
	}
	c.BatteryCapacity.Set(joules)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
