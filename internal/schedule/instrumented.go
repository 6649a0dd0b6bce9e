package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/pass-scheduler/internal/logging"
	"github.com/signalsfoundry/pass-scheduler/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/pass-scheduler/internal/schedule"

// RunRecorder receives a summary of every scheduling run. It is satisfied by
// observability.SchedulerCollector.
type RunRecorder interface {
	RecordRun(solver string, elapsed time.Duration, solvable bool, scheduled, unscheduled int, problems map[string]int)
	RecordInvalid(solver string)
	SetBatteryCapacity(joules float64)
}

// Instrumented wraps a Solver with a trace span, structured logs and metrics.
// The wrapped solver is called exactly once per Solve.
type Instrumented[T model.ByteStreamProcessor] struct {
	inner    Solver[T]
	log      logging.Logger
	recorder RunRecorder
	tracer   trace.Tracer
}

// InstrumentOption customises Instrument.
type InstrumentOption func(*instrumentConfig)

type instrumentConfig struct {
	recorder RunRecorder
	tracer   trace.Tracer
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r RunRecorder) InstrumentOption {
	return func(c *instrumentConfig) {
		c.recorder = r
	}
}

// WithTracer overrides the tracer, which otherwise comes from the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) InstrumentOption {
	return func(c *instrumentConfig) {
		c.tracer = t
	}
}

// Instrument wraps inner.
func Instrument[T model.ByteStreamProcessor](inner Solver[T], log logging.Logger, opts ...InstrumentOption) *Instrumented[T] {
	if log == nil {
		log = logging.Noop()
	}
	var cfg instrumentConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}
	return &Instrumented[T]{inner: inner, log: log, recorder: cfg.recorder, tracer: cfg.tracer}
}

func (i *Instrumented[T]) Name() string { return i.inner.Name() }

func (i *Instrumented[T]) Solve(ctx context.Context, passes []*model.Pass, profiles []T, batteryCapacityJ float64) (*Solution[T], error) {
	ctx, log := logging.WithRunLogger(ctx, i.log)
	name := i.inner.Name()
	log = log.With(logging.String("solver", name))

	ctx, span := i.tracer.Start(ctx, "schedule.Solve", trace.WithAttributes(
		attribute.String("solver", name),
		attribute.Int("passes", len(passes)),
		attribute.Int("profiles", len(profiles)),
		attribute.Float64("battery_capacity_j", batteryCapacityJ),
	))
	defer span.End()

	if i.recorder != nil {
		i.recorder.SetBatteryCapacity(batteryCapacityJ)
	}

	start := time.Now()
	sol, err := i.inner.Solve(ctx, passes, profiles, batteryCapacityJ)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrInvalidInput) && i.recorder != nil {
			i.recorder.RecordInvalid(name)
		}
		log.Error(ctx, "scheduling run rejected", logging.Error(err))
		return nil, err
	}

	counts := make(map[string]int)
	for _, p := range sol.Problems {
		counts[p.Severity.String()]++
		switch p.Severity {
		case model.SeverityWarning:
			log.Warn(ctx, p.Message, logging.String("pass", p.Pass))
		default:
			log.Error(ctx, p.Message, logging.String("pass", p.Pass), logging.String("severity", p.Severity.String()))
		}
	}
	scheduled := sol.ScheduledCount()
	unscheduled := len(passes) - scheduled

	span.SetAttributes(
		attribute.Bool("solvable", sol.Solvable),
		attribute.Int("scheduled", scheduled),
		attribute.Int("problems", len(sol.Problems)),
	)
	if !sol.Solvable {
		span.SetStatus(codes.Error, "schedule not solvable")
	}
	if i.recorder != nil {
		i.recorder.RecordRun(name, elapsed, sol.Solvable, scheduled, unscheduled, counts)
	}

	log.Info(ctx, "scheduling run finished",
		logging.Bool("solvable", sol.Solvable),
		logging.Int("scheduled", scheduled),
		logging.Int("unscheduled", unscheduled),
		logging.Int("problems", len(sol.Problems)),
		logging.String("elapsed", elapsed.String()),
	)
	return sol, nil
}
