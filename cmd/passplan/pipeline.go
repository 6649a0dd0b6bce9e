package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/signalsfoundry/pass-scheduler/core"
	"github.com/signalsfoundry/pass-scheduler/internal/config"
	"github.com/signalsfoundry/pass-scheduler/internal/logging"
	"github.com/signalsfoundry/pass-scheduler/internal/report"
	"github.com/signalsfoundry/pass-scheduler/internal/schedule"
	"github.com/signalsfoundry/pass-scheduler/kb"
	"github.com/signalsfoundry/pass-scheduler/model"
)

// Output formats understood by schedule and serve.
const (
	formatText = "text"
	formatJSON = "json"
)

var (
	errUnsolvable = errors.New("schedule is not solvable")
	// errProblemThreshold is returned when --fail-on is reached by a solvable schedule.
	errProblemThreshold = errors.New("schedule has problems at or above the --fail-on severity")
)

// buildCatalog loads raw into a catalog and disables every profile named in
// disabled. Unknown ids are logged and skipped.
func buildCatalog[T model.ByteStreamProcessor](ctx context.Context, log logging.Logger, raw []T, disabled map[string]bool) (*kb.Catalog[T], error) {
	catalog := kb.NewCatalog[T]()
	if err := catalog.AddAll(raw); err != nil {
		return nil, fmt.Errorf("build profile catalog: %w", err)
	}
	unsubscribe := catalog.Subscribe(func(ev kb.Event) {
		if ev.Type == kb.EventProfileDisabled {
			log.Info(ctx, "profile disabled", logging.String("profile", ev.ProfileID))
		}
	})
	defer unsubscribe()

	ids := make([]string, 0, len(disabled))
	for id, off := range disabled {
		if off {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := catalog.Get(id); !ok {
			log.Warn(ctx, "disabled profile is not in the catalog", logging.String("profile", id))
			continue
		}
		if err := catalog.SetEnabled(id, false); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// candidates filters raw through a catalog honouring the disabled set and
// summarizes what is left.
func candidates[T core.Summarizable[T]](ctx context.Context, log logging.Logger, raw []T, disabled map[string]bool) ([]T, error) {
	catalog, err := buildCatalog(ctx, log, raw, disabled)
	if err != nil {
		return nil, err
	}
	enabled := catalog.Enabled()
	summarized := core.Summarize(enabled)
	log.Debug(ctx, "profile catalog prepared",
		logging.Int("raw", catalog.Len()),
		logging.Int("enabled", len(enabled)),
		logging.Int("summarized", len(summarized)),
	)
	return summarized, nil
}

// solve runs the configured solver for one profile family with
// instrumentation attached.
func solve[T core.Summarizable[T]](ctx context.Context, a *app, s config.Settings, passes []*model.Pass, raw []T) (*schedule.Solution[T], error) {
	profiles, err := candidates(ctx, a.log, raw, s.Disabled())
	if err != nil {
		return nil, err
	}
	reg := schedule.NewDefaultRegistry[T]()
	inner, ok := reg.Get(s.Solver)
	if !ok {
		return nil, fmt.Errorf("unknown solver %q (available: %s)", s.Solver, strings.Join(reg.Names(), ", "))
	}
	opts := []schedule.InstrumentOption{}
	if a.collector != nil {
		opts = append(opts, schedule.WithRecorder(a.collector))
	}
	return schedule.Instrument(inner, a.log, opts...).Solve(ctx, passes, profiles, s.BatteryCapacityJ)
}

func render[T model.ByteStreamProcessor](w io.Writer, format string, sol *schedule.Solution[T]) error {
	switch format {
	case formatJSON:
		return report.JSON(w, sol)
	case formatText, "":
		return report.Text(w, sol)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// outcome is what a caller of scheduleAndRender needs to pick an exit status.
type outcome struct {
	solvable bool
	problems []model.Problem
}

// reaches reports whether any problem is at least as severe as threshold.
func (o outcome) reaches(threshold model.Severity) bool {
	for _, p := range o.problems {
		if p.Severity >= threshold {
			return true
		}
	}
	return false
}

// scheduleAndRender dispatches on the profile family and writes the report to w.
func scheduleAndRender(ctx context.Context, a *app, s config.Settings, sc *core.Scenario, w io.Writer, format string) (outcome, error) {
	switch s.Family {
	case config.FamilyCompression:
		sol, err := solve(ctx, a, s, sc.Passes, sc.CompressionProfiles)
		if err != nil {
			return outcome{}, err
		}
		return outcome{solvable: sol.Solvable, problems: sol.Problems}, render(w, format, sol)
	default:
		sol, err := solve(ctx, a, s, sc.Passes, sc.AESProfiles)
		if err != nil {
			return outcome{}, err
		}
		return outcome{solvable: sol.Solvable, problems: sol.Problems}, render(w, format, sol)
	}
}
