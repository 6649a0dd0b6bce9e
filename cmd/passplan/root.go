package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/pass-scheduler/core"
	"github.com/signalsfoundry/pass-scheduler/internal/config"
	"github.com/signalsfoundry/pass-scheduler/internal/logging"
	"github.com/signalsfoundry/pass-scheduler/internal/observability"
)

// app holds flag values and the state shared by every subcommand once
// PersistentPreRunE has run.
type app struct {
	stdout io.Writer
	stderr io.Writer

	settingsPath string
	scenarioPath string
	family       string
	solver       string
	batteryJ     float64
	logLevel     string

	settings  config.Settings
	log       logging.Logger
	registry  *prometheus.Registry
	collector *observability.SchedulerCollector
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "passplan",
		Short: "Schedule byte-stream devices onto satellite passes under a battery budget",
		Long: `passplan picks, for every pass's encryption phase, the most energy-efficient
measured device profile that finishes in time without draining the battery.
Profiles with repeated trials of the same configuration are averaged first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.settingsPath, "settings", "", "path to a YAML settings file")
	pf.StringVar(&a.scenarioPath, "scenario", "", "path to a JSON scenario with passes and profiles")
	pf.StringVar(&a.family, "family", "", "profile family to schedule: aes or compression")
	pf.StringVar(&a.solver, "solver", "", "scheduling strategy: greedy or null")
	pf.Float64Var(&a.batteryJ, "battery-j", 0, "battery capacity in joules")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	_ = root.MarkPersistentFlagRequired("scenario")

	root.AddCommand(newScheduleCmd(a), newSummarizeCmd(a), newServeCmd(a))
	return root
}

// setup loads settings, applies flag overrides and builds the logger and
// metrics registry.
func (a *app) setup(cmd *cobra.Command) error {
	s, err := config.Load(a.settingsPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("family") {
		s.Family = a.family
	}
	if flags.Changed("solver") {
		s.Solver = a.solver
	}
	if flags.Changed("battery-j") {
		s.BatteryCapacityJ = a.batteryJ
	}
	if flags.Changed("log-level") {
		s.Log.Level = a.logLevel
	}
	if err := s.Validate(); err != nil {
		return err
	}
	a.settings = s
	a.log = logging.New(s.LoggingConfig(a.stderr))

	a.registry = prometheus.NewRegistry()
	if a.collector, err = observability.NewSchedulerCollector(a.registry); err != nil {
		return fmt.Errorf("initialise metrics: %w", err)
	}
	return nil
}

// startTracing installs the configured tracer provider and returns a function
// that flushes it.
func (a *app) startTracing(ctx context.Context) (func(), error) {
	cfg := a.settings.Tracing
	if cfg.Writer == nil {
		cfg.Writer = a.stderr
	}
	shutdown, err := observability.InitTracing(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}
	return func() { observability.ShutdownWithTimeout(context.Background(), shutdown, a.log) }, nil
}

func (a *app) loadScenario() (*core.Scenario, error) {
	f, err := os.Open(a.scenarioPath)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	sc, err := core.LoadScenario(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.scenarioPath, err)
	}
	return sc, nil
}
