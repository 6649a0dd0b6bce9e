package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/pass-scheduler/core"
	"github.com/signalsfoundry/pass-scheduler/internal/config"
	"github.com/signalsfoundry/pass-scheduler/kb"
	"github.com/signalsfoundry/pass-scheduler/model"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		output string
		failOn = severityFlag{sev: model.SeverityFatal}
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Assign a device profile to every pass and print the solution",
		Example: `  passplan schedule --scenario configs/scenario.json --settings configs/settings.yaml
  passplan schedule --scenario configs/scenario.json --battery-j 1200 --output json
  passplan schedule --scenario configs/scenario.json --fail-on warning`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stopTracing, err := a.startTracing(ctx)
			if err != nil {
				return err
			}
			defer stopTracing()

			sc, err := a.loadScenario()
			if err != nil {
				return err
			}
			res, err := scheduleAndRender(ctx, a, a.settings, sc, a.stdout, output)
			if err != nil {
				return err
			}
			if !res.solvable {
				return errUnsolvable
			}
			if res.reaches(failOn.sev) {
				return fmt.Errorf("%w (%s)", errProblemThreshold, failOn.sev)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format: text or json")
	cmd.Flags().Var(&failOn, "fail-on", "exit non-zero when a problem of this severity or worse is reported: warning, error or fatal")
	return cmd
}

// severityFlag adapts model.Severity to a pflag value.
type severityFlag struct {
	sev model.Severity
}

func (f *severityFlag) String() string { return f.sev.String() }

func (f *severityFlag) Set(v string) error { return f.sev.UnmarshalText([]byte(v)) }

func (f *severityFlag) Type() string { return "severity" }

func newSummarizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Average repeated trials and print profiles ranked by energy per byte",
		Long: `summarize prints the enabled profiles ranked by energy per byte, followed by
any ranking problems and the profiles switched off by disabled_profiles.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.loadScenario()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if a.settings.Family == config.FamilyCompression {
				catalog, err := buildCatalog(ctx, a.log, sc.CompressionProfiles, a.settings.Disabled())
				if err != nil {
					return err
				}
				return writeRanking(a.stdout, catalog)
			}
			catalog, err := buildCatalog(ctx, a.log, sc.AESProfiles, a.settings.Disabled())
			if err != nil {
				return err
			}
			return writeRanking(a.stdout, catalog)
		},
	}
}

// writeRanking prints the optimization map of the enabled profiles followed by
// its problems and the disabled profiles.
func writeRanking[T core.Summarizable[T]](w io.Writer, catalog *kb.Catalog[T]) error {
	ranked, problems := core.BuildOptimizationMap(core.Summarize(catalog.Enabled()))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tDEVICE\tJ/BYTE\tBYTES/S")
	for i, p := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.6g\t%.6g\n", i+1, p.ID(), p.Describe(), p.JoulesPerByte(), p.BytesPerSecond())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, pr := range problems {
		if _, err := fmt.Fprintln(w, pr.String()); err != nil {
			return err
		}
	}
	for _, p := range catalog.List() {
		if catalog.IsEnabled(p.ID()) {
			continue
		}
		if _, err := fmt.Fprintf(w, "disabled: %s %s\n", p.ID(), p.Describe()); err != nil {
			return err
		}
	}
	return nil
}
