// Package report renders scheduling solutions for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/signalsfoundry/pass-scheduler/internal/schedule"
	"github.com/signalsfoundry/pass-scheduler/model"
)

// NoDevice is shown in place of a profile for passes without a viable one.
const NoDevice = "(no viable device)"

// Aggregate statuses derived from the worst problem severity.
const (
	StatusOK       = "ok"
	StatusWarnings = "ok with warnings"
	StatusErrors   = "completed with errors"
	StatusFailed   = "failed"
)

// Status summarises a solution by its worst problem.
func Status[T model.ByteStreamProcessor](sol *schedule.Solution[T]) string {
	worst, ok := sol.WorstSeverity()
	switch {
	case !ok:
		return StatusOK
	case worst == model.SeverityFatal || !sol.Solvable:
		return StatusFailed
	case worst == model.SeverityError:
		return StatusErrors
	default:
		return StatusWarnings
	}
}

func severityColor(s model.Severity) lipgloss.Color {
	switch s {
	case model.SeverityFatal:
		return lipgloss.Color("1") // red
	case model.SeverityError:
		return lipgloss.Color("208") // orange
	default:
		return lipgloss.Color("3") // yellow
	}
}

func statusColor(status string) lipgloss.Color {
	switch status {
	case StatusOK:
		return lipgloss.Color("2")
	case StatusWarnings:
		return lipgloss.Color("3")
	default:
		return lipgloss.Color("1")
	}
}

// Text writes a human-readable report. Colors are only emitted when w is a
// terminal that supports them.
func Text[T model.ByteStreamProcessor](w io.Writer, sol *schedule.Solution[T]) error {
	r := lipgloss.NewRenderer(w)
	heading := r.NewStyle().Bold(true)
	dim := r.NewStyle().Foreground(lipgloss.Color("241"))

	status := Status(sol)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", heading.Render("Solver:"), sol.Solver)
	fmt.Fprintf(&b, "%s %s\n", heading.Render("Status:"),
		r.NewStyle().Bold(true).Foreground(statusColor(status)).Render(strings.ToUpper(status)))

	b.WriteString("\n" + heading.Render("Problems") + "\n")
	if len(sol.Problems) == 0 {
		b.WriteString(dim.Render("  none") + "\n")
	}
	grouped := sol.ProblemsBySeverity()
	for _, sev := range model.Severities {
		badge := r.NewStyle().Bold(true).Foreground(severityColor(sev)).
			Render(fmt.Sprintf("%-7s", strings.ToUpper(sev.String())))
		for _, p := range grouped[sev] {
			if p.Pass != "" {
				fmt.Fprintf(&b, "  %s [%s] %s\n", badge, p.Pass, p.Message)
			} else {
				fmt.Fprintf(&b, "  %s %s\n", badge, p.Message)
			}
		}
	}

	b.WriteString("\n" + heading.Render("Assignments") + "\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if len(sol.Assignments) == 0 {
		_, err := io.WriteString(w, dim.Render("  none")+"\n")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  PASS\tDEVICE\tBYTES\tENERGY (J)\tTIME\tALLOWED\tBATTERY (J)")
	for _, a := range sol.Assignments {
		device, energy, took := NoDevice, "-", "-"
		if a.Viable {
			device = a.Profile.ID() + " " + a.Profile.Describe()
			energy = fmt.Sprintf("%.2f", a.EnergyJ)
			took = roundDuration(a.TimeRequired).String()
		}
		fmt.Fprintf(tw, "  %s\t%s\t%.0f\t%s\t%s\t%s\t%.2f -> %.2f\n",
			a.Pass, device, a.Bytes, energy, took, roundDuration(a.AllowedTime), a.CapacityBeforeJ, a.CapacityAfterJ)
	}
	return tw.Flush()
}

func roundDuration(d time.Duration) time.Duration {
	if d >= time.Second {
		return d.Round(time.Millisecond)
	}
	return d
}

// Document is the JSON form of a solution.
type Document struct {
	Solver      string              `json:"solver"`
	Solvable    bool                `json:"solvable"`
	Status      string              `json:"status"`
	Scheduled   int                 `json:"scheduled"`
	Problems    []model.Problem     `json:"problems"`
	Assignments []AssignmentSummary `json:"assignments"`
}

type AssignmentSummary struct {
	Pass                string  `json:"pass"`
	Viable              bool    `json:"viable"`
	ProfileID           string  `json:"profile_id,omitempty"`
	Device              string  `json:"device"`
	Bytes               float64 `json:"bytes"`
	EnergyJ             float64 `json:"energy_j"`
	TimeRequiredSeconds float64 `json:"time_required_s"`
	AllowedSeconds      float64 `json:"allowed_s"`
	CapacityBeforeJ     float64 `json:"capacity_before_j"`
	CapacityAfterJ      float64 `json:"capacity_after_j"`
}

// NewDocument converts sol into its JSON form.
func NewDocument[T model.ByteStreamProcessor](sol *schedule.Solution[T]) Document {
	doc := Document{
		Solver:      sol.Solver,
		Solvable:    sol.Solvable,
		Status:      Status(sol),
		Scheduled:   sol.ScheduledCount(),
		Problems:    append([]model.Problem{}, sol.Problems...),
		Assignments: make([]AssignmentSummary, 0, len(sol.Assignments)),
	}
	for _, a := range sol.Assignments {
		s := AssignmentSummary{
			Pass:            a.Pass,
			Viable:          a.Viable,
			Device:          NoDevice,
			Bytes:           a.Bytes,
			AllowedSeconds:  a.AllowedTime.Seconds(),
			CapacityBeforeJ: a.CapacityBeforeJ,
			CapacityAfterJ:  a.CapacityAfterJ,
		}
		if a.Viable {
			s.ProfileID = a.Profile.ID()
			s.Device = a.Profile.Describe()
			s.EnergyJ = a.EnergyJ
			s.TimeRequiredSeconds = a.TimeRequired.Seconds()
		}
		doc.Assignments = append(doc.Assignments, s)
	}
	return doc
}

// JSON writes sol as an indented JSON document.
func JSON[T model.ByteStreamProcessor](w io.Writer, sol *schedule.Solution[T]) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(sol))
}
