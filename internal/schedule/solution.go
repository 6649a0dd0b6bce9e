package schedule

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/pass-scheduler/model"
)

// Assignment records the outcome of the device selection for one pass.
type Assignment[T model.ByteStreamProcessor] struct {
	Pass string
	// Profile is the zero value of T when Viable is false.
	Profile T
	Viable  bool

	EnergyJ      float64
	TimeRequired time.Duration
	AllowedTime  time.Duration
	Bytes        float64

	// Ledger values around the encryption decision. Encryption energy is
	// not drawn from the ledger, so both are equal for the greedy solver.
	CapacityBeforeJ float64
	CapacityAfterJ  float64
}

// Solution is the complete output of one scheduling run. It is built fresh
// for every run and not modified once Solve returns.
type Solution[T model.ByteStreamProcessor] struct {
	Solver   string
	Solvable bool

	// Assignments holds one entry per pass that reached the device selection
	// step, in processing order.
	Assignments []Assignment[T]
	// Passes holds the resulting state of every pass the run processed: the
	// scheduled flag and the encryption energy actually assigned. Caller
	// passes are never modified.
	Passes []*model.Pass
	// Problems is ordered by emission.
	Problems []model.Problem
}

func newSolution[T model.ByteStreamProcessor](solver string) *Solution[T] {
	return &Solution[T]{Solver: solver, Solvable: true}
}

func (s *Solution[T]) warn(pass, format string, args ...any) {
	s.Problems = append(s.Problems, model.Problem{
		Severity: model.SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		Pass:     pass,
	})
}

func (s *Solution[T]) fatal(pass, format string, args ...any) {
	s.Solvable = false
	s.Problems = append(s.Problems, model.Problem{
		Severity: model.SeverityFatal,
		Message:  fmt.Sprintf(format, args...),
		Pass:     pass,
	})
}

// Assignment returns the assignment recorded for the named pass.
func (s *Solution[T]) Assignment(pass string) (Assignment[T], bool) {
	for _, a := range s.Assignments {
		if a.Pass == pass {
			return a, true
		}
	}
	return Assignment[T]{}, false
}

// Pass returns the resulting state of the named pass, or nil if the run never
// processed it.
func (s *Solution[T]) Pass(name string) *model.Pass {
	for _, p := range s.Passes {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// ScheduledCount returns how many passes received a viable profile.
func (s *Solution[T]) ScheduledCount() int {
	n := 0
	for _, a := range s.Assignments {
		if a.Viable {
			n++
		}
	}
	return n
}

// ProblemsBySeverity groups problems by severity, keeping emission order
// within each group.
func (s *Solution[T]) ProblemsBySeverity() map[model.Severity][]model.Problem {
	out := make(map[model.Severity][]model.Problem)
	for _, p := range s.Problems {
		out[p.Severity] = append(out[p.Severity], p)
	}
	return out
}

// WorstSeverity returns the most severe problem level present; ok is false
// when the solution carries no problems.
func (s *Solution[T]) WorstSeverity() (worst model.Severity, ok bool) {
	for _, p := range s.Problems {
		if !ok || p.Severity > worst {
			worst, ok = p.Severity, true
		}
	}
	return worst, ok
}
