package schedule

import (
	"context"
	"time"

	"github.com/signalsfoundry/pass-scheduler/core"
	"github.com/signalsfoundry/pass-scheduler/model"
)

// GreedyName is the registry name of the greedy low-power solver.
const GreedyName = "greedy"

// Greedy assigns to every pass the most energy-efficient profile that fits
// both the encryption phase's time window and the energy accumulated so far.
//
// The energy ledger starts at zero and is carried across passes. Every
// non-encryption phase is subtracted from it in chronological order; the
// ledger is clamped to the battery capacity with a warning when it overflows.
// The energy of the chosen profile bounds the selection but is recorded on
// the encryption phase only and never moves the ledger.
// Two conditions are fatal and handled differently:
//
//   - the ledger goes negative before the encryption decision: the run stops,
//     since every later pass depends on the exhausted budget;
//   - no profile fits a pass: the pass gets no profile and the run continues.
type Greedy[T model.ByteStreamProcessor] struct{}

// NewGreedy returns the greedy low-power solver.
func NewGreedy[T model.ByteStreamProcessor]() *Greedy[T] {
	return &Greedy[T]{}
}

func (g *Greedy[T]) Name() string { return GreedyName }

// Solve runs the greedy schedule. Passes are processed by start time and
// phases inside each pass by start time, whatever order they were given in.
// The returned error is non-nil only for malformed input.
func (g *Greedy[T]) Solve(_ context.Context, passes []*model.Pass, profiles []T, batteryCapacityJ float64) (*Solution[T], error) {
	if err := validateInput(passes, batteryCapacityJ); err != nil {
		return nil, err
	}

	sol := newSolution[T](g.Name())
	ranked, problems := core.BuildOptimizationMap(profiles)
	sol.Problems = append(sol.Problems, problems...)

	capacityJ := 0.0
	for _, src := range model.SortPassesByStart(passes) {
		pass := src.Clone()
		pass.Scheduled = false
		pass.SetPhaseEnergy(model.PhaseEncryption, 0)
		sol.Passes = append(sol.Passes, pass)

		var ok bool
		capacityJ, ok = accrue(sol, pass, capacityJ, batteryCapacityJ)
		if !ok {
			return sol, nil
		}

		enc, _ := pass.EncryptionPhase()
		a := Assignment[T]{
			Pass:            pass.Name,
			AllowedTime:     enc.Duration(),
			Bytes:           enc.Bytes,
			CapacityBeforeJ: capacityJ,
		}
		for _, p := range ranked {
			seconds := enc.Bytes / p.BytesPerSecond()
			energyJ := enc.Bytes * p.JoulesPerByte()
			if seconds <= enc.Duration().Seconds() && energyJ <= capacityJ {
				a.Profile = p
				a.Viable = true
				a.EnergyJ = energyJ
				a.TimeRequired = time.Duration(seconds * float64(time.Second))
				break
			}
		}

		if a.Viable {
			pass.SetPhaseEnergy(model.PhaseEncryption, a.EnergyJ)
			pass.Scheduled = true
		} else {
			sol.fatal(pass.Name, "pass %q: no profile can encrypt %.0f bytes within %s using at most %.2f J",
				pass.Name, enc.Bytes, enc.Duration(), capacityJ)
		}
		a.CapacityAfterJ = capacityJ
		sol.Assignments = append(sol.Assignments, a)
	}
	return sol, nil
}

// accrue applies the pass's non-encryption phases to the ledger. It returns
// false after recording a fatal problem when the ledger goes negative.
func accrue[T model.ByteStreamProcessor](sol *Solution[T], pass *model.Pass, capacityJ, maxJ float64) (float64, bool) {
	for _, ph := range pass.SortedPhases() {
		if ph.Kind == model.PhaseEncryption {
			continue
		}
		capacityJ -= ph.EnergyJ
		if capacityJ < 0 {
			sol.fatal(pass.Name, "pass %q: energy budget exhausted during %s phase (%.2f J available); remaining passes not scheduled",
				pass.Name, ph.Kind, capacityJ)
			return capacityJ, false
		}
		if capacityJ > maxJ {
			sol.warn(pass.Name, "pass %q: battery capacity exceeded during %s phase (%.2f J > %.2f J); excess energy discarded",
				pass.Name, ph.Kind, capacityJ, maxJ)
			capacityJ = maxJ
		}
	}
	return capacityJ, true
}
