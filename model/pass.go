package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidPass is returned when a pass does not have the fixed four-phase
// structure the schedulers rely on.
var ErrInvalidPass = errors.New("invalid pass")

// PhaseKind enumerates the four phases of an orbital pass.
type PhaseKind int

const (
	PhaseSunlight PhaseKind = iota
	PhaseMission
	PhaseEncryption
	PhaseDatalink
)

// phaseKindCount is the fixed number of phases in every pass.
const phaseKindCount = 4

func (k PhaseKind) String() string {
	switch k {
	case PhaseSunlight:
		return "sunlight"
	case PhaseMission:
		return "mission"
	case PhaseEncryption:
		return "encryption"
	case PhaseDatalink:
		return "datalink"
	default:
		return fmt.Sprintf("PhaseKind(%d)", int(k))
	}
}

// ParsePhaseKind maps a case-insensitive name to a PhaseKind.
func ParsePhaseKind(s string) (PhaseKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunlight", "sun":
		return PhaseSunlight, nil
	case "mission":
		return PhaseMission, nil
	case "encryption", "encrypt":
		return PhaseEncryption, nil
	case "datalink", "downlink":
		return PhaseDatalink, nil
	default:
		return 0, fmt.Errorf("unknown phase kind %q", s)
	}
}

// Phase is a typed time interval inside a pass. EnergyJ is positive when the
// phase consumes energy and negative when it generates energy.
type Phase struct {
	Kind    PhaseKind
	Start   time.Time
	End     time.Time
	EnergyJ float64

	// Bytes is only meaningful for the encryption phase.
	Bytes float64
}

// Duration returns End-Start.
func (p Phase) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Pass is one orbital pass of the satellite.
type Pass struct {
	Name   string
	Start  time.Time
	End    time.Time
	Phases []Phase

	// Scheduled is set on the pass states returned by a scheduler.
	Scheduled bool
}

// Validate checks that the pass has exactly one phase of each kind and that
// no phase ends before it starts.
func (p *Pass) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil pass", ErrInvalidPass)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPass)
	}
	if len(p.Phases) != phaseKindCount {
		return fmt.Errorf("%w: pass %q has %d phases, want %d", ErrInvalidPass, p.Name, len(p.Phases), phaseKindCount)
	}
	var seen [phaseKindCount]bool
	for _, ph := range p.Phases {
		if ph.Kind < 0 || int(ph.Kind) >= phaseKindCount {
			return fmt.Errorf("%w: pass %q has unknown phase kind %d", ErrInvalidPass, p.Name, int(ph.Kind))
		}
		if seen[ph.Kind] {
			return fmt.Errorf("%w: pass %q has duplicate %s phase", ErrInvalidPass, p.Name, ph.Kind)
		}
		seen[ph.Kind] = true
		if ph.End.Before(ph.Start) {
			return fmt.Errorf("%w: pass %q %s phase ends before it starts", ErrInvalidPass, p.Name, ph.Kind)
		}
	}
	return nil
}

// SortedPhases returns the phases ordered by start time. The pass itself is
// left untouched.
func (p *Pass) SortedPhases() []Phase {
	out := make([]Phase, len(p.Phases))
	copy(out, p.Phases)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Phase returns the phase of the given kind.
func (p *Pass) Phase(kind PhaseKind) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Kind == kind {
			return ph, true
		}
	}
	return Phase{}, false
}

// EncryptionPhase returns the pass's encryption phase.
func (p *Pass) EncryptionPhase() (Phase, error) {
	ph, ok := p.Phase(PhaseEncryption)
	if !ok {
		return Phase{}, fmt.Errorf("%w: pass %q has no encryption phase", ErrInvalidPass, p.Name)
	}
	return ph, nil
}

// Clone returns a deep copy of the pass.
func (p *Pass) Clone() *Pass {
	if p == nil {
		return nil
	}
	out := *p
	out.Phases = make([]Phase, len(p.Phases))
	copy(out.Phases, p.Phases)
	return &out
}

// SetPhaseEnergy sets the energy of the phase of the given kind.
func (p *Pass) SetPhaseEnergy(kind PhaseKind, joules float64) {
	for i := range p.Phases {
		if p.Phases[i].Kind == kind {
			p.Phases[i].EnergyJ = joules
			return
		}
	}
}

// SortPassesByStart returns a copy of passes ordered by start time, keeping
// the given order among passes that start together.
func SortPassesByStart(passes []*Pass) []*Pass {
	out := make([]*Pass, len(passes))
	copy(out, passes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
