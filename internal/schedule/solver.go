package schedule

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/signalsfoundry/pass-scheduler/model"
)

// ErrInvalidInput indicates a precondition violation in the inputs of a
// scheduling run. Infeasible schedules are never reported this way.
var ErrInvalidInput = errors.New("invalid scheduling input")

// Solver is a pluggable scheduling strategy. Implementations must not modify
// the passes or profiles they are given and must always return a complete
// Solution for well-formed input.
type Solver[T model.ByteStreamProcessor] interface {
	Name() string
	Solve(ctx context.Context, passes []*model.Pass, profiles []T, batteryCapacityJ float64) (*Solution[T], error)
}

// validateInput checks the structural preconditions shared by all solvers.
func validateInput(passes []*model.Pass, batteryCapacityJ float64) error {
	if math.IsNaN(batteryCapacityJ) || math.IsInf(batteryCapacityJ, 0) || batteryCapacityJ < 0 {
		return fmt.Errorf("%w: battery capacity %v J", ErrInvalidInput, batteryCapacityJ)
	}
	names := make(map[string]struct{}, len(passes))
	for _, p := range passes {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%w: duplicate pass name %q", ErrInvalidInput, p.Name)
		}
		names[p.Name] = struct{}{}
	}
	return nil
}

// Registry holds the solvers available for one profile family, keyed by name.
type Registry[T model.ByteStreamProcessor] struct {
	mu      sync.RWMutex
	solvers map[string]Solver[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T model.ByteStreamProcessor]() *Registry[T] {
	return &Registry[T]{solvers: make(map[string]Solver[T])}
}

// NewDefaultRegistry creates a registry holding the greedy and null solvers.
func NewDefaultRegistry[T model.ByteStreamProcessor]() *Registry[T] {
	r := NewRegistry[T]()
	_ = r.Register(NewGreedy[T]())
	_ = r.Register(NewNull[T]())
	return r
}

// Register adds a solver. It returns an error if the name is already taken.
func (r *Registry[T]) Register(s Solver[T]) error {
	if s == nil || s.Name() == "" {
		return fmt.Errorf("nil or unnamed solver")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.solvers[s.Name()]; exists {
		return fmt.Errorf("solver %q already registered", s.Name())
	}
	r.solvers[s.Name()] = s
	return nil
}

// Get returns the solver registered under name.
func (r *Registry[T]) Get(name string) (Solver[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.solvers[name]
	return s, ok
}

// Names returns the registered solver names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
