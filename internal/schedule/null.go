package schedule

import (
	"context"

	"github.com/signalsfoundry/pass-scheduler/model"
)

const (
	// NullName is the registry name of the null solver.
	NullName = "null"
	// NullMessage is the single fatal problem reported by the null solver.
	NullMessage = "the null scheduler does not produce schedules"
)

// Null is a solver that always fails. It is useful as a negative fixture and
// to check that consumers handle unsolvable results.
type Null[T model.ByteStreamProcessor] struct{}

// NewNull returns the null solver.
func NewNull[T model.ByteStreamProcessor]() *Null[T] {
	return &Null[T]{}
}

func (n *Null[T]) Name() string { return NullName }

func (n *Null[T]) Solve(context.Context, []*model.Pass, []T, float64) (*Solution[T], error) {
	sol := newSolution[T](n.Name())
	sol.fatal("", NullMessage)
	return sol, nil
}
