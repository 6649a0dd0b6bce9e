package core

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/pass-scheduler/model"
)

// BuildOptimizationMap orders profiles from most to least energy efficient
// (ascending joules per byte). When two profiles share a joules-per-byte value
// only the faster one is kept and a warning naming both is returned. Profiles
// whose derived metrics are undefined are dropped with a warning as well, so
// every profile missing from the result is accounted for in the problems.
func BuildOptimizationMap[T model.ByteStreamProcessor](profiles []T) ([]T, []model.Problem) {
	var problems []model.Problem

	usable := make([]T, 0, len(profiles))
	for _, p := range profiles {
		if !model.Usable(p) {
			problems = append(problems, model.Problem{
				Severity: model.SeverityWarning,
				Message: fmt.Sprintf("profile %s (%s) has undefined efficiency metrics (%.3g J/B, %.3g B/s) and was excluded",
					p.ID(), p.Describe(), p.JoulesPerByte(), p.BytesPerSecond()),
			})
			continue
		}
		usable = append(usable, p)
	}

	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].JoulesPerByte() < usable[j].JoulesPerByte()
	})

	ranked := make([]T, 0, len(usable))
	for _, p := range usable {
		n := len(ranked)
		if n == 0 || ranked[n-1].JoulesPerByte() != p.JoulesPerByte() {
			ranked = append(ranked, p)
			continue
		}
		kept, dropped := ranked[n-1], p
		if p.BytesPerSecond() > kept.BytesPerSecond() {
			kept, dropped = p, kept
			ranked[n-1] = p
		}
		problems = append(problems, model.Problem{
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("profiles %s and %s are equally efficient (%.6g J/B); kept the faster %s",
				profileSummary(kept), profileSummary(dropped), kept.JoulesPerByte(), kept.ID()),
		})
	}
	return ranked, problems
}

func profileSummary[T model.ByteStreamProcessor](p T) string {
	info := p.Info()
	return fmt.Sprintf("%s [platform=%s mode=%s cores=%d provider=%s clock=%gMHz %.6g B/s]",
		p.ID(), info.Platform, info.Mode, info.Cores, info.Provider, info.ClockMHz, p.BytesPerSecond())
}
