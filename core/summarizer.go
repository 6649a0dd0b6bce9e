package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/pass-scheduler/model"
)

const (
	// SummaryAuthor marks records produced by Summarize.
	SummaryAuthor = "summarizer"
	// SummaryDescription marks records produced by Summarize.
	SummaryDescription = "Averaged from repeated trials of the same configuration."
)

// Summarizable is a profile that can be re-stamped with averaged quantities.
// Both *model.AESProfile and *model.CompressionProfile satisfy it.
type Summarizable[T any] interface {
	model.ByteStreamProcessor
	WithAverages(id, author, description string, m model.ProfileMeasurement) T
}

// SummarizeOption customises Summarize.
type SummarizeOption func(*summarizeConfig)

type summarizeConfig struct {
	newID func() string
}

// WithIDGenerator overrides how ids are assigned to summarized records.
func WithIDGenerator(fn func() string) SummarizeOption {
	return func(c *summarizeConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

type bucket[T any] struct {
	first   T
	count   int
	sum     model.ProfileMeasurement
	elapsed time.Duration
}

// Summarize merges profiles sharing a comparison key into one record whose
// quantities are the arithmetic mean of the bucket. Descriptive fields are
// copied from the first member encountered. The output keeps the order in
// which buckets were first seen; inputs are not modified.
func Summarize[T Summarizable[T]](profiles []T, opts ...SummarizeOption) []T {
	cfg := summarizeConfig{newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	buckets := make(map[string]*bucket[T])
	order := make([]string, 0)
	for _, p := range profiles {
		key := p.ComparisonKey()
		b, ok := buckets[key]
		if !ok {
			b = &bucket[T]{first: p}
			buckets[key] = b
			order = append(order, key)
		}
		m := p.Measurement()
		b.count++
		b.sum.AverageCurrentA += m.AverageCurrentA
		b.sum.AverageVoltageV += m.AverageVoltageV
		b.sum.TestedBytes += m.TestedBytes
		b.sum.TestedEnergyJ += m.TestedEnergyJ
		b.elapsed += m.TestedDuration
	}

	out := make([]T, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		n := float64(b.count)
		avg := model.ProfileMeasurement{
			AverageCurrentA: b.sum.AverageCurrentA / n,
			AverageVoltageV: b.sum.AverageVoltageV / n,
			TestedBytes:     b.sum.TestedBytes / n,
			TestedEnergyJ:   b.sum.TestedEnergyJ / n,
			TestedDuration:  b.elapsed / time.Duration(b.count),
		}
		out = append(out, b.first.WithAverages(cfg.newID(), SummaryAuthor, SummaryDescription, avg))
	}
	return out
}
