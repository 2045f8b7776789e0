// Package stats provides statistical utility functions for analyzers.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile calculates the p-th percentile of a sorted slice using the
// empirical distribution: the smallest value whose cumulative share reaches
// p percent. The slice must already be sorted in ascending order.
// Returns 0 if the slice is empty.
func Percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return stat.Quantile(float64(p)/100, stat.Empirical, sorted, nil)
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Ints converts integer samples to a sorted float slice ready for Percentile.
func Ints(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	sort.Float64s(out)
	return out
}
