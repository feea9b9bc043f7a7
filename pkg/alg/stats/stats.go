// Package stats provides small numerical helpers shared by the estimation stages.
package stats

import (
	"cmp"
	"math"
	"slices"
)

// Clamp restricts val to the range [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}

// Sum returns the sum of all elements in values.
// Returns the zero value of T for an empty slice.
func Sum[T cmp.Ordered](values []T) T {
	var result T

	for _, v := range values {
		result += v
	}

	return result
}

// RoundHalfEven rounds to the nearest integer, ties to even (IEC 60559).
// 7.5 rounds to 8 and 6.5 rounds to 6. Values beyond the int range
// saturate, and NaN rounds to 0.
func RoundHalfEven(v float64) int {
	r := math.RoundToEven(v)

	switch {
	case math.IsNaN(r):
		return 0
	case r >= math.MaxInt:
		return math.MaxInt
	case r <= math.MinInt:
		return math.MinInt
	}

	return int(r)
}

// RankDescending returns the indices of values ordered by value, largest
// first. Equal values keep their original relative order, so ties resolve
// to the lower index.
func RankDescending(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(values[b], values[a])
	})

	return order
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
