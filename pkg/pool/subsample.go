package pool

import "math/rand/v2"

// Subsample bounds the neighbourhood to 2·minPlots rows. When rows holds at
// least that many, 2·minPlots − 1 rows are drawn uniformly without
// replacement from rows[1:] and the target rows[0] is put back in front.
// Otherwise rows is returned unchanged.
func Subsample(rows []int, minPlots int, rng *rand.Rand) []int {
	limit := 2 * minPlots
	if len(rows) < limit {
		return rows
	}

	others := append([]int(nil), rows[1:]...)

	// Partial Fisher-Yates: the first limit-1 slots end up a uniform sample.
	for i := range limit - 1 {
		j := i + rng.IntN(len(others)-i)
		others[i], others[j] = others[j], others[i]
	}

	return append([]int{rows[0]}, others[:limit-1]...)
}
