package pool

import (
	"gonum.org/v1/gonum/mat"

	"github.com/Sumatoshi-tech/speciespool/pkg/beals"
)

// Filter keeps the rows whose Beals profile has a Bray-Curtis dissimilarity
// strictly below bray to the target's profile. profiles has one row per
// entry of rows; rows[0] is the target and is always kept.
func Filter(profiles *mat.Dense, rows []int, bray float64) []int {
	target := profiles.RawRowView(0)
	out := []int{rows[0]}

	for i := 1; i < len(rows); i++ {
		if beals.BrayCurtis(target, profiles.RawRowView(i)) < bray {
			out = append(out, rows[i])
		}
	}

	return out
}
