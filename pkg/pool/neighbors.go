package pool

import (
	"github.com/paulmach/orb"

	"github.com/Sumatoshi-tech/speciespool/pkg/geometry"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

func location(p releve.Plot) orb.Point {
	return orb.Point{p.X, p.Y}
}

// Neighbors returns the rows of every plot inside the buffer of radius around
// the target, boundary inclusive. The target comes first, the others follow
// in input order.
func Neighbors(ds *releve.Dataset, geom geometry.Provider, target int, radius float64) []int {
	region := geom.Buffer(location(ds.Plot(target)), radius)
	out := []int{target}

	for row, p := range ds.Plots() {
		if row != target && region.Contains(location(p)) {
			out = append(out, row)
		}
	}

	return out
}
