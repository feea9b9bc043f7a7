package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Planar builds Euclidean discs in projected coordinates. Radius is in CRS units.
type Planar struct{}

// Name implements Provider.
func (Planar) Name() string { return "planar" }

// Validate implements Provider.
func (Planar) Validate(p orb.Point) error { return finite(p) }

// Buffer implements Provider.
func (Planar) Buffer(center orb.Point, radius float64) Region {
	return disc{
		center: center,
		radius: radius,
		bound: orb.Bound{
			Min: orb.Point{center.X() - radius, center.Y() - radius},
			Max: orb.Point{center.X() + radius, center.Y() + radius},
		},
	}
}

type disc struct {
	center orb.Point
	bound  orb.Bound
	radius float64
}

func (d disc) Contains(p orb.Point) bool {
	if !d.bound.Contains(p) {
		return false
	}

	return planar.Distance(d.center, p) <= d.radius
}

func (d disc) Polygon(segments int) orb.Polygon {
	n := segmentsOrDefault(segments)
	ring := make(orb.Ring, 0, n+1)

	for i := range n {
		theta := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{
			d.center.X() + d.radius*math.Cos(theta),
			d.center.Y() + d.radius*math.Sin(theta),
		})
	}

	ring = append(ring, ring[0])

	return orb.Polygon{ring}
}
