package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// Coordinate limits in degrees.
const (
	maxLatitude  = 90.0
	maxLongitude = 180.0
)

// Geodesic builds spherical caps around longitude/latitude points. Radius is
// in metres along the great circle.
type Geodesic struct {
	// SphereRadius is the radius of the reference sphere in metres.
	SphereRadius float64
}

// NewGeodesic returns a provider on a sphere of radius orb.EarthRadius.
func NewGeodesic() Geodesic {
	return Geodesic{SphereRadius: orb.EarthRadius}
}

// Name implements Provider.
func (Geodesic) Name() string { return "geodesic" }

// Validate implements Provider.
func (Geodesic) Validate(p orb.Point) error {
	err := finite(p)
	if err != nil {
		return err
	}

	if math.Abs(p.Lat()) > maxLatitude || math.Abs(p.Lon()) > maxLongitude {
		return fmt.Errorf("%w: lon %g lat %g", ErrCoordinateRange, p.Lon(), p.Lat())
	}

	return nil
}

// Buffer implements Provider.
func (g Geodesic) Buffer(center orb.Point, radius float64) Region {
	sphere := g.SphereRadius
	if sphere <= 0 {
		sphere = orb.EarthRadius
	}

	angle := s1.Angle(radius / sphere)

	return spherecap{
		lon: center.Lon(),
		cap: s2.CapFromCenterAngle(toS2(center), angle),
	}
}

type spherecap struct {
	cap s2.Cap
	lon float64
}

func (c spherecap) Contains(p orb.Point) bool {
	return c.cap.ContainsPoint(toS2(p))
}

// Polygon renders the cap as a regular loop. Longitudes are unwrapped around
// the centre so the ring stays continuous when it crosses the antimeridian.
func (c spherecap) Polygon(segments int) orb.Polygon {
	loop := s2.RegularLoop(c.cap.Center(), c.cap.Radius(), segmentsOrDefault(segments))
	vertices := loop.Vertices()
	ring := make(orb.Ring, 0, len(vertices)+1)

	for _, v := range vertices {
		ll := s2.LatLngFromPoint(v)
		lon := ll.Lng.Degrees()

		for lon-c.lon > maxLongitude {
			lon -= 2 * maxLongitude
		}

		for c.lon-lon > maxLongitude {
			lon += 2 * maxLongitude
		}

		ring = append(ring, orb.Point{lon, ll.Lat.Degrees()})
	}

	ring = append(ring, ring[0])

	return orb.Polygon{ring}
}

func toS2(p orb.Point) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon()))
}
