// Package geometry provides the buffer and point-in-region predicates used to
// select spatial neighbours. Two providers exist: Planar for projected
// coordinates (Euclidean discs) and Geodesic for longitude/latitude
// coordinates (spherical caps, exact across the antimeridian and poles).
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Sentinel validation errors.
var (
	ErrInvalidRadius     = errors.New("buffer radius must be positive")
	ErrCoordinateRange   = errors.New("coordinate out of range")
	ErrNonFiniteLocation = errors.New("non-finite coordinate")
)

// defaultSegments is the number of vertices used when rendering a buffer outline.
const defaultSegments = 64

// Region is a buffer built around a point.
type Region interface {
	// Contains reports whether p lies inside the region. The boundary is inside.
	Contains(p orb.Point) bool
	// Polygon renders the region outline with the given number of vertices.
	Polygon(segments int) orb.Polygon
}

// Provider builds buffers in one coordinate system.
type Provider interface {
	// Buffer returns the region within radius of center.
	Buffer(center orb.Point, radius float64) Region
	// Validate checks that p is a usable location for this provider.
	Validate(p orb.Point) error
	// Name identifies the provider in logs.
	Name() string
}

// New returns the Geodesic provider when geodesic is set and Planar otherwise.
func New(geodesic bool) Provider {
	if geodesic {
		return NewGeodesic()
	}

	return Planar{}
}

// ValidateRadius checks a buffer radius.
func ValidateRadius(radius float64) error {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidRadius, radius)
	}

	return nil
}

func finite(p orb.Point) error {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrNonFiniteLocation, p)
		}
	}

	return nil
}

func segmentsOrDefault(segments int) int {
	if segments < 3 {
		return defaultSegments
	}

	return segments
}
