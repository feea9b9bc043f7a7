// Package cooccurrence provides the species × species conditional occurrence
// matrix used by Beals smoothing. M[i][s] is the probability that species s
// occurs in a plot given that species i occurs there.
//
// Two sources exist. Matrix wraps probabilities supplied by the caller and is
// used as-is. Counts keeps pair counts built from the species table and can
// exclude a target plot's own occurrences on demand.
package cooccurrence

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

// Sentinel errors.
var (
	ErrUniverseMismatch = errors.New("co-occurrence universe does not cover the species table")
	ErrNotSquare        = errors.New("co-occurrence matrix is not square")
	ErrOutOfRange       = errors.New("co-occurrence value outside [0,1]")
	ErrMalformed        = errors.New("malformed co-occurrence table")
	ErrDuplicateSpecies = errors.New("duplicate species in co-occurrence universe")
)

// Conditional gives rows of M.
type Conditional interface {
	// Size is the number of species on each axis.
	Size() int
	// Row copies M[i][·] into dst, which must have length Size().
	Row(i int, dst []float64)
}

// Source supplies per-target views of M over a fixed species universe.
type Source interface {
	// Universe returns the species ids in axis order.
	Universe() []string
	// ForTarget returns M as seen from a target plot with the given present
	// species columns.
	ForTarget(present []int) Conditional
}

// Matrix is a probability matrix supplied directly.
type Matrix struct {
	data    *mat.Dense
	species []string
}

// NewMatrix validates a square matrix of probabilities over species.
func NewMatrix(species []string, data *mat.Dense) (*Matrix, error) {
	rows, cols := data.Dims()
	if rows != cols || rows != len(species) {
		return nil, fmt.Errorf("%w: %d×%d for %d species", ErrNotSquare, rows, cols, len(species))
	}

	err := checkUnique(species)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		for j := range cols {
			v := data.At(i, j)
			if math.IsNaN(v) || v < 0 || v > 1 {
				return nil, fmt.Errorf("%w: %g at (%s, %s)", ErrOutOfRange, v, species[i], species[j])
			}
		}
	}

	return &Matrix{data: data, species: species}, nil
}

// Universe implements Source.
func (m *Matrix) Universe() []string { return m.species }

// ForTarget implements Source. Supplied probabilities carry no counts to
// subtract, so every target sees the same matrix.
func (m *Matrix) ForTarget([]int) Conditional { return m }

// Size implements Conditional.
func (m *Matrix) Size() int { return len(m.species) }

// Row implements Conditional.
func (m *Matrix) Row(i int, dst []float64) { mat.Row(dst, i, m.data) }

// At returns M[i][j].
func (m *Matrix) At(i, j int) float64 { return m.data.At(i, j) }

// Align reindexes ds onto the universe of src. Every species of ds must be in
// the universe; universe species never observed become zero columns.
func Align(ds *releve.Dataset, src Source) (*releve.Dataset, error) {
	aligned, err := ds.Reindex(src.Universe())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUniverseMismatch, err)
	}

	return aligned, nil
}

func checkUnique(species []string) error {
	seen := make(map[string]struct{}, len(species))

	for _, id := range species {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSpecies, id)
		}

		seen[id] = struct{}{}
	}

	return nil
}
