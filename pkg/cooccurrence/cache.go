package cooccurrence

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/Sumatoshi-tech/speciespool/pkg/persist"
)

const csvExtension = ".csv"

// snapshot is the serialised form of Counts. Pairs is the row-major upper
// triangle storage of the symmetric count matrix.
type snapshot struct {
	Species []string
	Pairs   []float64
	Plots   int
}

// Save writes counts to path. The codec follows the file extension
// (".lz4" by default, see persist.ForPath).
func Save(path string, c *Counts) error {
	raw := c.pairs.RawSymmetric()
	n := len(c.species)
	pairs := make([]float64, 0, n*n)

	for i := range n {
		pairs = append(pairs, raw.Data[i*raw.Stride:i*raw.Stride+n]...)
	}

	state := snapshot{Species: c.species, Pairs: pairs, Plots: c.plots}

	err := persist.SaveFile(path, persist.ForPath(path), &state)
	if err != nil {
		return fmt.Errorf("save co-occurrence counts: %w", err)
	}

	return nil
}

// Load reads a co-occurrence source from path. CSV files are probability
// matrices; any other extension is a counts cache written by Save.
func Load(path string) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), csvExtension) {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open co-occurrence matrix: %w", err)
		}
		defer file.Close()

		m, err := ReadCSV(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		return m, nil
	}

	var state snapshot

	err := persist.LoadFile(path, persist.ForPath(path), &state)
	if err != nil {
		return nil, fmt.Errorf("load co-occurrence counts: %w", err)
	}

	n := len(state.Species)
	if n == 0 || len(state.Pairs) != n*n {
		return nil, fmt.Errorf("%w: cache holds %d cells for %d species", ErrNotSquare, len(state.Pairs), n)
	}

	err = checkUnique(state.Species)
	if err != nil {
		return nil, err
	}

	return &Counts{
		pairs:   mat.NewSymDense(n, state.Pairs),
		species: state.Species,
		plots:   state.Plots,
	}, nil
}
