package cooccurrence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ReadCSV parses a square probability table. The header row lists species
// ids after one leading label cell; each data row starts with the species id
// of that row, in the same order as the header.
func ReadCSV(r io.Reader) (*Matrix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}

	if len(header) < 2 {
		return nil, fmt.Errorf("%w: header has no species", ErrMalformed)
	}

	species := make([]string, len(header)-1)
	for i, id := range header[1:] {
		species[i] = strings.TrimSpace(id)
	}

	n := len(species)
	values := make([]float64, 0, n*n)

	row := 0

	for ; ; row++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformed, row+1, readErr)
		}

		if row >= n {
			return nil, fmt.Errorf("%w: more than %d rows", ErrNotSquare, n)
		}

		if got := strings.TrimSpace(record[0]); got != species[row] {
			return nil, fmt.Errorf("%w: row %d is %q, header has %q", ErrMalformed, row+1, got, species[row])
		}

		for _, raw := range record[1:] {
			v, parseErr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if parseErr != nil {
				return nil, fmt.Errorf("%w: row %q: %q", ErrMalformed, species[row], raw)
			}

			values = append(values, v)
		}
	}

	if row != n {
		return nil, fmt.Errorf("%w: %d rows for %d species", ErrNotSquare, row, n)
	}

	return NewMatrix(species, mat.NewDense(n, n, values))
}

// WriteCSV writes m in the format ReadCSV accepts.
func WriteCSV(w io.Writer, m *Matrix) error {
	writer := csv.NewWriter(w)

	err := writer.Write(append([]string{"species"}, m.species...))
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(m.species)+1)

	for i, id := range m.species {
		record[0] = id

		for j := range m.species {
			record[j+1] = strconv.FormatFloat(m.data.At(i, j), 'g', -1, 64)
		}

		err = writer.Write(record)
		if err != nil {
			return fmt.Errorf("write row %q: %w", id, err)
		}
	}

	writer.Flush()

	return writer.Error()
}
