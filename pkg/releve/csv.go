package releve

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Column names of the input tables.
const (
	ColPlotID    = "plot_id"
	ColSpeciesID = "species_id"
	ColAbundance = "abundance"
	ColX         = "x"
	ColY         = "y"
	ColArea      = "area"
)

// naMarker is accepted as an unknown value in optional numeric columns.
const naMarker = "NA"

// ReadPlots parses a plot table with header plot_id,x,y[,area].
// Extra columns are ignored; an empty or NA area means unknown.
func ReadPlots(r io.Reader) ([]Plot, error) {
	reader := newReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: plots: %w", ErrMalformedHeader, err)
	}

	cols, err := locate(header, []string{ColPlotID, ColX, ColY}, []string{ColArea})
	if err != nil {
		return nil, fmt.Errorf("plots: %w", err)
	}

	var plots []Plot

	for line := 2; ; line++ {
		row, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("plots line %d: %w", line, readErr)
		}

		plot := Plot{ID: strings.TrimSpace(row[cols[ColPlotID]])}

		plot.X, err = parseFloat(row[cols[ColX]])
		if err != nil {
			return nil, fmt.Errorf("plots line %d column %s: %w", line, ColX, err)
		}

		plot.Y, err = parseFloat(row[cols[ColY]])
		if err != nil {
			return nil, fmt.Errorf("plots line %d column %s: %w", line, ColY, err)
		}

		if idx, ok := cols[ColArea]; ok {
			raw := strings.TrimSpace(row[idx])
			if raw != "" && raw != naMarker {
				area, areaErr := parseFloat(raw)
				if areaErr != nil {
					return nil, fmt.Errorf("plots line %d column %s: %w", line, ColArea, areaErr)
				}

				plot.Area = &area
			}
		}

		plots = append(plots, plot)
	}

	return plots, nil
}

// ReadRecords parses a species table with header plot_id,species_id,abundance.
func ReadRecords(r io.Reader) ([]Record, error) {
	reader := newReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: species: %w", ErrMalformedHeader, err)
	}

	cols, err := locate(header, []string{ColPlotID, ColSpeciesID, ColAbundance}, nil)
	if err != nil {
		return nil, fmt.Errorf("species: %w", err)
	}

	var records []Record

	for line := 2; ; line++ {
		row, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("species line %d: %w", line, readErr)
		}

		abundance, parseErr := parseFloat(row[cols[ColAbundance]])
		if parseErr != nil {
			return nil, fmt.Errorf("species line %d column %s: %w", line, ColAbundance, parseErr)
		}

		records = append(records, Record{
			PlotID:    strings.TrimSpace(row[cols[ColPlotID]]),
			SpeciesID: strings.TrimSpace(row[cols[ColSpeciesID]]),
			Abundance: abundance,
		})
	}

	return records, nil
}

// LoadDataset reads and validates the plot and species tables from disk.
func LoadDataset(plotsPath, speciesPath string) (*Dataset, error) {
	plots, err := readFile(plotsPath, ReadPlots)
	if err != nil {
		return nil, err
	}

	records, err := readFile(speciesPath, ReadRecords)
	if err != nil {
		return nil, err
	}

	ds, err := NewDataset(plots, records)
	if err != nil {
		return nil, fmt.Errorf("validate dataset: %w", err)
	}

	return ds, nil
}

// LoadSpecies reads the species table alone. Plots are taken from the
// records in first-seen order and carry no location, so the dataset serves
// co-occurrence counting only.
func LoadSpecies(speciesPath string) (*Dataset, error) {
	records, err := readFile(speciesPath, ReadRecords)
	if err != nil {
		return nil, err
	}

	ds, err := NewDataset(PlotsOf(records), records)
	if err != nil {
		return nil, fmt.Errorf("validate dataset: %w", err)
	}

	return ds, nil
}

// PlotsOf lists the distinct plot ids of records in first-seen order.
func PlotsOf(records []Record) []Plot {
	seen := make(map[string]bool)

	var plots []Plot

	for _, rec := range records {
		if rec.PlotID == "" || seen[rec.PlotID] {
			continue
		}

		seen[rec.PlotID] = true
		plots = append(plots, Plot{ID: rec.PlotID})
	}

	return plots
}

func readFile[T any](path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T

	file, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	out, err := parse(file)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}

	return out, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false

	return reader
}

// locate maps required and optional column names to their positions.
func locate(header, required, optional []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))

	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	out := make(map[string]int, len(required)+len(optional))

	for _, name := range required {
		idx, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedHeader, name)
		}

		out[name] = idx
	}

	for _, name := range optional {
		if idx, ok := cols[name]; ok {
			out[name] = idx
		}
	}

	return out, nil
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNonNumeric, raw)
	}

	return v, nil
}
