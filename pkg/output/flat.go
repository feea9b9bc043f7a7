package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/richness"
)

// listSeparator joins list values inside one flat cell.
const listSeparator = ";"

// column is one flat output column.
type column struct {
	value func(r *Row) string
	name  string
}

// columns returns the flat layout: counts, sampled-set richness, every model parameter,
// cutoff, pool and outcomes. verbose adds standard errors and AIC values.
func columns(verbose bool) []column {
	cols := []column{
		{name: "plot_id", value: func(r *Row) string { return r.PlotID }},
		{name: "observed_richness", value: func(r *Row) string { return strconv.Itoa(r.ObservedRichness) }},
		{name: "neighbors_radius", value: func(r *Row) string { return strconv.Itoa(r.NeighborsRadius) }},
		{name: "neighbors_filtered", value: func(r *Row) string { return strconv.Itoa(r.NeighborsFiltered) }},
		{name: "neighbors_sampled", value: func(r *Row) string { return formatOptionalInt(r.NeighborsSampled) }},
		{name: "area_plots", value: func(r *Row) string { return formatOptionalInt(r.AreaPlots) }},
		{name: "sampled_observed", value: func(r *Row) string {
			if r.Richness == nil {
				return NA
			}

			return strconv.Itoa(r.Richness.Observed)
		}},
		{name: "sampled_plots", value: func(r *Row) string {
			if r.Richness == nil {
				return NA
			}

			return strconv.Itoa(r.Richness.Plots)
		}},
	}

	for _, m := range richness.Methods {
		key := strings.ToLower(string(m))

		cols = append(cols, column{name: key, value: func(r *Row) string {
			if r.Richness == nil {
				return NA
			}

			if e := r.Richness.Get(m); e != nil {
				return formatFloat(e.Mean)
			}

			return NA
		}})

		if verbose {
			cols = append(cols, column{name: key + "_se", value: func(r *Row) string {
				if r.Richness == nil {
					return NA
				}

				if e := r.Richness.Get(m); e != nil {
					return formatOptional(e.SE)
				}

				return NA
			}})
		}
	}

	for _, m := range curve.Models {
		key := modelKey(m)

		for _, p := range curve.ParamNames(m) {
			cols = append(cols, column{name: key + "_" + p, value: func(r *Row) string {
				if f := r.Curves.Curve(m); f != nil {
					if v, ok := f.Params[p]; ok {
						return formatFloat(v)
					}
				}

				return NA
			}})
		}

		if verbose {
			cols = append(cols, column{name: key + "_aic", value: func(r *Row) string {
				if f := r.Curves.Curve(m); f != nil {
					return formatOptional(f.AIC)
				}

				return NA
			}})
		}
	}

	return append(cols,
		column{name: "cutoff_value", value: func(r *Row) string { return formatOptional(r.CutoffValue) }},
		column{name: "beals_cutoff", value: func(r *Row) string { return formatOptional(r.BealsCutoff) }},
		column{name: "species_pool", value: func(r *Row) string {
			if r.SpeciesPool == nil {
				return NA
			}

			ids := make([]string, len(r.SpeciesPool))
			for i, sp := range r.SpeciesPool {
				ids[i] = sp.SpeciesID
			}

			return strings.Join(ids, listSeparator)
		}},
		column{name: "outcomes", value: func(r *Row) string { return strings.Join(r.Outcomes, listSeparator) }},
	)
}

// modelKey is the snake_case column prefix of a model.
func modelKey(m curve.Model) string {
	if m == curve.MichaelisMenten {
		return "michaelis_menten"
	}

	return strings.ToLower(string(m))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return NA
	}

	return formatFloat(*v)
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return NA
	}

	return strconv.Itoa(*v)
}

// WriteCSV writes one header line and one line per record. Unavailable
// values are written as NA.
func WriteCSV(w io.Writer, doc Document) error {
	cols := columns(true)
	cw := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.name
	}

	err := cw.Write(header)
	if err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	line := make([]string, len(cols))

	for i := range doc.Records {
		for j, c := range cols {
			line[j] = c.value(&doc.Records[i])
		}

		err = cw.Write(line)
		if err != nil {
			return fmt.Errorf("write csv row %q: %w", doc.Records[i].PlotID, err)
		}
	}

	cw.Flush()

	err = cw.Error()
	if err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}
