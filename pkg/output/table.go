package output

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// tableColumns are the flat columns shown in the terminal view.
var tableColumns = []string{
	"plot_id", "observed_richness", "neighbors_radius", "neighbors_filtered", "neighbors_sampled",
	"sampled_observed", "chao2", "ichao2", "jackknife1", "jackknife2", "gompertz_Asym", "asymptotic_Asym",
	"cutoff_value", "beals_cutoff", "outcomes",
}

// WriteTable renders doc as a terminal table with one row per target and a
// footer counting targets with a cutoff.
func WriteTable(w io.Writer, doc Document) error {
	var cols []column

	for _, c := range columns(false) {
		if slices.Contains(tableColumns, c.name) {
			cols = append(cols, c)
		}
	}

	cols = append(cols, column{name: "pool_size", value: func(r *Row) string {
		if r.SpeciesPool == nil {
			return NA
		}

		return strconv.Itoa(len(r.SpeciesPool))
	}})

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c.name
	}

	tbl.AppendHeader(header)

	withCutoff := 0

	for i := range doc.Records {
		r := &doc.Records[i]
		if r.BealsCutoff != nil {
			withCutoff++
		}

		row := make(table.Row, len(cols))
		for j, c := range cols {
			row[j] = c.value(r)
		}

		tbl.AppendRow(row)
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Targets: %d, with cutoff: %d", len(doc.Records), withCutoff)})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	return nil
}
