// Package report renders an HTML page of species-area curves from a result
// document.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/output"
)

const (
	// DefaultMaxTargets bounds the number of per-target charts on one page.
	DefaultMaxTargets = 50

	// curveSamples is the number of points each fitted curve is drawn with.
	curveSamples = 50
	// extrapolation extends fitted curves past the largest sampled area.
	extrapolation = 1.5

	pointSymbolSize = 8
	lineWidth       = 2
)

// ErrNoCurves is returned when no record carries an accumulation curve.
var ErrNoCurves = errors.New("no target has an accumulation curve")

// Config configures the page.
type Config struct {
	Title string
	// MaxTargets caps the per-target charts. Zero uses DefaultMaxTargets.
	MaxTargets int
}

func (c Config) maxTargets() int {
	if c.MaxTargets > 0 {
		return c.MaxTargets
	}

	return DefaultMaxTargets
}

// Build assembles the page: a summary chart of observed richness against the
// cutoff value, then one species-area chart per target with an accumulation
// curve.
func Build(doc output.Document, cfg Config) (*components.Page, error) {
	title := cfg.Title
	if title == "" {
		title = "Species pool"
	}

	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(summaryChart(doc, title))

	added := 0

	for i := range doc.Records {
		if added == cfg.maxTargets() {
			break
		}

		row := &doc.Records[i]
		if len(row.Accumulation) == 0 {
			continue
		}

		page.AddCharts(curveChart(row))

		added++
	}

	if added == 0 {
		return nil, ErrNoCurves
	}

	return page, nil
}

// Write builds the page and renders it to w.
func Write(w io.Writer, doc output.Document, cfg Config) error {
	page, err := Build(doc, cfg)
	if err != nil {
		return err
	}

	err = page.Render(w)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	return nil
}

func summaryChart(doc output.Document, title string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("policy %s, radius %g, bray %g", doc.Meta.Policy, doc.Meta.Radius, doc.Meta.Bray),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)

	labels := make([]string, len(doc.Records))
	observed := make([]opts.BarData, len(doc.Records))
	cutoff := make([]opts.BarData, len(doc.Records))

	for i := range doc.Records {
		row := &doc.Records[i]
		labels[i] = row.PlotID
		observed[i] = opts.BarData{Value: row.ObservedRichness}

		// "-" leaves a gap for an unavailable cutoff.
		cutoff[i] = opts.BarData{Value: "-"}
		if row.CutoffValue != nil {
			cutoff[i] = opts.BarData{Value: *row.CutoffValue}
		}
	}

	bar.SetXAxis(labels)
	bar.AddSeries("Observed richness", observed)
	bar.AddSeries("Cutoff value", cutoff)

	return bar
}

func curveChart(row *output.Row) *charts.Line {
	line := charts.NewLine()

	subtitle := "no sampled plots"
	if row.NeighborsSampled != nil {
		subtitle = fmt.Sprintf("%d sampled plots", *row.NeighborsSampled)
	}

	if row.BealsCutoff != nil {
		subtitle += fmt.Sprintf(", Beals cutoff %.3f", *row.BealsCutoff)
	}

	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: row.PlotID, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Area", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Species", Type: "value"}),
	)

	points := make([]opts.LineData, len(row.Accumulation))
	for i, p := range row.Accumulation {
		points[i] = opts.LineData{Value: []any{p.Area, p.Richness}}
	}

	line.AddSeries("Accumulation", points,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true), SymbolSize: pointSymbolSize}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: 0, Opacity: opts.Float(0)}),
	)

	maxArea := row.Accumulation[len(row.Accumulation)-1].Area

	for _, m := range curve.Models {
		f := row.Curves.Curve(m)
		if f == nil {
			continue
		}

		fit := f.Model(m)
		if fit == nil {
			continue
		}

		line.AddSeries(string(m), sampleCurve(fit, maxArea*extrapolation),
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
		)
	}

	return line
}

// sampleCurve evaluates fit on an even grid over (0, upTo].
func sampleCurve(fit *curve.Fit, upTo float64) []opts.LineData {
	out := make([]opts.LineData, 0, curveSamples)

	for i := 1; i <= curveSamples; i++ {
		area := upTo * float64(i) / curveSamples
		out = append(out, opts.LineData{Value: []any{area, fit.Predict(area)}})
	}

	return out
}
