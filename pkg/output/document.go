// Package output serialises the per-target result table. Every writer marks
// an unavailable value explicitly (null in JSON and YAML, NA in CSV and the
// table view) and never substitutes a number.
package output

import (
	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/pool"
	"github.com/Sumatoshi-tech/speciespool/pkg/richness"
)

// Document is the serialised result table with the parameters it was
// produced with.
type Document struct {
	Meta    Meta  `json:"meta"    yaml:"meta"`
	Records []Row `json:"records" yaml:"records"`
}

// Meta records the run parameters.
type Meta struct {
	Tool         string  `json:"tool"          yaml:"tool"`
	Version      string  `json:"version"       yaml:"version"`
	Policy       string  `json:"cutoff_policy" yaml:"cutoff_policy"`
	Radius       float64 `json:"radius"        yaml:"radius"`
	Bray         float64 `json:"bray"          yaml:"bray"`
	MinPlots     int     `json:"min_plots"     yaml:"min_plots"`
	Permutations int     `json:"permutations"  yaml:"permutations"`
	Seed         uint64  `json:"seed"          yaml:"seed"`
	Geodesic     bool    `json:"geodesic"      yaml:"geodesic"`
	SpeciesPool  bool    `json:"species_pool"  yaml:"species_pool"`
}

// Row is one target plot.
type Row struct {
	PlotID            string        `json:"plot_id"            yaml:"plot_id"`
	ObservedRichness  int           `json:"observed_richness"  yaml:"observed_richness"`
	NeighborsRadius   int           `json:"neighbors_radius"   yaml:"neighbors_radius"`
	NeighborsFiltered int           `json:"neighbors_filtered" yaml:"neighbors_filtered"`
	NeighborsSampled  *int          `json:"neighbors_sampled"  yaml:"neighbors_sampled"`
	AreaPlots         *int          `json:"area_plots"         yaml:"area_plots"`
	Richness          *Richness     `json:"richness"           yaml:"richness"`
	Curves            Curves        `json:"curves"             yaml:"curves"`
	CutoffValue       *float64      `json:"cutoff_value"       yaml:"cutoff_value"`
	BealsCutoff       *float64      `json:"beals_cutoff"       yaml:"beals_cutoff"`
	SpeciesPool       []PoolSpecies `json:"species_pool"       yaml:"species_pool"`
	Accumulation      []Point       `json:"accumulation"       yaml:"accumulation"`
	Outcomes          []string      `json:"outcomes"           yaml:"outcomes"`
}

// Richness is the extrapolation over the sampled neighbourhood.
type Richness struct {
	Observed   int       `json:"observed"   yaml:"observed"`
	Plots      int       `json:"plots"      yaml:"plots"`
	Chao2      *Estimate `json:"chao2"      yaml:"chao2"`
	IChao2     *Estimate `json:"ichao2"     yaml:"ichao2"`
	Jackknife1 *Estimate `json:"jackknife1" yaml:"jackknife1"`
	Jackknife2 *Estimate `json:"jackknife2" yaml:"jackknife2"`
}

// Estimate is one richness estimate.
type Estimate struct {
	Mean float64  `json:"mean" yaml:"mean"`
	SE   *float64 `json:"se"   yaml:"se"`
}

// Curves holds the four species-area fits.
type Curves struct {
	Arrhenius       *Fit `json:"arrhenius"        yaml:"arrhenius"`
	Gompertz        *Fit `json:"gompertz"         yaml:"gompertz"`
	MichaelisMenten *Fit `json:"michaelis_menten" yaml:"michaelis_menten"`
	Asymptotic      *Fit `json:"asymptotic"       yaml:"asymptotic"`
}

// Fit is one converged species-area model.
type Fit struct {
	Params map[string]float64 `json:"params" yaml:"params"`
	AIC    *float64           `json:"aic"    yaml:"aic"`
	RSS    float64            `json:"rss"    yaml:"rss"`
}

// PoolSpecies is one species of the ranked pool.
type PoolSpecies struct {
	SpeciesID string  `json:"species_id" yaml:"species_id"`
	Beals     float64 `json:"beals"      yaml:"beals"`
}

// Point is one step of the accumulation curve.
type Point struct {
	Area     float64 `json:"area"     yaml:"area"`
	Richness float64 `json:"richness" yaml:"richness"`
}

// NewDocument converts records into their serialised form.
func NewDocument(meta Meta, records []pool.Record) Document {
	rows := make([]Row, len(records))
	for i := range records {
		rows[i] = NewRow(&records[i])
	}

	return Document{Meta: meta, Records: rows}
}

// MetaFromParams fills the parameter part of Meta.
func MetaFromParams(tool, version string, p pool.Params) Meta {
	return Meta{
		Tool:         tool,
		Version:      version,
		Policy:       string(p.Policy),
		Radius:       p.Radius,
		Bray:         p.Bray,
		MinPlots:     p.MinPlots,
		Permutations: p.Permutations,
		Seed:         p.Seed,
		Geodesic:     p.Geodesic,
		SpeciesPool:  p.SpeciesPool,
	}
}

// NewRow converts one record.
func NewRow(rec *pool.Record) Row {
	row := Row{
		PlotID:            rec.PlotID,
		ObservedRichness:  rec.ObservedRichness,
		NeighborsRadius:   rec.NeighborsRadius,
		NeighborsFiltered: rec.NeighborsFiltered,
		NeighborsSampled:  rec.NeighborsSampled,
		AreaPlots:         rec.AreaPlots,
		Richness:          newRichness(rec.Richness),
		Curves: Curves{
			Arrhenius:       newFit(rec.Arrhenius),
			Gompertz:        newFit(rec.Gompertz),
			MichaelisMenten: newFit(rec.MichaelisMenten),
			Asymptotic:      newFit(rec.Asymptotic),
		},
		CutoffValue: rec.CutoffValue,
		BealsCutoff: rec.BealsCutoff,
		Outcomes:    make([]string, len(rec.Outcomes)),
	}

	for i, o := range rec.Outcomes {
		row.Outcomes[i] = string(o)
	}

	if rec.SpeciesPool != nil {
		row.SpeciesPool = make([]PoolSpecies, len(rec.SpeciesPool))
		for i, sp := range rec.SpeciesPool {
			row.SpeciesPool[i] = PoolSpecies{SpeciesID: sp.SpeciesID, Beals: sp.Beals}
		}
	}

	if rec.Accumulation != nil {
		row.Accumulation = make([]Point, len(rec.Accumulation))
		for i, p := range rec.Accumulation {
			row.Accumulation[i] = Point{Area: p.Area, Richness: p.Richness}
		}
	}

	return row
}

// Curve returns the fit of model m, or nil.
func (c Curves) Curve(m curve.Model) *Fit {
	switch m {
	case curve.Arrhenius:
		return c.Arrhenius
	case curve.Gompertz:
		return c.Gompertz
	case curve.MichaelisMenten:
		return c.MichaelisMenten
	case curve.Asymptotic:
		return c.Asymptotic
	}

	return nil
}

// Get returns the estimate of method m, or nil.
func (r *Richness) Get(m richness.Method) *Estimate {
	switch m {
	case richness.Chao2:
		return r.Chao2
	case richness.IChao2:
		return r.IChao2
	case richness.Jackknife1:
		return r.Jackknife1
	case richness.Jackknife2:
		return r.Jackknife2
	}

	return nil
}

func newRichness(est *richness.Estimate) *Richness {
	if est == nil {
		return nil
	}

	return &Richness{
		Observed:   est.Observed,
		Plots:      est.Plots,
		Chao2:      newEstimate(est.Chao2),
		IChao2:     newEstimate(est.IChao2),
		Jackknife1: newEstimate(est.Jackknife1),
		Jackknife2: newEstimate(est.Jackknife2),
	}
}

func newEstimate(v *richness.Value) *Estimate {
	if v == nil {
		return nil
	}

	return &Estimate{Mean: v.Mean, SE: v.SE}
}

func newFit(f *curve.Fit) *Fit {
	if f == nil {
		return nil
	}

	params := make(map[string]float64, len(f.Params))
	for _, p := range f.Params {
		params[p.Name] = p.Value
	}

	return &Fit{Params: params, AIC: f.AIC, RSS: f.RSS}
}

// Model rebuilds the fit of model m, for prediction. It returns nil when a
// parameter of m is missing.
func (f *Fit) Model(m curve.Model) *curve.Fit {
	names := curve.ParamNames(m)
	params := make([]curve.Param, len(names))

	for i, name := range names {
		v, ok := f.Params[name]
		if !ok {
			return nil
		}

		params[i] = curve.Param{Name: name, Value: v}
	}

	return &curve.Fit{AIC: f.AIC, Model: m, Params: params, RSS: f.RSS}
}
