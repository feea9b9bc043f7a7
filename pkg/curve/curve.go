// Package curve fits species-area models to a random accumulation curve.
//
// Four models are fitted independently by least squares: Arrhenius power law,
// Gompertz, Michaelis-Menten and the asymptotic regression. Each fit starts
// from linearised initial values, runs Nelder-Mead and is polished with BFGS.
// A fit that fails, diverges or runs out of time is reported as unavailable
// without affecting the others.
package curve

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/Sumatoshi-tech/speciespool/pkg/alg/stats"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

// Fit failures.
var (
	ErrNotConverged = errors.New("fit did not converge")
	ErrNonFinite    = errors.New("fit produced non-finite parameters")
	ErrTimeout      = errors.New("fit exceeded time budget")
	ErrTooFewPoints = errors.New("not enough accumulation points")
)

// maxEvaluations bounds each optimiser run.
const maxEvaluations = 20000

// minScale keeps parameters near zero on a unit scale.
const minScale = 1e-8

// Param is one fitted parameter.
type Param struct {
	Name  string
	Value float64
}

// Fit is one fitted model. AIC is nil when the residual sum of squares is 0.
type Fit struct {
	AIC    *float64
	Model  Model
	Params []Param
	RSS    float64
}

// Param returns the value of the named parameter.
func (f *Fit) Param(name string) (float64, bool) {
	for _, p := range f.Params {
		if p.Name == name {
			return p.Value, true
		}
	}

	return 0, false
}

// Predict evaluates the fitted model at area.
func (f *Fit) Predict(area float64) float64 {
	values := make([]float64, len(f.Params))
	for i, p := range f.Params {
		values[i] = p.Value
	}

	return definitions[f.Model].eval(values, area)
}

// Result holds the accumulation curve and every fit. A nil fit is unavailable.
type Result struct {
	Arrhenius       *Fit
	Gompertz        *Fit
	MichaelisMenten *Fit
	Asymptotic      *Fit
	Accumulation    []Point
	// Failed lists the models without a fit.
	Failed []Model
	// TimedOut is set when the time budget ran out before every fit finished.
	TimedOut bool
}

// Get returns the fit of model m, or nil.
func (r *Result) Get(m Model) *Fit {
	switch m {
	case Arrhenius:
		return r.Arrhenius
	case Gompertz:
		return r.Gompertz
	case MichaelisMenten:
		return r.MichaelisMenten
	case Asymptotic:
		return r.Asymptotic
	}

	return nil
}

func (r *Result) set(m Model, f *Fit) {
	switch m {
	case Arrhenius:
		r.Arrhenius = f
	case Gompertz:
		r.Gompertz = f
	case MichaelisMenten:
		r.MichaelisMenten = f
	case Asymptotic:
		r.Asymptotic = f
	}
}

// Estimate builds the accumulation curve for rows and fits every model.
// The time budget is taken from ctx.
func Estimate(ctx context.Context, ds *releve.Dataset, rows []int, permutations int, rng *rand.Rand) Result {
	return FitAll(ctx, Accumulate(ds, rows, permutations, rng))
}

// FitAll fits every model to pts.
func FitAll(ctx context.Context, pts []Point) Result {
	res := Result{Accumulation: pts}

	for _, m := range Models {
		fit, err := FitModel(ctx, m, pts)
		if err != nil {
			res.Failed = append(res.Failed, m)

			if errors.Is(err, ErrTimeout) {
				res.TimedOut = true
			}

			continue
		}

		res.set(m, fit)
	}

	return res
}

// FitModel fits one model to pts.
func FitModel(ctx context.Context, m Model, pts []Point) (*Fit, error) {
	sp := definitions[m]
	if len(pts) < 2 {
		return nil, ErrTooFewPoints
	}

	if ctx.Err() != nil {
		return nil, ErrTimeout
	}

	init := sp.start(pts)
	if !stats.Finite(init...) {
		return nil, ErrNonFinite
	}

	// Optimise on a per-parameter scale so the initial simplex is relative.
	scale := make([]float64, len(init))
	x0 := make([]float64, len(init))

	for i, v := range init {
		scale[i] = 1
		if math.Abs(v) > minScale {
			scale[i] = math.Abs(v)
		}

		x0[i] = v / scale[i]
	}

	params := make([]float64, len(init))
	rss := func(x []float64) float64 {
		for i := range x {
			params[i] = x[i] * scale[i]
		}

		var sum float64

		for _, p := range pts {
			r := p.Richness - sp.eval(params, p.Area)
			sum += r * r
		}

		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			return math.MaxFloat64
		}

		return sum
	}

	problem := optimize.Problem{
		Func: rss,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.RuntimeLimit, err
			}

			return optimize.NotTerminated, nil
		},
	}

	settings := &optimize.Settings{FuncEvaluations: maxEvaluations}
	if deadline, ok := ctx.Deadline(); ok {
		settings.Runtime = time.Until(deadline)
	}

	res, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if ctx.Err() != nil || (res != nil && res.Status == optimize.RuntimeLimit) {
		return nil, ErrTimeout
	}

	if err != nil || res.Status.Early() {
		return nil, ErrNotConverged
	}

	best := res.Location
	best.X = append([]float64(nil), res.X...)

	polish(ctx, problem, settings, &best)

	out := make([]Param, len(best.X))
	values := make([]float64, len(best.X))

	for i, x := range best.X {
		values[i] = x * scale[i]
		out[i] = Param{Name: sp.params[i], Value: values[i]}
	}

	if !stats.Finite(values...) || best.F == math.MaxFloat64 {
		return nil, ErrNonFinite
	}

	return &Fit{Model: m, Params: out, RSS: best.F, AIC: aic(best.F, len(pts), len(values))}, nil
}

// polish runs BFGS with a finite-difference gradient from best and keeps the
// result only when it lowers the objective.
func polish(ctx context.Context, problem optimize.Problem, settings *optimize.Settings, best *optimize.Location) {
	problem.Grad = func(grad, x []float64) {
		fd.Gradient(grad, problem.Func, x, &fd.Settings{Formula: fd.Central})
	}

	if deadline, ok := ctx.Deadline(); ok {
		settings.Runtime = time.Until(deadline)
		if settings.Runtime <= 0 {
			return
		}
	}

	res, err := optimize.Minimize(problem, best.X, settings, &optimize.BFGS{})
	if err != nil || res == nil {
		return
	}

	if res.F < best.F && stats.Finite(res.X...) {
		best.X = append(best.X[:0], res.X...)
		best.F = res.F
	}
}

// aic is Akaike's information criterion for a least-squares fit with
// Gaussian errors: n·(log 2π + 1 + log(RSS/n)) + 2(p+1).
func aic(rss float64, n, p int) *float64 {
	if rss <= 0 {
		return nil
	}

	nf := float64(n)
	v := nf*(math.Log(2*math.Pi)+1+math.Log(rss/nf)) + 2*float64(p+1)

	return &v
}
