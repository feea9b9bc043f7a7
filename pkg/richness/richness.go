// Package richness extrapolates total species richness from incidence data:
// how many of T sampled plots contain each observed species.
//
// Four estimators are provided: Chao2, the improved iChao2, and first and
// second order jackknife. Standard errors use the delta method over the
// incidence frequency counts (Q1, Q2, Q3, Q4, Q≥5) with multinomial covariance.
package richness

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/Sumatoshi-tech/speciespool/pkg/alg/stats"
	"github.com/Sumatoshi-tech/speciespool/pkg/releve"
)

// Method names an estimator.
type Method string

// Supported estimators.
const (
	Chao2      Method = "Chao2"
	IChao2     Method = "iChao2"
	Jackknife1 Method = "Jackknife1"
	Jackknife2 Method = "Jackknife2"
)

// Methods lists every estimator in output order.
var Methods = []Method{Chao2, IChao2, Jackknife1, Jackknife2}

// minPlots is the smallest sample that supports any estimator; iChao2 needs
// one more.
const (
	minPlots       = 2
	minPlotsIChao2 = 3
)

// freqClasses is the length of the frequency-count vector (Q1..Q4, Q≥5).
const freqClasses = 5

// Value is one estimate. SE is nil when it cannot be computed.
type Value struct {
	SE   *float64
	Mean float64
}

// Estimate holds every estimator for one sample. A nil field is unavailable.
type Estimate struct {
	Chao2      *Value
	IChao2     *Value
	Jackknife1 *Value
	Jackknife2 *Value
	// Observed is the number of species present in at least one sampled plot.
	Observed int
	// Plots is the number of sampled plots T.
	Plots int
}

// Get returns the value of method m, or nil.
func (e *Estimate) Get(m Method) *Value {
	switch m {
	case Chao2:
		return e.Chao2
	case IChao2:
		return e.IChao2
	case Jackknife1:
		return e.Jackknife1
	case Jackknife2:
		return e.Jackknife2
	}

	return nil
}

func (e *Estimate) set(m Method, v *Value) {
	switch m {
	case Chao2:
		e.Chao2 = v
	case IChao2:
		e.IChao2 = v
	case Jackknife1:
		e.Jackknife1 = v
	case Jackknife2:
		e.Jackknife2 = v
	}
}

// Unavailable lists the methods without an estimate.
func (e *Estimate) Unavailable() []Method {
	var out []Method

	for _, m := range Methods {
		if e.Get(m) == nil {
			out = append(out, m)
		}
	}

	return out
}

// FromDataset estimates richness over the given plot rows of ds. The
// incidence of a species is its column sum in the presence matrix.
func FromDataset(ds *releve.Dataset, rows []int) Estimate {
	presence := ds.Presence(rows)
	if presence == nil {
		return FromIncidence(nil, 0)
	}

	_, cols := presence.Dims()
	incidence := make([]int, cols)
	column := make([]float64, len(rows))

	for s := range incidence {
		incidence[s] = int(stats.Sum(mat.Col(column, s, presence)))
	}

	return FromIncidence(incidence, len(rows))
}

// FromIncidence estimates richness from per-species incidence counts over
// plots sampled plots. Species with zero incidence are ignored.
func FromIncidence(incidence []int, plots int) Estimate {
	var q [freqClasses]float64

	observed := 0

	for _, k := range incidence {
		if k <= 0 {
			continue
		}

		observed++
		q[min(k, freqClasses)-1]++
	}

	est := Estimate{Observed: observed, Plots: plots}
	if plots < minPlots || observed == 0 {
		return est
	}

	t := float64(plots)

	for _, m := range Methods {
		if m == IChao2 && plots < minPlotsIChao2 {
			continue
		}

		est.set(m, evaluate(formula(m, q, t), q[:]))
	}

	return est
}

// formula returns the estimator as a function of the frequency counts. Branch
// choices that depend on the point estimate (Q2 = 0 for Chao2, Q4 = 0 for
// iChao2) are fixed here so the derivative stays on one branch.
func formula(m Method, q [freqClasses]float64, t float64) func([]float64) float64 {
	switch m {
	case Chao2:
		return chao2(q[1] > 0, t)
	case IChao2:
		base := chao2(q[1] > 0, t)
		q4Zero := q[3] == 0

		return func(x []float64) float64 {
			q4 := x[3]
			if q4Zero {
				q4 = 1
			}

			inner := x[0] - (t-3)/(2*(t-1))*x[1]*x[2]/q4

			return base(x) + (t-3)/(4*t)*(x[2]/q4)*math.Max(inner, 0)
		}
	case Jackknife1:
		return func(x []float64) float64 {
			return observedOf(x) + x[0]*(t-1)/t
		}
	case Jackknife2:
		return func(x []float64) float64 {
			return observedOf(x) + x[0]*(2*t-3)/t - x[1]*(t-2)*(t-2)/(t*(t-1))
		}
	}

	return nil
}

func chao2(hasDoubletons bool, t float64) func([]float64) float64 {
	correction := (t - 1) / t

	if hasDoubletons {
		return func(x []float64) float64 {
			return observedOf(x) + correction*x[0]*x[0]/(2*x[1])
		}
	}

	return func(x []float64) float64 {
		return observedOf(x) + correction*x[0]*(x[0]-1)/2
	}
}

func observedOf(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}

	return s
}

// evaluate computes the point estimate, floors it at the observed richness,
// and attaches a delta-method standard error.
func evaluate(f func([]float64) float64, q []float64) *Value {
	observed := observedOf(q)

	mean := f(q)
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil
	}

	mean = math.Max(mean, observed)

	return &Value{Mean: mean, SE: standardError(f, q, mean)}
}

func standardError(f func([]float64) float64, q []float64, estimate float64) *float64 {
	n := len(q)
	grad := fd.Gradient(nil, f, q, &fd.Settings{Formula: fd.Central})

	cov := mat.NewSymDense(n, nil)

	for i := range n {
		for j := i; j < n; j++ {
			v := -q[i] * q[j] / estimate
			if i == j {
				v += q[i]
			}

			cov.SetSym(i, j, v)
		}
	}

	g := mat.NewVecDense(n, grad)
	variance := mat.Inner(g, cov, g)

	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return nil
	}

	se := math.Sqrt(math.Max(variance, 0))

	return &se
}
