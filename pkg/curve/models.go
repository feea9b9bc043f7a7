package curve

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Model names a species-area model.
type Model string

// Supported models.
const (
	Arrhenius       Model = "Arrhenius"
	Gompertz        Model = "Gompertz"
	MichaelisMenten Model = "MichaelisMenten"
	Asymptotic      Model = "Asymptotic"
)

// Models lists every model in output order.
var Models = []Model{Arrhenius, Gompertz, MichaelisMenten, Asymptotic}

// Parameter names.
const (
	ParamK    = "k"
	ParamZ    = "z"
	ParamAsym = "Asym"
	ParamB2   = "b2"
	ParamB3   = "b3"
	ParamVm   = "Vm"
	ParamKm   = "K"
	ParamR0   = "R0"
	ParamLrc  = "lrc"
)

// asymInflation places the initial asymptote just above the largest observed richness.
const asymInflation = 1.05

type definition struct {
	eval   func(p []float64, area float64) float64
	start  func(pts []Point) []float64
	name   Model
	params []string
}

// ParamNames returns the parameter names of model m in fit order.
func ParamNames(m Model) []string {
	return slices.Clone(definitions[m].params)
}

var definitions = map[Model]definition{
	Arrhenius: {
		name:   Arrhenius,
		params: []string{ParamK, ParamZ},
		eval: func(p []float64, a float64) float64 {
			return p[0] * math.Pow(a, p[1])
		},
		start: startArrhenius,
	},
	Gompertz: {
		name:   Gompertz,
		params: []string{ParamAsym, ParamB2, ParamB3},
		eval: func(p []float64, a float64) float64 {
			return p[0] * math.Exp(-math.Exp((p[1]-a)/p[2]))
		},
		start: startGompertz,
	},
	MichaelisMenten: {
		name:   MichaelisMenten,
		params: []string{ParamVm, ParamKm},
		eval: func(p []float64, a float64) float64 {
			return p[0] * a / (p[1] + a)
		},
		start: startMichaelisMenten,
	},
	Asymptotic: {
		name:   Asymptotic,
		params: []string{ParamAsym, ParamR0, ParamLrc},
		eval: func(p []float64, a float64) float64 {
			return p[0] - (p[0]-p[1])*math.Exp(-math.Exp(p[2])*a)
		},
		start: startAsymptotic,
	},
}

func columns(pts []Point) (areas, richness []float64) {
	areas = make([]float64, len(pts))
	richness = make([]float64, len(pts))

	for i, p := range pts {
		areas[i] = p.Area
		richness[i] = p.Richness
	}

	return areas, richness
}

// startArrhenius regresses log S on log A.
func startArrhenius(pts []Point) []float64 {
	areas, richness := columns(pts)

	x := make([]float64, len(pts))
	y := make([]float64, len(pts))

	for i := range pts {
		x[i] = math.Log(areas[i])
		y[i] = math.Log(richness[i])
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)

	return []float64{math.Exp(alpha), beta}
}

// startGompertz fixes b2 at 0 and regresses log(−log(S/Asym)) on A through
// the origin, which gives −1/b3.
func startGompertz(pts []Point) []float64 {
	areas, richness := columns(pts)
	asym := asymInflation * floats.Max(richness)

	y := make([]float64, len(pts))
	for i, s := range richness {
		y[i] = math.Log(-math.Log(s / asym))
	}

	_, beta := stat.LinearRegression(areas, y, nil, true)

	b3 := stat.Mean(areas, nil)
	if beta < 0 {
		b3 = -1 / beta
	}

	return []float64{asym, 0, b3}
}

// startMichaelisMenten uses the Hanes-Woolf linearisation A/S = K/Vm + A/Vm.
func startMichaelisMenten(pts []Point) []float64 {
	areas, richness := columns(pts)

	y := make([]float64, len(pts))
	for i := range pts {
		y[i] = areas[i] / richness[i]
	}

	alpha, beta := stat.LinearRegression(areas, y, nil, false)
	if beta > 0 && alpha > 0 {
		return []float64{1 / beta, alpha / beta}
	}

	return []float64{asymInflation * floats.Max(richness), stat.Mean(areas, nil)}
}

// startAsymptotic regresses log(Asym − S) on A with Asym just above the
// observed maximum: the slope is −exp(lrc) and the intercept log(Asym − R0).
func startAsymptotic(pts []Point) []float64 {
	areas, richness := columns(pts)
	asym := asymInflation * floats.Max(richness)

	y := make([]float64, len(pts))
	for i, s := range richness {
		y[i] = math.Log(asym - s)
	}

	alpha, beta := stat.LinearRegression(areas, y, nil, false)
	if beta < 0 {
		return []float64{asym, asym - math.Exp(alpha), math.Log(-beta)}
	}

	return []float64{asym, floats.Min(richness), math.Log(1 / stat.Mean(areas, nil))}
}
