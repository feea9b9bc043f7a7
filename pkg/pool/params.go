package pool

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/speciespool/pkg/curve"
	"github.com/Sumatoshi-tech/speciespool/pkg/geometry"
)

// Parameter validation errors.
var (
	ErrInvalidBray       = errors.New("bray-curtis threshold must be within [0,1]")
	ErrUnsupportedPolicy = errors.New("unsupported cutoff policy")
	ErrInvalidMinPlots   = errors.New("minimum plot count must be positive")
	ErrInvalidWorkers    = errors.New("worker count must not be negative")
	ErrUnknownTarget     = errors.New("target plot not found")
	ErrInvalidTimeout    = errors.New("curve timeout must not be negative")
)

// Policy selects the value used as the species pool cutoff.
type Policy string

// Supported cutoff policies.
const (
	// PolicyIChao2 uses the iChao2 richness estimate.
	PolicyIChao2 Policy = "iChao2"
	// PolicyGompertz uses the asymptote of the Gompertz species-area fit.
	PolicyGompertz Policy = "Gompertz"
	// PolicyAsymptotic uses the asymptote of the asymptotic regression fit.
	PolicyAsymptotic Policy = "Asymptotic"
)

// Policies lists every supported cutoff policy.
var Policies = []Policy{PolicyIChao2, PolicyGompertz, PolicyAsymptotic}

// ParsePolicy resolves a policy name case-insensitively. The long forms
// "Gompertz-asymptote" and "Asymptotic-asymptote" are accepted too.
func ParsePolicy(name string) (Policy, error) {
	key := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), "-asymptote")

	for _, p := range Policies {
		if strings.ToLower(string(p)) == key {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedPolicy, name)
}

// Default parameter values.
const (
	DefaultBray         = 0.2
	DefaultMinPlots     = 10
	DefaultCurveTimeout = 30 * time.Second
)

// Params configures one estimation batch.
type Params struct {
	// Policy picks the cutoff value, see Policy.
	Policy Policy

	// Targets lists the plot ids to estimate. Empty means every plot.
	Targets []string

	// Radius of the neighbourhood, in CRS units (metres when Geodesic).
	Radius float64

	// Bray is the exclusive upper bound on Bray-Curtis dissimilarity between
	// a neighbour's Beals profile and the target's.
	Bray float64

	// MinPlots is the minimum neighbourhood size; subsampling keeps at most
	// twice this many plots.
	MinPlots int

	// Workers bounds the number of targets estimated concurrently.
	// Zero means runtime.NumCPU().
	Workers int

	// Permutations is the number of orderings averaged into the
	// accumulation curve.
	Permutations int

	// CurveTimeout bounds the curve-fitting stage of one target.
	// Zero disables the bound.
	CurveTimeout time.Duration

	// Seed drives every per-target random stream.
	Seed uint64

	// SpeciesPool requests the ranked species list in each record.
	SpeciesPool bool

	// Geodesic selects spherical caps over longitude/latitude instead of
	// Euclidean discs over projected coordinates.
	Geodesic bool
}

// DefaultParams returns the default parameters. Radius has no sensible
// default and must be set by the caller.
func DefaultParams() Params {
	return Params{
		Policy:       PolicyIChao2,
		Bray:         DefaultBray,
		MinPlots:     DefaultMinPlots,
		Workers:      runtime.NumCPU(),
		Permutations: curve.DefaultPermutations,
		CurveTimeout: DefaultCurveTimeout,
	}
}

// Validate checks every parameter independently of the data.
func (p Params) Validate() error {
	err := geometry.ValidateRadius(p.Radius)
	if err != nil {
		return err
	}

	if !(p.Bray >= 0 && p.Bray <= 1) {
		return fmt.Errorf("%w: %g", ErrInvalidBray, p.Bray)
	}

	if p.MinPlots <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinPlots, p.MinPlots)
	}

	if p.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, p.Workers)
	}

	if p.CurveTimeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, p.CurveTimeout)
	}

	_, err = ParsePolicy(string(p.Policy))

	return err
}

func (p Params) workers() int {
	if p.Workers == 0 {
		return runtime.NumCPU()
	}

	return p.Workers
}
