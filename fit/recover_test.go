// Public domain.

package fit_test

import (
	"math"
	"testing"

	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterhaus/skyvi/elbo"
	"github.com/asterhaus/skyvi/fit"
	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/seed"
	"github.com/asterhaus/skyvi/stamp"
	"github.com/asterhaus/skyvi/synth"
	"github.com/asterhaus/skyvi/transform"
)

// end-to-end recovery tests: synthesize a field from known entries, seed,
// fit, and compare the optimum against the truth

func fieldWCS() *stamp.WCS {
	return &stamp.WCS{
		Ref:    stamp.SkyCoord{RA: unit.AngleFromDeg(150), Dec: unit.AngleFromDeg(2.2)},
		RefPix: [2]float64{20, 20},
		Scale:  unit.AngleFromSec(.4),
	}
}

// makeField synthesizes noisy stamps from catalog entries.
func makeField(t *testing.T, l *param.Layout, pr *param.Priors,
	entries []seed.CatalogEntry, w, h int, sigma float64, seedVal uint64) []*stamp.Stamp {

	t.Helper()
	wcs := fieldWCS()
	base := make([]*stamp.Stamp, l.Bands)
	for b := range base {
		base[b] = stamp.New(b, w, h, wcs, stamp.DefaultPSF())
		for i := range base[b].Variance {
			base[b].Variance[i] = sigma * sigma
		}
	}
	truth, err := synth.Truth(l, pr, entries, base)
	require.NoError(t, err)
	return synth.Observe(synth.Render(l, truth, base), seedVal)
}

func expFlux(l *param.Layout, v param.Vector) float64 {
	return math.Exp(v[l.BrightMean()] + .5*v[l.BrightVar()])
}

// angDiff is the position angle difference folded into [0, pi/2]: the shape
// matrix is invariant under half-turn rotations.
func angDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), math.Pi)
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	return d
}

func recoverTol() fit.Tolerances {
	return fit.Tolerances{RelStep: 1e-10, AbsObj: 1e-12, MaxIter: 600}
}

// single-source seeding: keep only the brightest peak
func onePeak() seed.PeakOpts {
	return seed.PeakOpts{Threshold: 10, MinSep: 4, Aperture: 6, MaxSources: 1}
}

// A lone star must fit as a star: indicator near certain, position within a
// tenth of a pixel, reference brightness within a percent.
func TestRecoverStar(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	wcs := fieldWCS()
	entries := []seed.CatalogEntry{{
		Pos:      wcs.ToSky(10.1, 12.2),
		Star:     true,
		StarFlux: []float64{8000, 10000, 12500},
	}}
	stamps := makeField(t, l, pr, entries, 32, 32, 1, 7)

	m0, err := seed.FromPeaks(l, pr, stamps, onePeak())
	require.NoError(t, err)
	require.Len(t, m0.Sources, 1)

	e, err := elbo.New(l, pr, stamps)
	require.NoError(t, err)
	res, err := fit.Full(e, m0, recoverTol())
	require.NoError(t, err)

	v := res.Model.Sources[0]
	assert.Less(t, v[l.Ind(param.Gal)], .05)
	assert.InDelta(t, 10.1, v[l.PosX()], .1)
	assert.InDelta(t, 12.2, v[l.PosY()], .1)
	assert.InEpsilon(t, 10000, expFlux(l, v), .01)
	assert.InEpsilon(t, .8, v[l.Ratio(0)], .02)
	assert.InEpsilon(t, 1.25, v[l.Ratio(1)], .02)
}

// A lone galaxy must fit as a galaxy, recovering position, brightness and
// the shape parameters.
func TestRecoverGalaxy(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	wcs := fieldWCS()
	entries := []seed.CatalogEntry{{
		Pos:     wcs.ToSky(8.5, 9.6),
		GalFlux: []float64{6400, 8000, 10000},
		Axis:    .7,
		Angle:   unit.Angle(math.Pi / 4),
		Scale:   4,
		DevFrac: .1,
	}}
	stamps := makeField(t, l, pr, entries, 40, 40, .3, 11)

	m0, err := seed.FromPeaks(l, pr, stamps, onePeak())
	require.NoError(t, err)
	require.Len(t, m0.Sources, 1)

	e, err := elbo.New(l, pr, stamps)
	require.NoError(t, err)
	res, err := fit.Full(e, m0, recoverTol())
	require.NoError(t, err)

	v := res.Model.Sources[0]
	assert.Greater(t, v[l.Ind(param.Gal)], .9)
	assert.InDelta(t, 8.5, v[l.PosX()], .15)
	assert.InDelta(t, 9.6, v[l.PosY()], .15)
	assert.InEpsilon(t, 8000, expFlux(l, v), .02)
	assert.InDelta(t, .7, v[l.AxisMean()], .05)
	assert.Less(t, angDiff(v[l.AngleMean()], math.Pi/4), 5*math.Pi/180)
	assert.InDelta(t, 4, v[l.ScaleMean()], .2)
	assert.InDelta(t, .1, v[l.DevMean()], .08)
}

// Two well-separated sources must each converge to its own truth in a joint
// fit of a two-source model.
func TestRecoverTwoSources(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	wcs := fieldWCS()
	truth := []seed.CatalogEntry{
		{
			Pos:      wcs.ToSky(14.2, 15.3),
			Star:     true,
			StarFlux: []float64{8000, 10000, 12500},
		},
		{
			Pos:     wcs.ToSky(40.5, 38.9),
			GalFlux: []float64{5600, 7000, 8800},
			Axis:    .6,
			Angle:   unit.Angle(-.5),
			Scale:   3,
			DevFrac: .3,
		},
	}
	stamps := makeField(t, l, pr, truth, 56, 56, .5, 23)

	// catalog seeding with roughened positions, fluxes and shape
	rough := []seed.CatalogEntry{
		{
			Pos:      wcs.ToSky(14.6, 15.0),
			Star:     true,
			StarFlux: []float64{5600, 7000, 8750},
		},
		{
			Pos:     wcs.ToSky(40.1, 39.3),
			GalFlux: []float64{3900, 4900, 6200},
			Axis:    .75,
			Scale:   2,
			DevFrac: .5,
		},
	}
	m0, err := seed.FromCatalog(l, pr, rough, stamps)
	require.NoError(t, err)
	require.Len(t, m0.Sources, 2)

	e, err := elbo.New(l, pr, stamps)
	require.NoError(t, err)
	res, err := fit.Full(e, m0, recoverTol())
	require.NoError(t, err)
	require.Len(t, res.Model.Sources, 2)

	star := res.Model.Sources[0]
	assert.Less(t, star[l.Ind(param.Gal)], .1)
	assert.InDelta(t, 14.2, star[l.PosX()], .1)
	assert.InDelta(t, 15.3, star[l.PosY()], .1)
	assert.InEpsilon(t, 10000, expFlux(l, star), .02)

	gal := res.Model.Sources[1]
	assert.Greater(t, gal[l.Ind(param.Gal)], .9)
	assert.InDelta(t, 40.5, gal[l.PosX()], .2)
	assert.InDelta(t, 38.9, gal[l.PosY()], .2)
	assert.InEpsilon(t, 7000, expFlux(l, gal), .03)
	assert.InDelta(t, .6, gal[l.AxisMean()], .07)
	assert.Less(t, angDiff(gal[l.AngleMean()], -.5), .07)
	assert.InEpsilon(t, 3, gal[l.ScaleMean()], .12)
	assert.InDelta(t, .3, gal[l.DevMean()], .12)
}

// With the type indicator pinned halfway, the remaining parameters must
// reach the same optimum regardless of which type the seeding favored.
func TestIndicatorPinnedInvariance(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	wcs := fieldWCS()
	entries := []seed.CatalogEntry{{
		Pos:     wcs.ToSky(19.4, 20.7),
		GalFlux: []float64{6400, 8000, 10000},
		Axis:    .7,
		Angle:   unit.Angle(math.Pi / 4),
		Scale:   3,
		DevFrac: .2,
	}}
	stamps := makeField(t, l, pr, entries, 40, 40, .3, 31)

	e, err := elbo.New(l, pr, stamps)
	require.NoError(t, err)

	seeds := []seed.CatalogEntry{
		{
			Pos:      wcs.ToSky(19.7, 20.4),
			Star:     true,
			StarFlux: []float64{5000, 6300, 7900},
		},
		{
			Pos:     wcs.ToSky(19.7, 20.4),
			GalFlux: []float64{5000, 6300, 7900},
			Axis:    .55,
			Angle:   unit.Angle(.3),
			Scale:   2.5,
			DevFrac: .4,
		},
	}

	var free []int
	for i := 0; i < l.Len(); i++ {
		if l.Group(i) != param.GIndicator {
			free = append(free, i)
		}
	}
	lb, ub := fit.DefaultBounds(l, 1, 40, 40)
	tol := fit.Tolerances{RelStep: 1e-11, AbsObj: 1e-13, MaxIter: 800}

	var fits []param.Vector
	for _, se := range seeds {
		m0, err := seed.FromCatalog(l, pr, []seed.CatalogEntry{se}, stamps)
		require.NoError(t, err)
		m0.Sources[0][l.Ind(param.Star)] = .5
		m0.Sources[0][l.Ind(param.Gal)] = .5

		res, err := fit.Maximize(e.ELBO, m0, l, transform.NewLog(l), free, lb, ub, tol)
		require.NoError(t, err)
		v := res.Model.Sources[0]
		assert.InDelta(t, .5, v[l.Ind(param.Star)], 1e-12)
		assert.InDelta(t, .5, v[l.Ind(param.Gal)], 1e-12)
		fits = append(fits, v)
	}

	a, b := fits[0], fits[1]
	assert.InDelta(t, a[l.PosX()], b[l.PosX()], 5e-3)
	assert.InDelta(t, a[l.PosY()], b[l.PosY()], 5e-3)
	assert.InEpsilon(t, expFlux(l, a), expFlux(l, b), .01)
	assert.InDelta(t, a[l.AxisMean()], b[l.AxisMean()], .01)
	assert.Less(t, angDiff(a[l.AngleMean()], b[l.AngleMean()]), .01)
	assert.InEpsilon(t, a[l.ScaleMean()], b[l.ScaleMean()], .01)
	assert.InDelta(t, a[l.DevMean()], b[l.DevMean()], .02)
	for j := 0; j < l.Pairs(); j++ {
		assert.InDelta(t, a[l.Ratio(j)], b[l.Ratio(j)], .01)
	}
}

// The fast likelihood fit frees position and brightness only; everything
// else keeps its seeded value.
func TestLikelihoodFit(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	wcs := fieldWCS()
	entries := []seed.CatalogEntry{{
		Pos:      wcs.ToSky(16.3, 17.8),
		Star:     true,
		StarFlux: []float64{8000, 10000, 12500},
	}}
	stamps := makeField(t, l, pr, entries, 36, 36, 1, 13)

	m0, err := seed.FromPeaks(l, pr, stamps, onePeak())
	require.NoError(t, err)
	e, err := elbo.New(l, pr, stamps)
	require.NoError(t, err)
	res, err := fit.Likelihood(e, m0, recoverTol())
	require.NoError(t, err)

	v := res.Model.Sources[0]
	assert.InDelta(t, 16.3, v[l.PosX()], .1)
	assert.InDelta(t, 17.8, v[l.PosY()], .1)
	// indicator and shape stay at their seeded values
	assert.InDelta(t, .5, v[l.Ind(param.Gal)], 1e-12)
	assert.InDelta(t, m0.Sources[0][l.ScaleMean()], v[l.ScaleMean()], 1e-12)
}
