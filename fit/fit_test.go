// Public domain.

package fit_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterhaus/skyvi/fit"
	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/sensitive"
	"github.com/asterhaus/skyvi/transform"
)

func fillValid(l *param.Layout, v param.Vector, d float64) {
	v[l.Ind(param.Star)] = .3 + .1*d
	v[l.Ind(param.Gal)] = .7 - .1*d
	v[l.PosX()] = 10 + 3*d
	v[l.PosY()] = 12 - 2*d
	v[l.PosVar()] = .2 + .1*d
	v[l.BrightMean()] = 4 + d
	v[l.BrightVar()] = .1 + .05*d
	for j := 0; j < l.Pairs(); j++ {
		v[l.Ratio(j)] = .9 + .2*float64(j) + .1*d
		for t := 0; t < param.NTypes; t++ {
			v[l.ColorMean(j, t)] = .1 - .2*float64(t) + .1*d
			v[l.ColorVar(j, t)] = .4 + .1*d
		}
	}
	for t := 0; t < param.NTypes; t++ {
		v[l.Weight(0, t)] = .6 - .1*d
		v[l.Weight(1, t)] = .4 + .1*d
	}
	v[l.AxisMean()], v[l.AxisVar()] = .6+.1*d, .05
	v[l.AngleMean()], v[l.AngleVar()] = .3+.2*d, .05
	v[l.ScaleMean()], v[l.ScaleVar()] = 1.5+d, .05
	v[l.DevMean()], v[l.DevVar()] = .4+.1*d, .05
}

// quadratic builds a strictly concave objective peaking at target, with its
// exact gradient over constrained parameters.
func quadratic(l *param.Layout, target *param.Model) fit.Objective {
	n := l.Len()
	return func(m *param.Model) *sensitive.Value {
		v := sensitive.Zero(l.Dim(len(m.Sources)))
		for s, src := range m.Sources {
			for i, c := range src {
				w := 1 + float64(i%3)
				d := c - target.Sources[s][i]
				v.Val -= w * d * d
				v.Grad[s*n+i] = -2 * w * d
			}
		}
		return v
	}
}

// The search must land on the known peak of a concave quadratic from a
// different valid starting point.
func TestMaximizeQuadratic(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	target := param.NewModel(l, pr, 1)
	fillValid(l, target.Sources[0], 0)
	start := param.NewModel(l, pr, 1)
	fillValid(l, start.Sources[0], .8)

	lb, ub := fit.DefaultBounds(l, 1, 32, 32)
	res, err := fit.Maximize(quadratic(l, target), start, l, transform.NewLog(l),
		fit.FreeAll(l, 1), lb, ub,
		fit.Tolerances{RelStep: 1e-13, AbsObj: 1e-15, MaxIter: 500})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InDelta(t, 0, res.Value, 1e-9)
	for i, c := range res.Model.Sources[0] {
		assert.InDelta(t, target.Sources[0][i], c, 1e-6,
			"slot %d (%v)", i, l.Group(i))
	}
	// the input model is left untouched
	assert.InDelta(t, 4.8, start.Sources[0][l.BrightMean()], 1e-12)
}

// Parameters outside the free set stay pinned at their initial values while
// the rest converge.
func TestMaximizePinned(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	target := param.NewModel(l, pr, 1)
	fillValid(l, target.Sources[0], 0)
	start := param.NewModel(l, pr, 1)
	fillValid(l, start.Sources[0], .8)

	var free []int
	for i := 0; i < l.Len(); i++ {
		if l.Group(i) != param.GPosition {
			free = append(free, i)
		}
	}
	lb, ub := fit.DefaultBounds(l, 1, 32, 32)
	res, err := fit.Maximize(quadratic(l, target), start, l, transform.NewLog(l),
		free, lb, ub, fit.Tolerances{RelStep: 1e-13, AbsObj: 1e-15, MaxIter: 500})
	require.NoError(t, err)
	require.True(t, res.Converged)

	v := res.Model.Sources[0]
	s := start.Sources[0]
	assert.Equal(t, s[l.PosX()], v[l.PosX()])
	assert.Equal(t, s[l.PosY()], v[l.PosY()])
	assert.InDelta(t, s[l.PosVar()], v[l.PosVar()], 1e-12)
	assert.InDelta(t, target.Sources[0][l.BrightMean()], v[l.BrightMean()], 1e-6)
	assert.InDelta(t, target.Sources[0][l.AxisMean()], v[l.AxisMean()], 1e-6)
}

// A gradient pushing through a bound leaves the iterate pinned on the bound.
func TestMaximizeBound(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	start := param.NewModel(l, pr, 1)
	fillValid(l, start.Sources[0], 0)

	// linear in the reference brightness mean: no interior maximum
	obj := func(m *param.Model) *sensitive.Value {
		v := sensitive.Zero(l.Dim(1))
		v.Val = m.Sources[0][l.BrightMean()]
		v.Grad[l.BrightMean()] = 1
		return v
	}
	lb, ub := fit.DefaultBounds(l, 1, 32, 32)
	res, err := fit.Maximize(obj, start, l, transform.NewLog(l),
		[]int{l.BrightMean()}, lb, ub, fit.DefaultTolerances())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, ub[l.BrightMean()], res.Model.Sources[0][l.BrightMean()])
}

// A partially specified tolerance keeps its set fields; only missing ones
// take defaults.  The loose objective tolerance here must stop the search
// after one accepted step even though the iteration cap is defaulted.
func TestMaximizePartialTolerances(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	target := param.NewModel(l, pr, 1)
	fillValid(l, target.Sources[0], 0)
	start := param.NewModel(l, pr, 1)
	fillValid(l, start.Sources[0], .8)

	lb, ub := fit.DefaultBounds(l, 1, 32, 32)
	res, err := fit.Maximize(quadratic(l, target), start, l, transform.NewLog(l),
		fit.FreeAll(l, 1), lb, ub, fit.Tolerances{AbsObj: 1e6})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iters)
}

// A gradient inconsistent with its objective gives the line search no
// acceptable step; the result must come back unconverged at the seed, not
// falsely converged.
func TestMaximizeUnconverged(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	target := param.NewModel(l, pr, 1)
	fillValid(l, target.Sources[0], 0)
	start := param.NewModel(l, pr, 1)
	fillValid(l, start.Sources[0], .8)

	base := quadratic(l, target)
	obj := func(m *param.Model) *sensitive.Value {
		v := base(m)
		for i := range v.Grad {
			v.Grad[i] = -v.Grad[i]
		}
		return v
	}
	lb, ub := fit.DefaultBounds(l, 1, 32, 32)
	res, err := fit.Maximize(obj, start, l, transform.NewLog(l),
		fit.FreeAll(l, 1), lb, ub, fit.DefaultTolerances())
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iters)
	assert.InDelta(t, base(start).Val, res.Value, 1e-9)
}

func TestMaximizeBadInput(t *testing.T) {
	l := param.New(3, 2)
	pr := param.DefaultPriors(l)
	m := param.NewModel(l, pr, 1)
	fillValid(l, m.Sources[0], 0)
	lb, ub := fit.DefaultBounds(l, 1, 32, 32)
	pol := transform.NewLog(l)
	tol := fit.DefaultTolerances()

	_, err := fit.Maximize(quadratic(l, m), m, l, pol, []int{-1}, lb, ub, tol)
	require.Error(t, err)
	_, err = fit.Maximize(quadratic(l, m), m, l, pol, []int{3, 3}, lb, ub, tol)
	require.Error(t, err)
	_, err = fit.Maximize(quadratic(l, m), m, l, pol, fit.FreeAll(l, 1), lb[:3], ub, tol)
	require.Error(t, err)
}

func TestFreeGroups(t *testing.T) {
	l := param.New(3, 2)
	free := fit.FreeGroups(l, 2, param.GPosition, param.GBrightRef)
	assert.Len(t, free, 2*5)
	for _, i := range free {
		g := l.Group(i % l.Len())
		assert.True(t, g == param.GPosition || g == param.GBrightRef)
	}
	assert.Len(t, fit.FreeAll(l, 3), 3*l.Len())
}

func TestDefaultBounds(t *testing.T) {
	l := param.New(3, 2)
	lb, ub := fit.DefaultBounds(l, 2, 32, 48)
	require.Len(t, lb, l.Dim(2))
	require.Len(t, ub, l.Dim(2))
	for i := range lb {
		assert.Less(t, lb[i], ub[i])
	}
	// positions are bound by the stamp geometry, not arbitrary sentinels
	assert.InDelta(t, 39, ub[l.PosX()], 1e-12)
	assert.InDelta(t, 55, ub[l.PosY()], 1e-12)
	assert.InDelta(t, -8, lb[l.PosX()], 1e-12)
	// a freshly seeded unconstrained point must be strictly interior
	m := param.NewModel(l, param.DefaultPriors(l), 2)
	fillValid(l, m.Sources[0], 0)
	fillValid(l, m.Sources[1], 1)
	x := transform.NewLog(l).ToUnconstrained(l, m)
	for i := range x {
		assert.Greater(t, x[i], lb[i], "slot %d", i)
		assert.Less(t, x[i], ub[i], "slot %d", i)
	}
	assert.InDelta(t, math.Log(1e-4), lb[l.PosVar()], 1e-12)
}
