// Public domain.

// Package fit drives a subset of a model's free parameters to a local
// maximum of an objective that reports value and gradient together.
package fit

import (
	"math"

	"github.com/pkg/errors"

	"github.com/asterhaus/skyvi/elbo"
	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/sensitive"
	"github.com/asterhaus/skyvi/transform"
)

// Objective is any function reporting a value to maximize along with its
// gradient over all sources' constrained parameters.
type Objective func(m *param.Model) *sensitive.Value

// Tolerances bound the quasi-Newton search.  Non-positive fields take
// their defaults individually.
type Tolerances struct {
	RelStep float64 // stop when the largest coordinate step falls below this, relative
	AbsObj  float64 // stop when the objective change falls below this, relative
	MaxIter int
}

// DefaultTolerances suits both the fast likelihood fit and the full ELBO fit.
func DefaultTolerances() Tolerances {
	return Tolerances{RelStep: 1e-9, AbsObj: 1e-11, MaxIter: 300}
}

// Result is the outcome of a maximization.  Optimization is best effort:
// when the search stops on its iteration cap the best iterate found is
// still returned, with Converged false.
type Result struct {
	Model     *param.Model
	Value     float64
	Converged bool
	Iters     int
}

// Maximize drives the free subset of unconstrained parameters to a local
// maximum of the objective, subject to box bounds.  Parameters outside the
// free index set are pinned to their initial values.  Bounds are given in
// unconstrained space over the full flat dimension.
func Maximize(obj Objective, m *param.Model, l *param.Layout, pol transform.Policy,
	free []int, lb, ub []float64, tol Tolerances) (*Result, error) {

	if err := m.Check(l); err != nil {
		return nil, err
	}
	dim := l.Dim(len(m.Sources))
	if len(lb) != dim || len(ub) != dim {
		return nil, errors.Errorf("fit: bounds sized %d/%d, want %d", len(lb), len(ub), dim)
	}
	seen := make(map[int]bool, len(free))
	for _, i := range free {
		if i < 0 || i >= dim {
			return nil, errors.Errorf("fit: free index %d outside dimension %d", i, dim)
		}
		if seen[i] {
			return nil, errors.Errorf("fit: duplicate free index %d", i)
		}
		seen[i] = true
	}
	def := DefaultTolerances()
	if tol.MaxIter <= 0 {
		tol.MaxIter = def.MaxIter
	}
	if tol.RelStep <= 0 {
		tol.RelStep = def.RelStep
	}
	if tol.AbsObj <= 0 {
		tol.AbsObj = def.AbsObj
	}

	x := pol.ToUnconstrained(l, m)
	work := m.Clone()
	gbuf := make([]float64, dim)

	z0 := make([]float64, len(free))
	zlb := make([]float64, len(free))
	zub := make([]float64, len(free))
	for j, i := range free {
		z0[j] = x[i]
		zlb[j] = lb[i]
		zub[j] = ub[i]
		if zlb[j] > zub[j] {
			return nil, errors.Errorf("fit: bound order violated at index %d", i)
		}
	}

	eval := func(z []float64) (float64, []float64) {
		for j, i := range free {
			x[i] = z[j]
		}
		pol.ToConstrained(l, x, work)
		sv := obj(work)
		pol.RescaleGradient(l, work, sv.Grad, gbuf)
		g := make([]float64, len(free))
		for j, i := range free {
			g[j] = -gbuf[i]
		}
		return -sv.Val, g
	}

	mr := minimize(eval, z0, zlb, zub, tol)

	for j, i := range free {
		x[i] = mr.z[j]
	}
	out := m.Clone()
	pol.ToConstrained(l, x, out)
	return &Result{
		Model:     out,
		Value:     -mr.f,
		Converged: mr.converged,
		Iters:     mr.iters,
	}, nil
}

// FreeGroups collects the unconstrained indices of the given groups for
// every source of an nsrc-source model.
func FreeGroups(l *param.Layout, nsrc int, groups ...param.Group) []int {
	var free []int
	for s := 0; s < nsrc; s++ {
		base := s * l.Len()
		for _, g := range groups {
			off, n := l.Span(g)
			for i := 0; i < n; i++ {
				free = append(free, base+off+i)
			}
		}
	}
	return free
}

// FreeAll frees every parameter of every source.
func FreeAll(l *param.Layout, nsrc int) []int {
	free := make([]int, l.Dim(nsrc))
	for i := range free {
		free[i] = i
	}
	return free
}

// Likelihood is the fast default fit: it maximizes the expected
// log-likelihood alone, freeing only per-source brightness and position.
func Likelihood(e *elbo.Engine, m *param.Model, tol Tolerances) (*Result, error) {
	if err := e.Check(m); err != nil {
		return nil, err
	}
	l := e.Layout()
	free := FreeGroups(l, len(m.Sources), param.GPosition, param.GBrightRef, param.GBrightRatio)
	w, h := e.Extent()
	lb, ub := DefaultBounds(l, len(m.Sources), w, h)
	return Maximize(e.Likelihood, m, l, transform.NewLog(l), free, lb, ub, tol)
}

// Full maximizes the full ELBO with every parameter free.
func Full(e *elbo.Engine, m *param.Model, tol Tolerances) (*Result, error) {
	if err := e.Check(m); err != nil {
		return nil, err
	}
	l := e.Layout()
	free := FreeAll(l, len(m.Sources))
	w, h := e.Extent()
	lb, ub := DefaultBounds(l, len(m.Sources), w, h)
	return Maximize(e.ELBO, m, l, transform.NewLog(l), free, lb, ub, tol)
}

// posMargin is how far past the pixel grid a fitted position may sit.
const posMargin = 8

// DefaultBounds gives box constraints in the Log policy's unconstrained
// space for a field of w by h pixel stamps.  Positions are bound to the
// pixel grid plus a small margin so a poorly seeded source cannot leave
// the field.  The rest are wide; their purpose is keeping probability-like
// quantities and variances from drifting into degenerate territory during
// optimization steps, not informing the fit.
func DefaultBounds(l *param.Layout, nsrc, w, h int) (lb, ub []float64) {
	n := l.Len()
	lo := make([]float64, n)
	hi := make([]float64, n)
	set := func(i int, a, b float64) { lo[i], hi[i] = a, b }

	for t := 0; t < param.NTypes; t++ {
		set(l.Ind(t), -12, 12) // softmax preimage
	}
	set(l.PosX(), -posMargin, float64(w-1)+posMargin)
	set(l.PosY(), -posMargin, float64(h-1)+posMargin)
	set(l.PosVar(), math.Log(1e-4), math.Log(25))
	set(l.BrightMean(), -5, 40)
	set(l.BrightVar(), math.Log(1e-6), math.Log(4))
	for j := 0; j < l.Pairs(); j++ {
		set(l.Ratio(j), math.Log(1e-4), math.Log(1e4))
	}
	for t := 0; t < param.NTypes; t++ {
		for j := 0; j < l.Pairs(); j++ {
			set(l.ColorMean(j, t), -10, 10)
			set(l.ColorVar(j, t), math.Log(1e-4), math.Log(10))
		}
		for d := 0; d < l.Comps; d++ {
			set(l.Weight(d, t), -12, 12)
		}
	}
	set(l.AxisMean(), -8, 8) // logit
	set(l.AxisVar(), math.Log(1e-6), math.Log(1))
	set(l.AngleMean(), -100, 100)
	set(l.AngleVar(), math.Log(1e-6), math.Log(10))
	set(l.ScaleMean(), math.Log(.05), math.Log(100))
	set(l.ScaleVar(), math.Log(1e-6), math.Log(100))
	set(l.DevMean(), -8, 8) // logit
	set(l.DevVar(), math.Log(1e-6), math.Log(1))

	lb = make([]float64, 0, nsrc*n)
	ub = make([]float64, 0, nsrc*n)
	for s := 0; s < nsrc; s++ {
		lb = append(lb, lo...)
		ub = append(ub, hi...)
	}
	return lb, ub
}
