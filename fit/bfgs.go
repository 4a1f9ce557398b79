// Public domain.

package fit

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// projected BFGS minimizer over a box.  The inverse Hessian approximation
// is maintained with gonum/mat and reset whenever the active bound set
// changes, which keeps curvature information from stale faces out of the
// search direction.

const (
	armijoC1     = 1e-4
	armijoMax    = 40
	curvatureEps = 1e-12
)

type evalFunc func(z []float64) (f float64, g []float64)

type minResult struct {
	z         []float64
	f         float64
	converged bool
	iters     int
}

func clipBox(z, lb, ub []float64) {
	for i := range z {
		if z[i] < lb[i] {
			z[i] = lb[i]
		} else if z[i] > ub[i] {
			z[i] = ub[i]
		}
	}
}

// activeSet marks coordinates pinned to a bound by the gradient sign.
func activeSet(z, g, lb, ub []float64, act []bool) {
	for i := range z {
		act[i] = z[i] <= lb[i] && g[i] > 0 || z[i] >= ub[i] && g[i] < 0
	}
}

func sameSet(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func minimize(eval evalFunc, z0, lb, ub []float64, tol Tolerances) minResult {
	k := len(z0)
	z := append([]float64{}, z0...)
	clipBox(z, lb, ub)
	f, g := eval(z)

	res := minResult{z: append([]float64{}, z...), f: f}
	if k == 0 {
		res.converged = true
		return res
	}

	h := identity(k)
	tmp := mat.NewDense(k, k, nil)
	hy := mat.NewVecDense(k, nil)
	d := make([]float64, k)
	zNew := make([]float64, k)
	sv := make([]float64, k)
	yv := make([]float64, k)
	act := make([]bool, k)
	actNew := make([]bool, k)
	activeSet(z, g, lb, ub, act)
	fresh := true

	for it := 0; it < tol.MaxIter; it++ {
		res.iters = it + 1

		// search direction: -H g, with active coordinates pinned
		gv := mat.NewVecDense(k, g)
		dv := mat.NewVecDense(k, d)
		dv.MulVec(h, gv)
		floats.Scale(-1, d)
		for i := range d {
			if act[i] {
				d[i] = 0
			}
		}
		// fall back to steepest descent when the quasi-Newton direction
		// fails to descend
		if floats.Dot(d, g) >= 0 {
			for i := range d {
				if act[i] {
					d[i] = 0
				} else {
					d[i] = -g[i]
				}
			}
			h = identity(k)
			fresh = true
		}

		// backtracking along the projected path.  With no curvature
		// information yet the unit step of a huge gradient would teleport the
		// iterate to a box face, so the first trial step is scaled to unit
		// coordinate size.
		alpha := 1.0
		if fresh {
			if gInf := floats.Norm(g, math.Inf(1)); gInf > 1 {
				alpha = 1 / gInf
			}
		}
		var fNew float64
		var gNew []float64
		ok := false
		pinned := false
		for ls := 0; ls < armijoMax; ls++ {
			for i := range zNew {
				zNew[i] = z[i] + alpha*d[i]
			}
			clipBox(zNew, lb, ub)
			pred := 0.0
			for i := range zNew {
				pred += g[i] * (zNew[i] - z[i])
			}
			if pred == 0 {
				pinned = true // fully pinned: no feasible progress
				break
			}
			fNew, gNew = eval(zNew)
			if fNew <= f+armijoC1*pred {
				ok = true
				break
			}
			alpha *= .5
		}
		if !ok {
			// a fully pinned iterate is converged; an exhausted line
			// search is not, so the caller can retry from elsewhere
			res.converged = pinned
			break
		}

		if fNew < res.f {
			res.f = fNew
			copy(res.z, zNew)
		}

		var stepMax float64
		for i := range zNew {
			sv[i] = zNew[i] - z[i]
			yv[i] = gNew[i] - g[i]
			if s := math.Abs(sv[i]); s > stepMax {
				stepMax = s
			}
		}
		df := math.Abs(fNew - f)
		klog.V(2).Infof("fit: iter %d f=%.10g step=%.3g df=%.3g", it, fNew, stepMax, df)

		copy(z, zNew)
		f = fNew
		g = gNew
		activeSet(z, g, lb, ub, actNew)

		if df <= tol.AbsObj*(1+math.Abs(f)) || stepMax <= tol.RelStep*(1+floats.Norm(z, math.Inf(1))) {
			res.converged = true
			break
		}

		// curvature update, or reset when the active face changed
		sy := floats.Dot(sv, yv)
		if !sameSet(act, actNew) || sy <= curvatureEps*floats.Norm(sv, 2)*floats.Norm(yv, 2) {
			h = identity(k)
			fresh = true
		} else {
			bfgsUpdate(h, tmp, hy, sv, yv, sy)
			fresh = false
		}
		copy(act, actNew)
	}
	return res
}

func identity(k int) *mat.Dense {
	h := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		h.Set(i, i, 1)
	}
	return h
}

// bfgsUpdate applies the standard inverse-Hessian update
// H <- H + (1 + y'Hy/s'y)(ss')/s'y - (Hys' + sy'H)/s'y.
func bfgsUpdate(h, tmp *mat.Dense, hy *mat.VecDense, s, y []float64, sy float64) {
	k := len(s)
	yVec := mat.NewVecDense(k, y)
	sVec := mat.NewVecDense(k, s)
	hy.MulVec(h, yVec)
	yhy := mat.Dot(yVec, hy)
	rho := 1 / sy

	tmp.Outer(rho*rho*yhy+rho, sVec, sVec)
	h.Add(h, tmp)
	tmp.Outer(-rho, hy, sVec)
	h.Add(h, tmp)
	tmp.Outer(-rho, sVec, hy)
	h.Add(h, tmp)
}
