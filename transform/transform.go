// Public domain.

// Package transform maps variational parameters between the constrained
// space the model is defined on and the unconstrained space the optimizer
// navigates, and rescales gradients between the two through the transform's
// Jacobian.
package transform

import (
	"math"

	"github.com/asterhaus/skyvi/param"
)

// Policy is a bidirectional reparameterization applied per source
// independently.  ToConstrained(ToUnconstrained(m)) must reproduce m within
// floating-point tolerance.  RescaleGradient converts a gradient taken with
// respect to constrained parameters into one with respect to unconstrained
// parameters; parameter groups never cross-couple, and within a group only
// the simplex transforms couple their own entries.
type Policy interface {
	ToUnconstrained(l *param.Layout, m *param.Model) []float64
	ToConstrained(l *param.Layout, x []float64, into *param.Model)
	RescaleGradient(l *param.Layout, m *param.Model, grad, dst []float64) []float64
}

// per-slot scalar transform kinds; simplex groups are handled separately
type kind uint8

const (
	kIdent kind = iota
	kLog
	kLogit
	kSimplex // marker, resolved group-wise
)

const minProb = 1e-12
const tiny = 1e-300

// kinds builds the per-slot transform table for one source vector.
func kinds(l *param.Layout) []kind {
	ks := make([]kind, l.Len())
	set := func(g param.Group, rel int, k kind) {
		ks[l.Off(g)+rel] = k
	}
	for i := 0; i < param.NTypes; i++ {
		set(param.GIndicator, i, kSimplex)
	}
	set(param.GPosition, 0, kIdent)
	set(param.GPosition, 1, kIdent)
	set(param.GPosition, 2, kLog)
	set(param.GBrightRef, 0, kIdent)
	set(param.GBrightRef, 1, kLog)
	for j := 0; j < l.Pairs(); j++ {
		set(param.GBrightRatio, j, kLog)
	}
	// color means identity, variances log
	for i := 0; i < l.Pairs()*param.NTypes; i++ {
		set(param.GColor, i, kIdent)
		set(param.GColor, l.Pairs()*param.NTypes+i, kLog)
	}
	for i := 0; i < l.Comps*param.NTypes; i++ {
		set(param.GColorWeight, i, kSimplex)
	}
	set(param.GShapeAxis, 0, kLogit)
	set(param.GShapeAxis, 1, kLog)
	set(param.GShapeAngle, 0, kIdent)
	set(param.GShapeAngle, 1, kLog)
	set(param.GShapeScale, 0, kLog)
	set(param.GShapeScale, 1, kLog)
	set(param.GShapeDev, 0, kLogit)
	set(param.GShapeDev, 1, kLog)
	return ks
}

// simplexes returns the index sets of the independent simplexes within one
// source vector: the indicator group, and one simplex per source type over
// the color weight components (stride param.NTypes).
func simplexes(l *param.Layout) [][]int {
	var s [][]int
	ind := make([]int, param.NTypes)
	for t := range ind {
		ind[t] = l.Ind(t)
	}
	s = append(s, ind)
	for t := 0; t < param.NTypes; t++ {
		w := make([]int, l.Comps)
		for d := range w {
			w[d] = l.Weight(d, t)
		}
		s = append(s, w)
	}
	return s
}

func logit(c float64) float64 {
	if c < minProb {
		c = minProb
	}
	if c > 1-1e-9 {
		c = 1 - 1e-9
	}
	return math.Log(c / (1 - c))
}

func sigmoid(u float64) float64 { return 1 / (1 + math.Exp(-u)) }

// softmax normalizes in place with a log-sum-exp guard.
func softmax(u []float64, out func(i int, p float64)) {
	max := math.Inf(-1)
	for _, v := range u {
		if v > max {
			max = v
		}
	}
	var sum float64
	for _, v := range u {
		sum += math.Exp(v - max)
	}
	inv := 1 / sum
	for i, v := range u {
		out(i, math.Exp(v-max)*inv)
	}
}
