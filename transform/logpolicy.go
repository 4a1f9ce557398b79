// Public domain.

package transform

import (
	"math"

	"github.com/asterhaus/skyvi/param"
)

// Log is the default analytic reparameterization: positive quantities as
// logs, unit-interval quantities as logits, simplex groups as softmax
// preimages (canonical preimage log p), everything else identity.  Its
// range is unbounded, which suits the quasi-Newton search.
type Log struct {
	ks []kind
	sx [][]int
}

// NewLog builds the default policy for a layout.
func NewLog(l *param.Layout) *Log {
	return &Log{ks: kinds(l), sx: simplexes(l)}
}

func (p *Log) ToUnconstrained(l *param.Layout, m *param.Model) []float64 {
	n := l.Len()
	x := make([]float64, l.Dim(len(m.Sources)))
	for s, v := range m.Sources {
		u := x[s*n : (s+1)*n]
		for i, c := range v {
			switch p.ks[i] {
			case kIdent:
				u[i] = c
			case kLog:
				u[i] = math.Log(math.Max(c, tiny))
			case kLogit:
				u[i] = logit(c)
			case kSimplex:
				u[i] = math.Log(math.Max(c, minProb))
			}
		}
	}
	return x
}

func (p *Log) ToConstrained(l *param.Layout, x []float64, into *param.Model) {
	n := l.Len()
	for s, v := range into.Sources {
		u := x[s*n : (s+1)*n]
		for i, ui := range u {
			switch p.ks[i] {
			case kIdent:
				v[i] = ui
			case kLog:
				v[i] = math.Exp(ui)
			case kLogit:
				v[i] = sigmoid(ui)
			}
		}
		// simplex groups renormalize as a unit
		for _, idx := range p.sx {
			buf := make([]float64, len(idx))
			for j, i := range idx {
				buf[j] = u[i]
			}
			softmax(buf, func(j int, pj float64) { v[idx[j]] = pj })
		}
	}
}

// RescaleGradient multiplies each constrained-space gradient component by
// the derivative of the constrained variable with respect to its
// unconstrained counterpart.  Simplex groups apply their within-group
// softmax Jacobian; no group couples to another.
func (p *Log) RescaleGradient(l *param.Layout, m *param.Model, grad, dst []float64) []float64 {
	n := l.Len()
	if dst == nil {
		dst = make([]float64, len(grad))
	}
	for s, v := range m.Sources {
		g := grad[s*n : (s+1)*n]
		d := dst[s*n : (s+1)*n]
		for i, c := range v {
			switch p.ks[i] {
			case kIdent:
				d[i] = g[i]
			case kLog:
				d[i] = g[i] * c
			case kLogit:
				d[i] = g[i] * c * (1 - c)
			}
		}
		for _, idx := range p.sx {
			var inner float64
			for _, i := range idx {
				inner += g[i] * v[i]
			}
			for _, i := range idx {
				d[i] = v[i] * (g[i] - inner)
			}
		}
	}
	return dst
}
