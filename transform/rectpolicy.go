// Public domain.

package transform

import (
	"math"

	"github.com/asterhaus/skyvi/param"
)

// Rect rescales scalar parameters into [0,1] by data-derived bounds instead
// of mapping them through logs.  Simplex groups keep the softmax preimage
// representation.  The policy is experimental: its numerical behavior under
// the quasi-Newton search is not guaranteed, and the default Log policy is
// preferred.
type Rect struct {
	ks     []kind
	sx     [][]int
	lb, ub []float64 // per-slot bounds, one source vector long
}

// NewRect builds the rescaling policy from per-slot bounds of length
// Layout.Len().  Bounds of simplex slots are ignored.
func NewRect(l *param.Layout, lb, ub []float64) *Rect {
	if len(lb) != l.Len() || len(ub) != l.Len() {
		panic("transform: rect bounds must cover one source vector")
	}
	return &Rect{ks: kinds(l), sx: simplexes(l), lb: lb, ub: ub}
}

func (p *Rect) ToUnconstrained(l *param.Layout, m *param.Model) []float64 {
	n := l.Len()
	x := make([]float64, l.Dim(len(m.Sources)))
	for s, v := range m.Sources {
		u := x[s*n : (s+1)*n]
		for i, c := range v {
			if p.ks[i] == kSimplex {
				u[i] = math.Log(math.Max(c, minProb))
				continue
			}
			u[i] = (c - p.lb[i]) / (p.ub[i] - p.lb[i])
		}
	}
	return x
}

func (p *Rect) ToConstrained(l *param.Layout, x []float64, into *param.Model) {
	n := l.Len()
	for s, v := range into.Sources {
		u := x[s*n : (s+1)*n]
		for i, ui := range u {
			if p.ks[i] == kSimplex {
				continue
			}
			v[i] = p.lb[i] + ui*(p.ub[i]-p.lb[i])
		}
		for _, idx := range p.sx {
			buf := make([]float64, len(idx))
			for j, i := range idx {
				buf[j] = u[i]
			}
			softmax(buf, func(j int, pj float64) { v[idx[j]] = pj })
		}
	}
}

func (p *Rect) RescaleGradient(l *param.Layout, m *param.Model, grad, dst []float64) []float64 {
	n := l.Len()
	if dst == nil {
		dst = make([]float64, len(grad))
	}
	for s, v := range m.Sources {
		g := grad[s*n : (s+1)*n]
		d := dst[s*n : (s+1)*n]
		for i := range v {
			if p.ks[i] == kSimplex {
				continue
			}
			d[i] = g[i] * (p.ub[i] - p.lb[i])
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
