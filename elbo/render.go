// Public domain.

package elbo

import (
	"math"

	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/stamp"
)

// influenceSigma sets the influence radius of a rendered component in units
// of its largest covariance eigenvalue's square root.
const influenceSigma = 4.0

const twoPi = 2 * math.Pi

// term is one Gaussian of a source's rendered kernel on a stamp: a PSF
// component convolved with the position distribution and, for galaxy terms,
// one profile component under the current shape.
type term struct {
	w      float64 // weight: PSF x profile amplitude x profile mix
	mx, my float64
	p      sym2    // precision
	norm   float64 // sqrt(det p)/2pi

	// galaxy terms only: covariance partials and devfraction log-weight
	// derivative (+1/dev for de Vaucouleurs terms, -1/(1-dev) for
	// exponential ones)
	gal                      bool
	dCaxis, dCangle, dCscale sym2
	devMul                   float64
}

// srcRender is a source's prepared rendering on one stamp: the term list
// and the influence bounding box, clipped to the stamp.  An empty box has
// x1 < x0.
type srcRender struct {
	terms          []term
	x0, y0, x1, y1 int
}

func (r *srcRender) contains(x, y int) bool {
	return x >= r.x0 && x <= r.x1 && y >= r.y0 && y <= r.y1
}

func (r *srcRender) empty() bool { return r.x1 < r.x0 }

// offsets into pixLocal partials
const (
	dPosX = iota
	dPosY
	dPosVar
	dAxis
	dAngle
	dScale
	dDev
	nPartial
)

// pixLocal is a source's unit-brightness rendering at one pixel: the star
// and galaxy hypothesis values and their partials with respect to the
// source's local parameters.
type pixLocal struct {
	star, gal float64
	dStar     [3]float64        // position mean x, y and position variance
	dGal      [nPartial]float64 // position, variance and shape
}

// render prepares a source's terms on a stamp.
func render(l *param.Layout, v param.Vector, st *stamp.Stamp) srcRender {
	px := v[l.PosX()]
	py := v[l.PosY()]
	pvar := v[l.PosVar()]
	axis := v[l.AxisMean()]
	angle := v[l.AngleMean()]
	scale := v[l.ScaleMean()]
	dev := v[l.DevMean()]

	kernel := st.PSF.Kernel(px, py)
	shape, dShapeAxis, dShapeAngle := shearMat(axis, angle)

	nGal := len(kernel) * (len(expAmp) + len(devAmp))
	terms := make([]term, 0, len(kernel)+nGal)

	// extent of the influence box around the source position
	var radius float64
	grow := func(offx, offy float64, c sym2) {
		r := math.Hypot(offx, offy) + influenceSigma*math.Sqrt(c.maxEigen())
		if r > radius {
			radius = r
		}
	}

	for _, k := range kernel {
		c := sym2{k.Cxx, k.Cxy, k.Cyy}.addDiag(pvar)
		p := c.inv()
		terms = append(terms, term{
			w:    k.Weight,
			mx:   px + k.DX,
			my:   py + k.DY,
			p:    p,
			norm: math.Sqrt(p.det()) / twoPi,
		})
		grow(k.DX, k.DY, c)

		// galaxy terms: profile components convolved with this PSF
		// component; covariances add
		ss := scale * scale
		for pk := range devAmp {
			nu := devVar[pk] * ss
			c := sym2{k.Cxx, k.Cxy, k.Cyy}.addDiag(pvar).add(shape.scale(nu))
			p := c.inv()
			terms = append(terms, term{
				w:       k.Weight * devAmp[pk] * dev,
				mx:      px + k.DX,
				my:      py + k.DY,
				p:       p,
				norm:    math.Sqrt(p.det()) / twoPi,
				gal:     true,
				dCaxis:  dShapeAxis.scale(nu),
				dCangle: dShapeAngle.scale(nu),
				dCscale: shape.scale(2 * scale * devVar[pk]),
				devMul:  1 / dev,
			})
			grow(k.DX, k.DY, c)
		}
		for pk := range expAmp {
			nu := expVar[pk] * ss
			c := sym2{k.Cxx, k.Cxy, k.Cyy}.addDiag(pvar).add(shape.scale(nu))
			p := c.inv()
			terms = append(terms, term{
				w:       k.Weight * expAmp[pk] * (1 - dev),
				mx:      px + k.DX,
				my:      py + k.DY,
				p:       p,
				norm:    math.Sqrt(p.det()) / twoPi,
				gal:     true,
				dCaxis:  dShapeAxis.scale(nu),
				dCangle: dShapeAngle.scale(nu),
				dCscale: shape.scale(2 * scale * expVar[pk]),
				devMul:  -1 / (1 - dev),
			})
			grow(k.DX, k.DY, c)
		}
	}

	r := srcRender{terms: terms}
	r.x0 = int(math.Floor(px - radius))
	r.x1 = int(math.Ceil(px + radius))
	r.y0 = int(math.Floor(py - radius))
	r.y1 = int(math.Ceil(py + radius))
	if r.x0 < 0 {
		r.x0 = 0
	}
	if r.y0 < 0 {
		r.y0 = 0
	}
	if r.x1 > st.W-1 {
		r.x1 = st.W - 1
	}
	if r.y1 > st.H-1 {
		r.y1 = st.H - 1
	}
	return r
}

// eval computes the source's unit-brightness rendering at pixel x, y.
func (r *srcRender) eval(x, y float64) (pe pixLocal) {
	for i := range r.terms {
		t := &r.terms[i]
		qx := x - t.mx
		qy := y - t.my
		ux := t.p.XX*qx + t.p.XY*qy
		uy := t.p.XY*qx + t.p.YY*qy
		val := t.w * t.norm * math.Exp(-.5*(qx*ux+qy*uy))

		// dval/dC = .5 val (uu^T - P), taken against each covariance
		// partial below
		du := sym2{ux*ux - t.p.XX, ux*uy - t.p.XY, uy*uy - t.p.YY}
		dvar := .5 * val * (du.XX + du.YY) // dC/dposvar = I

		if !t.gal {
			pe.star += val
			pe.dStar[dPosX] += val * ux
			pe.dStar[dPosY] += val * uy
			pe.dStar[dPosVar] += dvar
			continue
		}
		pe.gal += val
		pe.dGal[dPosX] += val * ux
		pe.dGal[dPosY] += val * uy
		pe.dGal[dPosVar] += dvar
		pe.dGal[dAxis] += .5 * val * du.dot(t.dCaxis)
		pe.dGal[dAngle] += .5 * val * du.dot(t.dCangle)
		pe.dGal[dScale] += .5 * val * du.dot(t.dCscale)
		pe.dGal[dDev] += val * t.devMul
	}
	return
}
