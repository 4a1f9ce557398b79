// Public domain.

// Package elbo computes the evidence lower bound of the variational source
// model over a field's image stamps, together with its exact gradient.
package elbo

import (
	"math"

	"github.com/pkg/errors"

	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/sensitive"
	"github.com/asterhaus/skyvi/stamp"
)

// Engine evaluates the ELBO of a model against a fixed set of stamps.
// Stamps are read-only; the engine holds no per-model state, so one engine
// serves every evaluation of a field's optimization.
type Engine struct {
	lay    *param.Layout
	pri    *param.Priors
	stamps []*stamp.Stamp
}

// New validates the stamps and builds an engine.
func New(l *param.Layout, pr *param.Priors, stamps []*stamp.Stamp) (*Engine, error) {
	if len(stamps) == 0 {
		return nil, errors.New("elbo: no stamps")
	}
	for _, st := range stamps {
		if err := st.Check(); err != nil {
			return nil, err
		}
		if st.Band < 0 || st.Band >= l.Bands {
			return nil, errors.Errorf("elbo: stamp band %d outside layout's %d bands",
				st.Band, l.Bands)
		}
	}
	return &Engine{lay: l, pri: pr, stamps: stamps}, nil
}

// Layout returns the engine's parameter layout.
func (e *Engine) Layout() *param.Layout { return e.lay }

// Extent reports the widest and tallest stamp dimensions of the field.
func (e *Engine) Extent() (w, h int) {
	for _, st := range e.stamps {
		if st.W > w {
			w = st.W
		}
		if st.H > h {
			h = st.H
		}
	}
	return
}

// Check surfaces malformed input: dimension mismatches, and sources whose
// influence overlaps no pixel in any supplied stamp.
func (e *Engine) Check(m *param.Model) error {
	if err := m.Check(e.lay); err != nil {
		return err
	}
	for i, v := range m.Sources {
		overlap := false
		for _, st := range e.stamps {
			if r := render(e.lay, v, st); !r.empty() {
				overlap = true
				break
			}
		}
		if !overlap {
			return errors.Errorf("elbo: source %d influences no pixel in any stamp", i)
		}
	}
	return nil
}

// ELBO is the variational objective: expected log-likelihood minus the KL
// divergence terms.  The gradient spans all sources' constrained parameters.
func (e *Engine) ELBO(m *param.Model) *sensitive.Value {
	v := e.Likelihood(m)
	v.AddScaled(e.KL(m), -1)
	return v
}

// KL is the summed KL divergence of all sources against the priors.
func (e *Engine) KL(m *param.Model) *sensitive.Value {
	l := e.lay
	kl := sensitive.Zero(l.Dim(len(m.Sources)))
	for i, v := range m.Sources {
		kl.AddAt(KLSource(l, m.Priors, v), i*l.Len())
	}
	return kl
}

// Likelihood is the expected log-likelihood of the observed pixels under
// the variational source model, without prior regularization.  Every
// unmasked pixel contributes its Gaussian term: the expected value is the
// sky plus whichever sources influence the pixel, so a pixel under no
// source still pays its sky-only residual and values stay comparable
// across models with different influence regions.  Sources whose influence
// regions overlap sum in expected-flux space before the pixel likelihood
// is evaluated.  Accumulation is row-major per stamp for reproducible
// floating-point results.
func (e *Engine) Likelihood(m *param.Model) *sensitive.Value {
	l := e.lay
	nsrc := len(m.Sources)
	total := sensitive.Zero(l.Dim(nsrc))
	mu := sensitive.Zero(l.Dim(nsrc))
	px := sensitive.Zero(l.Dim(nsrc))

	renders := make([]srcRender, nsrc)
	for _, st := range e.stamps {
		for i, v := range m.Sources {
			renders[i] = render(l, v, st)
		}
		e.stampLikelihood(m, st, renders, total, mu, px)
	}
	return total
}

func (e *Engine) stampLikelihood(m *param.Model, st *stamp.Stamp,
	renders []srcRender, total, mu, px *sensitive.Value) {

	l := e.lay
	pairIdx, hasPair := l.BandPair(st.Band)

	for y := 0; y < st.H; y++ {
		for x := 0; x < st.W; x++ {
			if st.Bad(x, y) {
				continue
			}
			any := false
			for i := range renders {
				if renders[i].contains(x, y) {
					any = true
					break
				}
			}
			if !any {
				// sky-only pixel: scalar term, no parameter dependence
				i := st.Idx(x, y)
				tau := st.Variance[i]
				r := st.Pixels[i] - st.SkyAt(x, y)
				total.Val += -.5*math.Log(twoPi*tau) - r*r/(2*tau)
				continue
			}

			mu.Reset()
			mu.Val = st.SkyAt(x, y)
			fx, fy := float64(x), float64(y)
			for i := range renders {
				if !renders[i].contains(x, y) {
					continue
				}
				v := m.Sources[i]
				pe := renders[i].eval(fx, fy)

				// expected brightness in this band
				eRef := math.Exp(v[l.BrightMean()] + .5*v[l.BrightVar()])
				eBand := eRef
				if hasPair {
					eBand = eRef * v[l.Ratio(pairIdx)]
				}

				aS := v[l.Ind(param.Star)]
				aG := v[l.Ind(param.Gal)]
				mix := aS*pe.star + aG*pe.gal
				flux := eBand * mix
				mu.Val += flux

				g := mu.Grad[i*l.Len():]
				g[l.Ind(param.Star)] += eBand * pe.star
				g[l.Ind(param.Gal)] += eBand * pe.gal
				g[l.PosX()] += eBand * (aS*pe.dStar[dPosX] + aG*pe.dGal[dPosX])
				g[l.PosY()] += eBand * (aS*pe.dStar[dPosY] + aG*pe.dGal[dPosY])
				g[l.PosVar()] += eBand * (aS*pe.dStar[dPosVar] + aG*pe.dGal[dPosVar])
				g[l.BrightMean()] += flux
				g[l.BrightVar()] += .5 * flux
				if hasPair {
					g[l.Ratio(pairIdx)] += eRef * mix
				}
				g[l.AxisMean()] += eBand * aG * pe.dGal[dAxis]
				g[l.AngleMean()] += eBand * aG * pe.dGal[dAngle]
				g[l.ScaleMean()] += eBand * aG * pe.dGal[dScale]
				g[l.DevMean()] += eBand * aG * pe.dGal[dDev]
			}

			i := st.Idx(x, y)
			tau := st.Variance[i]
			r := st.Pixels[i] - mu.Val
			ll := -.5*math.Log(twoPi*tau) - r*r/(2*tau)
			px.Compose(ll, r/tau, mu)
			total.Add(px)
		}
	}
}

// Expected renders the expected source flux of a model onto a stamp's
// grid, without sky or noise.  This is the same forward model the
// likelihood evaluates; the synthetic data generator calls it so test
// fixtures stay consistent with the inference model.
func Expected(l *param.Layout, m *param.Model, st *stamp.Stamp) []float64 {
	img := make([]float64, st.W*st.H)
	pairIdx, hasPair := l.BandPair(st.Band)
	for _, v := range m.Sources {
		r := render(l, v, st)
		if r.empty() {
			continue
		}
		eBand := math.Exp(v[l.BrightMean()] + .5*v[l.BrightVar()])
		if hasPair {
			eBand *= v[l.Ratio(pairIdx)]
		}
		aS := v[l.Ind(param.Star)]
		aG := v[l.Ind(param.Gal)]
		for y := r.y0; y <= r.y1; y++ {
			for x := r.x0; x <= r.x1; x++ {
				pe := r.eval(float64(x), float64(y))
				img[st.Idx(x, y)] += eBand * (aS*pe.star + aG*pe.gal)
			}
		}
	}
	return img
}
