// Public domain.

// Package synth renders synthetic observations from catalog entries for
// ground-truth-known test fixtures.  Rendering goes through the same
// forward model the ELBO engine evaluates, so fixtures stay consistent
// with the likelihood.
package synth

import (
	"math"

	xrand "golang.org/x/exp/rand"

	"github.com/asterhaus/skyvi/elbo"
	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/seed"
	"github.com/asterhaus/skyvi/stamp"
)

// Truth builds the exact model a list of catalog entries describes:
// indicators certain, position and brightness spreads collapsed to zero.
// Rendering this model yields each entry's expected flux.
func Truth(l *param.Layout, pr *param.Priors, entries []seed.CatalogEntry,
	stamps []*stamp.Stamp) (*param.Model, error) {

	m, err := seed.FromCatalog(l, pr, entries, stamps)
	if err != nil {
		return nil, err
	}
	for i, ce := range entries {
		v := m.Sources[i]
		if ce.Star {
			v[l.Ind(param.Star)] = 1
			v[l.Ind(param.Gal)] = 0
		} else {
			v[l.Ind(param.Star)] = 0
			v[l.Ind(param.Gal)] = 1
		}
		v[l.PosVar()] = 0
		v[l.BrightVar()] = 0
		flux := ce.GalFlux
		if ce.Star {
			flux = ce.StarFlux
		}
		v[l.BrightMean()] = math.Log(flux[l.Ref])
		for j := 0; j < l.Pairs(); j++ {
			v[l.Ratio(j)] = flux[l.PairBand(j)] / flux[l.Ref]
		}
	}
	return m, nil
}

// Render rebuilds each stamp's pixels as its sky plane plus the model's
// expected source flux.  Baseline stamps are not modified.
func Render(l *param.Layout, m *param.Model, base []*stamp.Stamp) []*stamp.Stamp {
	out := make([]*stamp.Stamp, len(base))
	for i, st := range base {
		img := elbo.Expected(l, m, st)
		cp := *st
		cp.Pixels = make([]float64, len(st.Pixels))
		for k := range cp.Pixels {
			cp.Pixels[k] = img[k]
		}
		for y := 0; y < st.H; y++ {
			for x := 0; x < st.W; x++ {
				cp.Pixels[st.Idx(x, y)] += st.SkyAt(x, y)
			}
		}
		out[i] = &cp
	}
	return out
}

// Observe adds Gaussian noise with each pixel's calibrated standard
// deviation, seeded for repeatable fixtures.
func Observe(stamps []*stamp.Stamp, seedVal uint64) []*stamp.Stamp {
	rnd := xrand.New(&xrand.PCGSource{})
	rnd.Seed(seedVal)
	out := make([]*stamp.Stamp, len(stamps))
	for i, st := range stamps {
		cp := *st
		cp.Pixels = append([]float64{}, st.Pixels...)
		for k := range cp.Pixels {
			cp.Pixels[k] += rnd.NormFloat64() * math.Sqrt(st.Variance[k])
		}
		out[i] = &cp
	}
	return out
}
