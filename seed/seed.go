// Public domain.

// Package seed builds initial variational parameters for a field, either
// from catalog entries or from peak detection over the stamps.  The
// inference core treats both as equivalent initial-guess providers.
package seed

import (
	"math"

	"github.com/pkg/errors"
	"github.com/soniakeys/unit"

	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/stamp"
)

// CatalogEntry is one source as an external catalog describes it: sky
// position, a star/galaxy flag, per-band flux estimates under both
// hypotheses, and galaxy shape.  Entries only seed initial parameters.
type CatalogEntry struct {
	Pos      stamp.SkyCoord
	Star     bool
	StarFlux []float64 // electron counts per band
	GalFlux  []float64
	Axis     float64    // minor/major axis ratio
	Angle    unit.Angle // position angle
	Scale    float64    // effective radius, pixels
	DevFrac  float64    // de Vaucouleurs mixing fraction
}

// default variational uncertainties for freshly seeded sources
const (
	posVar0    = .25
	brightVar0 = .25
	colorVar0  = .5
	shapeVar0  = .05
)

// galaxy shape fallbacks used when an entry carries no shape
const (
	axis0  = .7
	scale0 = 2
	dev0   = .5
)

// FromCatalog seeds a model from catalog entries.  Sky positions are
// mapped to the field grid through the first stamp's WCS.
func FromCatalog(l *param.Layout, pr *param.Priors, entries []CatalogEntry,
	stamps []*stamp.Stamp) (*param.Model, error) {

	if len(stamps) == 0 {
		return nil, errors.New("seed: no stamps")
	}
	if len(entries) == 0 {
		return nil, errors.New("seed: no catalog entries")
	}
	wcs := stamps[0].WCS
	if wcs == nil {
		return nil, errors.New("seed: stamp carries no WCS")
	}
	m := param.NewModel(l, pr, len(entries))
	for i, ce := range entries {
		flux := ce.GalFlux
		pGal := .8
		if ce.Star {
			flux = ce.StarFlux
			pGal = .2
		}
		if len(flux) != l.Bands {
			return nil, errors.Errorf("seed: entry %d has %d band fluxes, want %d",
				i, len(flux), l.Bands)
		}
		x, y := wcs.ToPixel(ce.Pos)
		seedSource(l, m.Sources[i], x, y, flux, pGal)

		v := m.Sources[i]
		if !ce.Star {
			v[l.AxisMean()] = clamp(ce.Axis, .05, .95)
			v[l.AngleMean()] = ce.Angle.Rad()
			v[l.ScaleMean()] = math.Max(ce.Scale, .1)
			v[l.DevMean()] = clamp(ce.DevFrac, .01, .99)
		}
	}
	return m, nil
}

// seedSource fills one vector from a pixel position and per-band fluxes.
func seedSource(l *param.Layout, v param.Vector, x, y float64, flux []float64, pGal float64) {
	v[l.Ind(param.Star)] = 1 - pGal
	v[l.Ind(param.Gal)] = pGal
	v[l.PosX()] = x
	v[l.PosY()] = y
	v[l.PosVar()] = posVar0

	ref := math.Max(flux[l.Ref], 1)
	v[l.BrightMean()] = math.Log(ref)
	v[l.BrightVar()] = brightVar0
	for j := 0; j < l.Pairs(); j++ {
		r := math.Max(flux[l.PairBand(j)], 1) / ref
		v[l.Ratio(j)] = r
		for t := 0; t < param.NTypes; t++ {
			v[l.ColorMean(j, t)] = math.Log(r)
			v[l.ColorVar(j, t)] = colorVar0
		}
	}
	for t := 0; t < param.NTypes; t++ {
		for d := 0; d < l.Comps; d++ {
			v[l.Weight(d, t)] = 1 / float64(l.Comps)
		}
	}
	v[l.AxisMean()] = axis0
	v[l.AxisVar()] = shapeVar0
	v[l.AngleMean()] = 0
	v[l.AngleVar()] = shapeVar0
	v[l.ScaleMean()] = scale0
	v[l.ScaleVar()] = shapeVar0
	v[l.DevMean()] = dev0
	v[l.DevVar()] = shapeVar0
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
