// Public domain.

package param

import "github.com/pkg/errors"

// Priors holds the shared prior distribution parameters.  They regularize
// the variational posterior through the KL terms of the ELBO and are never
// themselves optimized.  A Priors value is immutable once built and may be
// shared by models of different fields optimized concurrently.
type Priors struct {
	// Indicator is the categorical prior over source type.
	Indicator [NTypes]float64

	// Weight[d][t] is the prior probability of color mixture component d
	// for source type t.  Columns over d sum to one.
	Weight [][NTypes]float64

	// ColorMean[j][d][t] and ColorVar[j][d][t] are the Gaussian prior over
	// the color of band pair j under component d of source type t.
	ColorMean [][][NTypes]float64
	ColorVar  [][][NTypes]float64
}

// DefaultPriors builds a generic prior configuration.  The indicator prior
// reflects that faint catalogs skew toward galaxies.  Color priors put a
// broad component near flat colors and a second redder, tighter component.
func DefaultPriors(l *Layout) *Priors {
	p := &Priors{Indicator: [NTypes]float64{.28, .72}}
	p.Weight = make([][NTypes]float64, l.Comps)
	for d := 0; d < l.Comps; d++ {
		p.Weight[d] = [NTypes]float64{1 / float64(l.Comps), 1 / float64(l.Comps)}
	}
	p.ColorMean = make([][][NTypes]float64, l.Pairs())
	p.ColorVar = make([][][NTypes]float64, l.Pairs())
	for j := 0; j < l.Pairs(); j++ {
		p.ColorMean[j] = make([][NTypes]float64, l.Comps)
		p.ColorVar[j] = make([][NTypes]float64, l.Comps)
		for d := 0; d < l.Comps; d++ {
			// component 0 broad around zero color, later components
			// progressively redder and tighter
			mean := .4 * float64(d)
			v := 1. / float64(1+d)
			p.ColorMean[j][d] = [NTypes]float64{mean, mean}
			p.ColorVar[j][d] = [NTypes]float64{v, v}
		}
	}
	return p
}

func (p *Priors) check(l *Layout) error {
	if len(p.Weight) != l.Comps {
		return errors.Errorf("param: priors have %d weight components, layout wants %d",
			len(p.Weight), l.Comps)
	}
	if len(p.ColorMean) != l.Pairs() || len(p.ColorVar) != l.Pairs() {
		return errors.Errorf("param: priors cover %d band pairs, layout wants %d",
			len(p.ColorMean), l.Pairs())
	}
	for j := range p.ColorMean {
		if len(p.ColorMean[j]) != l.Comps || len(p.ColorVar[j]) != l.Comps {
			return errors.Errorf("param: color prior pair %d has wrong component count", j)
		}
	}
	return nil
}
