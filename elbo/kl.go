// Public domain.

package elbo

import (
	"math"

	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/sensitive"
)

// Each KL term below is closed form and contributes value and analytic
// gradient on a source-scoped sensitive value.  They are exported
// individually so a single term can serve as an optimization objective in
// isolation.

// probability floor guarding logs of simplex entries against underflow
const minProb = 1e-12

func safeLog(x float64) float64 {
	if x < minProb {
		x = minProb
	}
	return math.Log(x)
}

// KLIndicator is the KL divergence of the variational type indicator
// against the categorical prior.
func KLIndicator(l *param.Layout, pr *param.Priors, v param.Vector) *sensitive.Value {
	kl := sensitive.Zero(l.Len())
	for t := 0; t < param.NTypes; t++ {
		a := v[l.Ind(t)]
		lr := safeLog(a) - safeLog(pr.Indicator[t])
		kl.Val += a * lr
		kl.Grad[l.Ind(t)] = lr + 1
	}
	return kl
}

// KLWeight is the KL divergence of the per-type color mixture weights
// against their prior, taken in expectation over the type indicator.
func KLWeight(l *param.Layout, pr *param.Priors, v param.Vector) *sensitive.Value {
	kl := sensitive.Zero(l.Len())
	for t := 0; t < param.NTypes; t++ {
		a := v[l.Ind(t)]
		var sum float64
		for d := 0; d < l.Comps; d++ {
			k := v[l.Weight(d, t)]
			lr := safeLog(k) - safeLog(pr.Weight[d][t])
			sum += k * lr
			kl.Grad[l.Weight(d, t)] = a * (lr + 1)
		}
		kl.Val += a * sum
		kl.Grad[l.Ind(t)] = sum
	}
	return kl
}

// KLColor is the KL divergence of the variational color Gaussians against
// the per-type, per-component Gaussian priors, in expectation over the type
// indicator and the mixture weights.
func KLColor(l *param.Layout, pr *param.Priors, v param.Vector) *sensitive.Value {
	kl := sensitive.Zero(l.Len())
	for t := 0; t < param.NTypes; t++ {
		a := v[l.Ind(t)]
		var typeSum float64
		for d := 0; d < l.Comps; d++ {
			k := v[l.Weight(d, t)]
			var compSum float64
			for j := 0; j < l.Pairs(); j++ {
				c1 := v[l.ColorMean(j, t)]
				c2 := v[l.ColorVar(j, t)]
				m := pr.ColorMean[j][d][t]
				pv := pr.ColorVar[j][d][t]
				diff := c1 - m
				g := .5 * (math.Log(pv/c2) + (c2+diff*diff)/pv - 1)
				compSum += g
				kl.Grad[l.ColorMean(j, t)] += a * k * diff / pv
				kl.Grad[l.ColorVar(j, t)] += a * k * .5 * (1/pv - 1/c2)
			}
			typeSum += k * compSum
			kl.Grad[l.Weight(d, t)] += a * compSum
		}
		kl.Val += a * typeSum
		kl.Grad[l.Ind(t)] += typeSum
	}
	return kl
}

// KLSource is the sum of all KL terms of one source.
func KLSource(l *param.Layout, pr *param.Priors, v param.Vector) *sensitive.Value {
	kl := KLIndicator(l, pr, v)
	kl.Add(KLWeight(l, pr, v))
	kl.Add(KLColor(l, pr, v))
	return kl
}
