// Public domain.

package elbo

import "math"

// sym2 is a 2x2 symmetric matrix.
type sym2 struct {
	XX, XY, YY float64
}

func (s sym2) det() float64 { return s.XX*s.YY - s.XY*s.XY }

// inv returns the inverse.  Callers guarantee positive definiteness:
// covariances here are sums of calibrated PSF covariances and non-negative
// diagonal and profile contributions.
func (s sym2) inv() sym2 {
	d := 1 / s.det()
	return sym2{XX: s.YY * d, XY: -s.XY * d, YY: s.XX * d}
}

func (s sym2) add(t sym2) sym2 {
	return sym2{s.XX + t.XX, s.XY + t.XY, s.YY + t.YY}
}

func (s sym2) scale(c float64) sym2 {
	return sym2{c * s.XX, c * s.XY, c * s.YY}
}

func (s sym2) addDiag(c float64) sym2 {
	return sym2{s.XX + c, s.XY, s.YY + c}
}

// dot is the Frobenius inner product of two symmetric matrices.
func (s sym2) dot(t sym2) float64 {
	return s.XX*t.XX + 2*s.XY*t.XY + s.YY*t.YY
}

// maxEigen returns the larger eigenvalue.
func (s sym2) maxEigen() float64 {
	h := (s.XX + s.YY) * .5
	d := (s.XX - s.YY) * .5
	return h + math.Sqrt(d*d+s.XY*s.XY)
}

// shearMat builds the unit galaxy shape matrix R(angle) diag(1, axis^2)
// R(angle)^T together with its partial derivatives in axis and angle.
// Scaling by (radius * sqrt(nu))^2 is applied by the caller.
func shearMat(axis, angle float64) (m, dAxis, dAngle sym2) {
	s, c := math.Sincos(angle)
	a2 := axis * axis
	m = sym2{
		XX: c*c + a2*s*s,
		XY: s * c * (1 - a2),
		YY: s*s + a2*c*c,
	}
	dAxis = sym2{
		XX: 2 * axis * s * s,
		XY: -2 * axis * s * c,
		YY: 2 * axis * c * c,
	}
	dAngle = sym2{
		XX: -2 * s * c * (1 - a2),
		XY: (c*c - s*s) * (1 - a2),
		YY: 2 * s * c * (1 - a2),
	}
	return
}
